// Package kitlogadapter provides a logger that writes to a github.com/go-kit/log.Logger.
package kitlogadapter

import (
	"context"

	"github.com/go-kit/log"
	kitlevel "github.com/go-kit/log/level"

	"github.com/opengauss-go/gaussconn/gausslog"
)

type Logger struct {
	l log.Logger
}

func NewLogger(l log.Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(ctx context.Context, level gausslog.LogLevel, msg string, data map[string]interface{}) {
	var logger log.Logger
	if data != nil {
		keyvals := make([]interface{}, 0, 2*len(data))
		for k, v := range data {
			keyvals = append(keyvals, k, v)
		}
		logger = log.With(l.l, keyvals...)
	} else {
		logger = l.l
	}

	switch level {
	case gausslog.LogLevelTrace:
		logger.Log("GAUSSCONN_LOG_LEVEL", level, "msg", msg)
	case gausslog.LogLevelDebug:
		kitlevel.Debug(logger).Log("msg", msg)
	case gausslog.LogLevelInfo:
		kitlevel.Info(logger).Log("msg", msg)
	case gausslog.LogLevelWarn:
		kitlevel.Warn(logger).Log("msg", msg)
	case gausslog.LogLevelError:
		kitlevel.Error(logger).Log("msg", msg)
	default:
		logger.Log("INVALID_GAUSSCONN_LOG_LEVEL", level, "error", msg)
	}
}
