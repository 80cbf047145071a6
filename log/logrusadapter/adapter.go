// Package logrusadapter provides a logger that writes to a github.com/sirupsen/logrus.Logger.
package logrusadapter

import (
	"context"

	"github.com/opengauss-go/gaussconn/gausslog"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	l *logrus.Logger
}

func NewLogger(l *logrus.Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(ctx context.Context, level gausslog.LogLevel, msg string, data map[string]interface{}) {
	var logger logrus.FieldLogger
	if data != nil {
		logger = l.l.WithFields(data)
	} else {
		logger = l.l
	}

	switch level {
	case gausslog.LogLevelTrace:
		logger.WithField("GAUSSCONN_LOG_LEVEL", level).Debug(msg)
	case gausslog.LogLevelDebug:
		logger.Debug(msg)
	case gausslog.LogLevelInfo:
		logger.Info(msg)
	case gausslog.LogLevelWarn:
		logger.Warn(msg)
	case gausslog.LogLevelError:
		logger.Error(msg)
	default:
		logger.WithField("INVALID_GAUSSCONN_LOG_LEVEL", level).Error(msg)
	}
}
