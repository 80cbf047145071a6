// Package zapadapter provides a logger that writes to a go.uber.org/zap.Logger.
package zapadapter

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opengauss-go/gaussconn/gausslog"
)

type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (pl *Logger) Log(ctx context.Context, level gausslog.LogLevel, msg string, data map[string]interface{}) {
	var zlevel zapcore.Level
	switch level {
	case gausslog.LogLevelTrace:
		zlevel = zap.DebugLevel
	case gausslog.LogLevelDebug:
		zlevel = zap.DebugLevel
	case gausslog.LogLevelInfo:
		zlevel = zap.InfoLevel
	case gausslog.LogLevelWarn:
		zlevel = zap.WarnLevel
	case gausslog.LogLevelError:
		zlevel = zap.ErrorLevel
	default:
		zlevel = zap.ErrorLevel
	}

	if ce := pl.logger.Check(zlevel, msg); ce != nil {
		fields := make([]zap.Field, 0, len(data))
		for k, v := range data {
			fields = append(fields, zap.Any(k, v))
		}
		ce.Write(fields...)
	}
}
