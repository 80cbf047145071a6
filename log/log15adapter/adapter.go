// Package log15adapter provides a logger that writes to a github.com/inconshreveable/log15.Logger.
package log15adapter

import (
	"context"

	"github.com/opengauss-go/gaussconn/gausslog"
)

// Log15Logger interface defines the subset of
// github.com/inconshreveable/log15.Logger that this adapter uses.
type Log15Logger interface {
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type Logger struct {
	l Log15Logger
}

func NewLogger(l Log15Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(_ context.Context, level gausslog.LogLevel, msg string, data map[string]interface{}) {
	ctx := make([]interface{}, 0, 2*len(data))
	for k, v := range data {
		ctx = append(ctx, k, v)
	}

	switch level {
	case gausslog.LogLevelTrace:
		l.l.Debug(msg, append(ctx, "GAUSSCONN_LOG_LEVEL", level)...)
	case gausslog.LogLevelDebug:
		l.l.Debug(msg, ctx...)
	case gausslog.LogLevelInfo:
		l.l.Info(msg, ctx...)
	case gausslog.LogLevelWarn:
		l.l.Warn(msg, ctx...)
	case gausslog.LogLevelError:
		l.l.Error(msg, ctx...)
	default:
		l.l.Error(msg, append(ctx, "INVALID_GAUSSCONN_LOG_LEVEL", level)...)
	}
}
