// Package gausslog provides the logging facade used throughout this
// module: a small Logger interface plus a TraceLog adapter that turns
// connector/pool lifecycle events into structured log calls. Grounded on
// jackc/pgx's tracelog package (tracelog/tracelog.go), generalized from
// pgx.Conn/pgxpool.Pool tracer hooks to gaussconn.Connector and
// gausspool.Pool events.
package gausslog

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// LogLevel mirrors tracelog.LogLevel: the zero value means "unset".
type LogLevel int

const (
	LogLevelTrace = LogLevel(6)
	LogLevelDebug = LogLevel(5)
	LogLevelInfo  = LogLevel(4)
	LogLevelWarn  = LogLevel(3)
	LogLevelError = LogLevel(2)
	LogLevelNone  = LogLevel(1)
)

func (ll LogLevel) String() string {
	switch ll {
	case LogLevelTrace:
		return "trace"
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	case LogLevelNone:
		return "none"
	default:
		return fmt.Sprintf("invalid level %d", ll)
	}
}

// LogLevelFromString converts a config string ("trace".."none") to a
// LogLevel, per spec.md section 6's LogLevel key.
func LogLevelFromString(s string) (LogLevel, error) {
	switch s {
	case "trace":
		return LogLevelTrace, nil
	case "debug":
		return LogLevelDebug, nil
	case "info":
		return LogLevelInfo, nil
	case "warn":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "none":
		return LogLevelNone, nil
	default:
		return 0, errors.New("gausslog: invalid log level")
	}
}

// Logger is the interface every adapter in the log/ subpackages
// implements. data may be nil.
type Logger interface {
	Log(ctx context.Context, level LogLevel, msg string, data map[string]any)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(ctx context.Context, level LogLevel, msg string, data map[string]any)

func (f LoggerFunc) Log(ctx context.Context, level LogLevel, msg string, data map[string]any) {
	f(ctx, level, msg, data)
}

func sanitizeArgs(args []any) []any {
	out := make([]any, 0, len(args))
	for _, a := range args {
		switch v := a.(type) {
		case []byte:
			if len(v) < 64 {
				a = hex.EncodeToString(v)
			} else {
				a = fmt.Sprintf("%x (truncated %d bytes)", v[:64], len(v)-64)
			}
		case string:
			if len(v) > 64 {
				l := 0
				for w := 0; l < 64; l += w {
					_, w = utf8.DecodeRuneInString(v[l:])
				}
				if len(v) > l {
					a = fmt.Sprintf("%s (truncated %d bytes)", v[:l], len(v)-l)
				}
			}
		}
		out = append(out, a)
	}
	return out
}

// Config holds the configurable key names used by TraceLog's emitted data.
type Config struct {
	TimeKey string
}

// DefaultConfig returns TraceLog's default key names.
func DefaultConfig() *Config {
	return &Config{TimeKey: "time"}
}

// TraceLog turns connector and pool lifecycle events into Logger calls.
// Grounded on tracelog.TraceLog; LogParameters (spec.md section 6)
// controls whether ExecuteEnd includes the query's parameters, since
// parameter values can carry sensitive data.
type TraceLog struct {
	Logger         Logger
	LogLevel       LogLevel
	LogParameters  bool
	IncludeDetail  bool

	Config           *Config
	ensureConfigOnce sync.Once
}

func (tl *TraceLog) ensureConfig() {
	tl.ensureConfigOnce.Do(func() {
		if tl.Config == nil {
			tl.Config = DefaultConfig()
		}
	})
}

func (tl *TraceLog) shouldLog(lvl LogLevel) bool {
	return tl.LogLevel >= lvl
}

func (tl *TraceLog) log(ctx context.Context, pid uint32, lvl LogLevel, msg string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if pid != 0 {
		data["pid"] = pid
	}
	tl.Logger.Log(ctx, lvl, msg, data)
}

// ConnectStart/ConnectEnd bracket gaussconn.Open (spec.md section 4.3's
// Closed -> Ready transition).
func (tl *TraceLog) ConnectStart(ctx context.Context, host string, port uint16, database string) time.Time {
	return time.Now()
}

func (tl *TraceLog) ConnectEnd(ctx context.Context, started time.Time, host string, port uint16, database string, pid uint32, err error) {
	tl.ensureConfig()
	interval := time.Since(started)
	if err != nil {
		if tl.shouldLog(LogLevelError) {
			tl.log(ctx, 0, LogLevelError, "Connect", map[string]any{
				"host": host, "port": port, "database": database, tl.Config.TimeKey: interval, "err": err,
			})
		}
		return
	}
	if tl.shouldLog(LogLevelInfo) {
		tl.log(ctx, pid, LogLevelInfo, "Connect", map[string]any{
			"host": host, "port": port, "database": database, tl.Config.TimeKey: interval,
		})
	}
}

// ExecuteStart/ExecuteEnd bracket Connector.Execute.
func (tl *TraceLog) ExecuteStart(ctx context.Context, sql string, args []any) time.Time {
	return time.Now()
}

func (tl *TraceLog) ExecuteEnd(ctx context.Context, started time.Time, pid uint32, sql string, args []any, commandTag string, err error) {
	tl.ensureConfig()
	interval := time.Since(started)
	data := map[string]any{"sql": sql, tl.Config.TimeKey: interval}
	if tl.LogParameters {
		data["args"] = sanitizeArgs(args)
	}

	if err != nil {
		if tl.shouldLog(LogLevelError) {
			data["err"] = err
			tl.log(ctx, pid, LogLevelError, "Execute", data)
		}
		return
	}
	if tl.shouldLog(LogLevelInfo) {
		data["commandTag"] = commandTag
		tl.log(ctx, pid, LogLevelInfo, "Execute", data)
	}
}

// PrepareStart/PrepareEnd bracket a stmtCache promotion (spec.md section
// 4.3's prepared-statement LRU).
func (tl *TraceLog) PrepareStart(ctx context.Context, name, sql string) time.Time {
	return time.Now()
}

func (tl *TraceLog) PrepareEnd(ctx context.Context, started time.Time, pid uint32, name, sql string, err error) {
	tl.ensureConfig()
	interval := time.Since(started)
	if err != nil {
		if tl.shouldLog(LogLevelError) {
			tl.log(ctx, pid, LogLevelError, "Prepare", map[string]any{"name": name, "sql": sql, "err": err, tl.Config.TimeKey: interval})
		}
		return
	}
	if tl.shouldLog(LogLevelInfo) {
		tl.log(ctx, pid, LogLevelInfo, "Prepare", map[string]any{"name": name, "sql": sql, tl.Config.TimeKey: interval})
	}
}

// AcquireStart/AcquireEnd bracket gausspool.Pool.Rent.
func (tl *TraceLog) AcquireStart(ctx context.Context) time.Time {
	return time.Now()
}

func (tl *TraceLog) AcquireEnd(ctx context.Context, started time.Time, pid uint32, err error) {
	tl.ensureConfig()
	interval := time.Since(started)
	if err != nil {
		if tl.shouldLog(LogLevelError) {
			tl.log(ctx, 0, LogLevelError, "Acquire", map[string]any{"err": err, tl.Config.TimeKey: interval})
		}
		return
	}
	if tl.shouldLog(LogLevelDebug) {
		tl.log(ctx, pid, LogLevelDebug, "Acquire", map[string]any{tl.Config.TimeKey: interval})
	}
}

// Release logs gausspool.Pool.Return. There is no context carried across a
// return call, matching tracelog.TraceRelease's use of context.Background.
func (tl *TraceLog) Release(pid uint32, broken bool) {
	if tl.shouldLog(LogLevelDebug) {
		tl.log(context.Background(), pid, LogLevelDebug, "Release", map[string]any{"broken": broken})
	}
}
