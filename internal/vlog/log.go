// Package vlog provides the structured logging used across every VURM
// daemon and command.
//
// It wraps zerolog the way the pack's warren project wraps it
// (component-scoped loggers over one process-wide sink). Events are logged
// through the leveled Debug/Info/Warn/Error methods with key/value fields;
// the package has no per-event helper functions.
package vlog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	root   = zerolog.New(os.Stderr).With().Timestamp().Logger()
	inited bool
)

// Config configures the process-wide logger. Debug mirrors the vurm.debug
// INI setting: at debug level every event is emitted, otherwise only
// info-and-above.
type Config struct {
	Debug  bool
	Output io.Writer
}

// Init configures the global logger. Safe to call once at process startup;
// later calls replace the sink (used by tests to capture output).
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	root = zerolog.New(out).Level(level).With().Timestamp().Logger()
	inited = true
}

// Logger is a component-scoped handle over the process-wide sink. The
// component name identifies the subsystem (e.g. "controller",
// "vc-a1b2c3d"); With narrows it further (e.g. to a node name).
type Logger struct {
	zl zerolog.Logger
}

// Named returns a Logger scoped to a component name, e.g. "controller" or
// "remotevirt-agent".
func Named(component string) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return Logger{zl: root.With().Str("component", component).Logger()}
}

// With returns a copy of l with additional structured fields attached to
// every subsequent log line.
func (l Logger) With(fields map[string]string) Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Str(k, v)
	}
	return Logger{zl: ctx.Logger()}
}

func (l Logger) Debug(msg string, kv ...any) { l.event(l.zl.Debug(), msg, kv) }
func (l Logger) Info(msg string, kv ...any)  { l.event(l.zl.Info(), msg, kv) }
func (l Logger) Warn(msg string, kv ...any)  { l.event(l.zl.Warn(), msg, kv) }
func (l Logger) Error(err error, msg string, kv ...any) {
	l.event(l.zl.Error().Err(err), msg, kv)
}

func (l Logger) event(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
