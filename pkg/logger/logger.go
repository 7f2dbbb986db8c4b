// Package logger is the structured logger used by the bus, its middleware and the CLI.
//
// Loggers are injected, never fetched from global state. Components that own a logger name it
// (lggr.Named("bus")) and attach per-dispatch fields with With.
package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Logger is a leveled, structured logger backed by a zap.SugaredLogger.
//
// Levels
//   - Error: a dispatch failed in a way an operator should look at, or the runtime was misused
//     (lifecycle violation).
//   - Warn: something degraded without failing the dispatch, e.g. a report could not be stored.
//   - Info: dispatch start/finish, bootstrap milestones.
//   - Debug: memoization hits and misses, dependency resolution details.
type Logger interface {
	// Name returns the fully qualified name of the logger.
	Name() string

	// Named returns a child logger with name appended to the current name.
	Named(name string) Logger
	// With returns a child logger that always carries the given key/value pairs.
	With(keysAndValues ...any) Logger

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	Debugf(format string, values ...any)
	Infof(format string, values ...any)
	Warnf(format string, values ...any)
	Errorf(format string, values ...any)

	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)

	// Sync flushes any buffered log entries.
	Sync() error
}

// Config configures a production logger.
type Config struct {
	// Level is debug, info, warn or error. Empty is info.
	Level string
	// Encoding is json or console. Empty is json.
	Encoding string
}

// ParseLevel parses a textual level ("debug", "info", ...). An empty string is info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}

	return zapcore.ParseLevel(s)
}

// New builds a production Logger writing to stderr.
func New(c Config) (Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if c.Encoding != "" {
		zc.Encoding = c.Encoding
	}
	if c.Encoding == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	z, err := zc.Build()
	if err != nil {
		return nil, err
	}

	return &logger{z.Sugar()}, nil
}

// Test returns a Logger writing every level to the output of tb.
func Test(tb testing.TB) Logger {
	tb.Helper()

	return &logger{zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel)).Sugar()}
}

// TestObserved is Test plus the entries at lvl or above, for assertions.
func TestObserved(tb testing.TB, lvl zapcore.Level) (Logger, *observer.ObservedLogs) {
	tb.Helper()

	core, logs := observer.New(lvl)
	tee := zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	})

	return &logger{zaptest.NewLogger(tb, zaptest.WrapOptions(tee, zap.AddCaller())).Sugar()}, logs
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &logger{zap.NewNop().Sugar()}
}

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) Name() string { return l.Desugar().Name() }

func (l *logger) Named(name string) Logger {
	return &logger{l.SugaredLogger.Named(name)}
}

func (l *logger) With(keysAndValues ...any) Logger {
	return &logger{l.SugaredLogger.With(keysAndValues...)}
}
