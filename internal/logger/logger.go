// Package logger holds the process-wide slog logger. Records can go to the
// console, a size-rotated file, or both.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelAlways sits above ERROR so audit records survive any level filter.
const LevelAlways = slog.Level(12)

var (
	current atomic.Pointer[slog.Logger]

	fileMu sync.Mutex
	file   io.Closer
)

// Initialize builds the logger from config, replacing any earlier one.
// With neither sink enabled, text goes to stdout.
func Initialize(config Config) error {
	level := parseLogLevel(config.Level)

	var sinks fanout
	if config.ConsoleEnabled {
		sinks = append(sinks, newHandler(os.Stdout, config.ConsoleFormat, level))
	}

	var rotating *lumberjack.Logger
	if config.FileEnabled {
		if strings.TrimSpace(config.FilePath) == "" {
			return errors.New("logger: file_enabled requires file_path")
		}
		rotating = &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
		}
		sinks = append(sinks, newHandler(rotating, config.FileFormat, level))
	}

	switch len(sinks) {
	case 0:
		current.Store(slog.New(newHandler(os.Stdout, "text", level)))
	case 1:
		current.Store(slog.New(sinks[0]))
	default:
		current.Store(slog.New(sinks))
	}

	fileMu.Lock()
	prev := file
	file = nil
	if rotating != nil {
		file = rotating
	}
	fileMu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return nil
}

// Close flushes and closes the log file, if one is open. Later records still
// reach the console sink; lumberjack reopens the file on the next write.
func Close() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// SetOutput sends everything at or above level to w in the given format.
func SetOutput(w io.Writer, format, level string) {
	current.Store(slog.New(newHandler(w, format, parseLogLevel(level))))
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelAlways {
				a.Value = slog.StringValue("ALWAYS")
			}
			return a
		},
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying args. Before Initialize it discards.
func With(args ...any) *slog.Logger {
	if l := current.Load(); l != nil {
		return l.With(args...)
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func emit(level slog.Level, msg string, args []any) {
	if l := current.Load(); l != nil {
		l.Log(context.Background(), level, msg, args...)
	}
}

func Debug(msg string, args ...any)   { emit(slog.LevelDebug, msg, args) }
func Info(msg string, args ...any)    { emit(slog.LevelInfo, msg, args) }
func Warning(msg string, args ...any) { emit(slog.LevelWarn, msg, args) }
func Error(msg string, args ...any)   { emit(slog.LevelError, msg, args) }

// Always records account and progression changes at LevelAlways.
func Always(msg string, args ...any) { emit(LevelAlways, msg, args) }

// fanout hands each record to every sink whose level admits it.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
