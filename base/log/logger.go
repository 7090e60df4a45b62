package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/tevino/abool"
)

const timeFormat = "060102 15:04:05.000"

var initialized = abool.New()

// fanoutHandler dispatches every record to each of its handlers. It lets a
// Logger write a colorized line to the console and a plain line to the
// rotating file through the same slog.Logger call.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// Logger is the process-wide structured logger. A single instance is
// shared by every component via Setup/Default; there is no per-module
// configuration.
type Logger struct {
	*slog.Logger
	fileWriter *rotatingWriter
}

var global *Logger

// Setup initializes the global logger. dataDir is the directory the
// rotating debug.log file is written to; level sets the minimum severity
// emitted to both sinks. Setup must be called exactly once, before any
// component logs.
func Setup(dataDir string, level Severity) (*Logger, error) {
	if !initialized.SetToIf(false, true) {
		return nil, fmt.Errorf("log: already initialized")
	}

	fw, err := newRotatingWriter(filepath.Join(dataDir, "debug.log"))
	if err != nil {
		return nil, err
	}

	slogLevel := level.toSlogLevel()
	consoleHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: timeFormat,
		NoColor:    !isTerminal(os.Stderr),
	})
	fileHandler := tint.NewHandler(fw, &tint.Options{
		Level:      slogLevel,
		TimeFormat: timeFormat,
		NoColor:    true,
	})

	l := slog.New(&fanoutHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
	global = &Logger{Logger: l, fileWriter: fw}
	slog.SetDefault(l)
	return global, nil
}

// Default returns the global logger. Panics if Setup has not been called;
// every long-running component receives a logger during construction, so
// this is only used by code that has no natural place to plumb one through.
func Default() *Logger {
	if global == nil {
		panic("log: Setup was not called")
	}
	return global
}

// Close flushes and closes the rotating log file.
func (l *Logger) Close() error {
	return l.fileWriter.Close()
}

// With returns a logger that annotates every record with the given
// key/value pairs, same as slog.Logger.With but keeping the Logger type.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), fileWriter: l.fileWriter}
}
