// Package kernellog builds the structured logger shared by the kernel's
// ambient stack: one slog.Logger fanned out to stderr (human-readable
// text) and, optionally, a log file (JSON), via samber/slog-multi so
// neither handler has to know about the other.
package kernellog

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures New.
type Options struct {
	Debug   bool
	LogFile io.Writer // nil disables the file handler
}

// New builds a logger writing human-readable text to stderr and, if
// opts.LogFile is set, structured JSON to that writer as well. Both
// handlers share one level: Debug if opts.Debug, Info otherwise.
func New(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}
	if opts.LogFile != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.LogFile, &slog.HandlerOptions{Level: level}))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(slogmulti.Fanout(handlers...))
}
