// Package log builds the slog loggers used across unipatch.
// Logs go to stderr so they never mix with command output on stdout.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Options selects the logger verbosity and encoding.
type Options struct {
	Verbose bool
	Quiet   bool
	JSON    bool
}

// Level maps the verbosity flags to a slog level. Quiet wins over Verbose.
func (o Options) Level() slog.Level {
	switch {
	case o.Quiet:
		return slog.LevelError
	case o.Verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level()}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Stderr returns a logger writing to os.Stderr.
func Stderr(opts Options) *slog.Logger {
	return New(os.Stderr, opts)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
