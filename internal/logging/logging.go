// Package logging builds the process logger: the log/slog API rendered by
// charmbracelet/log.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// Options configures New.
type Options struct {
	Debug  bool
	Format string // text, json or logfmt
	Prefix string
}

// New returns a slog.Logger writing to w.
// Info and above are written by default; Debug lowers the level.
func New(w io.Writer, opts Options) *slog.Logger {
	level := log.InfoLevel
	if opts.Debug {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       ParseFormatter(opts.Format),
		ReportTimestamp: opts.Debug,
		Prefix:          opts.Prefix,
	})
	return slog.New(handler)
}

// ParseFormatter maps a format name to a charmbracelet/log formatter.
// Unknown names fall back to text.
func ParseFormatter(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
