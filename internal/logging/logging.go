// Package logging builds the structured stderr logger shared by every
// redoc component.
//
// stdout is reserved for the MCP stdio transport, so nothing in redoc
// ever logs there.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures a logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Prefix is printed before every line ("redoc" when empty).
	Prefix string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a leveled logger writing to stderr.
// Unknown levels fall back to info rather than failing startup.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "redoc"
	}

	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		level = log.InfoLevel
	}

	return log.NewWithOptions(out, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
}

// Discard returns a logger that drops everything. Used as the nil fallback.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard returns l, or a discard logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
