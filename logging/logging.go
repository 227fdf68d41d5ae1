// Package logging builds the charmbracelet loggers handed to every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures a root logger.
type Options struct {
	Level        string // debug, info, warn, error
	Prefix       string
	ReportCaller bool
	Output       io.Writer // stderr when nil
}

// New returns a timestamped logger writing to opts.Output.
func New(opts Options) (*log.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l := log.NewWithOptions(out, log.Options{
		ReportCaller:    opts.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          opts.Prefix,
	})
	if opts.Level != "" {
		lvl, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		l.SetLevel(lvl)
	}
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Named returns a child logger with a component prefix, or Discard for nil.
func Named(parent *log.Logger, name string) *log.Logger {
	if parent == nil {
		return Discard()
	}
	return parent.WithPrefix(name)
}
