// Package logutils builds the root zerolog logger for a refine process.
package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options selects where and how much a logger writes.
type Options struct {
	// Level is one of trace, debug, info, warn, error, fatal, panic.
	Level string
	// File receives JSON lines. Empty writes human-readable output to stderr.
	File string
	// Truncate starts File empty instead of appending to it.
	Truncate bool
}

// New returns a logger for opts and a closer for its file.
func New(opts Options) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Logger{}, closer, fmt.Errorf("log level: %w", err)
	}

	var w io.Writer
	if opts.File == "" {
		w = zerolog.ConsoleWriter{
			Out:     os.Stderr,
			NoColor: !term.IsTerminal(int(os.Stderr.Fd())),
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}

		flag := os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if opts.Truncate {
			flag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		}
		f, err := os.OpenFile(opts.File, flag, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("open log file: %w", err)
		}
		closer = func() { _ = f.Close() }
		w = f
	}

	return zerolog.New(w).With().Timestamp().Logger().Level(lvl), closer, nil
}
