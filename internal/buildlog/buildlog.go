// Package buildlog owns the on-disk error log: lazily created on the
// first error, retained on failure, deleted on success unless the
// caller asked to keep it.
package buildlog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kittynXR/cargo-builder/internal/term"
)

const header = "cargo-builder error log\n======================\n\n"

// Logger appends rendered error blocks to a log file. The file does
// not exist until the first LogError call; a pre-existing file from an
// earlier run is truncated then.
type Logger struct {
	path          string
	color         term.ColorChoice
	keepOnSuccess bool

	file       *os.File
	hasWritten bool
}

// New returns a Logger for path. color controls whether ANSI escapes
// are stripped before writing; keepOnSuccess retains the file even
// when the build succeeds.
func New(path string, color term.ColorChoice, keepOnSuccess bool) *Logger {
	return &Logger{path: path, color: color, keepOnSuccess: keepOnSuccess}
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.path }

// HasWritten reports whether at least one error block was logged.
func (l *Logger) HasWritten() bool { return l.hasWritten }

// LogError writes one rendered error block followed by a blank
// separator line, creating the file and its parent directories on the
// first call. Each block is flushed to stable storage before
// returning, so a crash immediately after cannot lose it.
func (l *Logger) LogError(rendered string) error {
	if l.file == nil {
		if err := l.open(); err != nil {
			return err
		}
	}

	block := term.ForLog(rendered, l.color)
	if _, err := fmt.Fprintf(l.file, "%s\n\n", block); err != nil {
		return fmt.Errorf("writing log file %s: %w", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("flushing log file %s: %w", l.path, err)
	}
	l.hasWritten = true
	return nil
}

func (l *Logger) open() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating log directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating log file %s: %w", l.path, err)
	}
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return fmt.Errorf("writing log file %s: %w", l.path, err)
	}
	l.file = f
	return nil
}

// Finalize closes the log and deletes it when the build succeeded,
// nothing asked to keep it, and at least one error was written. A file
// that was never created is left alone; a file that exists but cannot
// be removed is an error.
func (l *Logger) Finalize(buildSucceeded bool) error {
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("closing log file %s: %w", l.path, err)
		}
		l.file = nil
	}

	if !buildSucceeded || l.keepOnSuccess || !l.hasWritten {
		return nil
	}

	if _, err := os.Stat(l.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking log file %s: %w", l.path, err)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("removing log file %s: %w", l.path, err)
	}
	return nil
}
