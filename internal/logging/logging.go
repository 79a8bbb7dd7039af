// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// FileName is the log file written to the data directory with --logging
const FileName = "jira-reminder.log"

// Options selects where log entries go
type Options struct {
	// Debug lowers the level to debug and enables the log file
	Debug bool
	// NewLog truncates the log file instead of appending to it
	NewLog bool
	// Dir holds the log file
	Dir string
	// Console receives log entries too; nil disables console output
	Console io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Terminal returns f when it is a terminal and nil otherwise
func Terminal(f *os.File) io.Writer {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return f
}

// Setup points logger at the outputs selected by opts. The returned closer
// closes the log file, if one was opened.
func Setup(logger *logrus.Logger, opts Options) (io.Closer, error) {
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}

	var closer io.Closer = nopCloser{}
	if opts.Debug {
		logger.SetLevel(logrus.DebugLevel)

		flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if opts.NewLog {
			flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		}
		if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		path := filepath.Join(opts.Dir, FileName)
		f, err := os.OpenFile(path, flags, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	logger.WithFields(logrus.Fields{
		"level":   logger.GetLevel().String(),
		"logFile": opts.Debug,
	}).Debug("Logging configured")
	return closer, nil
}
