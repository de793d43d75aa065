// Package logger builds the structured logger shared by domainrag services.
//
// Output goes to stderr, using the human-readable text formatter on a
// terminal and logfmt otherwise. When a log file is configured, records are
// also written to a size-rotated file. Loggers are passed to constructors
// explicitly; there is no package-level logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 5
	MaxAgeDays = 30
)

// Options configures New.
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string

	// File is an optional log file path.
	File string

	// Debug forces the debug level regardless of Level.
	Debug bool

	// Output overrides stderr. Used by tests.
	Output io.Writer
}

// Logger wraps a charm logger together with the file it may own.
type Logger struct {
	*log.Logger
	file io.Closer
}

// New creates a logger from opts.
func New(opts Options) (*Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Debug {
		level = log.DebugLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	formatter := log.LogfmtFormatter
	if isTerminal(out) {
		formatter = log.TextFormatter
	}

	l := &Logger{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
		}
		l.file = rotator
		out = io.MultiWriter(out, rotator)
		formatter = log.LogfmtFormatter
	}

	l.Logger = log.NewWithOptions(out, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       formatter,
		Prefix:          "domainrag",
	})
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
