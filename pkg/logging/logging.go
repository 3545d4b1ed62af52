// Package logging sets up the sync log: an append-only file of lines of the
// form `<timestamp> [LEVEL] message`, mirrored to the console when it's an
// interactive terminal.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/vaultsync/pkg/errors"
)

// Mocked out for unit testing.
var (
	fs         = afero.NewOsFs()
	isTerminal = func(w io.Writer) bool {
		f, ok := w.(*os.File)
		if !ok {
			return false
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
)

// Config controls where log lines go.
type Config struct {
	// File is appended to. It's never truncated or rotated.
	File string

	// Console receives a copy of every line, but only if it's a terminal.
	Console io.Writer

	// Verbose enables Debug lines.
	Verbose bool
}

// Logger is a logrus logger that owns its log file.
type Logger struct {
	*logrus.Logger
	file afero.File
}

// New opens the log file and returns a logger writing to it.
func New(cfg Config) (*Logger, error) {
	if err := fs.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, errors.WithContext(err, "create log directory")
	}

	f, err := fs.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.WithContext(err, "open log file")
	}

	logger := logrus.New()
	logger.SetOutput(f)
	logger.SetFormatter(&Formatter{})
	logger.SetLevel(logrus.InfoLevel)
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if cfg.Console != nil && isTerminal(cfg.Console) {
		logger.AddHook(&consoleHook{writer: cfg.Console, formatter: logger.Formatter})
	}
	return &Logger{Logger: logger, file: f}, nil
}

// NewConsole returns a logger that only writes to cfg.Console, whether or
// not it's a terminal. It stands in when the log file can't be opened.
func NewConsole(cfg Config) *Logger {
	logger := logrus.New()
	logger.SetOutput(cfg.Console)
	logger.SetFormatter(&Formatter{})
	logger.SetLevel(logrus.InfoLevel)
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return &Logger{Logger: logger}
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Formatter renders entries as `<RFC 3339 timestamp> [LEVEL] message`,
// followed by any fields as sorted key=value pairs.
type Formatter struct{}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(entry.Time.Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(LevelName(entry.Level))
	b.WriteString("] ")
	b.WriteString(strings.TrimRight(entry.Message, "\n"))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(entry.Data[k]))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// LevelName maps logrus levels onto the three levels used in the log.
// Debug lines only appear in verbose mode.
func LevelName(level logrus.Level) string {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO"
	case logrus.WarnLevel:
		return "WARN"
	default:
		return "ERROR"
	}
}

func formatValue(v interface{}) string {
	var s string
	switch v := v.(type) {
	case error:
		s = v.Error()
	case time.Duration:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}

	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

type consoleHook struct {
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *consoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *consoleHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return nil
	}

	// Never return an error: logrus would print it to stderr on every line.
	_, _ = h.writer.Write(line)
	return nil
}
