// Package logging provides component-tagged structured logging with file
// output and size-based rotation.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fuunylmz/Re-aniname/internal/paths"
)

// Level represents a logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field is a key-value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Config holds logger configuration
type Config struct {
	Level      string `mapstructure:"level" toml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" toml:"format"`           // text or json
	File       string `mapstructure:"file" toml:"file"`               // empty = ~/.config/reaniname/logs/reaniname.log
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"` // rotate after this size
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	Console    bool   `mapstructure:"console" toml:"console"` // mirror to stderr
}

// DefaultConfig returns default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    true,
	}
}

// Logger writes one line per entry to every configured writer.
type Logger struct {
	level      Level
	json       bool
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	console    io.Writer
	writers    []io.Writer
}

// New creates a Logger that writes to the configured file (and stderr when
// Console is set).
func New(cfg Config) (*Logger, error) {
	l := &Logger{
		level:      ParseLevel(cfg.Level),
		json:       strings.EqualFold(cfg.Format, "json"),
		maxSize:    int64(cfg.MaxSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
	}
	if l.maxSize <= 0 {
		l.maxSize = 10 << 20
	}
	if l.maxBackups <= 0 {
		l.maxBackups = 5
	}
	if cfg.Console {
		l.console = os.Stderr
	}

	file := cfg.File
	if file == "" {
		p, err := paths.LogPath()
		if err != nil {
			return nil, fmt.Errorf("unable to resolve log path: %w", err)
		}
		file = p
	}
	if strings.HasPrefix(file, "~") {
		home, err := paths.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("unable to get home dir: %w", err)
		}
		file = filepath.Join(home, file[1:])
	}
	l.filePath = file

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	if err := l.openFile(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewWithWriter returns a Logger that writes only to w. No rotation.
func NewWithWriter(w io.Writer, level string) *Logger {
	return &Logger{
		level:   ParseLevel(level),
		writers: []io.Writer{w},
	}
}

func (l *Logger) openFile() error {
	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("unable to open log file: %w", err)
	}
	l.file = f
	l.writers = []io.Writer{f}
	if l.console != nil {
		l.writers = append(l.writers, l.console)
	}
	return nil
}

func (l *Logger) rotateIfNeeded() error {
	if l.file == nil {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < l.maxSize {
		return nil
	}
	l.file.Close()
	if err := rotateFiles(l.filePath, l.maxBackups); err != nil {
		return err
	}
	return l.openFile()
}

func (l *Logger) format(level Level, component, msg string, err error, fields []Field) string {
	now := time.Now()
	if l.json {
		entry := map[string]any{
			"time":      now.Format(time.RFC3339),
			"level":     level.String(),
			"component": component,
			"msg":       msg,
		}
		if err != nil {
			entry["error"] = err.Error()
		}
		for _, f := range fields {
			entry[f.Key] = f.Value
		}
		data, mErr := json.Marshal(entry)
		if mErr == nil {
			return string(data) + "\n"
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] [%s] %s", now.Format(time.RFC3339), level, component, msg)
	if err != nil {
		fmt.Fprintf(&sb, " | error=%s", err)
	}
	for _, f := range fields {
		fmt.Fprintf(&sb, " | %s=%v", f.Key, f.Value)
	}
	sb.WriteByte('\n')
	return sb.String()
}

func (l *Logger) log(level Level, component, msg string, err error, fields ...Field) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level || len(l.writers) == 0 {
		return
	}
	if rotErr := l.rotateIfNeeded(); rotErr != nil {
		fmt.Fprintf(os.Stderr, "log rotation error: %v\n", rotErr)
	}

	line := []byte(l.format(level, component, msg, err, fields))
	for _, w := range l.writers {
		w.Write(line)
	}
}

func (l *Logger) Debug(component, msg string, fields ...Field) {
	l.log(LevelDebug, component, msg, nil, fields...)
}

func (l *Logger) Info(component, msg string, fields ...Field) {
	l.log(LevelInfo, component, msg, nil, fields...)
}

func (l *Logger) Warn(component, msg string, fields ...Field) {
	l.log(LevelWarn, component, msg, nil, fields...)
}

// Error logs msg at error level with err attached.
func (l *Logger) Error(component, msg string, err error, fields ...Field) {
	l.log(LevelError, component, msg, err, fields...)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.writers = nil
		return err
	}
	return nil
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// FilePath returns the log file path, empty for writer-backed loggers.
func (l *Logger) FilePath() string {
	return l.filePath
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return &Logger{level: LevelError + 1}
}
