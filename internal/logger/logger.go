// Package logger is the structured, leveled logger shared by every stage of
// the page translation pipeline. Entries go to a size-rotated file and,
// optionally, to stderr so that progress is visible while a run is going.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level is the severity of an entry.
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

// ParseLevel maps a flag value such as "debug" or "WARN" to a Level.
// Unknown names fall back to LevelInfo and report ok=false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// Field is one key=value pair attached to an entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration renders d rounded to milliseconds.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: d.Round(time.Millisecond)}
}

// Err attaches err under the "error" key; nil errors render as <nil>.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Logger is implemented by DefaultLogger and by the no-op logger returned
// before Init.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	// With returns a logger that prepends fields to every entry.
	With(fields ...Field) Logger
	SetLevel(level Level)
	Close() error
}

// Config controls where entries go.
type Config struct {
	// LogFilePath is the log file. Empty disables the file sink.
	LogFilePath string
	// MaxFileSize in bytes before the file is rotated.
	MaxFileSize int64
	// MaxBackups is how many rotated files (.1, .2, ...) are kept.
	MaxBackups int
	Level      Level
	// EnableConsole mirrors entries to stderr.
	EnableConsole bool
	// Console overrides stderr as the console sink (tests).
	Console io.Writer
}

// DefaultConfig writes pdf-translator.log in the working directory.
func DefaultConfig() *Config {
	return &Config{
		LogFilePath:   "pdf-translator.log",
		MaxFileSize:   10 * 1024 * 1024,
		MaxBackups:    5,
		Level:         LevelInfo,
		EnableConsole: false,
	}
}

// sink is the shared, mutex-guarded output state. Child loggers created by
// With share the parent's sink.
type sink struct {
	mu       sync.Mutex
	config   *Config
	file     *os.File
	fileSize int64
	level    Level
}

// DefaultLogger formats entries as
//
//	2006-01-02 15:04:05.000 [LEVEL] message key=value ...
//
// and appends a stack trace to ERROR entries.
type DefaultLogger struct {
	out    *sink
	fields []Field
}

// NewDefaultLogger opens the file sink (creating its directory) when
// config.LogFilePath is set.
func NewDefaultLogger(config *Config) (*DefaultLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultConfig().MaxFileSize
	}
	s := &sink{config: config, level: config.Level}

	if config.LogFilePath != "" {
		if dir := filepath.Dir(config.LogFilePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		if err := s.open(); err != nil {
			return nil, err
		}
	}
	return &DefaultLogger{out: s}, nil
}

func (s *sink) open() error {
	f, err := os.OpenFile(s.config.LogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	s.file = f
	s.fileSize = info.Size()
	return nil
}

func (s *sink) console() io.Writer {
	if !s.config.EnableConsole {
		return nil
	}
	if s.config.Console != nil {
		return s.config.Console
	}
	return os.Stderr
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, nil, fields) }

func (l *DefaultLogger) Info(msg string, fields ...Field) { l.log(LevelInfo, msg, nil, fields) }

func (l *DefaultLogger) Warn(msg string, fields ...Field) { l.log(LevelWarn, msg, nil, fields) }

func (l *DefaultLogger) Error(msg string, err error, fields ...Field) {
	l.log(LevelError, msg, err, fields)
}

func (l *DefaultLogger) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &DefaultLogger{out: l.out, fields: merged}
}

func (l *DefaultLogger) SetLevel(level Level) {
	l.out.mu.Lock()
	l.out.level = level
	l.out.mu.Unlock()
}

func (l *DefaultLogger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.file == nil {
		return nil
	}
	err := l.out.file.Close()
	l.out.file = nil
	return err
}

func (l *DefaultLogger) log(level Level, msg string, err error, fields []Field) {
	s := l.out
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	entry := formatEntry(time.Now(), level, msg, err, l.fields, fields)

	if s.file != nil {
		if s.fileSize+int64(len(entry)) > s.config.MaxFileSize {
			if rerr := s.rotate(); rerr != nil {
				fmt.Fprintf(os.Stderr, "logger: rotate failed: %v\n", rerr)
			}
		}
		if s.file != nil {
			n, _ := io.WriteString(s.file, entry)
			s.fileSize += int64(n)
		}
	}
	if w := s.console(); w != nil {
		io.WriteString(w, entry)
	}
}

func formatEntry(now time.Time, level Level, msg string, err error, base, fields []Field) string {
	var sb strings.Builder
	sb.WriteString(now.Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" [")
	sb.WriteString(level.String())
	sb.WriteString("] ")
	sb.WriteString(msg)

	if err != nil {
		fmt.Fprintf(&sb, " error=%q", err.Error())
	}
	for _, group := range [][]Field{base, fields} {
		for _, f := range group {
			sb.WriteByte(' ')
			sb.WriteString(f.Key)
			sb.WriteByte('=')
			sb.WriteString(formatValue(f.Value))
		}
	}
	if level == LevelError {
		sb.WriteByte('\n')
		sb.WriteString(stackTrace(4))
	}
	sb.WriteByte('\n')
	return sb.String()
}

// formatValue quotes strings containing spaces so entries stay greppable.
func formatValue(v interface{}) string {
	s := fmt.Sprintf("%v", v)
	if _, ok := v.(string); ok && strings.ContainsAny(s, " \t\n\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func stackTrace(skip int) string {
	var sb strings.Builder
	sb.WriteString("Stack trace:\n")
	frames := 0
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		name := "unknown"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		if strings.HasPrefix(name, "runtime.") || strings.HasPrefix(name, "testing.") {
			continue
		}
		fmt.Fprintf(&sb, "  %s:%d %s\n", file, line, name)
		if frames++; frames > 10 {
			sb.WriteString("  ... (truncated)\n")
			break
		}
	}
	return sb.String()
}

// rotate shifts path.N to path.N+1, moves the live file to path.1 and
// reopens. The caller holds s.mu.
func (s *sink) rotate() error {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	path := s.config.LogFilePath
	os.Remove(fmt.Sprintf("%s.%d", path, s.config.MaxBackups))
	for i := s.config.MaxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
	}
	if s.config.MaxBackups > 0 {
		os.Rename(path, path+".1")
	} else {
		os.Remove(path)
	}
	return s.open()
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// Init replaces the global logger, closing the previous one.
func Init(config *Config) error {
	l, err := NewDefaultLogger(config)
	if err != nil {
		return err
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		globalLogger.Close()
	}
	globalLogger = l
	return nil
}

// GetLogger returns the global logger, or a no-op logger before Init.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return noopLogger{}
	}
	return globalLogger
}

func SetGlobalLogger(l Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// Close closes and clears the global logger.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		return nil
	}
	err := globalLogger.Close()
	globalLogger = nil
	return err
}

func Debug(msg string, fields ...Field) { GetLogger().Debug(msg, fields...) }

func Info(msg string, fields ...Field) { GetLogger().Info(msg, fields...) }

func Warn(msg string, fields ...Field) { GetLogger().Warn(msg, fields...) }

func Error(msg string, err error, fields ...Field) { GetLogger().Error(msg, err, fields...) }

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field)        {}
func (noopLogger) Info(string, ...Field)         {}
func (noopLogger) Warn(string, ...Field)         {}
func (noopLogger) Error(string, error, ...Field) {}
func (n noopLogger) With(...Field) Logger        { return n }
func (noopLogger) SetLevel(Level)                {}
func (noopLogger) Close() error                  { return nil }
