// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// Text output wraps the standard log package; json output goes through
// charmbracelet/log's JSON formatter, one object per line.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel

	fatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case fatalLevel:
		return "FATAL"
	default:
		return "ERROR"
	}
}

func (l Level) charm() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case fatalLevel:
		return charmlog.FatalLevel
	default:
		return charmlog.ErrorLevel
	}
}

// ParseLevel maps a level name to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	json   *charmlog.Logger // nil for text output
	logger *log.Logger
}

// callerOffset skips output, logAt and the exported function so the JSON
// caller field names the code that logged.
const callerOffset = 3

var (
	mu sync.RWMutex
	// Global logger instance
	defaultLogger *Logger
)

// New creates a logger writing to out.
func New(out io.Writer, level string, format string) *Logger {
	l := &Logger{level: ParseLevel(level)}
	if strings.ToLower(format) == "json" {
		l.json = charmlog.NewWithOptions(out, charmlog.Options{
			Level:           charmlog.DebugLevel,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339Nano,
			ReportCaller:    true,
			CallerOffset:    callerOffset,
			Formatter:       charmlog.JSONFormatter,
		})
		return l
	}
	l.logger = log.New(out, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return l
}

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	SetDefault(New(os.Stderr, level, format))
}

// SetDefault replaces the logger used by the package-level functions.
func SetDefault(l *Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// SetOutput redirects the default logger, keeping its level and format.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(w, "info", "text")
		return
	}
	format := "text"
	if defaultLogger.json != nil {
		format = "json"
	}
	defaultLogger = New(w, defaultLogger.level.String(), format)
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func (l *Logger) output(level Level, msg string) {
	if l.json != nil {
		l.json.Log(level.charm(), msg)
		return
	}
	// output, logAt, the exported function, then its caller.
	_ = l.logger.Output(4, "["+level.String()+"] "+msg)
}

func logAt(level Level, format string, args ...interface{}) {
	l := current()
	if l == nil || l.level > level {
		return
	}
	l.output(level, fmt.Sprintf(format, args...))
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	logAt(DebugLevel, format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	logAt(InfoLevel, format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	logAt(WarnLevel, format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	logAt(ErrorLevel, format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	if current() != nil {
		logAt(fatalLevel, format, args...)
	} else {
		log.Print("[FATAL] " + fmt.Sprintf(format, args...))
	}
	os.Exit(1)
}
