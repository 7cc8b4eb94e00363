// logging.go - structured logging for the reactor core.
//
// Package-level configuration for structured logging, allowing external
// integration with logging frameworks while providing a low-overhead
// built-in implementation for basic usage. See logging_logiface.go for
// an optional github.com/joeycumines/logiface adapter.
//
// Design Decision: Package-level global variable is appropriate here
// because logging is an infrastructure cross-cutting concern and loop
// instances share logging semantics; configuring it per-instance would
// add surface area without benefit for a single-process reactor.
package reactor

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var globalLogger struct {
	sync.RWMutex
	logger Logger
}

// SetStructuredLogger sets the global structured logger.
func SetStructuredLogger(logger Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

func getGlobalLogger() Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return NewNoOpLogger()
}

// LogLevel represents the severity of a log message.
type LogLevel int32

const (
	// LevelDebug for detailed diagnostic information.
	LevelDebug LogLevel = iota
	// LevelInfo for general informational messages.
	LevelInfo
	// LevelWarn for warning conditions.
	LevelWarn
	// LevelError for error conditions.
	LevelError
)

func (l LogLevel) String() string {
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
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// LogEntry is a structured log entry emitted by the loop and its
// peripheral subsystems (poller, hash façade, net clients).
type LogEntry struct {
	Level     LogLevel
	Category  string // "timer", "interest", "poll", "callback", "loop", "net", "ssh", "http"
	LoopID    int64
	CallbackID int64
	TimerID   int64
	Context   map[string]interface{}
	Message   string
	Err       error
	Timestamp time.Time
}

// Logger is the structured logging interface.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

// DefaultLogger implements Logger, writing plain text to an *os.File.
type DefaultLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	Out   *os.File
}

// NewDefaultLogger creates a logger with the given minimum level, writing to stdout.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	l := &DefaultLogger{Out: os.Stdout}
	l.level.Store(int32(level))
	return l
}

// NewFileLogger creates a logger writing to the named file.
func NewFileLogger(level LogLevel, filename string) (*DefaultLogger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &DefaultLogger{Out: file}
	l.level.Store(int32(level))
	return l, nil
}

// SetLevel dynamically changes the minimum log level.
func (l *DefaultLogger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

func (l *DefaultLogger) IsEnabled(level LogLevel) bool { return level >= LogLevel(l.level.Load()) }

func (l *DefaultLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.Out, "[%s] %s [%-10s] %s",
		entry.Level, entry.Timestamp.Format("15:04:05.000"), entry.Category, entry.Message)
	writeEntryFields(l.Out, entry)
}

// NoOpLogger discards everything; it is the default when no logger is configured.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger            { return &NoOpLogger{} }
func (l *NoOpLogger) Log(entry LogEntry)    {}
func (l *NoOpLogger) IsEnabled(LogLevel) bool { return false }

// WriterLogger implements Logger using any io.Writer, useful in tests.
type WriterLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	out   io.Writer
}

// NewWriterLogger creates a logger writing to out.
func NewWriterLogger(level LogLevel, out io.Writer) *WriterLogger {
	l := &WriterLogger{out: out}
	l.level.Store(int32(level))
	return l
}

func (l *WriterLogger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

func (l *WriterLogger) IsEnabled(level LogLevel) bool { return level >= LogLevel(l.level.Load()) }

func (l *WriterLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] [%s] [%-10s] %s",
		entry.Level, entry.Timestamp.Format("15:04:05.000"), entry.Category, entry.Message)
	writeEntryFields(l.out, entry)
}

func writeEntryFields(w io.Writer, entry LogEntry) {
	if entry.LoopID != 0 {
		fmt.Fprintf(w, " loop=%d", entry.LoopID)
	}
	if entry.CallbackID != 0 {
		fmt.Fprintf(w, " callback=%d", entry.CallbackID)
	}
	if entry.TimerID != 0 {
		fmt.Fprintf(w, " timer=%d", entry.TimerID)
	}
	for k, v := range entry.Context {
		fmt.Fprintf(w, " %s=%v", k, v)
	}
	if entry.Err != nil {
		fmt.Fprintf(w, " err=%v\n", entry.Err)
	} else {
		fmt.Fprintln(w)
	}
}

// LogDebug logs a debug message using the given logger.
func LogDebug(l Logger, category, message string, fields map[string]interface{}) {
	if !l.IsEnabled(LevelDebug) {
		return
	}
	l.Log(LogEntry{Level: LevelDebug, Category: category, Message: message, Context: fields, Timestamp: time.Now()})
}

// LogInfo logs an info message using the given logger.
func LogInfo(l Logger, category, message string, fields map[string]interface{}) {
	if !l.IsEnabled(LevelInfo) {
		return
	}
	l.Log(LogEntry{Level: LevelInfo, Category: category, Message: message, Context: fields, Timestamp: time.Now()})
}

// LogWarn logs a warning message using the given logger.
func LogWarn(l Logger, category, message string, fields map[string]interface{}) {
	if !l.IsEnabled(LevelWarn) {
		return
	}
	l.Log(LogEntry{Level: LevelWarn, Category: category, Message: message, Context: fields, Timestamp: time.Now()})
}

// LogError logs an error message using the given logger.
func LogError(l Logger, category, message string, err error, fields map[string]interface{}) {
	if !l.IsEnabled(LevelError) {
		return
	}
	l.Log(LogEntry{Level: LevelError, Category: category, Message: message, Err: err, Context: fields, Timestamp: time.Now()})
}

// Specialty helpers for reactor-specific events.

// LogTimerScheduled logs when a timer is scheduled.
func LogTimerScheduled(loopID, timerID int64, duration time.Duration) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{
		Level: LevelDebug, Category: "timer", LoopID: loopID, TimerID: timerID,
		Message: "timer scheduled", Timestamp: time.Now(),
		Context: map[string]interface{}{"duration_ms": duration.Milliseconds()},
	})
}

// LogTimerFired logs when a timer fires.
func LogTimerFired(loopID, timerID int64) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelDebug) {
		return
	}
	logger.Log(LogEntry{Level: LevelDebug, Category: "timer", LoopID: loopID, TimerID: timerID, Message: "timer fired", Timestamp: time.Now()})
}

// LogCallbackPanicked logs when executing a Callback recovers a panic.
func LogCallbackPanicked(loopID int64, panicVal interface{}, stack []byte) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelError) {
		return
	}
	logger.Log(LogEntry{
		Level: LevelError, Category: "callback", LoopID: loopID, Message: "callback panicked", Timestamp: time.Now(),
		Context: map[string]interface{}{"panic": panicVal, "stack": string(stack)},
	})
}

// LogPollError logs a poll adapter error.
func LogPollError(loopID int64, err error, critical bool) {
	logger := getGlobalLogger()
	level := LevelWarn
	if critical {
		level = LevelError
	}
	if !logger.IsEnabled(level) {
		return
	}
	logger.Log(LogEntry{Level: level, Category: "poll", LoopID: loopID, Message: "poll error", Err: err, Timestamp: time.Now()})
}

// LogInterestDrainRecursion logs when draining the stop interest queue
// observed new registrations appended during the drain — a misuse case
// flagged rather than recursively handled, per the interest registry's
// reentrancy-avoidance policy.
func LogInterestDrainRecursion(loopID int64, name InterestName) {
	logger := getGlobalLogger()
	if !logger.IsEnabled(LevelWarn) {
		return
	}
	logger.Log(LogEntry{
		Level: LevelWarn, Category: "interest", LoopID: loopID,
		Message: "interest handler registered during drain", Timestamp: time.Now(),
		Context: map[string]interface{}{"interest": name.String()},
	})
}
