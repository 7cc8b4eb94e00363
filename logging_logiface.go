package reactor

import (
	"github.com/joeycumines/logiface"
)

// LogifaceLogger adapts a github.com/joeycumines/logiface.Logger into the
// reactor.Logger interface, so applications already standardized on
// logiface can route loop diagnostics through their existing pipeline
// instead of the built-in DefaultLogger.
type LogifaceLogger[E logiface.Event] struct {
	L     *logiface.Logger[E]
	level LogLevel
}

// NewLogifaceLogger wraps l, treating level as the minimum level this
// adapter reports as enabled (logiface performs its own independent
// level filtering downstream).
func NewLogifaceLogger[E logiface.Event](l *logiface.Logger[E], level LogLevel) *LogifaceLogger[E] {
	return &LogifaceLogger[E]{L: l, level: level}
}

func (a *LogifaceLogger[E]) IsEnabled(level LogLevel) bool {
	return a.L != nil && level >= a.level
}

func toLogifaceLevel(l LogLevel) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

func (a *LogifaceLogger[E]) Log(entry LogEntry) {
	if a.L == nil {
		return
	}
	b := a.L.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Category != "" {
		b = b.Str("category", entry.Category)
	}
	if entry.LoopID != 0 {
		b = b.Int64("loop", entry.LoopID)
	}
	if entry.CallbackID != 0 {
		b = b.Int64("callback", entry.CallbackID)
	}
	if entry.TimerID != 0 {
		b = b.Int64("timer", entry.TimerID)
	}
	for k, v := range entry.Context {
		b = b.Interface(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}
