package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is the SDK-wide structured logger. It is safe for concurrent use
// and may be shared across a client's transport, auth, and realtime layers.
// A nil *Logger is valid and silently discards everything.
type Logger struct {
	debugEnabled atomic.Bool
	stderrOut    atomic.Bool
	mu           sync.RWMutex
	nextID       int
	subscribers  map[int]func(Event)
}

// Event is one emitted log record, as delivered to subscribers.
type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Fields  map[string]any
}

func New(debug bool) *Logger {
	logger := &Logger{
		subscribers: map[int]func(Event){},
	}
	logger.debugEnabled.Store(debug)
	logger.stderrOut.Store(true)
	return logger
}

func Field(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(msg string, fields ...slog.Attr) {
	if l == nil || !l.debugEnabled.Load() {
		return
	}
	l.log(slog.LevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	l.log(slog.LevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	l.log(slog.LevelWarn, msg, fields)
}

func (l *Logger) Error(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	l.log(slog.LevelError, msg, fields)
}

func (l *Logger) SetDebugEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.debugEnabled.Store(enabled)
}

// SetStderrOutputEnabled controls whether events are written to stderr.
// Host applications that mirror SDK logs through Subscribe typically turn
// this off.
func (l *Logger) SetStderrOutputEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.stderrOut.Store(enabled)
}

// Subscribe registers a callback invoked for every emitted event and
// returns the matching unsubscribe function.
func (l *Logger) Subscribe(fn func(Event)) func() {
	if l == nil {
		panic("logging.Logger.Subscribe: logger must not be nil")
	}
	if fn == nil {
		panic("logging.Logger.Subscribe: callback must not be nil")
	}
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subscribers[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subscribers, id)
		l.mu.Unlock()
	}
}

func (l *Logger) log(level slog.Level, msg string, attrs []slog.Attr) {
	event := Event{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Fields:  attrsToMap(attrs),
	}
	if l.stderrOut.Load() {
		_, _ = os.Stderr.WriteString(FormatEventLine(event))
	}
	l.publishEvent(event)
}

func (l *Logger) publishEvent(event Event) {
	l.mu.RLock()
	if len(l.subscribers) == 0 {
		l.mu.RUnlock()
		return
	}
	callbacks := make([]func(Event), 0, len(l.subscribers))
	for _, cb := range l.subscribers {
		callbacks = append(callbacks, cb)
	}
	l.mu.RUnlock()

	for _, cb := range callbacks {
		cb(event)
	}
}
