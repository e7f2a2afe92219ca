// Package logger provides a thread-safe in-memory logger for status messages.
// Every message is also written to a sink so that it survives restarts; the
// in-memory ring backs the /api/logs endpoint and the status websocket.
package logger

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

// Message represents a single log message
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category,omitempty"`
	Text      string    `json:"text"`
	Level     string    `json:"level"` // info, warning, error
}

// Logger manages in-memory log messages
type Logger struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
	category string
	out      *log.Logger
	root     *Logger

	subscribers []func(Message)
}

// New creates a new logger with specified max message count. A nil sink
// discards output.
func New(maxSize int, sink io.Writer) *Logger {
	if sink == nil {
		sink = io.Discard
	}
	return &Logger{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
		out:      log.New(sink, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
}

// With returns a logger that tags every message with category while sharing
// the ring buffer and sink of l.
func (l *Logger) With(category string) *Logger {
	return &Logger{root: l.rootLogger(), category: category}
}

// Log adds a new message to the logger
func (l *Logger) Log(level, text string) {
	r := l.rootLogger()
	msg := Message{
		Timestamp: time.Now(),
		Category:  l.category,
		Text:      text,
		Level:     level,
	}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	// Keep only the last maxSize messages
	if len(r.messages) > r.maxSize {
		r.messages = r.messages[len(r.messages)-r.maxSize:]
	}
	subs := r.subscribers
	r.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}

	if msg.Category != "" {
		r.out.Printf("[%s][%s] %s", levelTag(level), msg.Category, text)
	} else {
		r.out.Printf("[%s] %s", levelTag(level), text)
	}
}

// Info logs an info-level message
func (l *Logger) Info(text string) {
	l.Log("info", text)
}

// Infof formats and logs an info-level message
func (l *Logger) Infof(format string, args ...any) {
	l.Log("info", fmt.Sprintf(format, args...))
}

// Warning logs a warning-level message
func (l *Logger) Warning(text string) {
	l.Log("warning", text)
}

// Warningf formats and logs a warning-level message
func (l *Logger) Warningf(format string, args ...any) {
	l.Log("warning", fmt.Sprintf(format, args...))
}

// Error logs an error-level message
func (l *Logger) Error(text string) {
	l.Log("error", text)
}

// Errorf formats and logs an error-level message
func (l *Logger) Errorf(format string, args ...any) {
	l.Log("error", fmt.Sprintf(format, args...))
}

// Subscribe registers fn to receive every message logged through l or a
// logger derived from it. fn runs on the logging goroutine and must not block
// or log.
func (l *Logger) Subscribe(fn func(Message)) {
	r := l.rootLogger()
	r.mu.Lock()
	r.subscribers = append(r.subscribers[:len(r.subscribers):len(r.subscribers)], fn)
	r.mu.Unlock()
}

// GetRecent returns the most recent n messages (newest first)
func (l *Logger) GetRecent(n int) []Message {
	r := l.rootLogger()
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > len(r.messages) {
		n = len(r.messages)
	}
	if n < 0 {
		n = 0
	}

	// Return in reverse order (newest first)
	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = r.messages[len(r.messages)-1-i]
	}

	return result
}

// GetAll returns all messages (newest first)
func (l *Logger) GetAll() []Message {
	r := l.rootLogger()
	r.mu.RLock()
	n := len(r.messages)
	r.mu.RUnlock()
	return l.GetRecent(n)
}

func (l *Logger) rootLogger() *Logger {
	if l.root != nil {
		return l.root
	}
	return l
}

func levelTag(level string) string {
	switch level {
	case "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}
