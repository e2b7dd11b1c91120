// Package wtplog centralizes structured logging for wtprtu: a zap logger
// tee'd to stdout, an optional rotating file (lumberjack), and an
// in-memory ring buffer the dashboard can stream over its websocket hub.
package wtplog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zap.SugaredLogger together with the ring buffer that
// feeds the dashboard's live log stream.
type Logger struct {
	sugar  *zap.SugaredLogger
	base   *zap.Logger
	buffer *Buffer
}

// Options configures New.
type Options struct {
	Debug    bool
	FilePath string // empty disables file rotation
}

// New builds a Logger tee'd to stdout, an optional rotating file, and a
// 500-entry ring buffer.
func New(opts Options) *Logger {
	buffer := NewBuffer(500)

	var encCfg zapcore.EncoderConfig
	if opts.Debug {
		encCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encCfg = zap.NewProductionEncoderConfig()
	}
	encCfg.TimeKey = "timestamp"
	encCfg.LevelKey = "level"
	encCfg.MessageKey = "message"
	encCfg.CallerKey = "caller"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(encoder, zapcore.AddSync(buffer), level),
	}
	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{sugar: base.Sugar(), base: base, buffer: buffer}
}

// Buffer returns the ring buffer backing this logger, for dashboard
// subscription.
func (l *Logger) Buffer() *Buffer { return l.buffer }

// Named returns a child logger with name appended to the logger chain.
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.base.Named(name).Sugar(), base: l.base.Named(name), buffer: l.buffer}
}

func (l *Logger) Debug(args ...interface{})            { l.sugar.Debug(args...) }
func (l *Logger) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Info(args ...interface{})             { l.sugar.Info(args...) }
func (l *Logger) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(args ...interface{})             { l.sugar.Warn(args...) }
func (l *Logger) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(args ...interface{})            { l.sugar.Error(args...) }
func (l *Logger) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }
func (l *Logger) Fatal(args ...interface{})            { l.sugar.Fatal(args...) }
func (l *Logger) Sync()                                { _ = l.sugar.Sync() }

// Entry is one captured log line, JSON-shaped for the dashboard feed.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Buffer is a thread-safe circular buffer of recent log entries that
// also fans new entries out to channels registered with Subscribe.
type Buffer struct {
	mu          sync.RWMutex
	entries     []Entry
	size        int
	next        int
	subscribers []chan Entry
}

// NewBuffer allocates a ring buffer holding up to size entries.
func NewBuffer(size int) *Buffer {
	return &Buffer{entries: make([]Entry, size), size: size}
}

// Write implements zapcore.WriteSyncer.
func (b *Buffer) Write(data []byte) (int, error) {
	var raw map[string]interface{}
	entry := Entry{Timestamp: time.Now(), Fields: map[string]interface{}{}}
	if err := json.Unmarshal(data, &raw); err != nil {
		entry.Message = string(data)
		b.push(entry)
		return len(data), nil
	}
	if lvl, ok := raw["level"]; ok {
		entry.Level = fmt.Sprintf("%v", lvl)
	}
	if msg, ok := raw["message"]; ok {
		entry.Message = fmt.Sprintf("%v", msg)
	}
	for k, v := range raw {
		switch k {
		case "timestamp", "level", "message", "caller":
		default:
			entry.Fields[k] = v
		}
	}
	b.push(entry)
	return len(data), nil
}

// Sync implements zapcore.WriteSyncer.
func (b *Buffer) Sync() error { return nil }

func (b *Buffer) push(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % b.size
	for _, sub := range b.subscribers {
		select {
		case sub <- e:
		default:
		}
	}
}

// Recent returns the buffered entries in chronological order.
func (b *Buffer) Recent() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0, b.size)
	for i := 0; i < b.size; i++ {
		idx := (b.next + i) % b.size
		if !b.entries[idx].Timestamp.IsZero() {
			out = append(out, b.entries[idx])
		}
	}
	return out
}

// Subscribe registers a channel to receive new entries as they arrive.
func (b *Buffer) Subscribe() chan Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Entry, 16)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a channel previously returned by Subscribe.
func (b *Buffer) Unsubscribe(ch chan Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}
