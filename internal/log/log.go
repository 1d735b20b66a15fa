// Package log writes strata's leveled, categorized log lines. Every line is
// also published on a broker so the CLI and tests can watch what a store
// reports while it is being built or driven.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/strata/internal/pubsub"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a config value to a Level, ignoring case. Unknown values
// map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
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

// Category names the part of the store a line comes from.
type Category string

const (
	CatStore    Category = "store"  // commit and dispatch routing
	CatModule   Category = "module" // module registration
	CatGetter   Category = "getter"
	CatHot      Category = "hot"
	CatStrict   Category = "strict"
	CatPlugin   Category = "plugin" // plugins and the devtools sink
	CatConfig   Category = "config"
	CatWatcher  Category = "watcher" // manifest file changes
	CatManifest Category = "manifest"
	CatScenario Category = "scenario"
	CatCache    Category = "cache" // getter cache
)

// Logger writes lines to an optional writer and publishes them.
type Logger struct {
	mu       sync.Mutex
	w        io.Writer
	muted    bool
	minLevel Level
	broker   *pubsub.Broker[string]
}

var active atomic.Pointer[Logger]

// Init logs to the file at path, appending. The returned func closes the
// file and stops the logger.
func Init(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path comes from user config
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	stop := install(f)
	return func() {
		stop()
		_ = f.Close()
	}, nil
}

// InitWriter logs to w. A nil w only publishes, which is how tests observe
// log lines through NewListener.
func InitWriter(w io.Writer) func() {
	return install(w)
}

// install makes a new logger current, stopping the one it replaces.
func install(w io.Writer) func() {
	l := &Logger{w: w, minLevel: LevelDebug, broker: pubsub.NewBroker[string]()}
	if prev := active.Swap(l); prev != nil {
		prev.broker.Close()
	}
	return func() {
		if active.CompareAndSwap(l, nil) {
			l.broker.Close()
		}
	}
}

// SetEnabled mutes or unmutes the current logger.
func SetEnabled(enabled bool) {
	if l := active.Load(); l != nil {
		l.mu.Lock()
		l.muted = !enabled
		l.mu.Unlock()
	}
}

// SetMinLevel drops lines below level.
func SetMinLevel(level Level) {
	if l := active.Load(); l != nil {
		l.mu.Lock()
		l.minLevel = level
		l.mu.Unlock()
	}
}

// Debug logs at debug level. fields alternate key and value.
func Debug(cat Category, msg string, fields ...any) { emit(LevelDebug, cat, msg, fields) }

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) { emit(LevelInfo, cat, msg, fields) }

// Warn logs at warn level.
func Warn(cat Category, msg string, fields ...any) { emit(LevelWarn, cat, msg, fields) }

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) { emit(LevelError, cat, msg, fields) }

// ErrorErr logs at error level with err appended as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	text := "<nil>"
	if err != nil {
		text = err.Error()
	}
	emit(LevelError, cat, msg, append(fields, "error", text))
}

func emit(level Level, cat Category, msg string, fields []any) {
	l := active.Load()
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.muted || level < l.minLevel {
		return
	}

	line := format(time.Now(), level, cat, msg, fields)
	if l.w != nil {
		_, _ = io.WriteString(l.w, line)
	}
	l.broker.Publish(pubsub.LogEntryEvent, line)
}

// format renders one line:
//
//	2025-12-06T10:45:00 [ERROR] [store] unknown mutation type=cart/add
//
// A trailing key without a value is written as key=<missing>.
func format(now time.Time, level Level, cat Category, msg string, fields []any) string {
	var b strings.Builder
	b.WriteString(now.Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, " [%s] [%s] %s", level, cat, msg)
	for i := 0; i < len(fields); i += 2 {
		if i+1 == len(fields) {
			fmt.Fprintf(&b, " %v=<missing>", fields[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	b.WriteByte('\n')
	return b.String()
}

// LogEvent is one published log line.
type LogEvent = pubsub.Event[string]

// NewListener streams log lines until ctx is cancelled or the logger is
// replaced. It returns nil when no logger is installed.
func NewListener(ctx context.Context) <-chan LogEvent {
	l := active.Load()
	if l == nil {
		return nil
	}
	return l.broker.Subscribe(ctx)
}
