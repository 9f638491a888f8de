// Package log provides the small leveled logger used throughout cfgpack.
// It mirrors the shape of the teacher's own internal logger: a Logger
// interface any backend can satisfy, a Filter that drops low-severity
// records, and a Helper offering printf-style convenience methods.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is the severity of a log record.
type Level int8

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

// Logger is the minimal backend interface. Log receives an already
// leveled, fully formatted record.
type Logger interface {
	Log(level Level, msg string) error
}

// stdLogger writes records to an io.Writer, one line per record.
type stdLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdLogger returns a Logger that writes timestamped lines to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (l *stdLogger) Log(level Level, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "%s %-5s %s\n", time.Now().Format(time.RFC3339), level, msg)
	return err
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel sets the minimum level a Filter passes through.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) { f.level = level }
}

// Filter wraps a Logger and drops records below a configured level.
type Filter struct {
	logger Logger
	level  Level
}

// NewFilter returns a Logger that forwards to next only records at or
// above the configured level (LevelInfo by default).
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &Filter{logger: next, level: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) Log(level Level, msg string) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, msg)
}

// Helper adds printf-style convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger with Debugf/Infof/Warnf/Errorf helpers. A nil
// logger yields a Helper that silently discards every record, so callers
// never need a nil check before logging.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, fmt.Sprintf(format, args...))
}

func (h *Helper) Debugf(format string, args ...interface{}) { h.log(LevelDebug, format, args...) }
func (h *Helper) Infof(format string, args ...interface{})  { h.log(LevelInfo, format, args...) }
func (h *Helper) Warnf(format string, args ...interface{})  { h.log(LevelWarn, format, args...) }
func (h *Helper) Errorf(format string, args ...interface{}) { h.log(LevelError, format, args...) }

// Default is a Helper writing errors and above to stderr, used by
// packages that were not handed an explicit logger.
var Default = NewHelper(NewFilter(NewStdLogger(os.Stderr), FilterLevel(LevelError)))
