// Package logging provides the small leveled logger used throughout the
// controller. Handlers never propagate errors out of the OpenFlow read
// loop (see controller.Component); instead they log and continue, so the
// logger is the only visible trace of a dropped or malformed packet.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level is a logging severity.
type Level int

// Levels, lowest severity first.
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

// A Logger writes leveled, prefixed log lines. The zero value is not
// usable; construct one with New.
type Logger struct {
	ll     *log.Logger
	min    Level
	prefix string
}

// New creates a Logger that writes to w, discarding any message below
// min. prefix is attached to every line, typically a switch or
// component name ("mss", "dc1", "component").
func New(w io.Writer, min Level, prefix string) *Logger {
	return &Logger{
		ll:     log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		min:    min,
		prefix: prefix,
	}
}

// Default returns a Logger writing to stderr at LevelInfo.
func Default(prefix string) *Logger {
	return New(os.Stderr, LevelInfo, prefix)
}

// With returns a copy of l scoped to a sub-component, e.g.
// l.With("mss").With("dns").
func (l *Logger) With(prefix string) *Logger {
	if l.prefix != "" {
		prefix = l.prefix + "." + prefix
	}
	return &Logger{ll: l.ll, min: l.min, prefix: prefix}
}

func (l *Logger) log(lvl Level, format string, args ...interface{}) {
	if lvl < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		l.ll.Printf("[%s] %s: %s", lvl, l.prefix, msg)
		return
	}
	l.ll.Printf("[%s] %s", lvl, msg)
}

// Debugf logs at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }

// Infof logs at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) { l.log(LevelInfo, format, args...) }

// Warnf logs at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(LevelWarn, format, args...) }

// Errorf logs at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args...) }
