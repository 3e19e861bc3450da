package observability

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level gates StdLogger output.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
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

// StdLogger writes level-prefixed key=value lines through the standard log
// package.
type StdLogger struct {
	level Level
	out   *log.Logger
	with  []Field
}

func NewStdLogger(level Level) *StdLogger {
	return &StdLogger{level: level, out: log.New(os.Stdout, "", log.LstdFlags)}
}

func (l *StdLogger) Debug(msg string, fields ...Field) { l.emit(LevelDebug, "DEBUG", msg, fields) }
func (l *StdLogger) Info(msg string, fields ...Field)  { l.emit(LevelInfo, "INFO", msg, fields) }
func (l *StdLogger) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, "WARN", msg, fields) }
func (l *StdLogger) Error(msg string, fields ...Field) { l.emit(LevelError, "ERROR", msg, fields) }

func (l *StdLogger) With(fields ...Field) Logger {
	child := *l
	child.with = append(append([]Field(nil), l.with...), fields...)
	return &child
}

func (l *StdLogger) emit(lv Level, tag, msg string, fields []Field) {
	if lv < l.level {
		return
	}
	var b strings.Builder
	b.WriteString(tag)
	b.WriteString(" ")
	b.WriteString(msg)
	for _, f := range l.with {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	l.out.Println(b.String())
}
