// Package logger is a thin structured-logging facade over zerolog. A nil
// *Logger is valid and discards everything.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout"` // stdout, stderr or a file path
	TimeFormat string `yaml:"time_format"`
}

type Logger struct {
	zl zerolog.Logger
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = tf
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	return &Logger{zl: zl}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// NewWriter writes JSON lines to w at level, falling back to info.
func NewWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

func Nop() *Logger { return &Logger{zl: zerolog.Nop()} }

// With returns a child logger that stamps fields on every event.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return nil
	}
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.key, f.value)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(zerolog.DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(zerolog.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(zerolog.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(zerolog.ErrorLevel, msg, fields) }

func (l *Logger) log(level zerolog.Level, msg string, fields []Field) {
	if l == nil {
		return
	}
	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}
	for _, f := range fields {
		f.add(ev)
	}
	ev.Msg(msg)
}

// Field is one structured key/value attached to an event.
type Field struct {
	key   string
	value any
	add   func(*zerolog.Event)
}

func String(key, v string) Field {
	return Field{key, v, func(e *zerolog.Event) { e.Str(key, v) }}
}

// Strings joins v so list fields stay greppable in plain text sinks.
func Strings(key string, v []string) Field {
	return String(key, strings.Join(v, ", "))
}

func Int(key string, v int) Field {
	return Field{key, v, func(e *zerolog.Event) { e.Int(key, v) }}
}

func Int64(key string, v int64) Field {
	return Field{key, v, func(e *zerolog.Event) { e.Int64(key, v) }}
}

func Float64(key string, v float64) Field {
	return Field{key, v, func(e *zerolog.Event) { e.Float64(key, v) }}
}

func Bool(key string, v bool) Field {
	return Field{key, v, func(e *zerolog.Event) { e.Bool(key, v) }}
}

func Time(key string, v time.Time) Field {
	return Field{key, v, func(e *zerolog.Event) { e.Time(key, v) }}
}

// Duration is logged in milliseconds.
func Duration(key string, v time.Duration) Field {
	return Int64(key, v.Milliseconds())
}

func Error(err error) Field {
	var v any
	if err != nil {
		v = err.Error()
	}
	return Field{zerolog.ErrorFieldName, v, func(e *zerolog.Event) { e.Err(err) }}
}

func Any(key string, v any) Field {
	return Field{key, v, func(e *zerolog.Event) { e.Interface(key, v) }}
}
