// secretcore - M2M secrets management core
// Copyright (C) 2025 secretcore authors
//
// This file is part of secretcore.
//
// secretcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secretcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with secretcore. If not, see <https://www.gnu.org/licenses/>.

// Package logger provides structured logging for secretcore, backed by
// zerolog. The public contract (Level, Field, Logger) is stable; only the
// implementation writes through zerolog's zero-allocation encoder.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Field represents a structured logging field.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an integer field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Bool creates a boolean field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Error creates an error field.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Logger defines the interface for structured logging used throughout
// secretcore. Every package that logs takes a Logger, never a concrete
// zerolog type, so the backing implementation can be swapped in tests.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	WithContext(ctx context.Context) Logger
	WithFields(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// zlogger implements Logger on top of zerolog.Logger.
type zlogger struct {
	zl    zerolog.Logger
	level Level
}

// New creates a Logger writing to output at the given level. format
// selects "json" (the default, machine-parseable) or "console" (colorized,
// human-friendly, intended for local development).
func New(output io.Writer, level Level, format string) Logger {
	var w io.Writer = output
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Logger().Level(level.zerolog())
	return &zlogger{zl: zl, level: level}
}

// NewDefault creates a logger reading SECRETCORE_LOG_LEVEL /
// SECRETCORE_LOG_FORMAT from the environment, defaulting to info/json.
func NewDefault() Logger {
	level := InfoLevel
	switch strings.ToUpper(os.Getenv("SECRETCORE_LOG_LEVEL")) {
	case "DEBUG":
		level = DebugLevel
	case "WARN":
		level = WarnLevel
	case "ERROR":
		level = ErrorLevel
	}
	format := os.Getenv("SECRETCORE_LOG_FORMAT")
	return New(os.Stdout, level, format)
}

func (l *zlogger) event(level Level) *zerolog.Event {
	switch level {
	case DebugLevel:
		return l.zl.Debug()
	case WarnLevel:
		return l.zl.Warn()
	case ErrorLevel:
		return l.zl.Error()
	case FatalLevel:
		return l.zl.Fatal()
	default:
		return l.zl.Info()
	}
}

func applyFields(ev *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	return ev
}

func (l *zlogger) log(level Level, msg string, fields ...Field) {
	applyFields(l.event(level), fields).Msg(msg)
}

func (l *zlogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }
func (l *zlogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields...) }
func (l *zlogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields...) }
func (l *zlogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }
func (l *zlogger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fields...) }

func (l *zlogger) WithContext(ctx context.Context) Logger {
	zl := l.zl
	if requestID, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		zl = zl.With().Str("request_id", requestID).Logger()
	}
	return &zlogger{zl: zl, level: l.level}
}

func (l *zlogger) WithFields(fields ...Field) Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &zlogger{zl: ctx.Logger(), level: l.level}
}

func (l *zlogger) SetLevel(level Level) {
	l.level = level
	l.zl = l.zl.Level(level.zerolog())
}

func (l *zlogger) GetLevel() Level { return l.level }

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// WithRequestID returns a context carrying a request ID that WithContext
// will attach to every log line emitted through the returned logger.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// Global logger instance, used by packages that do not carry their own.
var defaultLogger = NewDefault()

// SetDefaultLogger sets the global default logger.
func SetDefaultLogger(l Logger) { defaultLogger = l }

// Default returns the global default logger.
func Default() Logger { return defaultLogger }
