// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides a minimal leveled logging facade. Callers hand any
// Logger implementation to the parsers via Options; the default is a
// standard-library logger filtered down to errors.
package log

import (
	"fmt"
	"io"
	stdlog "log"
)

// Level is a logger level.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
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
	case LevelFatal:
		return "FATAL"
	}
	return ""
}

// Logger is the logging abstraction the parsers write to.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

type stdLogger struct {
	log *stdlog.Logger
}

// NewStdLogger returns a Logger backed by the standard library writing to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{log: stdlog.New(w, "", stdlog.LstdFlags)}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	buf := make([]interface{}, 0, len(keyvals)+1)
	buf = append(buf, level.String()+":")
	buf = append(buf, keyvals...)
	l.log.Println(buf...)
	return nil
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel drops log entries below the given level.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) {
		f.level = level
	}
}

// Filter is a Logger decorator that suppresses entries below a level.
type Filter struct {
	logger Logger
	level  Level
}

// NewFilter wraps logger with the given options.
func NewFilter(logger Logger, opts ...FilterOption) *Filter {
	f := &Filter{logger: logger}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper is the sugared front end the parsers actually call.
type Helper struct {
	logger Logger
}

// NewHelper returns a Helper wrapping logger.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) Debug(a ...interface{}) {
	h.logger.Log(LevelDebug, fmt.Sprint(a...))
}

func (h *Helper) Debugf(format string, a ...interface{}) {
	h.logger.Log(LevelDebug, fmt.Sprintf(format, a...))
}

func (h *Helper) Info(a ...interface{}) {
	h.logger.Log(LevelInfo, fmt.Sprint(a...))
}

func (h *Helper) Infof(format string, a ...interface{}) {
	h.logger.Log(LevelInfo, fmt.Sprintf(format, a...))
}

func (h *Helper) Warn(a ...interface{}) {
	h.logger.Log(LevelWarn, fmt.Sprint(a...))
}

func (h *Helper) Warnf(format string, a ...interface{}) {
	h.logger.Log(LevelWarn, fmt.Sprintf(format, a...))
}

func (h *Helper) Error(a ...interface{}) {
	h.logger.Log(LevelError, fmt.Sprint(a...))
}

func (h *Helper) Errorf(format string, a ...interface{}) {
	h.logger.Log(LevelError, fmt.Sprintf(format, a...))
}
