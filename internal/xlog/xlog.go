// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package xlog is a minimal leveled logger with a Logger/Helper/Filter
// shape. No other package in this module imports it: jclass.NewClassfile,
// jclass.Parse, jclass.Open and jclass.OpenBytes take no logger.
package xlog

import (
	"fmt"
	"io"
	"os"
)

// Level is a logging severity.
type Level int

// Severity levels, from least to most severe.
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

// Logger is the minimal leveled-logging sink every component writes
// through.
type Logger interface {
	Log(level Level, msg string)
}

type stdLogger struct {
	w io.Writer
}

// NewStdLogger returns a Logger that writes to w, one line per call.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (l *stdLogger) Log(level Level, msg string) {
	fmt.Fprintf(l.w, "[%s] %s\n", level, msg)
}

type filterLogger struct {
	next Logger
	min  Level
}

// FilterOption configures a filtering logger.
type FilterOption func(*filterLogger)

// FilterLevel sets the minimum level that passes the filter.
func FilterLevel(min Level) FilterOption {
	return func(f *filterLogger) { f.min = min }
}

// NewFilter wraps next with a level filter, dropping anything below the
// configured minimum.
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &filterLogger{next: next, min: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filterLogger) Log(level Level, msg string) {
	if level < f.min {
		return
	}
	f.next.Log(level, msg)
}

// Helper adds printf-style convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps a Logger with printf-style methods.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

// Debugf logs at LevelDebug.
func (h *Helper) Debugf(format string, args ...interface{}) {
	h.logger.Log(LevelDebug, fmt.Sprintf(format, args...))
}

// Infof logs at LevelInfo.
func (h *Helper) Infof(format string, args ...interface{}) {
	h.logger.Log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs at LevelWarn.
func (h *Helper) Warnf(format string, args ...interface{}) {
	h.logger.Log(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf logs at LevelError.
func (h *Helper) Errorf(format string, args ...interface{}) {
	h.logger.Log(LevelError, fmt.Sprintf(format, args...))
}

// Default returns the module-wide default logger: errors only, to stderr.
func Default() *Helper {
	return NewHelper(NewFilter(NewStdLogger(os.Stderr), FilterLevel(LevelError)))
}
