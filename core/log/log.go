// Copyright (C) 2021 the compute-runtime authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides context-first logging helpers for the driver, backed by
// log/slog. The default logger discards everything; callers opt in with
// SetLogger.
package log

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
)

// nopHandler silently discards all log records. Enabled returns false so the
// caller skips attribute evaluation entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// loggerPtr stores the active logger. Accessed atomically so that SetLogger
// can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger for the driver and all its sub-packages.
// Pass nil to restore the default silent behavior.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// D logs a debug message with optional key-value attributes.
func D(ctx context.Context, msg string, args ...any) {
	loggerPtr.Load().Log(ctx, slog.LevelDebug, msg, args...)
}

// I logs an info message with optional key-value attributes.
func I(ctx context.Context, msg string, args ...any) {
	loggerPtr.Load().Log(ctx, slog.LevelInfo, msg, args...)
}

// W logs a warning message with optional key-value attributes.
func W(ctx context.Context, msg string, args ...any) {
	loggerPtr.Load().Log(ctx, slog.LevelWarn, msg, args...)
}

// E logs an error message with optional key-value attributes.
func E(ctx context.Context, msg string, args ...any) {
	loggerPtr.Load().Log(ctx, slog.LevelError, msg, args...)
}

// testHandler forwards records to the test log.
type testHandler struct {
	t     *testing.T
	attrs []slog.Attr
}

func (h testHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h testHandler) Handle(_ context.Context, r slog.Record) error {
	line := r.Level.String() + " " + r.Message
	for _, a := range h.attrs {
		line += " " + a.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		line += " " + a.String()
		return true
	})
	h.t.Log(line)
	return nil
}

func (h testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)
	return h
}

func (h testHandler) WithGroup(string) slog.Handler { return h }

// Testing returns a context and installs a logger that writes to the test's
// log output. The previous logger is restored when the test finishes.
func Testing(t *testing.T) context.Context {
	prev := loggerPtr.Load()
	loggerPtr.Store(slog.New(testHandler{t: t}))
	t.Cleanup(func() { loggerPtr.Store(prev) })
	return context.Background()
}
