// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package logutil

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// EnvDebug enables debug logging when set to "true".
const EnvDebug = "COMPOSEGUARD_DEBUG"

// Log formats accepted by ParseFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	mu           sync.RWMutex
	globalLogger *slog.Logger
	structured   bool
	outputWriter io.Writer = os.Stderr

	// level is shared by every handler so a level change needs no rebuild.
	level = new(slog.LevelVar)
)

func init() {
	SetupLogger(false, false)
}

// SetupLogger configures the global logger to write to stderr. Diagnostics
// never go to stdout, which carries reports and patched YAML.
//
// This function is safe for concurrent use.
func SetupLogger(debug, jsonFormat bool) {
	SetupLoggerWithWriter(os.Stderr, debug, jsonFormat)
}

// SetupLoggerWithWriter configures the logger with a custom writer.
// COMPOSEGUARD_DEBUG=true turns on debug logging even when debug is false.
// This function is safe for concurrent use.
func SetupLoggerWithWriter(w io.Writer, debug, jsonFormat bool) {
	mu.Lock()
	defer mu.Unlock()

	outputWriter = w
	structured = jsonFormat
	if debug || os.Getenv(EnvDebug) == "true" {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	rebuild()
}

// SetOutput redirects the logger, keeping its level and format.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	outputWriter = w
	rebuild()
}

// rebuild replaces the global logger. Caller must hold mu.
func rebuild() {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if structured {
		handler = slog.NewJSONHandler(outputWriter, opts)
	} else {
		handler = slog.NewTextHandler(outputWriter, opts)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

// IsDebugEnabled reports whether debug messages are written.
func IsDebugEnabled() bool {
	return level.Level() <= slog.LevelDebug
}

// Debug logs a debug message with optional key-value pairs.
//
// Example:
//
//	logutil.Debug("patched service", "service", "web", "removed", 2)
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs an error message with optional key-value pairs.
//
// Example:
//
//	logutil.Error("failed to write patched file", "path", path, "error", err)
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// ParseFormat reports whether format selects JSON logs. Anything other than
// "json" means text.
func ParseFormat(format string) bool {
	return strings.EqualFold(strings.TrimSpace(format), FormatJSON)
}

// Logger returns the underlying slog.Logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}
