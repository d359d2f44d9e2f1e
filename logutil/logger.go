// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package logutil

import "log/slog"

// ComponentLogger is a slog.Logger scoped to one part of composeguard, with
// helpers for the context keys the analyzer attaches most often.
type ComponentLogger struct {
	*slog.Logger
	component string
}

// NewLogger creates a logger scoped to a named component. It captures the
// global logger at call time, so create it after SetupLogger.
func NewLogger(component string) *ComponentLogger {
	return &ComponentLogger{
		Logger:    Logger().With("component", component),
		component: component,
	}
}

func (l *ComponentLogger) with(args ...any) *ComponentLogger {
	return &ComponentLogger{Logger: l.Logger.With(args...), component: l.component}
}

// WithService adds the compose service name.
func (l *ComponentLogger) WithService(name string) *ComponentLogger {
	return l.with("service", name)
}

// WithRule adds the rule id.
func (l *ComponentLogger) WithRule(id string) *ComponentLogger {
	return l.with("rule", id)
}

// WithFile adds the compose file path.
func (l *ComponentLogger) WithFile(path string) *ComponentLogger {
	return l.with("file", path)
}

// WithFields adds alternating key-value pairs.
func (l *ComponentLogger) WithFields(fields ...any) *ComponentLogger {
	return l.with(fields...)
}

// Component returns the component name.
func (l *ComponentLogger) Component() string {
	return l.component
}
