// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package logutil provides structured logging for composeguard, built on slog.
//
// # Basic Usage
//
//	// Initialize logging (typically in main.go)
//	logutil.SetupLogger(debug, logutil.ParseFormat(format))
//
//	logutil.Debug("analysis cached", "key", key)
//	logutil.Warn("config file is group or world writable", "path", path)
//
// # Component Loggers
//
// Packages that log per service or per request create a component logger
// and chain context onto it:
//
//	log := logutil.NewLogger("patcher").WithService("web")
//	log.Debug("removed line", "line", "privileged: true")
//
// # Debug Mode
//
// Debug logging can be enabled in two ways:
//   - Pass debug=true to SetupLogger (the --debug flag)
//   - Set COMPOSEGUARD_DEBUG=true
//
// # Structured Logging
//
// With --log-format json, logs are written to stderr as JSON:
//
//	{"time":"2026-01-15T10:30:00Z","level":"INFO","msg":"serving","addr":":8080"}
//
// Otherwise, logs use the slog text format:
//
//	time=2026-01-15T10:30:00Z level=INFO msg=serving addr=:8080
package logutil
