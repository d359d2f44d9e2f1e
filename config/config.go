// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package config loads composeguard settings from .composeguard.yaml and the
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jongio/composeguard/logutil"
	"github.com/jongio/composeguard/rules"
	"github.com/jongio/composeguard/security"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = ".composeguard.yaml"

// Environment variable names.
const (
	EnvOutput   = "COMPOSEGUARD_OUTPUT"
	EnvFailOn   = "COMPOSEGUARD_FAIL_ON"
	EnvCacheDir = "COMPOSEGUARD_CACHE_DIR"
	EnvNoColor  = "NO_COLOR"
)

// Output formats.
const (
	OutputDefault = "default"
	OutputJSON    = "json"
	OutputSARIF   = "sarif"
)

// FailOnNone disables the findings exit code.
const FailOnNone = "none"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ServeConfig configures the HTTP API.
type ServeConfig struct {
	Port int `yaml:"port"`
	// RateLimit is requests per second per client; Burst is the bucket size.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Notify   bool          `yaml:"notify"`
}

// Config holds all settings.
type Config struct {
	Output    string        `yaml:"output"`
	FailOn    string        `yaml:"fail_on"`
	CacheDir  string        `yaml:"cache_dir"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	NoCache   bool          `yaml:"no_cache"`
	NoColor   bool          `yaml:"no_color"`
	LogFormat string        `yaml:"log_format"`
	Debug     bool          `yaml:"debug"`
	Serve     ServeConfig   `yaml:"serve"`
	Watch     WatchConfig   `yaml:"watch"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Output:    OutputDefault,
		FailOn:    string(rules.SeverityHigh),
		CacheTTL:  24 * time.Hour,
		LogFormat: logutil.FormatText,
		Serve: ServeConfig{
			Port:      8080,
			RateLimit: 10,
			Burst:     20,
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
	}
}

// Load reads settings from path, or from DefaultFileName when path is empty,
// then applies environment overrides. A missing default file is not an
// error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, explicit bool) error {
	if err := security.ValidatePath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	// #nosec G304 -- Path validated by security.ValidatePath
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := security.ValidateFilePermissions(path); errors.Is(err, security.ErrInsecureFilePermissions) {
		logutil.Warn("config file is writable by other users", "path", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from the environment. getenv is os.Getenv
// outside tests.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvOutput); v != "" {
		c.Output = v
	}
	if v := getenv(EnvFailOn); v != "" {
		c.FailOn = v
	}
	if v := getenv(EnvCacheDir); v != "" {
		c.CacheDir = v
	}
	if getenv(logutil.EnvDebug) == "true" {
		c.Debug = true
	}
	if getenv(EnvNoColor) != "" {
		c.NoColor = true
	}
}

// Validate checks enumerated fields and numeric ranges.
func (c *Config) Validate() error {
	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	switch c.Output {
	case OutputDefault, OutputJSON, OutputSARIF:
	default:
		return fmt.Errorf("%w: output %q (valid: default, json, sarif)", ErrInvalidConfig, c.Output)
	}

	if _, _, err := c.FailOnSeverity(); err != nil {
		return fmt.Errorf("%w: fail_on: %w", ErrInvalidConfig, err)
	}

	switch strings.ToLower(c.LogFormat) {
	case "", logutil.FormatText, logutil.FormatJSON:
	default:
		return fmt.Errorf("%w: log_format %q (valid: text, json)", ErrInvalidConfig, c.LogFormat)
	}

	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: cache_ttl must not be negative", ErrInvalidConfig)
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("%w: serve.port %d out of range", ErrInvalidConfig, c.Serve.Port)
	}
	if c.Serve.RateLimit < 0 || c.Serve.Burst < 0 {
		return fmt.Errorf("%w: serve rate limits must not be negative", ErrInvalidConfig)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("%w: watch.debounce must not be negative", ErrInvalidConfig)
	}
	return nil
}

// FailOnSeverity returns the exit-code threshold. ok is false when findings
// never fail the run.
func (c *Config) FailOnSeverity() (threshold rules.Severity, ok bool, err error) {
	v := strings.TrimSpace(c.FailOn)
	if v == "" || strings.EqualFold(v, FailOnNone) {
		return "", false, nil
	}
	s, err := rules.ParseSeverity(v)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}
