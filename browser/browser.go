// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package browser

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	pkgbrowser "github.com/pkg/browser"
)

// Target represents the browser target for launching URLs.
type Target string

const (
	// TargetDefault uses the system default browser
	TargetDefault Target = "default"
	// TargetNone disables browser launching, e.g. over SSH or in CI
	TargetNone Target = "none"
)

// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("invalid URL")

// ParseTarget converts a flag value into a Target. Empty means default.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(s)) {
	case "", TargetDefault:
		return TargetDefault, nil
	case TargetNone:
		return TargetNone, nil
	default:
		return "", fmt.Errorf("invalid browser target %q (valid: default, none)", s)
	}
}

// openURL is replaced in tests.
var openURL = pkgbrowser.OpenURL

func init() {
	// pkg/browser forwards the launcher's output; keep it off the CLI output.
	pkgbrowser.Stdout = io.Discard
	pkgbrowser.Stderr = io.Discard
}

// Validate checks that rawURL is an absolute http or https URL with a host.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// Open validates rawURL and opens it in the target browser. TargetNone is a no-op.
func Open(rawURL string, target Target) error {
	if err := Validate(rawURL); err != nil {
		return err
	}
	if target == TargetNone {
		return nil
	}
	if err := openURL(rawURL); err != nil {
		return fmt.Errorf("could not open browser: %w", err)
	}
	return nil
}
