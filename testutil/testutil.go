package testutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// capture redirects *target to a pipe while fn runs and returns what was written.
// The original file is restored even if fn returns an error.
func capture(t *testing.T, target **os.File, fn func() error) string {
	t.Helper()

	orig := *target
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	*target = w

	// Buffered so the reader never blocks after the test returns.
	outCh := make(chan string, 1)
	go func() {
		var output strings.Builder
		_, _ = io.Copy(&output, r)
		outCh <- output.String()
	}()

	fnErr := fn()

	if err := w.Close(); err != nil {
		t.Logf("Failed to close pipe writer: %v", err)
	}
	*target = orig

	output := <-outCh
	if fnErr != nil {
		t.Logf("Command error: %v", fnErr)
	}
	return output
}

// CaptureOutput captures stdout during fn.
//
// Example:
//
//	output := testutil.CaptureOutput(t, func() error {
//	    cliout.RenderReport(report, "compose.yaml")
//	    return nil
//	})
func CaptureOutput(t *testing.T, fn func() error) string {
	t.Helper()
	return capture(t, &os.Stdout, fn)
}

// CaptureStderr captures stderr during fn.
func CaptureStderr(t *testing.T, fn func() error) string {
	t.Helper()
	return capture(t, &os.Stderr, fn)
}

// TempDir creates a temporary directory that is removed when the test ends.
func TempDir(t *testing.T) string {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "composeguard-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}

	t.Cleanup(func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Logf("Failed to clean up temp directory %s: %v", tmpDir, err)
		}
	})

	return tmpDir
}

// WriteFile writes content to name inside dir with 0644 permissions and
// returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// ReadFile returns the contents of path as a string.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	// #nosec G304 -- test helper reading files the test created
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}
