// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package fileutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jongio/composeguard/security"
)

// File permissions
const (
	// DirPermission is the default permission for creating directories (rwxr-x---)
	DirPermission = 0750
	// FilePermission is the default permission for creating files (rw-r--r--)
	FilePermission = 0644
)

// StdinPath is the path argument that selects standard input.
const StdinPath = "-"

// MaxInputSize bounds the size of a compose document that will be read.
const MaxInputSize = 4 << 20

// ErrInputTooLarge is returned when an input exceeds MaxInputSize.
var ErrInputTooLarge = errors.New("input too large")

const (
	renameAttempts = 5
	renameBackoff  = 20 * time.Millisecond
)

// ReadInput reads a compose document from path, or from stdin when path is
// StdinPath.
func ReadInput(path string, stdin io.Reader) (string, error) {
	if path == StdinPath {
		return ReadLimited(stdin)
	}

	if err := security.ValidatePath(path); err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	// #nosec G304 -- Path validated by security.ValidatePath
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	text, err := ReadLimited(f)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return text, nil
}

// ReadLimited reads all of r, failing once more than MaxInputSize bytes arrive.
func ReadLimited(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxInputSize {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrInputTooLarge, MaxInputSize)
	}
	return string(data), nil
}

// AtomicWriteJSON writes data as indented JSON to path atomically, with
// FilePermission.
func AtomicWriteJSON(path string, data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return atomicWrite(path, jsonData, FilePermission)
}

// AtomicWriteFile writes raw bytes to path atomically with the given mode.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := atomicWrite(path, data, perm); err != nil {
		return err
	}
	// Rename keeps the temp file's mode, but umask may have applied to it.
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	return nil
}

// atomicWrite stages data in a uniquely named temp file next to path and
// renames it into place.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = tmpFile.Close() }()

	fail := func(format string, err error) error {
		_ = os.Remove(tmpPath)
		return fmt.Errorf(format, err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		return fail("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fail("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fail("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fail("failed to set file permissions: %w", err)
	}

	var renameErr error
	for attempt := range renameAttempts {
		if renameErr = os.Rename(tmpPath, path); renameErr == nil {
			return nil
		}
		if attempt < renameAttempts-1 {
			time.Sleep(time.Duration(attempt+1) * renameBackoff)
		}
	}
	return fail("failed to rename temp file: %w", renameErr)
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, DirPermission); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// CacheMetadata is stored alongside cached data to track validity.
type CacheMetadata struct {
	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cachedAt"`
	// Version is the tool version that wrote the entry.
	Version string `json:"version,omitempty"`
}

// IsValid reports whether the entry is younger than ttl and was written by
// version. A zero ttl or empty version skips that check.
func (m CacheMetadata) IsValid(ttl time.Duration, version string) bool {
	if ttl > 0 && time.Since(m.CachedAt) > ttl {
		return false
	}
	if version != "" && m.Version != version {
		return false
	}
	return true
}
