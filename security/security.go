// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrInvalidPath indicates a path is empty or cannot be resolved.
	ErrInvalidPath = errors.New("invalid path")
	// ErrPathTraversal indicates a path escapes where it is allowed to go.
	ErrPathTraversal = errors.New("path traversal detected")
	// ErrInsecureFilePermissions indicates a file others can write to.
	ErrInsecureFilePermissions = errors.New("insecure file permissions")
)

// resolve returns the cleaned absolute form of path with symlinks evaluated.
// A path that does not exist yet resolves to its cleaned form.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve path: %w", ErrInvalidPath, err)
	}
	abs = filepath.Clean(abs)

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("%w: cannot resolve symbolic links: %w", ErrInvalidPath, err)
		}
		return abs, nil
	}
	return real, nil
}

// ValidatePath checks that a path is non-empty and free of parent directory
// references, including after symlinks are resolved.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%w: path contains parent directory reference", ErrPathTraversal)
	}

	real, err := resolve(path)
	if err != nil {
		return err
	}
	if strings.Contains(real, "..") {
		return fmt.Errorf("%w: resolved path contains parent directory reference", ErrPathTraversal)
	}
	return nil
}

// ValidatePathWithinBases validates path and requires it to resolve inside
// one of allowedBases. It returns the resolved path. With no bases only the
// structural checks of ValidatePath apply.
func ValidatePathWithinBases(path string, allowedBases ...string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}
	real, err := resolve(path)
	if err != nil {
		return "", err
	}
	if len(allowedBases) == 0 {
		return real, nil
	}

	for _, base := range allowedBases {
		realBase, err := resolve(base)
		if err != nil {
			continue
		}
		if real == realBase || strings.HasPrefix(real, realBase+string(filepath.Separator)) {
			return real, nil
		}
	}
	return "", fmt.Errorf("%w: %s is outside allowed directories", ErrPathTraversal, path)
}

// ValidateFilePermissions returns ErrInsecureFilePermissions when path is
// writable by group or others. Windows uses ACLs and is not checked.
func ValidateFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Mode().Perm()&0o022 != 0 {
		return ErrInsecureFilePermissions
	}
	return nil
}
