// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package cache memoizes analysis results on disk, keyed by a hash of the
// analyzed text. Entries expire after a TTL and are ignored when written by a
// different tool version, so a rule catalogue change never serves stale
// findings.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/jongio/composeguard/fileutil"
)

// DefaultTTL is used when Options.TTL is zero.
const DefaultTTL = 24 * time.Hour

// Options configures a cache Manager.
type Options struct {
	Dir     string        // Directory to store cache files
	TTL     time.Duration // Time-to-live for cache entries
	Version string        // Entries written by another version are misses
}

// Stats tracks cache hit/miss statistics.
type Stats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
	Errors int `json:"errors"`
}

// entry is the on-disk format.
type entry struct {
	Metadata fileutil.CacheMetadata `json:"_cache"`
	Data     json.RawMessage        `json:"data"`
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)

// Manager is a file-backed cache safe for concurrent use.
type Manager struct {
	dir     string
	ttl     time.Duration
	version string

	mu      sync.RWMutex
	statsMu sync.Mutex
	stats   Stats
}

// NewManager creates a cache manager. Nothing touches the disk until the
// first Set.
func NewManager(opts Options) *Manager {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{dir: opts.Dir, ttl: ttl, version: opts.Version}
}

// DefaultDir returns the per-user cache directory for composeguard.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(base, "composeguard"), nil
}

// Dir returns the directory entries are stored in.
func (m *Manager) Dir() string {
	return m.dir
}

// Get loads the value stored under key into target, which must be a pointer.
// It returns false for missing, expired or foreign-version entries.
func (m *Manager) Get(key string, target any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.keyPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.record(func(s *Stats) { s.Misses++ })
			return false, nil
		}
		m.record(func(s *Stats) { s.Errors++ })
		return false, fmt.Errorf("failed to read cache file: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		m.record(func(s *Stats) { s.Errors++ })
		return false, fmt.Errorf("failed to parse cache file: %w", err)
	}
	if !e.Metadata.IsValid(m.ttl, m.version) {
		m.record(func(s *Stats) { s.Misses++ })
		return false, nil
	}
	if err := json.Unmarshal(e.Data, target); err != nil {
		m.record(func(s *Stats) { s.Errors++ })
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	m.record(func(s *Stats) { s.Hits++ })
	return true, nil
}

// Set stores value under key.
func (m *Manager) Set(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := fileutil.EnsureDir(m.dir); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	return fileutil.AtomicWriteJSON(m.keyPath(key), entry{
		Metadata: fileutil.CacheMetadata{CachedAt: time.Now(), Version: m.version},
		Data:     raw,
	})
}

// Invalidate removes one entry. A missing entry is not an error.
func (m *Manager) Invalidate(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.keyPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry and returns how many were removed.
func (m *Manager) Clear() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove cache file %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// GetStats returns cache hit/miss statistics.
func (m *Manager) GetStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// HashContent returns the hex SHA-256 of text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex SHA-256 of a file's contents.
func HashFile(path string) (string, error) {
	// #nosec G304 -- caller controls the path
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (m *Manager) keyPath(key string) string {
	return filepath.Join(m.dir, keySanitizer.ReplaceAllString(key, "_")+".json")
}

func (m *Manager) record(update func(*Stats)) {
	m.statsMu.Lock()
	update(&m.stats)
	m.statsMu.Unlock()
}
