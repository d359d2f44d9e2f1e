// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package watch re-analyzes a compose file each time it changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jongio/composeguard/analysis"
	"github.com/jongio/composeguard/fileutil"
	"github.com/jongio/composeguard/logutil"
	"github.com/jongio/composeguard/metrics"
	"github.com/jongio/composeguard/security"
)

// DefaultDebounce is the quiet period after the last write before re-analyzing.
const DefaultDebounce = 300 * time.Millisecond

// Event is delivered after every analysis, including the initial one.
type Event struct {
	Path   string
	Report *analysis.Report
	// Previous is the last successful report; nil on the first event.
	Previous *analysis.Report
	// Err is set when the file could not be read; Report is nil then.
	Err error
}

// ScoreDropped reports whether the score is lower than in the previous report.
func (e Event) ScoreDropped() bool {
	return e.Report != nil && e.Previous != nil && e.Report.Score < e.Previous.Score
}

// Watcher watches a single compose file.
type Watcher struct {
	path     string
	debounce time.Duration
	analyzer *analysis.Analyzer
	log      *logutil.ComponentLogger
}

// New creates a watcher for path. A nil analyzer analyzes without a cache;
// a non-positive debounce uses DefaultDebounce.
func New(path string, analyzer *analysis.Analyzer, debounce time.Duration) (*Watcher, error) {
	if err := security.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid watch path: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	if analyzer == nil {
		analyzer = analysis.New(metrics.SourceWatch, nil)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(abs),
		debounce: debounce,
		analyzer: analyzer,
		log:      logutil.NewLogger("watch").WithFile(abs),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run analyzes the file once, then again after each burst of changes, until
// ctx is canceled. handle is called from Run's goroutine, one event at a time.
//
// The parent directory is watched rather than the file itself so that
// editors which save by renaming a temporary file keep being followed.
func (w *Watcher) Run(ctx context.Context, handle func(Event)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	var previous *analysis.Report
	emit := func() {
		ev := w.analyze(previous)
		if ev.Report != nil {
			previous = ev.Report
		}
		handle(ev)
	}
	emit()

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("change detected", "op", ev.Op.String())
			fire = time.After(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			emit()
		}
	}
}

// relevant filters directory events down to writes of the watched file.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) analyze(previous *analysis.Report) Event {
	text, err := fileutil.ReadInput(w.path, nil)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.log.Debug("file missing, waiting for it to reappear")
		}
		return Event{Path: w.path, Previous: previous, Err: err}
	}

	report := w.analyzer.Analyze(text)
	w.log.Debug("analyzed", "score", report.Score, "findings", len(report.Findings))
	return Event{Path: w.path, Report: report, Previous: previous}
}
