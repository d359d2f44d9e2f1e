// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package analysis runs the full pipeline over one compose document: parse,
// evaluate the rules, patch the text and align the diff. The Report it
// returns is everything a presentation layer needs; callers must treat it
// as read-only.
package analysis

import (
	"errors"
	"strings"
	"time"

	"github.com/jongio/composeguard/cache"
	"github.com/jongio/composeguard/compose"
	"github.com/jongio/composeguard/logutil"
	"github.com/jongio/composeguard/metrics"
	"github.com/jongio/composeguard/rules"
	"github.com/jongio/composeguard/yamlutil"
)

// Report is the result of analyzing one document.
type Report struct {
	Score       int                    `json:"score"`
	Counts      rules.Counts           `json:"counts"`
	Findings    []rules.Finding        `json:"findings"`
	Groups      []rules.GroupedFinding `json:"groups"`
	PatchedText string                 `json:"patchedText"`
	Changes     []yamlutil.Change      `json:"changes"`
	Diff        []yamlutil.DiffLine    `json:"diff"`
	// ParseError is the decoder message when the text did not parse.
	ParseError string `json:"parseError,omitempty"`
	// Empty is set for blank input, which is not analyzed.
	Empty bool `json:"empty,omitempty"`
}

// Failed reports whether any finding is at or above threshold.
func (r *Report) Failed(threshold rules.Severity) bool {
	return rules.AtLeast(r.Findings, threshold)
}

// Outcome classifies the report for metrics and logs.
func (r *Report) Outcome() string {
	switch {
	case r.Empty:
		return metrics.OutcomeEmpty
	case r.ParseError != "":
		return metrics.OutcomeParseError
	default:
		return metrics.OutcomeAnalyzed
	}
}

// Analyze runs the pipeline over text without caching or metrics.
//
// Blank text yields an empty report. Text that fails to decode yields a
// report carrying the decoder message; neither evaluates rules or patches.
func Analyze(text string) *Report {
	doc, err := compose.Parse(text)
	if err != nil {
		var perr *compose.ParseError
		msg := err.Error()
		if errors.As(err, &perr) {
			msg = perr.Message
		}
		return &Report{Score: rules.MaxScore, PatchedText: text, ParseError: msg}
	}
	if doc == nil {
		return &Report{Score: rules.MaxScore, PatchedText: text, Empty: true}
	}

	findings := rules.Evaluate(doc, text)
	counts := rules.Tally(findings)
	patch := yamlutil.Patch(text, doc)

	return &Report{
		Score:       rules.Score(counts),
		Counts:      counts,
		Findings:    findings,
		Groups:      rules.Group(findings),
		PatchedText: patch.PatchedText,
		Changes:     patch.Changes,
		Diff:        yamlutil.Align(text, patch.PatchedText, patch.Changes),
	}
}

// Analyzer wraps Analyze with an optional on-disk cache, logging and
// metrics. The zero value analyzes without caching.
type Analyzer struct {
	// Cache memoizes reports by content hash when non-nil.
	Cache *cache.Manager
	// Source labels metrics, e.g. metrics.SourceCLI.
	Source string
}

// New creates an Analyzer for source backed by c, which may be nil.
func New(source string, c *cache.Manager) *Analyzer {
	return &Analyzer{Cache: c, Source: source}
}

// Analyze returns the report for text, from the cache when possible.
func (a *Analyzer) Analyze(text string) *Report {
	log := logutil.NewLogger("analysis").WithFields("source", a.source())
	start := time.Now()

	key := cacheKey(text)
	if a.Cache != nil && strings.TrimSpace(text) != "" {
		var cached Report
		ok, err := a.Cache.Get(key, &cached)
		if err != nil {
			log.Warn("ignoring unreadable cache entry", "key", key, "error", err)
		}
		metrics.RecordCacheLookup(ok)
		if ok {
			log.Debug("report served from cache", "key", key)
			return &cached
		}
	}

	report := Analyze(text)
	elapsed := time.Since(start)

	metrics.RecordAnalysis(metrics.Analysis{
		Source:   a.source(),
		Outcome:  report.Outcome(),
		Duration: elapsed,
		Score:    report.Score,
		Findings: report.Findings,
		Changes:  report.Changes,
	})
	log.Debug("analysis complete",
		"outcome", report.Outcome(),
		"score", report.Score,
		"findings", len(report.Findings),
		"changes", len(report.Changes),
		"duration", elapsed)

	if a.Cache != nil && report.Outcome() == metrics.OutcomeAnalyzed {
		if err := a.Cache.Set(key, report); err != nil {
			log.Warn("failed to cache report", "key", key, "error", err)
		}
	}
	return report
}

func (a *Analyzer) source() string {
	if a.Source == "" {
		return metrics.SourceCLI
	}
	return a.Source
}

// cacheKey prefixes the content hash so other entries can share the directory.
func cacheKey(text string) string {
	return "report-" + cache.HashContent(text)
}
