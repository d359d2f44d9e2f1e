// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package rules

import (
	"fmt"
	"strings"
)

// Severity is the impact class of a rule.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank orders severities; lower is more severe. Unknown severities rank last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return len(Severities)
	}
}

// Weight is the number of score points a finding of this severity costs.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 20
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 2
	default:
		return 0
	}
}

// Label returns the capitalized display name.
func (s Severity) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ParseSeverity converts a case-insensitive name into a Severity.
func ParseSeverity(name string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Severities {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q (valid: critical, high, medium, low)", name)
}

// Counts is the number of findings per severity.
type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the number of findings across all severities.
func (c Counts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// Of returns the count for a single severity.
func (c Counts) Of(s Severity) int {
	switch s {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	default:
		return 0
	}
}

// Tally counts findings per severity.
func Tally(findings []Finding) Counts {
	var c Counts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
	}
	return c
}

// MaxScore is the score of a document with no findings.
const MaxScore = 100

// Score converts severity counts into a 0-100 score.
func Score(c Counts) int {
	penalty := c.Critical*SeverityCritical.Weight() +
		c.High*SeverityHigh.Weight() +
		c.Medium*SeverityMedium.Weight() +
		c.Low*SeverityLow.Weight()
	return max(0, MaxScore-penalty)
}

// AtLeast reports whether any finding is at or above threshold.
func AtLeast(findings []Finding, threshold Severity) bool {
	for _, f := range findings {
		if f.Severity.Rank() <= threshold.Rank() {
			return true
		}
	}
	return false
}
