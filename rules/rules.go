// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package rules

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/jongio/composeguard/compose"
	"github.com/jongio/composeguard/logutil"
	"github.com/jongio/composeguard/yamlutil"
)

// Finding is one rule hit on one service.
type Finding struct {
	Service  string   `json:"service"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	RuleID   string   `json:"ruleId"`
	Location string   `json:"location"`
	// LineNumber is 1-based; nil when the finding could not be attributed.
	LineNumber *int   `json:"lineNumber"`
	Impact     string `json:"impact"`
	Exploit    string `json:"exploit"`
	Fix        string `json:"fix"`
	FixedCode  string `json:"fixedCode"`
	Reference  string `json:"reference,omitempty"`
	Priority   int    `json:"priority"`
}

// Occurrence is where a grouped finding was seen.
type Occurrence struct {
	Service    string `json:"service"`
	Location   string `json:"location"`
	LineNumber *int   `json:"lineNumber"`
}

// GroupedFinding merges the findings of one rule across services.
// The static fields come from the first occurrence.
type GroupedFinding struct {
	Title       string       `json:"title"`
	RuleID      string       `json:"ruleId"`
	Severity    Severity     `json:"severity"`
	Impact      string       `json:"impact"`
	Exploit     string       `json:"exploit"`
	Fix         string       `json:"fix"`
	FixedCode   string       `json:"fixedCode"`
	Reference   string       `json:"reference,omitempty"`
	Priority    int          `json:"priority"`
	Occurrences []Occurrence `json:"occurrences"`
}

// Location builds the dotted path of a service field.
func Location(service, field string) string {
	return fmt.Sprintf("%s.%s.%s", compose.ServicesKey, service, field)
}

// Evaluate runs every rule against every service of doc, in document order,
// and returns the findings sorted by priority. Ties keep evaluation order.
// raw is the text doc was parsed from and is only used for line numbers.
func Evaluate(doc *compose.Document, raw string) []Finding {
	services := doc.Services()
	if len(services) == 0 {
		return nil
	}

	log := logutil.NewLogger("rules")
	lines := strings.Split(raw, "\n")

	var findings []Finding
	for _, svc := range services {
		block, found := yamlutil.ServiceBlock(lines, svc.Name)
		svcLog := log.WithService(svc.Name)

		for _, r := range catalogue {
			if !r.Match(svc) {
				continue
			}
			var line *int
			if found {
				line = r.attribute(lines, block)
			}
			findings = append(findings, r.finding(svc.Name, line))
			svcLog.WithRule(r.ID).Debug("rule matched", "line", lineValue(line))
		}
	}

	slices.SortStableFunc(findings, func(a, b Finding) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return findings
}

// attribute finds the 1-based line a finding belongs to.
func (r Rule) attribute(lines []string, block yamlutil.Block) *int {
	if r.matchLine != nil {
		if idx, ok := yamlutil.FindInService(lines, block, r.matchLine); ok {
			n := idx + 1
			return &n
		}
	}
	if r.declFallback {
		n := block.Start + 1
		return &n
	}
	return nil
}

func (r Rule) finding(service string, line *int) Finding {
	return Finding{
		Service:    service,
		Severity:   r.Severity,
		Title:      r.Title,
		RuleID:     r.ID,
		Location:   Location(service, r.Field),
		LineNumber: line,
		Impact:     r.Impact,
		Exploit:    r.Exploit,
		Fix:        r.Fix,
		FixedCode:  r.FixedCode,
		Reference:  r.Reference,
		Priority:   r.Priority,
	}
}

func lineValue(line *int) any {
	if line == nil {
		return nil
	}
	return *line
}

// Group merges findings by title in first-seen order. Every finding ends up
// as exactly one occurrence.
func Group(findings []Finding) []GroupedFinding {
	var groups []GroupedFinding
	index := make(map[string]int)
	for _, f := range findings {
		occ := Occurrence{Service: f.Service, Location: f.Location, LineNumber: f.LineNumber}
		if i, ok := index[f.Title]; ok {
			groups[i].Occurrences = append(groups[i].Occurrences, occ)
			continue
		}
		index[f.Title] = len(groups)
		groups = append(groups, GroupedFinding{
			Title:       f.Title,
			RuleID:      f.RuleID,
			Severity:    f.Severity,
			Impact:      f.Impact,
			Exploit:     f.Exploit,
			Fix:         f.Fix,
			FixedCode:   f.FixedCode,
			Reference:   f.Reference,
			Priority:    f.Priority,
			Occurrences: []Occurrence{occ},
		})
	}
	return groups
}

// BySeverity buckets findings by severity, keeping their order. Every known
// severity has an entry, possibly empty.
func BySeverity(findings []Finding) map[Severity][]Finding {
	groups := make(map[Severity][]Finding, len(Severities))
	for _, s := range Severities {
		groups[s] = []Finding{}
	}
	for _, f := range findings {
		if _, ok := groups[f.Severity]; ok {
			groups[f.Severity] = append(groups[f.Severity], f)
		}
	}
	return groups
}
