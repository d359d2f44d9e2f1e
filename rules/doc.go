// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package rules holds the catalogue of compose security checks and the engine
// that evaluates them against a parsed document.
//
// Each rule is static data: a title, severity, priority and remediation text,
// plus a predicate over a compose.Service. Evaluate runs every rule against
// every service and attributes each hit to a line of the original text when
// it can.
//
// # Basic Usage
//
//	doc, err := compose.Parse(text)
//	if err != nil {
//	    return err
//	}
//	findings := rules.Evaluate(doc, text)
//	score := rules.Score(rules.Tally(findings))
//	for _, g := range rules.Group(findings) {
//	    fmt.Printf("%s (%d)\n", g.Title, len(g.Occurrences))
//	}
//
// # Scoring
//
// The score starts at 100 and loses 20 points per critical finding, 10 per
// high, 5 per medium and 2 per low, with a floor of 0.
package rules
