// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package compose decodes compose-style service definitions and exposes the
// predicates that decide whether a service is misconfigured.
//
// The decoded Document is the semantic view of a compose file. It is shared by
// the rules engine (which reports findings) and by yamlutil (which rewrites the
// original text), so both agree on what counts as a violation.
//
// # Parsing
//
//	doc, err := compose.Parse(text)
//	var perr *compose.ParseError
//	if errors.As(err, &perr) {
//		// malformed YAML, perr.Message is the decoder message
//	}
//	if doc == nil {
//		// empty input, nothing to analyze
//	}
//
// # Services
//
// Services are returned in the order they appear in the source text. Entries
// whose value is not a mapping are skipped silently.
//
//	for _, svc := range doc.Services() {
//		if svc.Privileged() {
//			// ...
//		}
//	}
package compose
