package yamlutil

import (
	"strings"

	"github.com/jongio/composeguard/compose"
)

// LineKind classifies a line by its position in the canonical compose layout.
type LineKind int

const (
	// KindBlank is an empty or whitespace-only line.
	KindBlank LineKind = iota
	// KindComment is a line whose first non-space character is '#'.
	KindComment
	// KindTopLevelKey is an unindented key that opens a section, e.g. "volumes:".
	KindTopLevelKey
	// KindServiceKey is a two-space indented bare key, e.g. "  web:".
	KindServiceKey
	// KindField is a four-space indented line.
	KindField
	// KindListItem is a six-space indented "-" line.
	KindListItem
	// KindOther is anything else.
	KindOther
)

func (k LineKind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindComment:
		return "comment"
	case KindTopLevelKey:
		return "top-level-key"
	case KindServiceKey:
		return "service-key"
	case KindField:
		return "field"
	case KindListItem:
		return "list-item"
	default:
		return "other"
	}
}

// Line is one line of the original text with its classification.
type Line struct {
	Text    string
	Trimmed string
	Indent  int
	Kind    LineKind
}

// ClassifyLine splits a raw line into its indentation and content.
func ClassifyLine(text string) Line {
	trimmed := strings.TrimSpace(text)
	ln := Line{
		Text:    text,
		Trimmed: trimmed,
		Indent:  len(getIndentation(text)),
	}

	switch {
	case trimmed == "":
		ln.Kind = KindBlank
	case strings.HasPrefix(trimmed, "#"):
		ln.Kind = KindComment
	case ln.Indent == 0 && strings.HasSuffix(trimmed, ":"):
		ln.Kind = KindTopLevelKey
	case ln.Indent == serviceIndent && strings.HasSuffix(trimmed, ":") && !strings.Contains(trimmed, " "):
		ln.Kind = KindServiceKey
	case ln.Indent == fieldIndent:
		ln.Kind = KindField
	case ln.Indent == itemIndent && strings.HasPrefix(trimmed, "-"):
		ln.Kind = KindListItem
	default:
		ln.Kind = KindOther
	}
	return ln
}

// key returns the text before the first ':' of a trimmed line.
func (l Line) key() string {
	k, _, _ := strings.Cut(l.Trimmed, ":")
	return k
}

// scanState is the context carried from one line to the next while patching.
type scanState struct {
	inServices    bool   // inside the top-level services mapping
	service       string // open service, empty outside one
	inSecurityOpt bool
	inVolumes     bool
	anchor        int // output index of the service's last content line
}

func (s scanState) open() bool {
	return s.service != ""
}

// stepResult is the outcome of feeding one line to the scanner.
type stepResult struct {
	next   scanState
	drop   bool
	opened bool
	// closed is the context that ended on this line, if any.
	closed *scanState
}

// namespaceFields are the field keys dropped when they share a host namespace.
var namespaceFields = []string{
	compose.FieldNetworkMode,
	compose.FieldPID,
	compose.FieldIPC,
	compose.FieldUTS,
}

// step advances the scanner over one line. It never looks at earlier or later
// lines; everything it needs is in the state and the decoded document.
func step(st scanState, ln Line, doc *compose.Document) stepResult {
	if ln.Kind == KindBlank || ln.Kind == KindComment {
		return stepResult{next: st}
	}

	if ln.Indent == 0 {
		st.inServices = ln.key() == compose.ServicesKey
	}

	if ln.Kind == KindServiceKey && st.inServices {
		name := strings.TrimSuffix(ln.Trimmed, ":")
		if _, ok := doc.Service(name); ok {
			res := stepResult{next: scanState{inServices: true, service: name}, opened: true}
			if st.open() {
				prev := st
				res.closed = &prev
			}
			return res
		}
	}

	res := stepResult{next: st}
	if ln.Kind == KindTopLevelKey && st.open() {
		prev := st
		res.closed = &prev
		res.next = scanState{inServices: st.inServices}
		return res
	}

	if !st.open() {
		return res
	}

	svc, _ := doc.Service(st.service)

	if ln.Kind == KindField {
		switch key := ln.key(); {
		case key == compose.FieldSecurityOpt:
			res.next.inSecurityOpt, res.next.inVolumes = true, false
		case key == compose.FieldVolumes:
			res.next.inSecurityOpt, res.next.inVolumes = false, true
		case strings.HasSuffix(ln.Trimmed, ":"):
			res.next.inSecurityOpt, res.next.inVolumes = false, false
		default:
			res.drop = dropField(svc, key)
		}
		return res
	}

	if ln.Kind == KindListItem {
		switch {
		case st.inSecurityOpt:
			res.drop = dropSecurityOpt(svc, ln)
		case st.inVolumes:
			res.drop = dropVolume(svc, ln)
		}
	}
	return res
}

// dropField reports whether a field line for key must be removed.
func dropField(svc compose.Service, key string) bool {
	if key == compose.FieldPrivileged {
		return svc.Privileged()
	}
	for _, field := range namespaceFields {
		if key == field {
			return svc.SharesHostNamespace(field)
		}
	}
	return false
}

// dropSecurityOpt reports whether a security_opt item must be removed. The
// line text has to name the option and the decoded list has to contain it.
func dropSecurityOpt(svc compose.Service, ln Line) bool {
	normalized := compose.NormalizeSecurityOpt(ln.Trimmed)
	for _, opt := range []string{compose.SeccompUnconfined, compose.AppArmorUnconfined} {
		if strings.Contains(normalized, opt) && svc.HasSecurityOpt(opt) {
			return true
		}
	}
	return false
}

// dropVolume reports whether a volumes item must be removed.
func dropVolume(svc compose.Service, ln Line) bool {
	if strings.Contains(ln.Trimmed, compose.DockerSocketPath) && svc.MountsDockerSocket() {
		return true
	}
	return compose.IsHostRootMount(ListItemValue(ln.Trimmed)) && svc.MountsHostRoot()
}
