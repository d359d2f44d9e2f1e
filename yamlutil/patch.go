package yamlutil

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jongio/composeguard/compose"
	"github.com/jongio/composeguard/fileutil"
	"github.com/jongio/composeguard/security"
)

// Action is the kind of edit recorded in a Change.
type Action string

const (
	ActionRemoved Action = "removed"
	ActionAdded   Action = "added"
)

// Hardening lines appended to services that lack them.
const (
	UserLine     = `user: "1000:1000"`
	ReadOnlyLine = "read_only: true"
)

// insertIndent is the fixed indentation of appended lines. It is not
// detected from the file.
var insertIndent = strings.Repeat(" ", fieldIndent)

// Change records one edit made by Patch. Line is the trimmed line content.
type Change struct {
	Service string `json:"service"`
	Action  Action `json:"action"`
	Line    string `json:"line"`
}

// PatchResult is the patched text and the edits that produced it.
type PatchResult struct {
	PatchedText string   `json:"patchedText"`
	Changes     []Change `json:"changes"`
}

// Removed returns only the removal records.
func (r PatchResult) Removed() []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Action == ActionRemoved {
			out = append(out, c)
		}
	}
	return out
}

// Patch rewrites raw so the services in doc no longer trip the dangerous
// settings it knows how to remove, and appends a non-root user and a
// read-only root filesystem where they are missing.
//
// Lines are removed only when both the text and the decoded service agree
// that the setting is present. Everything else, including comments and
// blank lines, is copied unchanged. A document without a services mapping
// is returned as-is.
func Patch(raw string, doc *compose.Document) PatchResult {
	if !doc.HasServices() {
		return PatchResult{PatchedText: raw}
	}

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines)+2)
	var changes []Change

	// anchors maps an output index to the service whose additions follow it.
	anchors := make(map[int]string)
	closeService := func(st *scanState) {
		if st != nil && st.open() && st.anchor >= 0 {
			anchors[st.anchor] = st.service
		}
	}

	st := scanState{}
	for _, text := range lines {
		ln := ClassifyLine(text)
		res := step(st, ln, doc)
		closeService(res.closed)

		if res.drop {
			changes = append(changes, Change{Service: st.service, Action: ActionRemoved, Line: ln.Trimmed})
			st = res.next
			continue
		}

		out = append(out, text)
		switch {
		case res.opened:
			res.next.anchor = len(out) - 1
		case res.next.open() && ln.Indent >= fieldIndent && ln.Kind != KindBlank && ln.Kind != KindComment:
			res.next.anchor = len(out) - 1
		}
		st = res.next
	}
	closeService(&st)

	final := make([]string, 0, len(out)+2*len(anchors))
	for i, text := range out {
		final = append(final, text)

		name, ok := anchors[i]
		if !ok {
			continue
		}
		svc, _ := doc.Service(name)
		eol := ""
		if strings.HasSuffix(text, "\r") {
			eol = "\r"
		}
		if !svc.HasUser() {
			final = append(final, insertIndent+UserLine+eol)
			changes = append(changes, Change{Service: name, Action: ActionAdded, Line: UserLine})
		}
		if !svc.ReadOnly() {
			final = append(final, insertIndent+ReadOnlyLine+eol)
			changes = append(changes, Change{Service: name, Action: ActionAdded, Line: ReadOnlyLine})
		}
	}

	return PatchResult{PatchedText: strings.Join(final, "\n"), Changes: changes}
}

// ErrNothingToPatch is returned by PatchFile when the file is empty.
var ErrNothingToPatch = errors.New("nothing to patch")

// PatchFile patches a compose file on disk. When write is true the patched
// text replaces the file contents atomically, keeping its permissions.
func PatchFile(path string, write bool) (PatchResult, error) {
	if err := security.ValidatePath(path); err != nil {
		return PatchResult{}, fmt.Errorf("invalid path: %w", err)
	}

	// #nosec G304 -- Path validated by security.ValidatePath
	data, err := os.ReadFile(path)
	if err != nil {
		return PatchResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	content := string(data)
	doc, err := compose.Parse(content)
	if err != nil {
		return PatchResult{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc == nil {
		return PatchResult{}, ErrNothingToPatch
	}

	result := Patch(content, doc)
	if !write || result.PatchedText == content {
		return result, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return PatchResult{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := fileutil.AtomicWriteFile(path, []byte(result.PatchedText), info.Mode().Perm()); err != nil {
		return PatchResult{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return result, nil
}
