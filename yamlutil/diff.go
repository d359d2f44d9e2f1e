package yamlutil

import "strings"

// DiffLine pairs the original and patched line at the same index.
type DiffLine struct {
	Original      string `json:"original"`
	Patched       string `json:"patched"`
	Changed       bool   `json:"changed"`
	Removed       bool   `json:"removed"`
	Added         bool   `json:"added"`
	IsProblematic bool   `json:"isProblematic"`
	LineNum       int    `json:"lineNum"`
}

// Align compares original and patched text line by line at identical
// indices. It does not try to realign after a removal or insertion, so
// once the patch drops or appends a line every later index is shifted.
//
// IsProblematic marks original lines that look like the content of a
// removal in changes. That re-association is textual and independent of
// the patcher's own bookkeeping.
func Align(original, patched string, changes []Change) []DiffLine {
	origLines := strings.Split(original, "\n")
	patchLines := strings.Split(patched, "\n")

	problematic := problematicLines(origLines, changes)

	n := max(len(origLines), len(patchLines))
	diff := make([]DiffLine, 0, n)
	for i := 0; i < n; i++ {
		var orig, patch string
		if i < len(origLines) {
			orig = origLines[i]
		}
		if i < len(patchLines) {
			patch = patchLines[i]
		}

		diff = append(diff, DiffLine{
			Original:      orig,
			Patched:       patch,
			Changed:       orig != patch,
			Removed:       orig != "" && patch == "",
			Added:         orig == "" && patch != "",
			IsProblematic: problematic[i],
			LineNum:       i + 1,
		})
	}
	return diff
}

// problematicLines returns the original line indices that match a removed change.
func problematicLines(lines []string, changes []Change) map[int]bool {
	marked := make(map[int]bool)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isInert(trimmed) {
			continue
		}
		key, _, _ := strings.Cut(trimmed, ":")

		for _, c := range changes {
			if c.Action != ActionRemoved {
				continue
			}
			changed := strings.TrimSpace(c.Line)
			if strings.Contains(trimmed, changed) || strings.Contains(changed, key) {
				marked[i] = true
				break
			}
		}
	}
	return marked
}
