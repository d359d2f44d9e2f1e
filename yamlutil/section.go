// Package yamlutil rewrites compose files while preserving formatting,
// comments, and structure. It works on the original text line by line and
// never re-serializes the decoded document, so everything it does not touch
// comes out byte for byte.
package yamlutil

import (
	"fmt"
	"strings"

	"github.com/jongio/composeguard/compose"
)

// Indentation levels of the canonical compose layout.
const (
	serviceIndent = 2
	fieldIndent   = 4
	itemIndent    = 6
)

// sectionInfo holds information about a top-level section location.
type sectionInfo struct {
	lineIdx int
	indent  string
}

// Block is the span of lines that belongs to one service.
// Start is the line index of the service key; End is exclusive.
type Block struct {
	Start  int
	End    int
	Indent int
}

// Lines returns the indices of the lines inside the block, after the service key.
func (b Block) Lines() (from, to int) {
	return b.Start + 1, b.End
}

// getIndentation returns the leading whitespace of a line.
func getIndentation(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// isInert reports whether a trimmed line is blank or a comment.
func isInert(trimmed string) bool {
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// findSection locates a top-level key such as "services:".
func findSection(lines []string, key string) (*sectionInfo, error) {
	searchKey := key + ":"
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isInert(trimmed) {
			continue
		}
		indent := getIndentation(line)
		if indent != "" {
			continue
		}
		if trimmed == searchKey || strings.HasPrefix(trimmed, searchKey+" ") {
			return &sectionInfo{lineIdx: i, indent: indent}, nil
		}
	}
	return nil, fmt.Errorf("section '%s' not found", key)
}

// findServiceLine finds a specific service within the services section and
// returns its line index and indentation.
func findServiceLine(lines []string, services *sectionInfo, serviceName string) (int, string, error) {
	searchKey := serviceName + ":"

	// Detect the actual service-level indentation by finding the first service
	var svcIndent string
	for i := services.lineIdx + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if isInert(trimmed) {
			continue
		}
		lineIndent := getIndentation(lines[i])
		if len(lineIndent) > len(services.indent) {
			svcIndent = lineIndent
		}
		break
	}
	if svcIndent == "" {
		svcIndent = services.indent + strings.Repeat(" ", serviceIndent)
	}

	for i := services.lineIdx + 1; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if isInert(trimmed) {
			continue
		}

		// Left the services section
		lineIndent := getIndentation(line)
		if len(lineIndent) <= len(services.indent) {
			break
		}

		if len(lineIndent) == len(svcIndent) && (trimmed == searchKey || strings.HasPrefix(trimmed, searchKey+" ")) {
			return i, lineIndent, nil
		}
	}

	return -1, "", fmt.Errorf("service '%s' not found in services section", serviceName)
}

// ServiceBlock finds the lines that belong to a service. The block ends at
// the next content line indented no deeper than the service key.
func ServiceBlock(lines []string, serviceName string) (Block, bool) {
	services, err := findSection(lines, compose.ServicesKey)
	if err != nil {
		return Block{}, false
	}
	start, indent, err := findServiceLine(lines, services, serviceName)
	if err != nil {
		return Block{}, false
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if isInert(trimmed) {
			continue
		}
		lineIndent := len(getIndentation(lines[i]))
		if lineIndent <= len(indent) {
			end = i
			break
		}
	}

	return Block{Start: start, End: end, Indent: len(indent)}, true
}

// FindInService returns the index of the first non-comment line inside the
// service block for which match returns true.
func FindInService(lines []string, block Block, match func(trimmed string) bool) (int, bool) {
	from, to := block.Lines()
	for i := from; i < to && i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if isInert(trimmed) {
			continue
		}
		if match(trimmed) {
			return i, true
		}
	}
	return -1, false
}

// ListItemValue strips the list marker and surrounding quotes from a trimmed
// list item line. Trailing comments are left in place.
func ListItemValue(trimmed string) string {
	v := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && strings.IndexByte(v[1:], v[0]) >= 0 {
		v = v[1 : 1+strings.IndexByte(v[1:], v[0])]
	}
	return v
}
