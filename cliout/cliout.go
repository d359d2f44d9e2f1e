// Package cliout provides output formatting for composeguard commands.
// It supports human-readable text, JSON and SARIF, with ANSI colors that are
// turned off automatically when stdout is not a terminal.
package cliout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Format represents the output format.
type Format string

const (
	// FormatDefault is the default human-readable format.
	FormatDefault Format = "default"
	// FormatJSON is JSON format.
	FormatJSON Format = "json"
	// FormatSARIF is SARIF 2.1.0, used by code scanning tools.
	FormatSARIF Format = "sarif"
)

// ANSI color codes
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"

	BrightRed    = "\033[91m"
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightBlue   = "\033[94m"
)

// Unicode symbols
const (
	SymbolCheck   = "✓"
	SymbolCross   = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"
	SymbolArrow   = "→"
	SymbolDot     = "•"
)

// ASCII fallback symbols for terminals that don't support Unicode
const (
	ASCIICheck   = "[+]"
	ASCIICross   = "[-]"
	ASCIIWarning = "[!]"
	ASCIIInfo    = "[i]"
	ASCIIArrow   = "->"
	ASCIIDot     = "*"
)

var (
	mu           sync.RWMutex
	globalFormat = FormatDefault
	noColor      = false
)

// ForceColor enables color output regardless of terminal detection.
func ForceColor() {
	mu.Lock()
	noColor = false
	mu.Unlock()
}

// NoColor disables color output.
func NoColor() {
	mu.Lock()
	noColor = true
	mu.Unlock()
}

// DetectColor disables color when stdout is not a terminal or NO_COLOR is set.
func DetectColor() {
	if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		NoColor()
	}
}

// ColorEnabled reports whether color codes are emitted.
func ColorEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return !noColor
}

// paint wraps s in a color code when color is enabled.
func paint(color, s string) string {
	if !ColorEnabled() || color == "" {
		return s
	}
	return color + s + Reset
}

var supportsUnicode = detectUnicodeSupport()

// detectUnicodeSupport checks if the terminal can display Unicode properly.
func detectUnicodeSupport() bool {
	if runtime.GOOS != "windows" {
		return true
	}
	// Windows Terminal, VS Code, ConEmu and PowerShell all render Unicode;
	// the legacy console does not.
	for _, env := range []string{"WT_SESSION", "ConEmuPID", "PSModulePath", "TERM"} {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return os.Getenv("TERM_PROGRAM") == "vscode"
}

func symbol(unicode, ascii string) string {
	if supportsUnicode {
		return unicode
	}
	return ascii
}

// SetFormat sets the global output format.
func SetFormat(format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	mu.Lock()
	globalFormat = f
	mu.Unlock()
	return nil
}

// ParseFormat validates a format name. Empty means default.
func ParseFormat(format string) (Format, error) {
	switch strings.ToLower(format) {
	case "", string(FormatDefault):
		return FormatDefault, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatSARIF):
		return FormatSARIF, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (valid options: default, json, sarif)", format)
	}
}

// GetFormat returns the current output format.
func GetFormat() Format {
	mu.RLock()
	defer mu.RUnlock()
	return globalFormat
}

// IsJSON returns true if the output format is JSON.
func IsJSON() bool {
	return GetFormat() == FormatJSON
}

// IsStructured returns true for any machine-readable format.
func IsStructured() bool {
	return GetFormat() != FormatDefault
}

// PrintJSON prints data as indented JSON to stdout.
func PrintJSON(data any) error {
	return WriteJSON(os.Stdout, data)
}

// WriteJSON writes data as indented JSON to w.
func WriteJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Print outputs data as JSON in JSON mode and calls formatter otherwise.
func Print(data any, formatter func()) error {
	if IsJSON() {
		return PrintJSON(data)
	}
	formatter()
	return nil
}

// Header prints a bold header with a divider.
func Header(text string) {
	fmt.Printf("\n%s\n", paint(Bold, text))
	fmt.Println(strings.Repeat("─", max(len(text), 30)))
}

// Section prints a section header.
func Section(text string) {
	fmt.Printf("\n%s\n", paint(Cyan, symbol(SymbolArrow, ASCIIArrow)+" "+text))
}

// Success prints a success message with green checkmark.
func Success(format string, args ...any) {
	fmt.Printf("%s %s\n", paint(BrightGreen, symbol(SymbolCheck, ASCIICheck)), fmt.Sprintf(format, args...))
}

// Error prints an error message with red X to stderr.
func Error(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", paint(BrightRed, symbol(SymbolCross, ASCIICross)), fmt.Sprintf(format, args...))
}

// Warning prints a warning message with yellow triangle.
func Warning(format string, args ...any) {
	fmt.Printf("%s  %s\n", paint(BrightYellow, symbol(SymbolWarning, ASCIIWarning)), fmt.Sprintf(format, args...))
}

// Info prints an info message with blue info icon.
func Info(format string, args ...any) {
	fmt.Printf("%s  %s\n", paint(BrightBlue, symbol(SymbolInfo, ASCIIInfo)), fmt.Sprintf(format, args...))
}

// Item prints an indented item.
func Item(format string, args ...any) {
	fmt.Printf("   %s\n", fmt.Sprintf(format, args...))
}

// Bullet prints a bulleted list item.
func Bullet(format string, args ...any) {
	fmt.Printf("  %s %s\n", symbol(SymbolDot, ASCIIDot), fmt.Sprintf(format, args...))
}

// Newline prints a blank line.
func Newline() {
	fmt.Println()
}

// Hint prints compact hints on a single line with bullet separators.
func Hint(hints ...string) {
	if len(hints) == 0 {
		return
	}
	fmt.Println(paint(Dim, strings.Join(hints, " • ")))
}

// Plain prints plain text without any formatting.
func Plain(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// Label prints a label and value pair.
func Label(label, value string) {
	fmt.Printf("   %s %s\n", paint(Dim, fmt.Sprintf("%-12s", label+":")), value)
}

// LabelColored prints a label and colored value pair.
func LabelColored(label, value, color string) {
	fmt.Printf("   %s %s\n", paint(Dim, fmt.Sprintf("%-12s", label+":")), paint(color, value))
}

// Emphasize returns bold text.
func Emphasize(format string, args ...any) string {
	return paint(Bold, fmt.Sprintf(format, args...))
}

// Muted returns dim text.
func Muted(format string, args ...any) string {
	return paint(Dim, fmt.Sprintf(format, args...))
}

// URL returns a URL in bright blue.
func URL(url string) string {
	return paint(BrightBlue, url)
}

// TableRow represents a row in a table as a map of column header to value.
type TableRow map[string]string

// Table prints a simple table with the given headers and rows.
func Table(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}

	widths := make(map[string]int)
	for _, header := range headers {
		widths[header] = len(header)
	}
	for _, row := range rows {
		for _, header := range headers {
			widths[header] = max(widths[header], len(row[header]))
		}
	}

	fmt.Print("   ")
	for _, header := range headers {
		fmt.Print(paint(Bold, fmt.Sprintf("%-*s", widths[header], header)) + "  ")
	}
	fmt.Println()

	fmt.Print("   ")
	for _, header := range headers {
		fmt.Print(strings.Repeat("─", widths[header]) + "  ")
	}
	fmt.Println()

	for _, row := range rows {
		fmt.Print("   ")
		for _, header := range headers {
			fmt.Printf("%-*s  ", widths[header], row[header])
		}
		fmt.Println()
	}
}
