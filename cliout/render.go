package cliout

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jongio/composeguard/analysis"
	"github.com/jongio/composeguard/rules"
	"github.com/jongio/composeguard/yamlutil"
)

// SeverityColor returns the color used for a severity.
func SeverityColor(s rules.Severity) string {
	switch s {
	case rules.SeverityCritical:
		return Bold + BrightRed
	case rules.SeverityHigh:
		return Red
	case rules.SeverityMedium:
		return Yellow
	case rules.SeverityLow:
		return Blue
	default:
		return ""
	}
}

// ScoreColor returns green for 80 and above, yellow for 50 and above, red otherwise.
func ScoreColor(score int) string {
	switch {
	case score >= 80:
		return BrightGreen
	case score >= 50:
		return BrightYellow
	default:
		return BrightRed
	}
}

// Badge returns a fixed-width colored severity label.
func Badge(s rules.Severity) string {
	return paint(SeverityColor(s), fmt.Sprintf("%-8s", strings.ToUpper(string(s))))
}

// lineRef formats a 1-based line number, or "?" when unknown.
func lineRef(n *int) string {
	if n == nil {
		return "?"
	}
	return strconv.Itoa(*n)
}

// RenderReport prints an analysis report in the human-readable format.
// name labels the document, usually its path.
func RenderReport(report *analysis.Report, name string) {
	Header("composeguard scan " + name)

	switch {
	case report.Empty:
		Info("Nothing to analyze: the document is empty")
		return
	case report.ParseError != "":
		Warning("Could not parse the document: %s", report.ParseError)
		return
	}

	LabelColored("Score", fmt.Sprintf("%d/%d", report.Score, rules.MaxScore), ScoreColor(report.Score))
	Label("Findings", CountsSummary(report.Counts))

	if len(report.Groups) == 0 {
		Newline()
		Success("No security issues found")
		return
	}

	for _, g := range report.Groups {
		renderGroup(g)
	}

	if n := len(report.Changes); n > 0 {
		Newline()
		Hint(fmt.Sprintf("%d automatic change(s) available", n), "run 'composeguard patch' to apply", "'composeguard diff' to review")
	}
}

// CountsSummary formats severity counts as "1 critical, 2 high, ...".
func CountsSummary(c rules.Counts) string {
	parts := make([]string, 0, len(rules.Severities))
	for _, s := range rules.Severities {
		parts = append(parts, fmt.Sprintf("%d %s", c.Of(s), s))
	}
	return strings.Join(parts, ", ")
}

func renderGroup(g rules.GroupedFinding) {
	fmt.Printf("\n%s %s %s\n", Badge(g.Severity), Emphasize("%s", g.Title), Muted("[%s]", g.RuleID))

	where := make([]string, 0, len(g.Occurrences))
	for _, o := range g.Occurrences {
		where = append(where, fmt.Sprintf("%s (line %s)", o.Service, lineRef(o.LineNumber)))
	}
	Label("Services", strings.Join(where, ", "))
	Label("Impact", g.Impact)
	Label("Fix", g.Fix)
	if g.Reference != "" {
		Label("Reference", URL(g.Reference))
	}
}

// RenderDiff prints the aligned diff. Each row shows the original line and,
// when it changed, the patched line beneath it. Problematic original lines
// carry a "!" marker.
func RenderDiff(diff []yamlutil.DiffLine) {
	width := len(strconv.Itoa(len(diff)))
	for _, d := range diff {
		marker := " "
		if d.IsProblematic {
			marker = paint(BrightRed, "!")
		}
		num := fmt.Sprintf("%*d", width, d.LineNum)

		if !d.Changed {
			fmt.Printf("%s %s   %s\n", marker, Muted("%s", num), d.Original)
			continue
		}
		if !d.Added {
			fmt.Printf("%s %s %s %s\n", marker, Muted("%s", num), paint(Red, "-"), paint(Red, d.Original))
		}
		if !d.Removed {
			fmt.Printf("  %s %s %s\n", strings.Repeat(" ", width), paint(Green, "+"), paint(Green, d.Patched))
		}
	}
}

// RenderChanges writes patch change records to w, one per line.
func RenderChanges(w io.Writer, changes []yamlutil.Change) {
	if len(changes) == 0 {
		fmt.Fprintf(w, "%s No changes needed\n", paint(BrightGreen, symbol(SymbolCheck, ASCIICheck)))
		return
	}
	for _, c := range changes {
		sign := paint(Red, "-")
		if c.Action == yamlutil.ActionAdded {
			sign = paint(Green, "+")
		}
		fmt.Fprintf(w, "%s %-12s %s\n", sign, c.Service, c.Line)
	}
}

// RenderRules prints the catalogue as a table.
func RenderRules(list []rules.Rule) {
	rows := make([]TableRow, 0, len(list))
	for _, r := range list {
		rows = append(rows, TableRow{
			"ID":       r.ID,
			"Severity": r.Severity.Label(),
			"Priority": strconv.Itoa(r.Priority),
			"Title":    r.Title,
		})
	}
	Table([]string{"ID", "Severity", "Priority", "Title"}, rows)
}

// RenderRule prints the guidance for one rule.
func RenderRule(r rules.Rule) {
	fmt.Printf("\n%s %s %s\n", Badge(r.Severity), Emphasize("%s", r.Title), Muted("[%s]", r.ID))
	Label("Field", r.Field)
	Label("Priority", strconv.Itoa(r.Priority))
	Label("Impact", r.Impact)
	Label("Exploit", r.Exploit)
	Label("Fix", r.Fix)
	if r.Reference != "" {
		Label("Reference", URL(r.Reference))
	}
	if r.FixedCode != "" {
		Section("Example")
		for _, line := range strings.Split(r.FixedCode, "\n") {
			Item("%s", line)
		}
	}
}
