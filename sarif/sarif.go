// Package sarif exports an analysis report in SARIF 2.1.0 so code scanning
// dashboards can ingest composeguard findings.
package sarif

import (
	"fmt"
	"io"
	"strings"

	"github.com/jongio/composeguard/analysis"
	"github.com/jongio/composeguard/rules"
	"github.com/owenrumney/go-sarif/v2/sarif"
)

// ToolName and InformationURI identify the driver in every run.
const (
	ToolName       = "composeguard"
	InformationURI = "https://github.com/jongio/composeguard"
)

// Level converts a severity to a SARIF result level.
func Level(s rules.Severity) string {
	switch s {
	case rules.SeverityCritical, rules.SeverityHigh:
		return "error"
	case rules.SeverityMedium:
		return "warning"
	case rules.SeverityLow:
		return "note"
	default:
		return "none"
	}
}

// securitySeverity maps severities onto the 0-10 scale GitHub code scanning reads.
func securitySeverity(s rules.Severity) string {
	switch s {
	case rules.SeverityCritical:
		return "9.5"
	case rules.SeverityHigh:
		return "8.0"
	case rules.SeverityMedium:
		return "5.5"
	default:
		return "2.0"
	}
}

// Build converts report into a SARIF document for the compose file at uri.
// Every catalogue rule is listed on the driver so consumers can resolve IDs
// even when they did not fire.
func Build(report *analysis.Report, uri, toolVersion string) (*sarif.Report, error) {
	out, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(ToolName, InformationURI)
	if toolVersion != "" {
		run.Tool.Driver.Version = &toolVersion
	}

	for _, r := range rules.Catalogue() {
		run.AddRule(r.ID).
			WithName(ruleName(r.Title)).
			WithShortDescription(sarif.NewMultiformatMessageString(r.Title)).
			WithFullDescription(sarif.NewMultiformatMessageString(r.Impact)).
			WithHelp(sarif.NewMultiformatMessageString(r.Fix).WithMarkdown(helpMarkdown(r))).
			WithHelpURI(r.Reference).
			WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(Level(r.Severity))).
			WithProperties(sarif.Properties{
				"tags":              []string{"security", "compose"},
				"security-severity": securitySeverity(r.Severity),
			})
	}

	if report != nil {
		if len(report.Findings) > 0 {
			run.AddDistinctArtifact(uri)
		}
		for _, f := range report.Findings {
			region := sarif.NewRegion()
			if f.LineNumber != nil {
				region = region.WithStartLine(*f.LineNumber)
			} else {
				region = region.WithStartLine(1)
			}
			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(uri)).
					WithRegion(region),
			)

			result := sarif.NewRuleResult(f.RuleID).
				WithMessage(sarif.NewTextMessage(fmt.Sprintf("%s in service %q (%s). %s", f.Title, f.Service, f.Location, f.Impact))).
				WithLevel(Level(f.Severity)).
				WithLocations([]*sarif.Location{location})
			run.AddResult(result)
		}
	}

	out.AddRun(run)
	return out, nil
}

// Write builds the SARIF document and pretty-prints it to w.
func Write(w io.Writer, report *analysis.Report, uri, toolVersion string) error {
	doc, err := Build(report, uri, toolVersion)
	if err != nil {
		return err
	}
	return doc.PrettyWrite(w)
}

// ruleName turns a title into the PascalCase name SARIF viewers display.
func ruleName(title string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(title, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(word[1:])
	}
	return b.String()
}

func helpMarkdown(r rules.Rule) string {
	return fmt.Sprintf("%s\n\n**Exploit:** %s\n\n```yaml\n%s\n```", r.Fix, r.Exploit, r.FixedCode)
}
