// Package cliout renders composeguard output for terminals and pipelines.
//
// # Formats
//
//   - default: colored text with Unicode symbols, ASCII on legacy consoles
//   - json: indented JSON of the analysis report or change records
//   - sarif: SARIF 2.1.0, written by the sarif package
//
// Colors are emitted only when stdout is a terminal and NO_COLOR is unset.
// Call DetectColor once at startup, or NoColor / ForceColor to override.
//
// # Usage
//
//	cliout.DetectColor()
//	if err := cliout.SetFormat(cfg.Output); err != nil {
//	    return err
//	}
//	report := analysis.Analyze(text)
//	if err := cliout.Print(report, func() { cliout.RenderReport(report, path) }); err != nil {
//	    return err
//	}
//
// Messages go to stdout except Error, which writes to stderr so that JSON
// and SARIF output stay parseable.
package cliout
