package main

import (
	"fmt"
	"os"

	"github.com/jongio/composeguard/analysis"
	"github.com/jongio/composeguard/cliout"
	"github.com/jongio/composeguard/compose"
	"github.com/jongio/composeguard/metrics"
	"github.com/jongio/composeguard/sarif"
	"github.com/spf13/cobra"
)

func newScanCmd(a *app) *cobra.Command {
	var failOn string
	cmd := &cobra.Command{
		Use:   "scan [file|-]",
		Short: "Analyze a compose file and report its security score",
		Long: `Analyze a compose file and report its security score and findings.

Reads stdin when the file is omitted or "-". Exits with code 2 when a finding
is at or above --fail-on (default high; "none" never fails).`,
		Example: `  composeguard scan docker-compose.yml
  cat compose.yaml | composeguard scan -o json
  composeguard scan compose.yaml -o sarif > composeguard.sarif`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("fail-on") {
				a.cfg.FailOn = failOn
			}
			name, text, err := a.read(args)
			if err != nil {
				return err
			}

			report := a.analyzer(metrics.SourceCLI).Analyze(text)
			if err := a.printReport(report, name); err != nil {
				return err
			}
			return a.checkThreshold(report)
		},
	}
	cmd.Flags().StringVar(&failOn, "fail-on", "", "Lowest severity that fails the run: critical, high, medium, low or none")
	return cmd
}

// printReport writes report in the configured format. A document that did
// not parse is an error; structured formats still carry the report first.
func (a *app) printReport(report *analysis.Report, name string) error {
	parseErr := func() error {
		if report.ParseError == "" {
			return nil
		}
		return fmt.Errorf("%s: %w", name, &compose.ParseError{Message: report.ParseError})
	}

	switch cliout.GetFormat() {
	case cliout.FormatJSON:
		if err := cliout.PrintJSON(report); err != nil {
			return err
		}
	case cliout.FormatSARIF:
		uri := name
		if uri == "-" {
			uri = "stdin"
		}
		if err := sarif.Write(os.Stdout, report, uri, a.info.Version); err != nil {
			return err
		}
	default:
		if err := parseErr(); err != nil {
			return err
		}
		cliout.RenderReport(report, name)
	}
	return parseErr()
}
