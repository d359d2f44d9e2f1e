package main

import (
	"fmt"

	"github.com/jongio/composeguard/cliout"
	"github.com/jongio/composeguard/compose"
	"github.com/jongio/composeguard/metrics"
	"github.com/spf13/cobra"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff [file|-]",
		Short: "Show the original and patched document side by side",
		Long: `Show each line of the original document next to the patched one.

Lines are compared at the same line number; once a line is removed the rest
of the file appears shifted. Lines marked "!" hold a setting that the patch
removes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, text, err := a.read(args)
			if err != nil {
				return err
			}
			report := a.analyzer(metrics.SourceCLI).Analyze(text)
			if report.ParseError != "" {
				return fmt.Errorf("%s: %w", name, &compose.ParseError{Message: report.ParseError})
			}

			return cliout.Print(report.Diff, func() {
				if report.Empty {
					cliout.Info("Nothing to compare: the document is empty")
					return
				}
				cliout.RenderDiff(report.Diff)
			})
		},
	}
}
