package main

import (
	"fmt"

	"github.com/jongio/composeguard/compose"
	"github.com/spf13/cobra"
)

func newSampleCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:     "sample",
		Short:   "Print a deliberately vulnerable compose file",
		Example: `  composeguard sample | composeguard scan`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(compose.SampleVulnerable)
			return nil
		},
	}
}
