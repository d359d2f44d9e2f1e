package main

import (
	"github.com/jongio/composeguard/logutil"
	"github.com/jongio/composeguard/mcpserver"
	"github.com/jongio/composeguard/metrics"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	var baseDir string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run a Model Context Protocol server on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
analyze_compose, patch_compose and explain_rule tools.

File paths passed to the tools must be inside --base-dir (default: the
working directory).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := mcpserver.New(mcpserver.Options{
				Name:     "composeguard",
				Version:  a.info.Version,
				BaseDir:  baseDir,
				Analyzer: a.analyzer(metrics.SourceMCP),
			})
			if err != nil {
				return err
			}
			logutil.Debug("mcp server starting")
			return srv.ServeStdio()
		},
	}
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "Directory that tool path arguments must stay inside")
	return cmd
}
