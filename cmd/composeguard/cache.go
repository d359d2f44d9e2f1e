package main

import (
	"errors"

	"github.com/jongio/composeguard/cliout"
	"github.com/spf13/cobra"
)

var errCacheDisabled = errors.New("the report cache is disabled")

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the report cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dir",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.reportCache()
			if m == nil {
				return errCacheDisabled
			}
			cliout.Plain("%s", m.Dir())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.reportCache()
			if m == nil {
				return errCacheDisabled
			}
			n, err := m.Clear()
			if err != nil {
				return err
			}
			return cliout.Print(map[string]int{"removed": n}, func() {
				cliout.Success("Removed %d cached report(s) from %s", n, m.Dir())
			})
		},
	})
	return cmd
}
