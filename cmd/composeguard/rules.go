package main

import (
	"errors"
	"fmt"

	"github.com/jongio/composeguard/browser"
	"github.com/jongio/composeguard/cliout"
	"github.com/jongio/composeguard/rules"
	"github.com/spf13/cobra"
)

func newRulesCmd(_ *app) *cobra.Command {
	var (
		open          bool
		browserTarget string
	)

	cmd := &cobra.Command{
		Use:   "rules [id]",
		Short: "List the security rules or explain one",
		Example: `  composeguard rules
  composeguard rules docker-socket
  composeguard rules seccomp-unconfined --open`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			var ids []string
			for _, r := range rules.Catalogue() {
				ids = append(ids, r.ID)
			}
			return ids, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if open {
					return errors.New("--open requires a rule id")
				}
				catalogue := rules.Catalogue()
				return cliout.Print(catalogue, func() { cliout.RenderRules(catalogue) })
			}

			rule, ok := rules.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown rule %q (run 'composeguard rules' for the list)", args[0])
			}
			if err := cliout.Print(rule, func() { cliout.RenderRule(rule) }); err != nil {
				return err
			}
			if !open {
				return nil
			}

			target, err := browser.ParseTarget(browserTarget)
			if err != nil {
				return err
			}
			if rule.Reference == "" {
				return fmt.Errorf("rule %s has no reference page", rule.ID)
			}
			if err := browser.Open(rule.Reference, target); err != nil {
				// The rule was already printed; a missing browser is not fatal.
				cliout.Warning("%v", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "Open the rule's reference page in a browser")
	cmd.Flags().StringVar(&browserTarget, "browser", string(browser.TargetDefault), "Browser target for --open (default, none)")
	return cmd
}
