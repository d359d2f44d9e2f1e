package main

import (
	"fmt"

	"github.com/jongio/composeguard/cliout"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandMetadata describes one command for editor and shell integrations.
type CommandMetadata struct {
	Name        []string          `json:"name"`
	Short       string            `json:"short"`
	Usage       string            `json:"usage,omitempty"`
	Flags       []FlagMetadata    `json:"flags,omitempty"`
	Subcommands []CommandMetadata `json:"subcommands,omitempty"`
}

// FlagMetadata describes a flag.
type FlagMetadata struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
}

// newMetadataCmd prints the command tree as JSON. rootProvider is called
// at run time so the full tree is registered.
func newMetadataCmd(rootProvider func() *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:    "metadata",
		Short:  "Print the command tree as JSON",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cliout.PrintJSON(commandsOf(rootProvider())); err != nil {
				return fmt.Errorf("failed to write metadata: %w", err)
			}
			return nil
		},
	}
}

func commandsOf(cmd *cobra.Command) []CommandMetadata {
	var commands []CommandMetadata
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}
		commands = append(commands, describe(child))
	}
	return commands
}

func describe(cmd *cobra.Command) CommandMetadata {
	meta := CommandMetadata{
		Name:  commandPath(cmd),
		Short: cmd.Short,
		Usage: cmd.UseLine(),
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		meta.Flags = append(meta.Flags, FlagMetadata{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Description: f.Usage,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
		})
	})

	meta.Subcommands = commandsOf(cmd)
	return meta
}

// commandPath returns the names from below the root down to cmd.
func commandPath(cmd *cobra.Command) []string {
	if !cmd.HasParent() || !cmd.Parent().HasParent() {
		return []string{cmd.Name()}
	}
	return append(commandPath(cmd.Parent()), cmd.Name())
}
