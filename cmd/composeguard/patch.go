package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jongio/composeguard/cliout"
	"github.com/jongio/composeguard/compose"
	"github.com/jongio/composeguard/fileutil"
	"github.com/jongio/composeguard/metrics"
	"github.com/jongio/composeguard/security"
	"github.com/jongio/composeguard/yamlutil"
	"github.com/spf13/cobra"
)

type patchOptions struct {
	write   bool
	outFile string
	changes bool
}

func newPatchCmd(a *app) *cobra.Command {
	var opts patchOptions
	cmd := &cobra.Command{
		Use:   "patch [file|-]",
		Short: "Print a hardened copy of a compose file",
		Long: `Remove dangerous settings and add a non-root user and a read-only root
filesystem to every service that lacks them.

Comments and formatting outside the edited lines are kept. The result goes
to stdout unless --write or --out-file is given.`,
		Example: `  composeguard patch docker-compose.yml > hardened.yml
  composeguard patch --write --changes docker-compose.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPatch(args, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "Rewrite the file in place")
	cmd.Flags().StringVar(&opts.outFile, "out-file", "", "Write the patched document to this path")
	cmd.Flags().BoolVar(&opts.changes, "changes", false, "List the changes on stderr")
	cmd.MarkFlagsMutuallyExclusive("write", "out-file")
	return cmd
}

func (a *app) runPatch(args []string, opts patchOptions) error {
	name, text, err := a.read(args)
	if err != nil {
		return err
	}
	if opts.write && name == fileutil.StdinPath {
		return errors.New("--write needs a file argument")
	}

	var result yamlutil.PatchResult
	if opts.write {
		result, err = yamlutil.PatchFile(name, true)
		if errors.Is(err, yamlutil.ErrNothingToPatch) {
			cliout.Info("%s is empty, nothing to patch", name)
			return nil
		}
		if err != nil {
			return err
		}
	} else {
		report := a.analyzer(metrics.SourceCLI).Analyze(text)
		if report.ParseError != "" {
			return fmt.Errorf("%s: %w", name, &compose.ParseError{Message: report.ParseError})
		}
		result = yamlutil.PatchResult{PatchedText: report.PatchedText, Changes: report.Changes}
	}

	if opts.changes {
		cliout.RenderChanges(os.Stderr, result.Changes)
	}

	switch {
	case cliout.IsJSON():
		return cliout.PrintJSON(result)
	case opts.write:
		if !opts.changes {
			cliout.Success("%s: %d change(s) applied", name, len(result.Changes))
		}
		return nil
	case opts.outFile != "":
		if err := security.ValidatePath(opts.outFile); err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		if err := fileutil.AtomicWriteFile(opts.outFile, []byte(result.PatchedText), fileutil.FilePermission); err != nil {
			return err
		}
		cliout.Success("wrote %s (%d change(s))", opts.outFile, len(result.Changes))
		return nil
	default:
		_, err := io.WriteString(os.Stdout, result.PatchedText)
		return err
	}
}
