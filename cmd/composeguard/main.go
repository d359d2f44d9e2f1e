// Command composeguard finds and fixes container-escape risks in Docker
// Compose files.
package main

import (
	"errors"
	"io"
	"os"

	"github.com/jongio/composeguard/cliout"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin))
}

// run executes the CLI and maps errors to exit codes.
func run(args []string, stdin io.Reader) int {
	root := newRootCmd(stdin)
	root.SetArgs(args)

	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFindings):
		return ExitFindings
	default:
		cliout.Error("%v", err)
		return ExitError
	}
}
