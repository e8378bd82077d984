package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/querybuilder/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own failures and return an ExitError.
		// Flag and argument errors from cobra are printed here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
