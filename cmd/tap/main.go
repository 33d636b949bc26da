// Command tap drives tap resources from scenario files.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tap/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	root.SilenceErrors = true
	root.SilenceUsage = true
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
