// Command akl compiles and runs knowledge-base documents.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/akl/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
