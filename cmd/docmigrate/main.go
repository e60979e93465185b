// Command docmigrate migrates document collections into PostgreSQL.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/docmigrate/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		var exitErr *cli.ExitError
		// ExitErrors were already reported by the command's formatter.
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
