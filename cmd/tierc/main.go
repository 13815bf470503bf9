// Command tierc lowers annotated Python ASTs into tiered canonical IR.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/tierc/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Commands print their own failures; cobra's usage errors are not.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
