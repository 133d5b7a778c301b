// Command lstar learns Moore and Mealy machines with an L*-style
// observation table.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/lstar/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "lstar: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
