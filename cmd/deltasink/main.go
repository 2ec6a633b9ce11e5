// Command deltasink writes ordered change streams as data files plus
// equality delete files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/deltasink/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
