package main

import (
	"fmt"
	"os"

	"github.com/roach88/incr/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsSilent(err) {
			fmt.Fprintf(os.Stderr, "incr: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
