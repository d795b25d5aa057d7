// Command loopswap runs and drives an escrow-free multi-party swap ledger.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/loopswap/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "loopswap:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
