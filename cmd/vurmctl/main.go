// Package main is the entry point for the vurmctl CLI.
//
// vurmctl is a single multi-call binary exposing five subcommands:
// allocate and release (client RPCs against a running controller),
// controller and agent (the two long-running daemons), and init (an
// interactive wizard that writes a starter configuration file).
//
// For detailed usage information, run:
//
//	vurmctl --help
package main

import (
	"fmt"
	"os"

	"github.com/vurm-project/vurm/cmd/vurmctl/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(commands.ExitCode(err))
	}
}
