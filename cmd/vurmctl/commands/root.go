// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing and flag binding. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/vurm-project/vurm/internal/rpcapi"
)

// Root returns the root command for the vurmctl CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vurmctl",
		Short: "Dynamically provision SLURM compute nodes from pluggable provisioners",
	}

	cmd.AddCommand(Allocate())
	cmd.AddCommand(Release())
	cmd.AddCommand(Controller())
	cmd.AddCommand(Agent())
	cmd.AddCommand(Init())

	return cmd
}

// ExitCode maps a command error to a process exit code: 0 is handled by
// the caller when err is nil, 2 means the server rejected the request
// (a vurmerr.Remotable error, surfaced via rpcapi.RemoteError), and 1 is
// everything else (usage errors, transport failures).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var remote *rpcapi.RemoteError
	if errors.As(err, &remote) {
		return 2
	}
	return 1
}
