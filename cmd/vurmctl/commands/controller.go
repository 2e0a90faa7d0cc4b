package commands

import (
	"github.com/spf13/cobra"

	"github.com/vurm-project/vurm/cmd/vurmctl/handlers"
)

// Controller returns the command that runs the vurmctld daemon (C7+C8):
// the allocation engine and its client-facing RPC surface.
func Controller() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "controller",
		Short: "Run the vurmctld controller daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Controller(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to vurmctl configuration file")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
