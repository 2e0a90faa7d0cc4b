package commands

import (
	"github.com/spf13/cobra"

	"github.com/vurm-project/vurm/cmd/vurmctl/handlers"
)

// Agent returns the command that runs the remote-virt domain manager
// daemon (C5). One instance runs per hypervisor host.
func Agent() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the remote-virt domain manager agent daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Agent(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to vurmctl configuration file")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
