package commands

import (
	"github.com/spf13/cobra"

	"github.com/vurm-project/vurm/cmd/vurmctl/handlers"
)

// Init returns the command for interactively creating a starter
// configuration file.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a vurmctl configuration interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "vurm.ini", "Output file path")

	return cmd
}
