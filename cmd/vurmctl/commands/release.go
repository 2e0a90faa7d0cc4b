package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vurm-project/vurm/cmd/vurmctl/handlers"
)

// Release returns the release command: `vurmctl release --config <path>
// <clusterName>`, or `--all` to release every registered cluster. It maps
// to the original `vrelease` script.
func Release() *cobra.Command {
	var configPath string
	var all bool

	cmd := &cobra.Command{
		Use:   "release [clusterName]",
		Short: "Release a virtual cluster, or all of them with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return handlers.ReleaseAll(cmd.Context(), configPath)
			}
			if len(args) != 1 {
				return fmt.Errorf("release requires a cluster name, or --all")
			}
			return handlers.Release(cmd.Context(), configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to vurmctl configuration file")
	cmd.Flags().BoolVar(&all, "all", false, "Release every registered virtual cluster")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
