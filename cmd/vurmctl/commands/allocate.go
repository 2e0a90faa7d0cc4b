package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vurm-project/vurm/cmd/vurmctl/handlers"
)

// Allocate returns the allocate command: `vurmctl allocate --config <path>
// <size> [minSize]`. It maps to the original `valloc` script.
func Allocate() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "allocate <size> [minSize]",
		Short: "Allocate a virtual cluster of SLURM compute nodes",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[0], err)
			}

			var minSize *int
			if len(args) == 2 {
				m, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid minSize %q: %w", args[1], err)
				}
				minSize = &m
			}

			return handlers.Allocate(cmd.Context(), configPath, size, minSize)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to vurmctl configuration file")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
