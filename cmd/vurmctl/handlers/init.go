package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/vurm-project/vurm/internal/config"
)

// Init runs the configuration wizard and writes the result to outputPath.
func Init(ctx context.Context, outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		fmt.Printf("warning: %s already exists and will be overwritten\n\n", outputPath)
	}

	result, err := config.RunWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	cfg := result.ToConfig()

	if err := config.WriteINI(cfg, outputPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("\nconfiguration written to %s\n", outputPath)
	return nil
}
