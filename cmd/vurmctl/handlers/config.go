package handlers

import (
	"fmt"

	"github.com/vurm-project/vurm/internal/config"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	return cfg, nil
}
