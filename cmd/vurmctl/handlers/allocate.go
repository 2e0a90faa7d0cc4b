package handlers

import (
	"context"
	"fmt"

	"github.com/vurm-project/vurm/internal/rpcapi"
)

// Allocate handles the allocate command: dials the controller and prints
// the newly assigned cluster name on success.
func Allocate(_ context.Context, configPath string, size int, minSize *int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	client, err := rpcapi.Dial(cfg.VurmClient.Endpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	name, err := client.Allocate(size, minSize)
	if err != nil {
		return err
	}

	fmt.Println(name)
	return nil
}
