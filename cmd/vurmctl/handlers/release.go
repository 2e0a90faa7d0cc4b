package handlers

import (
	"context"
	"fmt"

	"github.com/vurm-project/vurm/internal/rpcapi"
)

// Release handles the release command for a single named cluster.
func Release(_ context.Context, configPath, clusterName string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	client, err := rpcapi.Dial(cfg.VurmClient.Endpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Release(clusterName); err != nil {
		return err
	}

	fmt.Printf("released %s\n", clusterName)
	return nil
}

// ReleaseAll handles `vurmctl release --all`.
func ReleaseAll(_ context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	client, err := rpcapi.Dial(cfg.VurmClient.Endpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.ReleaseAll(); err != nil {
		return err
	}

	fmt.Println("released all virtual clusters")
	return nil
}
