package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_DialFailureIsReported(t *testing.T) {
	path := writeTestConfig(t, "[vurm-client]\nendpoint = tcp:host=127.0.0.1:port=1\n")

	err := Allocate(context.Background(), path, 3, nil)
	require.Error(t, err)
}

func TestAllocate_BadConfigPathIsReported(t *testing.T) {
	err := Allocate(context.Background(), "/nonexistent/vurm.ini", 3, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
