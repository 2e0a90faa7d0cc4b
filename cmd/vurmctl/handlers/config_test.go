package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vurm.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfig_ReturnsWrappedErrorForMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestLoadConfig_ReadsValidFile(t *testing.T) {
	path := writeTestConfig(t, "[vurm-client]\nendpoint = tcp:host=localhost:port=8789\n")
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp:host=localhost:port=8789", cfg.VurmClient.Endpoint)
}
