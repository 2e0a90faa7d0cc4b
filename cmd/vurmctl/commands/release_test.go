package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelease(t *testing.T) {
	cmd := Release()

	require.NotNil(t, cmd)
	assert.Contains(t, cmd.Use, "release")
	assert.NotNil(t, cmd.RunE)
}

func TestRelease_AllFlag(t *testing.T) {
	cmd := Release()

	flag := cmd.Flags().Lookup("all")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestRelease_ConfigFlag(t *testing.T) {
	cmd := Release()

	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
}
