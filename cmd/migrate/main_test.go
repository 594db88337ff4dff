package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-redemption/internal/config"
)

func TestParseFlags(t *testing.T) {
	defaults := config.MigrationsConfig{Dir: "./migrations"}

	opts, err := parseFlags(nil, defaults)
	require.NoError(t, err)
	assert.Equal(t, options{action: "up", dir: "./migrations"}, opts)

	opts, err = parseFlags([]string{"-action=to", "-version=2", "-dir=/tmp/m"}, defaults)
	require.NoError(t, err)
	assert.Equal(t, uint(2), opts.version)
	assert.Equal(t, "/tmp/m", opts.dir)

	opts, err = parseFlags([]string{"-seed"}, defaults)
	require.NoError(t, err)
	assert.True(t, opts.seed)
}

func TestParseFlagsRejectsBadInput(t *testing.T) {
	defaults := config.MigrationsConfig{Dir: "./migrations"}

	_, err := parseFlags([]string{"-action=sideways"}, defaults)
	assert.Error(t, err)

	_, err = parseFlags([]string{"-action=to"}, defaults)
	assert.Error(t, err)
}
