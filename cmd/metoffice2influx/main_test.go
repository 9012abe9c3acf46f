package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stuartgraham/metoffice2influx/internal/adapter/metoffice"
	"github.com/stuartgraham/metoffice2influx/internal/config"
)

func parse(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cfg := &config.Config{RunOnce: false, LogLevel: "info"}
	cmd := rootCmd(func(cmd *cobra.Command, f flags) error {
		applyFlags(cfg, cmd, f)
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cfg, cmd.Execute()
}

func TestRootCmd_NoFlagsKeepsEnvironment(t *testing.T) {
	cfg, err := parse(t)
	require.NoError(t, err)
	assert.False(t, cfg.RunOnce)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestRootCmd_FlagsOverrideEnvironment(t *testing.T) {
	cfg, err := parse(t, "--once", "-v")
	require.NoError(t, err)
	assert.True(t, cfg.RunOnce)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestRootCmd_OnceFalseOverridesEnvironment(t *testing.T) {
	cfg := &config.Config{RunOnce: true}
	cmd := rootCmd(func(cmd *cobra.Command, f flags) error {
		applyFlags(cfg, cmd, f)
		return nil
	})
	cmd.SetArgs([]string{"--once=false"})
	require.NoError(t, cmd.Execute())
	assert.False(t, cfg.RunOnce)
}

func TestRootCmd_RejectsArguments(t *testing.T) {
	_, err := parse(t, "extra")
	assert.Error(t, err)
}

func TestNewFetcher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	live := newFetcher(&config.Config{LiveConn: true, ProviderURL: config.DefaultProviderURL, BreakerFailures: 1}, logger)
	assert.IsType(t, &metoffice.Client{}, live)

	cached := newFetcher(&config.Config{LiveConn: true, CacheFile: "output.json", BreakerFailures: 1}, logger)
	assert.IsType(t, &metoffice.CachedFetcher{}, cached)

	replay := newFetcher(&config.Config{LiveConn: false, CacheFile: "output.json"}, logger)
	assert.IsType(t, &metoffice.CachedFetcher{}, replay)
}
