package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Spreadsheet.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Store.Timeout)
	assert.Equal(t, time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Sync.RunTimeout)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 4, cfg.Sync.FanOut)
	assert.Equal(t, 500, cfg.Sync.PageSize)
	assert.Equal(t, 4, cfg.Sync.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.Sync.MaxBackoff)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, ":8080", cfg.Serve.Addr)

	assert.Empty(t, cfg.Sync.RemovalPolicy, "removal policy must not default")
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "project-portal.yaml")

	yaml := `
spreadsheet:
  url: https://docs.google.com/spreadsheets/d/1XYZ/edit
  range: Projects!A:G
  log-range: Log!A:H

store:
  endpoint: https://example.supabase.co/rest/v1
  api-key: sssht
  table: projects

sync:
  interval: 15m
  removal-policy: archive
`

	require.NoError(t, os.WriteFile(file, []byte(yaml), 0644))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "https://docs.google.com/spreadsheets/d/1XYZ/edit", cfg.Spreadsheet.URL)
	assert.Equal(t, "Projects!A:G", cfg.Spreadsheet.Range)
	assert.Equal(t, "Log!A:H", cfg.Spreadsheet.LogRange)
	assert.Equal(t, "https://example.supabase.co/rest/v1", cfg.Store.Endpoint)
	assert.Equal(t, "sssht", cfg.Store.APIKey)
	assert.Equal(t, "projects", cfg.Store.Table)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "archive", cfg.Sync.RemovalPolicy)

	// unset keys keep their defaults
	assert.Equal(t, 50, cfg.Sync.BatchSize)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "project-portal.yaml")

	yaml := `
store:
  api-key: from-file
`

	require.NoError(t, os.WriteFile(file, []byte(yaml), 0644))

	t.Setenv("PORTAL_STORE_API_KEY", "from-environment")
	t.Setenv("PORTAL_SYNC_REMOVAL_POLICY", "delete")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "from-environment", cfg.Store.APIKey)
	assert.Equal(t, "delete", cfg.Sync.RemovalPolicy)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-such-file.yaml"))

	require.Error(t, err)
}
