package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "divorced", cfg.Dataset.TargetColumn)
	assert.Contains(t, cfg.Dataset.BoolColumns, "infidelity_occurred")
	assert.Equal(t, 60, cfg.Dataset.LoadTimeoutSec)
	assert.NotEmpty(t, cfg.Dataset.Source)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `listen_addr: ":9000"
log_level: debug
dataset:
  source: ./local.csv
  target_column: churned
  bool_columns: [churned]
  load_timeout_sec: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "./local.csv", cfg.Dataset.Source)
	assert.Equal(t, "churned", cfg.Dataset.TargetColumn)
	assert.Equal(t, []string{"churned"}, cfg.Dataset.BoolColumns)
	assert.Equal(t, 5, cfg.Dataset.LoadTimeoutSec)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
