package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ".mfkey32.log", cfg.LogFile)
	assert.Equal(t, 16, cfg.Search.MSBLimit)
	assert.Zero(t, cfg.Search.Workers)
	assert.Zero(t, cfg.Search.SessionTimeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.False(t, cfg.Progress)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_file: captures.log
progress: true
search:
  msb_limit: 64
  workers: 2
  session_timeout: 90s
storage:
  backend: file
  scratch_dir: /var/tmp
logger:
  level: debug
metrics:
  addr: ":9100"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "captures.log", cfg.LogFile)
	assert.True(t, cfg.Progress)
	assert.Equal(t, 64, cfg.Search.MSBLimit)
	assert.Equal(t, 2, cfg.Search.Workers)
	assert.Equal(t, 90*time.Second, cfg.Search.SessionTimeout)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "/var/tmp", cfg.Storage.ScratchDir)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "search:\n  msb_limit: 64\n")
	t.Setenv("MFKEY_MSB_LIMIT", "128")
	t.Setenv("MFKEY_STORAGE_BACKEND", "file")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Search.MSBLimit)
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"msb limit":    "search:\n  msb_limit: 24\n",
		"workers":      "search:\n  workers: -1\n",
		"backend":      "storage:\n  backend: redis\n",
		"level":        "logger:\n  level: trace\n",
		"timeout":      "search:\n  session_timeout: -5s\n",
		"not yaml":     "search: [",
		"bad duration": "search:\n  session_timeout: soon\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("MFKEY_MSB_LIMIT", "3")
	_, err := Load("")
	assert.Error(t, err)
}

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		msbLimit int
		workers  int
		want     int
	}{
		{"explicit", "memory", 4, 3, 3},
		{"default width", "memory", 16, 0, 0},
		{"narrow memory", "memory", 4, 0, 1},
		{"narrow file", "file", 4, 0, 0},
		{"wide memory", "memory", 64, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Storage.Backend = tt.backend
			cfg.Search.MSBLimit = tt.msbLimit
			cfg.Search.Workers = tt.workers
			assert.Equal(t, tt.want, cfg.WorkerCount())
		})
	}
}
