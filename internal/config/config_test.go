package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rmsnorm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
device:
  workers: 3
  max_threads_per_block: 256
stream:
  queue_depth: 8
log:
  level: debug
`)
	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Device.Workers)
	assert.Equal(t, 256, cfg.Device.MaxThreadsPerBlock)
	assert.Equal(t, 8, cfg.Stream.QueueDepth)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	dev, err := cfg.NewDevice()
	require.NoError(t, err)
	assert.Equal(t, 3, dev.Workers)
	assert.Equal(t, 256, dev.MaxThreadsPerBlock)

	s, err := cfg.NewStream()
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "device:\n  workers: 2\n"), false)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Device.Workers)
	assert.Equal(t, Default().Stream.QueueDepth, cfg.Stream.QueueDepth)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(missing, false)
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err = Load("", false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"syntax":      "device: [",
		"workers":     "device:\n  workers: -1\n",
		"queue depth": "stream:\n  queue_depth: -4\n",
		"log level":   "log:\n  level: loud\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), false)
			assert.Error(t, err)
		})
	}
}

func TestNewDevice_RejectsBadBlockLimit(t *testing.T) {
	cfg := Default()
	cfg.Device.MaxThreadsPerBlock = 100
	_, err := cfg.NewDevice()
	assert.Error(t, err)
}
