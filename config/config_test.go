package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tally.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Addr, cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.LockTimeout)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
addr: 127.0.0.1:9000
tolerance: 2
auto_simplify: true
auto_simplify_interval: 1m
log_level: debug
`)
	t.Setenv("TALLY_ADDR", ":7000")
	t.Setenv("TALLY_JWT_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, int64(2), cfg.Tolerance)
	assert.True(t, cfg.AutoSimplify)
	assert.Equal(t, time.Minute, cfg.AutoSimplifyInterval)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "negative tolerance", body: "tolerance: -1"},
		{name: "bad log level", body: "log_level: loud"},
		{name: "bad yaml", body: "addr: [unclosed"},
		{name: "bad tolerance env", env: map[string]string{"TALLY_TOLERANCE": "ten"}},
		{name: "bad interval env", env: map[string]string{"TALLY_AUTO_SIMPLIFY_INTERVAL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}
