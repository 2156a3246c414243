package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvListen, EnvDataDir, EnvLogDir} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatekeep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", "/home/op")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8765", cfg.Listen)
	assert.Equal(t, "/home/op/.ipfs-solana-manager", cfg.DataDir)
	assert.Equal(t, 5, cfg.Auth.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 6, cfg.Auth.MinPasswordLength)
	assert.False(t, cfg.Auth.StrictStore)

	assert.Equal(t, "/home/op/.ipfs-solana-manager/users.txt", cfg.UsersPath())
	assert.Equal(t, "/home/op/.ipfs-solana-manager/logs", cfg.LogPath())
}

func TestLoad_YAMLOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
listen: 0.0.0.0:9000
data_dir: /srv/gatekeep
auth:
  max_attempts: 3
  lockout_duration: 90s
  session_ttl: 8h
  strict_store: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "/srv/gatekeep", cfg.DataDir)
	assert.Equal(t, 3, cfg.Lockout().MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.Lockout().Duration)
	assert.Equal(t, 8*time.Hour, cfg.Session().TTL)
	assert.Equal(t, 6, cfg.Session().MinPasswordLength, "unset keys keep their defaults")
	assert.True(t, cfg.Auth.StrictStore)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "listen: 0.0.0.0:9000\ndata_dir: /srv/a\n")
	t.Setenv(EnvListen, "127.0.0.1:1")
	t.Setenv(EnvDataDir, "/srv/b")
	t.Setenv(EnvLogDir, "/var/log/gatekeep")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1", cfg.Listen)
	assert.Equal(t, "/srv/b", cfg.DataDir)
	assert.Equal(t, "/var/log/gatekeep", cfg.LogPath())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: "lisen: x\n"},
		{name: "bad duration", body: "auth:\n  lockout_duration: soon\n"},
		{name: "zero attempts", body: "auth:\n  max_attempts: 0\n"},
		{name: "negative ttl", body: "auth:\n  session_ttl: -1h\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, cfg.Listen)
}
