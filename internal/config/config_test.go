package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LEVELUP_USER", "")
	t.Setenv("LEVELUP_TIMEZONE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "main_user", cfg.User)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 50, cfg.Log.MaxSizeMB)
	require.Equal(t, 5, cfg.Log.MaxBackups)
	require.Equal(t, 30, cfg.Log.MaxAgeDays)
	require.False(t, cfg.Log.Console)
	require.NotEmpty(t, cfg.DBPath)
	require.Equal(t, time.Local, cfg.Location())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /tmp/levelup-test.db
user: alice
timezone: Europe/Berlin
log:
  level: DEBUG
  console: true
  max_backups: 2
`), 0o644))
	t.Setenv("LEVELUP_USER", "bob")
	t.Setenv("LEVELUP_LOG_MAX_AGE_DAYS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/levelup-test.db", cfg.DBPath)
	require.Equal(t, "bob", cfg.User)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.Console)
	require.Equal(t, 2, cfg.Log.MaxBackups)
	require.Equal(t, 7, cfg.Log.MaxAgeDays)
	require.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := Config{
		User:     "  ",
		Timezone: "Mars/Olympus",
		Log:      Log{Level: "verbose", MaxSizeMB: -1, MaxBackups: -3},
	}
	Normalize(&cfg)
	require.Equal(t, "main_user", cfg.User)
	require.Empty(t, cfg.Timezone)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 50, cfg.Log.MaxSizeMB)
	require.Equal(t, 0, cfg.Log.MaxBackups)
	require.NotEmpty(t, cfg.DBPath)
}
