package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"levelup/internal/config"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "levelup.log")
	log, err := New(config.Log{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Debugw("quest completed", "questID", 7)
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"quest completed"`)
	require.Contains(t, string(data), `"questID":7`)
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levelup.log")
	log, err := New(config.Log{Level: "warn", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Infow("skipped")
	log.Warnw("kept")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "skipped")
	require.Contains(t, string(data), "kept")
}

func TestNewWithoutSinksIsNop(t *testing.T) {
	log, err := New(config.Log{Level: "info"})
	require.NoError(t, err)
	log.Infow("nothing happens")
}
