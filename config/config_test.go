package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig("")
	assert.Equal(t, "wagate", cfg.System.Appid)
	assert.Equal(t, 1899, cfg.Web.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.False(t, cfg.Session.AutoReconnect)
	assert.Positive(t, cfg.Session.TeardownTimeout)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagate.yml")
	data := []byte("web:\n  port: 8088\ndatabase:\n  type: sqlite\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := LoadConfig(path)
	assert.Equal(t, 8088, cfg.Web.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	// untouched sections keep defaults
	assert.Equal(t, "wagate", cfg.System.Appid)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WAGATE_WEB_PORT", "9090")
	t.Setenv("WAGATE_DB_TYPE", "sqlite")

	cfg := LoadConfig("")
	assert.Equal(t, 9090, cfg.Web.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

func TestWorkdirPaths(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.System.Workdir = "/tmp/wg"
	assert.Equal(t, "/tmp/wg/sessions", cfg.SessionDir())
	assert.Equal(t, "/tmp/wg/events.db", cfg.JournalFile())
}
