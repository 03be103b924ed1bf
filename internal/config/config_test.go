package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.BridgeURL)
	assert.Equal(t, 5*time.Second, cfg.InviteDelay)
	assert.Equal(t, 2*time.Second, cfg.UsernameDelay)
	assert.Equal(t, 30*time.Second, cfg.FloodWaitBackoff)
	assert.Equal(t, 200, cfg.SearchResultLimit)
	assert.Equal(t, 3200, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BRIDGE_URL", "http://bridge:9000")
	t.Setenv("ACCOUNT_ID", "acc-7")
	t.Setenv("INVITE_DELAY", "1500ms")
	t.Setenv("SEARCH_RESULT_LIMIT", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://bridge:9000", cfg.BridgeURL)
	assert.Equal(t, "acc-7", cfg.AccountID)
	assert.Equal(t, 1500*time.Millisecond, cfg.InviteDelay)
	assert.Equal(t, 25, cfg.SearchResultLimit)
}

func TestLoad_YAMLFileThenEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"bridge_url: http://from-file:8000\n"+
			"account_id: file-acc\n"+
			"username_delay: 7s\n"), 0o644))

	t.Setenv("PANEL_CONFIG", path)
	t.Setenv("ACCOUNT_ID", "env-acc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-file:8000", cfg.BridgeURL)
	assert.Equal(t, "env-acc", cfg.AccountID, "env must override file")
	assert.Equal(t, 7*time.Second, cfg.UsernameDelay)
}

func TestLoad_MissingConfigFileFails(t *testing.T) {
	t.Setenv("PANEL_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadEnvValuesFallBack(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("ACTION_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3200, cfg.HTTPPort)
	assert.Equal(t, 2*time.Minute, cfg.ActionTimeout)
}
