package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromMissingFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, sys, err := LoadFrom(filepath.Join(dir, "config.json"), filepath.Join(dir, "system.json"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Bridge.Host)
	assert.Equal(t, 6385, cfg.Bridge.Port)
	assert.Equal(t, "127.0.0.1:6385", cfg.Bridge.Addr())
	assert.Equal(t, "ws://127.0.0.1:6385", cfg.Bridge.URL())
	assert.False(t, cfg.MCP.Disabled)
	assert.Equal(t, "chromebridge", cfg.MCP.ServerName)
	assert.Equal(t, filepath.Join("data", "artifacts"), cfg.Artifacts.Dir)
	assert.Empty(t, cfg.Vision)

	assert.Equal(t, 10000, sys.ReplyTimeoutMs)
	assert.Equal(t, 500, sys.BindRetryDelayMs)
	assert.Equal(t, "info", sys.LogLevel)
}

func TestLoadFromPartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	app := writeFile(t, dir, "config.json", `{"bridge":{"port":7001},"mcp":{"disabled":true}}`)

	cfg, _, err := LoadFrom(app, filepath.Join(dir, "system.json"))
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Bridge.Port)
	assert.Equal(t, "127.0.0.1", cfg.Bridge.Host, "host untouched by partial file")
	assert.True(t, cfg.MCP.Disabled)
	assert.Equal(t, "chromebridge", cfg.MCP.ServerName)
}

func TestLoadFromVisionSectionPreservedRaw(t *testing.T) {
	dir := t.TempDir()
	app := writeFile(t, dir, "config.json",
		`{"vision":[{"type":"openai","models":["gpt-4o-mini"],"api_keys":["sk-x"]}]}`)

	cfg, _, err := LoadFrom(app, filepath.Join(dir, "system.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"openai","models":["gpt-4o-mini"],"api_keys":["sk-x"]}]`, string(cfg.Vision))
}

func TestLoadFromCorruptConfigIsError(t *testing.T) {
	dir := t.TempDir()
	app := writeFile(t, dir, "config.json", `{"bridge":`)

	_, _, err := LoadFrom(app, filepath.Join(dir, "system.json"))
	assert.Error(t, err)
}

func TestLoadFromRejectsBadPort(t *testing.T) {
	dir := t.TempDir()
	app := writeFile(t, dir, "config.json", `{"bridge":{"port":99999}}`)

	_, _, err := LoadFrom(app, filepath.Join(dir, "system.json"))
	assert.ErrorContains(t, err, "out of range")
}

func TestArtifactDirEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHROMEBRIDGE_ARTIFACT_DIR", "/tmp/shots")

	cfg, _, err := LoadFrom(filepath.Join(dir, "config.json"), filepath.Join(dir, "system.json"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/shots", cfg.Artifacts.Dir)
}

func TestLoadSystemConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("overrides merge onto defaults", func(t *testing.T) {
		path := writeFile(t, dir, "system.json", `{"reply_timeout_ms":2500,"debug_frames":true}`)
		sys := LoadSystemConfig(path)
		assert.Equal(t, 2500, sys.ReplyTimeoutMs)
		assert.True(t, sys.DebugFrames)
		assert.Equal(t, 5000, sys.DialTimeoutMs, "untouched fields keep defaults")
	})

	t.Run("corrupt file falls back to defaults", func(t *testing.T) {
		path := writeFile(t, dir, "broken.json", `nope`)
		sys := LoadSystemConfig(path)
		assert.Equal(t, DefaultSystemConfig(), sys)
	})
}
