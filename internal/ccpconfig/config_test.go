package ccpconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ccp.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[RPCEndpoint]
Host = "0.0.0.0"
Port = 7777

[Logs]
LogLevel = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.RPCEndpoint.Host)
	assert.Equal(t, 7777, cfg.RPCEndpoint.Port)
	assert.Equal(t, "debug", cfg.Logs.LogLevel)
	// Untouched defaults survive the overlay.
	assert.Equal(t, "state.json", filepath.Base(cfg.State.Path))
}

func TestLoadResolvesStatePathRelativeToConfigFile(t *testing.T) {
	path := writeConfig(t, `
[State]
Path = "data/state.json"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data/state.json"), cfg.State.Path)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
[RPCEndpoint]
NotAField = true
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestDumpRoundtripsThroughLoad(t *testing.T) {
	cfg := Default()
	cfg.RPCEndpoint.Port = 4242

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, cfg))

	path := writeConfig(t, buf.String())
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.RPCEndpoint.Port, loaded.RPCEndpoint.Port)
}
