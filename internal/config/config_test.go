package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_DefaultsWhenNothingIsSet(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.yaml"), filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_LayersOverrideInOrder(t *testing.T) {
	yamlPath := writeFile(t, "imgsync.yaml", `
server_addr: files.example.com:9000
secure: true
request_timeout: 15s
max_upload_bytes: 2048
username: yaml-user
`)
	dotenv := writeFile(t, ".env", "IMGSYNC_USERNAME=dotenv-user\nIMGSYNC_LOG_LEVEL=debug\n")
	t.Setenv("IMGSYNC_SERVER_ADDR", "env.example.com:7000")
	// keeps godotenv from leaking into other tests
	t.Setenv("IMGSYNC_USERNAME", "")
	t.Setenv("IMGSYNC_LOG_LEVEL", "")
	os.Unsetenv("IMGSYNC_USERNAME")
	os.Unsetenv("IMGSYNC_LOG_LEVEL")

	cfg, err := load(yamlPath, dotenv)
	require.NoError(t, err)

	assert.Equal(t, "env.example.com:7000", cfg.ServerAddr)
	assert.True(t, cfg.Secure)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.EqualValues(t, 2048, cfg.MaxUploadBytes)
	assert.Equal(t, "dotenv-user", cfg.Username)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_RejectsBadInput(t *testing.T) {
	_, err := load(writeFile(t, "bad.yaml", "server_addr: [unterminated"), "")
	assert.Error(t, err)

	t.Setenv("IMGSYNC_MAX_UPLOAD_BYTES", "-1")
	_, err = load("", filepath.Join(t.TempDir(), ".env"))
	assert.ErrorContains(t, err, "max_upload_bytes")
}
