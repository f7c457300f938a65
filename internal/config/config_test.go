package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  url: "postgres://localhost/crm"
  max_open_conns: 10
storage:
  bucket: "crm-attachments"
  region: "us-east-1"
whatsapp:
  send_url: "https://fn.example.com/send"
email:
  sender_email: "team@example.com"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/crm", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, "crm-attachments", cfg.Storage.Bucket)
	assert.Equal(t, "https://fn.example.com/send", cfg.WhatsApp.SendURL)
	assert.Equal(t, "team@example.com", cfg.Email.SenderEmail)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://file/crm"
redis:
  addr: "file:6379"
`)

	t.Setenv("DATABASE_URL", "postgres://env/crm")
	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("STORAGE_ACCESS_KEY_ID", "AKIAEXAMPLE")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/crm", cfg.Database.URL, "env overrides file")
	assert.Equal(t, "env:6379", cfg.Redis.Addr)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "AKIAEXAMPLE", cfg.Storage.AccessKeyID)
}

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/crm")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, ":8080", cfg.Server.Addr())
}

func TestLoadFromEnvMissingFileFallsBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/crm")
	t.Setenv("REDIS_ADDR", "env:6379")

	// Load wraps the read error; the fallback must still recognize a
	// missing file through the wrapping.
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/crm", cfg.Database.URL)
	assert.Equal(t, "env:6379", cfg.Redis.Addr)
}

func TestLoadFromEnvBrokenFileIsAnError(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/crm")

	path := writeConfig(t, "server: [not a mapping")
	_, err := LoadFromEnv(path)
	assert.Error(t, err)
}

func TestLoadFromEnvRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:9000", ServerConfig{Host: "0.0.0.0", Port: 9000}.Addr())
	assert.Equal(t, ":8080", ServerConfig{}.Addr())
}
