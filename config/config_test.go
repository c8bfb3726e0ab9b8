package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, ModeTransaction, cfg.CheckoutMode)
	assert.Error(t, cfg.Validate(), "empty secret must not validate")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "papeleria.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
mongo_db: fromfile
jwt_secret: file-secret
checkout_mode: two-step
cors_origins: ["https://a.example"]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MONGO_DB", "fromenv")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("CORS_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, "fromenv", cfg.MongoDB)
	assert.Equal(t, "file-secret", cfg.JWTSecret)
	assert.Equal(t, ModeTwoStep, cfg.CheckoutMode)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.CORSOrigins)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("CHECKOUT_MODE", "eventual")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("TOKEN_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}
