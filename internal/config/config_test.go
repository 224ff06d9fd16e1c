package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, environ map[string]string) *Config {
	t.Helper()
	cfg, err := Parse(env.Options{Environment: environ})
	require.NoError(t, err)
	return cfg
}

func TestParse_Defaults(t *testing.T) {
	cfg := parse(t, map[string]string{})

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, StorageBBolt, cfg.Storage)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 12, cfg.HashCost)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, int64(8), cfg.MaxKDF)
	assert.NoError(t, cfg.Validate())

	svc, err := cfg.SecretService()
	require.NoError(t, err)
	assert.Equal(t, "pbkdf2-sha256+aes256gcm", svc.Scheme())
}

func TestParse_Overrides(t *testing.T) {
	cfg := parse(t, map[string]string{
		"CREDVAULT_ADDR":         "127.0.0.1:9000",
		"CREDVAULT_STORAGE":      "sqlite",
		"CREDVAULT_TOKEN_TTL":    "30m",
		"CREDVAULT_HASH_COST":    "10",
		"CREDVAULT_CORS_ORIGINS": "https://a.example,https://b.example",
		"CREDVAULT_MAX_KDF":      "2",
		"CREDVAULT_KDF":          "argon2id",
		"CREDVAULT_KDF_PROFILE":  "interactive",
		"CREDVAULT_CIPHER":       "xchacha20poly1305",
	})

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 10, cfg.HashCost)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())

	svc, err := cfg.SecretService()
	require.NoError(t, err)
	assert.Equal(t, "argon2id+xchacha20poly1305", svc.Scheme())
}

func TestParse_BadValue(t *testing.T) {
	_, err := Parse(env.Options{Environment: map[string]string{"CREDVAULT_TOKEN_TTL": "soon"}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage = "redis" }},
		{"postgres without dsn", func(c *Config) { c.Storage = StoragePostgres }},
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"low cost", func(c *Config) { c.HashCost = 3 }},
		{"high cost", func(c *Config) { c.HashCost = 32 }},
		{"zero ttl", func(c *Config) { c.TokenTTL = 0 }},
		{"cert without key", func(c *Config) { c.TLSCert = "cert.pem" }},
		{"key without cert", func(c *Config) { c.TLSKey = "key.pem" }},
		{"zero max kdf", func(c *Config) { c.MaxKDF = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad kdf", func(c *Config) { c.KDF = "scrypt" }},
		{"bad kdf profile", func(c *Config) { c.KDF = KDFArgon2id; c.KDFProfile = "extreme" }},
		{"bad cipher", func(c *Config) { c.Cipher = "rot13" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := parse(t, map[string]string{})
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("postgres with dsn", func(t *testing.T) {
		cfg := parse(t, map[string]string{})
		cfg.Storage = StoragePostgres
		cfg.PostgresDSN = "postgres://localhost/credvault"
		assert.NoError(t, cfg.Validate())
	})
}

func TestPaths(t *testing.T) {
	cfg := parse(t, map[string]string{"CREDVAULT_DATA_DIR": "/var/lib/credvault"})
	assert.Equal(t, "/var/lib/credvault/credvault.db", cfg.BoltPath())
	assert.Equal(t, "/var/lib/credvault/credvault.sqlite", cfg.SQLiteFile())

	cfg.SQLitePath = "/tmp/other.sqlite"
	assert.Equal(t, "/tmp/other.sqlite", cfg.SQLiteFile())
}

func TestNewLogger(t *testing.T) {
	cfg := parse(t, map[string]string{"CREDVAULT_LOG_LEVEL": "warn", "CREDVAULT_LOG_FORMAT": "text"})
	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "k=v")
}

func TestLoad_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CREDVAULT_ADDR=:7001\n"), 0o600))
	// Setenv restores the original value on cleanup; godotenv only fills unset keys.
	t.Setenv("CREDVAULT_ADDR", "")
	os.Unsetenv("CREDVAULT_ADDR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestTrustedProxyPrefixes(t *testing.T) {
	cfg := parse(t, map[string]string{"CREDVAULT_TRUSTED_PROXIES": "10.0.0.0/8, 192.168.1.7"})
	prefixes, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.168.1.7/32", prefixes[1].String())

	bad := parse(t, map[string]string{"CREDVAULT_TRUSTED_PROXIES": "not-an-ip"})
	assert.Error(t, bad.Validate())

	hdr := parse(t, map[string]string{"CREDVAULT_AUDIT_WEBHOOK_AUTH_HEADER": "no-colon"})
	assert.Error(t, hdr.Validate())
}
