// Package config loads server settings from the environment, with an
// optional .env file, before command-line flags are applied on top.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/netip"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/jmcleod/credvault/crypto"
)

// Storage backends.
const (
	StorageBBolt    = "bbolt"
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Key derivation and cipher choices.
const (
	KDFPBKDF2     = "pbkdf2"
	KDFArgon2id   = "argon2id"
	CipherAESGCM  = "aes-gcm"
	CipherXChaCha = "xchacha20poly1305"
)

type Config struct {
	Addr        string        `env:"CREDVAULT_ADDR" envDefault:":8000"`
	Storage     string        `env:"CREDVAULT_STORAGE" envDefault:"bbolt"`
	DataDir     string        `env:"CREDVAULT_DATA_DIR" envDefault:"./data"`
	PostgresDSN string        `env:"CREDVAULT_POSTGRES_DSN"`
	SQLitePath  string        `env:"CREDVAULT_SQLITE_PATH"`
	AuthSecret  string        `env:"CREDVAULT_AUTH_SECRET"`
	TokenTTL    time.Duration `env:"CREDVAULT_TOKEN_TTL" envDefault:"24h"`
	HashCost    int           `env:"CREDVAULT_HASH_COST" envDefault:"12"`
	CORSOrigins []string      `env:"CREDVAULT_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	TLSCert     string        `env:"CREDVAULT_TLS_CERT"`
	TLSKey      string        `env:"CREDVAULT_TLS_KEY"`
	LogLevel    string        `env:"CREDVAULT_LOG_LEVEL" envDefault:"info"`
	LogFormat   string        `env:"CREDVAULT_LOG_FORMAT" envDefault:"json"`
	MaxKDF      int64         `env:"CREDVAULT_MAX_KDF" envDefault:"8"`
	KDF         string        `env:"CREDVAULT_KDF" envDefault:"pbkdf2"`
	KDFProfile  string        `env:"CREDVAULT_KDF_PROFILE" envDefault:"moderate"`
	Cipher      string        `env:"CREDVAULT_CIPHER" envDefault:"aes-gcm"`

	// TrustedProxies lists CIDRs whose forwarding headers are honoured when
	// resolving the client IP for rate limiting.
	TrustedProxies []string `env:"CREDVAULT_TRUSTED_PROXIES" envSeparator:","`
	// AuditWebhookURL receives a JSON POST for every audit event when set.
	AuditWebhookURL string `env:"CREDVAULT_AUDIT_WEBHOOK_URL"`
	// AuditWebhookAuthHeader is sent with webhook requests, as "Name: value".
	AuditWebhookAuthHeader string `env:"CREDVAULT_AUDIT_WEBHOOK_AUTH_HEADER"`
}

// Load reads an optional dotenv file (".env" when dotenv is empty) and then
// parses the process environment. A missing default .env is not an error.
func Load(dotenv string) (*Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil {
			return nil, fmt.Errorf("loading %s: %w", dotenv, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return Parse(env.Options{})
}

// Parse builds a Config from opts; tests pass opts.Environment to avoid
// touching the process environment.
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageBBolt, StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return errors.New("postgres storage requires a DSN")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.Addr == "" {
		return errors.New("listen address must not be empty")
	}
	if c.HashCost < 4 || c.HashCost > 31 {
		return fmt.Errorf("hash cost must be between 4 and 31, got %d", c.HashCost)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive, got %s", c.TokenTTL)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("TLS requires both a certificate and a key")
	}
	if c.MaxKDF < 1 {
		return fmt.Errorf("max concurrent KDF must be at least 1, got %d", c.MaxKDF)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := c.SecretService(); err != nil {
		return err
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.AuditWebhookAuthHeader != "" && !strings.Contains(c.AuditWebhookAuthHeader, ":") {
		return errors.New(`audit webhook auth header must look like "Name: value"`)
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. Bare addresses are accepted as
// single-host prefixes.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

// BoltPath is the bbolt database file inside DataDir.
func (c *Config) BoltPath() string {
	return filepath.Join(c.DataDir, "credvault.db")
}

// SQLiteFile returns SQLitePath, defaulting to a file inside DataDir.
func (c *Config) SQLiteFile() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.DataDir, "credvault.sqlite")
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return lvl, nil
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// SecretService builds the secret encryption service for the configured
// KDF and cipher.
func (c *Config) SecretService() (*crypto.Service, error) {
	var opts []crypto.Option
	switch c.KDF {
	case KDFPBKDF2, "":
	case KDFArgon2id:
		kd, err := crypto.NewArgon2id(c.KDFProfile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, crypto.WithKeyDeriver(kd))
	default:
		return nil, fmt.Errorf("unknown KDF %q", c.KDF)
	}
	switch c.Cipher {
	case CipherAESGCM, "":
	case CipherXChaCha:
		opts = append(opts, crypto.WithAEAD(crypto.XChaCha20Poly1305{}))
	default:
		return nil, fmt.Errorf("unknown cipher %q", c.Cipher)
	}
	return crypto.NewService(opts...), nil
}
