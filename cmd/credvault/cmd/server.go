package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmcleod/credvault/api"
	"github.com/jmcleod/credvault/crypto"
	"github.com/jmcleod/credvault/internal/config"
	"github.com/jmcleod/credvault/storage"
	bboltstorage "github.com/jmcleod/credvault/storage/bbolt"
	"github.com/jmcleod/credvault/storage/memory"
	"github.com/jmcleod/credvault/storage/postgres"
	"github.com/jmcleod/credvault/storage/sqlite"
	"github.com/jmcleod/credvault/vault"
)

const shutdownTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the credential vault HTTP API",
	Long: `Start the HTTP API. Settings come from CREDVAULT_* environment variables
(optionally loaded from a dotenv file); flags given on the command line win.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	addServerFlags(serverCmd.Flags())
}

func addServerFlags(f *pflag.FlagSet) {
	f.String("addr", ":8000", "Address to listen on")
	f.String("storage", config.StorageBBolt, "Storage backend: bbolt, memory, postgres or sqlite")
	f.String("data-dir", "./data", "Directory for bbolt and sqlite data files")
	f.String("postgres-dsn", "", "PostgreSQL connection string")
	f.String("sqlite-path", "", "SQLite database file (default <data-dir>/credvault.sqlite)")
	f.String("tls-cert", "", "Path to TLS certificate file")
	f.String("tls-key", "", "Path to TLS key file")
	f.String("log-level", "info", "Log level: debug, info, warn or error")
	f.String("log-format", "json", "Log format: json or text")
	f.Int("hash-cost", crypto.DefaultHashCost, "bcrypt cost for account passwords")
	f.Int64("max-kdf", vault.DefaultMaxConcurrentKDF, "Maximum concurrent master-password key derivations")
	f.Duration("token-ttl", 24*time.Hour, "Bearer token lifetime")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	f.StringSlice("trusted-proxies", nil, "CIDRs whose X-Forwarded-For headers are trusted")
	f.String("kdf", config.KDFPBKDF2, "Key derivation for new entries: pbkdf2 or argon2id")
	f.String("kdf-profile", "moderate", "Argon2id profile: interactive, moderate or sensitive")
	f.String("cipher", config.CipherAESGCM, "Cipher for new entries: aes-gcm or xchacha20poly1305")
	f.String("audit-webhook-url", "", "POST every audit event to this URL")
}

// applyFlags overrides cfg with every flag set explicitly on the command line.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "addr":
			cfg.Addr = f.Value.String()
		case "storage":
			cfg.Storage = f.Value.String()
		case "data-dir":
			cfg.DataDir = f.Value.String()
		case "postgres-dsn":
			cfg.PostgresDSN = f.Value.String()
		case "sqlite-path":
			cfg.SQLitePath = f.Value.String()
		case "tls-cert":
			cfg.TLSCert = f.Value.String()
		case "tls-key":
			cfg.TLSKey = f.Value.String()
		case "log-level":
			cfg.LogLevel = f.Value.String()
		case "log-format":
			cfg.LogFormat = f.Value.String()
		case "hash-cost":
			cfg.HashCost, err = fs.GetInt(f.Name)
		case "max-kdf":
			cfg.MaxKDF, err = fs.GetInt64(f.Name)
		case "token-ttl":
			cfg.TokenTTL, err = fs.GetDuration(f.Name)
		case "cors-origins":
			cfg.CORSOrigins, err = fs.GetStringSlice(f.Name)
		case "trusted-proxies":
			cfg.TrustedProxies, err = fs.GetStringSlice(f.Name)
		case "kdf":
			cfg.KDF = f.Value.String()
		case "kdf-profile":
			cfg.KDFProfile = f.Value.String()
		case "cipher":
			cfg.Cipher = f.Value.String()
		case "audit-webhook-url":
			cfg.AuditWebhookURL = f.Value.String()
		}
	})
	return err
}

func runServer(cmd *cobra.Command, args []string) error {
	defer memguard.Purge()

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	hasher, err := crypto.NewBcryptHasher(cfg.HashCost)
	if err != nil {
		return err
	}
	secrets, err := cfg.SecretService()
	if err != nil {
		return err
	}
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	accounts := vault.NewAccounts(repo, hasher)
	entries := vault.NewEntries(repo, secrets, vault.WithMaxConcurrentDerivations(cfg.MaxKDF))

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithTokenTTL(cfg.TokenTTL),
		api.WithCORSOrigins(cfg.CORSOrigins...),
		api.WithTrustedProxies(proxies),
		api.WithActivityLog(repo),
		api.WithAlertFunc(func(e api.AlertEvent) {
			logger.Warn("security alert", "type", string(e.Type), "message", e.Message,
				"count", e.Count, "threshold", e.Threshold)
		}),
	}
	if cfg.AuthSecret != "" {
		opts = append(opts, api.WithSigningKey([]byte(cfg.AuthSecret)))
	}
	if cfg.AuditWebhookURL != "" {
		opts = append(opts, api.WithAuditWebhook(cfg.AuditWebhookURL, cfg.AuditWebhookAuthHeader))
	}
	a, err := api.New(accounts, entries, opts...)
	if err != nil {
		return err
	}
	defer a.Close()
	go a.RunMaintenance(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(api.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Mount("/api/v1", a.Router())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	if cfg.TLSCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	done := make(chan error, 1)
	go func() {
		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	printBanner(cmd.ErrOrStderr())
	logger.Info("server started",
		"addr", cfg.Addr,
		"tls", server.TLSConfig != nil,
		"storage", cfg.Storage,
		"scheme", entries.Scheme(),
	)
	if server.TLSConfig == nil {
		logger.Warn("serving plain HTTP; terminate TLS in front of this process")
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-done:
		return err
	}
}

// openRepository opens the configured backend. The returned close function
// releases it.
func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return memory.NewRepository(), func() {}, nil
	case config.StorageBBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(cfg.BoltPath(), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bbolt storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case config.StorageSQLite:
		path := cfg.SQLiteFile()
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case config.StoragePostgres:
		repo, err := postgres.NewRepositoryFromDSN(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
