// Package api exposes the credential vault over HTTP: account registration,
// bearer-token login and per-account password entries that are only revealed
// with the owner's master passphrase.
package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/credvault/storage"
	"github.com/jmcleod/credvault/vault"
)

const sweepInterval = time.Minute

// API holds the dependencies needed by the REST handlers.
type API struct {
	accounts *vault.Accounts
	entries  *vault.Entries
	tokens   *tokenSigner
	limits   *rateLimiters
	audit    *auditLogger
	logger   *slog.Logger

	signingKey     []byte
	tokenTTL       time.Duration
	corsOrigins    []string
	trustedProxies []netip.Prefix
	alertFn        AlertFunc
	activityRepo   storage.Repository
	webhookURL     string
	webhookHeader  string
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for request errors and audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithSigningKey sets the HS256 key for bearer tokens. Without it a random
// key is generated and tokens do not survive a restart.
func WithSigningKey(key []byte) Option {
	return func(a *API) {
		a.signingKey = key
	}
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(a *API) {
		a.tokenTTL = ttl
	}
}

// WithCORSOrigins sets the browser origins allowed to call the API.
func WithCORSOrigins(origins ...string) Option {
	return func(a *API) {
		a.corsOrigins = origins
	}
}

// WithTrustedProxies configures CIDR ranges whose forwarding headers are
// trusted when resolving the client IP for rate limiting. Without it proxy
// headers are ignored.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// WithAlertFunc sets a callback for login and decrypt failure spikes.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// WithActivityLog records each account's audit events in repo and serves
// them at GET /users/me/activity.
func WithActivityLog(repo storage.Repository) Option {
	return func(a *API) {
		a.activityRepo = repo
	}
}

// WithAuditWebhook forwards every audit event to url. authHeader, if set, is
// sent as "Name: value".
func WithAuditWebhook(url, authHeader string) Option {
	return func(a *API) {
		a.webhookURL = url
		a.webhookHeader = authHeader
	}
}

// New creates a new API instance.
func New(accounts *vault.Accounts, entries *vault.Entries, opts ...Option) (*API, error) {
	a := &API{
		accounts:    accounts,
		entries:     entries,
		limits:      newRateLimiters(),
		tokenTTL:    defaultTokenTTL,
		corsOrigins: []string{"http://localhost:3000"},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	tokens, err := newTokenSigner(a.signingKey, a.tokenTTL)
	if err != nil {
		return nil, err
	}
	a.tokens = tokens
	if len(a.signingKey) == 0 {
		a.logger.Warn("no token signing key configured; using a random key, tokens will not survive a restart")
	}
	a.signingKey = nil

	a.audit = newAuditLogger(a.logger)
	if a.alertFn != nil {
		a.audit.metrics = newMetricsCollector(a.alertFn)
	}
	if a.activityRepo != nil {
		a.audit.activity = newActivityStore(a.activityRepo)
	}
	if a.webhookURL != "" {
		a.audit.webhook = newAuditWebhook(a.webhookURL, a.webhookHeader, a.logger)
	}
	return a, nil
}

// Close flushes queued webhook deliveries.
func (a *API) Close() {
	if a.audit != nil && a.audit.webhook != nil {
		a.audit.webhook.close()
	}
}

// RunMaintenance sweeps expired rate-limit records until ctx is done.
func (a *API) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.limits.sweep()
		}
	}
}

// Router returns a chi.Router with all API routes mounted. It expects to be
// mounted at /api/v1.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Limit", "X-Offset", "X-Has-More", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
		Title:   "credvault API",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
		Title:   "credvault API",
	}, nil))

	r.Get("/", a.Root)
	r.Post("/register", a.Register)
	r.Post("/token", a.Token)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/users/me", a.Me)
		r.Get("/users/me/activity", a.Activity)
		r.Post("/passwords", a.CreatePassword)
		r.Get("/passwords", a.ListPasswords)
		r.Get("/passwords/{id}", a.GetPassword)
		r.Post("/passwords/{id}/decrypt", a.DecryptPassword)
		r.Delete("/passwords/{id}", a.DeletePassword)
	})

	return r
}
