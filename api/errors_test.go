package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/credvault/vault"
)

func TestMapError_FixedDetails(t *testing.T) {
	a, err := New(nil, nil, WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)

	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"entry not found", fmt.Errorf("entry 7: %w", vault.ErrEntryNotFound), http.StatusNotFound, "password not found"},
		{"unsupported scheme", fmt.Errorf("entry 7 sealed with %q: %w", "argon2id+xchacha20poly1305", vault.ErrUnsupportedScheme),
			http.StatusConflict, msgUnsupportedScheme},
		{"email taken", fmt.Errorf("alice@example.com: %w", vault.ErrEmailTaken), http.StatusBadRequest, "email already registered"},
		{"invalid credentials", fmt.Errorf("login: %w", vault.ErrInvalidCredentials), http.StatusUnauthorized, "incorrect email or password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.mapError(rec, httptest.NewRequest(http.MethodGet, "/passwords/7", nil), tt.err)

			require.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.detail, body.Detail)
		})
	}
}
