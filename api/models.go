package api

import (
	"time"

	"github.com/jmcleod/credvault/vault"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterRequest is the JSON body for POST /register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the JSON form of POST /token. The endpoint also accepts
// the OAuth2 password form (username, password).
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned from POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// UserResponse describes an account without its credential hash.
type UserResponse struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(acct *vault.Account) UserResponse {
	return UserResponse{
		ID:        acct.ID,
		Email:     acct.Email,
		IsActive:  acct.Active,
		CreatedAt: acct.CreatedAt,
	}
}

// CreatePasswordRequest is the JSON body for POST /passwords.
type CreatePasswordRequest struct {
	Title          string `json:"title"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	Website        string `json:"website,omitempty"`
	Notes          string `json:"notes,omitempty"`
	MasterPassword string `json:"master_password"`
}

// DecryptRequest is the JSON body for POST /passwords/{id}/decrypt.
type DecryptRequest struct {
	MasterPassword string `json:"master_password"`
}

// DecryptResponse carries a revealed secret.
type DecryptResponse struct {
	Password string `json:"password"`
}

// PasswordResponse summarises an entry. Ciphertext and salt never leave the
// server.
type PasswordResponse struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
	Website   *string   `json:"website"`
	Notes     *string   `json:"notes"`
	Scheme    string    `json:"scheme"`
	CreatedAt time.Time `json:"created_at"`
}

func newPasswordResponse(e *vault.SecretEntry) PasswordResponse {
	return PasswordResponse{
		ID:        e.ID,
		Title:     e.Title,
		Username:  e.Username,
		Website:   optional(e.Website),
		Notes:     optional(e.Notes),
		Scheme:    e.Scheme,
		CreatedAt: e.CreatedAt,
	}
}

// optional maps the empty string to JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
