package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/credvault/crypto"
	"github.com/jmcleod/credvault/storage"
	"github.com/jmcleod/credvault/vault"
)

const (
	msgWrongMaster       = "wrong master password or corrupted data"
	msgInternal          = "internal server error"
	msgUnsupportedScheme = "password was stored with an encryption scheme this server cannot open"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Detail: msg})
}

// writeInternalError logs err server-side and answers with a generic 500.
func (a *API) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	a.logger.ErrorContext(r.Context(), msg, "error", err, "method", r.Method, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// mapError translates domain and core errors into HTTP responses.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *vault.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, crypto.ErrDecryptionFailed):
		writeError(w, http.StatusBadRequest, msgWrongMaster)
	case errors.Is(err, vault.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, vault.ErrEmailTaken.Error())
	case errors.Is(err, vault.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, vault.ErrInvalidCredentials.Error())
	case errors.Is(err, vault.ErrAccountDisabled):
		writeError(w, http.StatusForbidden, "inactive user")
	case errors.Is(err, vault.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, vault.ErrEntryNotFound.Error())
	case errors.Is(err, vault.ErrAccountNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, vault.ErrUnsupportedScheme):
		writeError(w, http.StatusConflict, msgUnsupportedScheme)
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		// Client went away while waiting for a derivation slot.
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		a.writeInternalError(w, r, "request failed", err)
	}
}
