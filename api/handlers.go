package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/credvault/crypto"
	"github.com/jmcleod/credvault/internal/util"
	"github.com/jmcleod/credvault/vault"
)

// Root handles GET /.
func (a *API) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password Manager API"})
}

// CreatePassword handles POST /passwords.
func (a *API) CreatePassword(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	req, ok := decodeJSON[CreatePasswordRequest](w, r, maxEntryBodySize)
	if !ok {
		return
	}

	entry, err := a.entries.Create(r.Context(), acct.ID, vault.NewEntry{
		Title:    req.Title,
		Username: req.Username,
		Secret:   req.Password,
		Website:  req.Website,
		Notes:    req.Notes,
	}, req.MasterPassword)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditEntryCreated, r, acct.ID, slog.Uint64("entry_id", entry.ID))
	writeJSON(w, http.StatusCreated, newPasswordResponse(entry))
}

// ListPasswords handles GET /passwords.
func (a *API) ListPasswords(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	entries, err := a.entries.List(r.Context(), acct.ID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	limit, offset := parsePagination(r)
	page, meta := paginate(entries, limit, offset)
	out := make([]PasswordResponse, 0, len(page))
	for i := range page {
		out = append(out, newPasswordResponse(&page[i]))
	}
	writePaginationHeaders(w, meta)
	writeJSON(w, http.StatusOK, out)
}

// GetPassword handles GET /passwords/{id}.
func (a *API) GetPassword(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	entry, err := a.entries.Get(r.Context(), acct.ID, id)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPasswordResponse(entry))
}

// DecryptPassword handles POST /passwords/{id}/decrypt.
func (a *API) DecryptPassword(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	limitKey := strconv.FormatUint(acct.ID, 10)
	if blocked, retryAfter := a.limits.reveal.check(limitKey); blocked {
		a.audit.logFailure(AuditRevealRateLimited, r, acct.ID, "rate limited",
			slog.Uint64("entry_id", id))
		writeRateLimited(w, retryAfter, "too many failed decrypt attempts; try again later")
		return
	}

	req, ok := decodeJSON[DecryptRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}

	secret, err := a.entries.Reveal(r.Context(), acct.ID, id, req.MasterPassword)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			a.limits.reveal.recordFailure(limitKey)
			a.audit.logFailure(AuditRevealFailure, r, acct.ID, "decryption failed",
				slog.Uint64("entry_id", id))
		}
		a.mapError(w, r, err)
		return
	}
	defer util.WipeBytes(secret)

	a.limits.reveal.recordSuccess(limitKey)
	a.audit.logEvent(AuditEntryRevealed, r, acct.ID, slog.Uint64("entry_id", id))
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, DecryptResponse{Password: string(secret)})
}

// DeletePassword handles DELETE /passwords/{id}.
func (a *API) DeletePassword(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	if err := a.entries.Delete(r.Context(), acct.ID, id); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logEvent(AuditEntryDeleted, r, acct.ID, slog.Uint64("entry_id", id))
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password deleted successfully"})
}

func entryIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid password id")
		return 0, false
	}
	return id, true
}
