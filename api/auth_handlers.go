package api

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/jmcleod/credvault/vault"
)

// Register handles POST /register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	// Rate-limit registration before the bcrypt work.
	clientIP := a.extractClientIP(r)
	if blocked, retryAfter := a.limits.registerGlobal.check(); blocked {
		a.audit.logFailure(AuditRegisterRateLimited, r, 0, "global rate limited")
		writeRateLimited(w, retryAfter, "too many requests; try again later")
		return
	}
	if blocked, retryAfter := a.limits.registerIP.check(clientIP); blocked {
		a.audit.logFailure(AuditRegisterRateLimited, r, 0, "ip rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter, "too many requests; try again later")
		return
	}

	req, ok := decodeJSON[RegisterRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	a.limits.registerIP.recordFailure(clientIP)
	a.limits.registerGlobal.record()

	acct, err := a.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditRegister, r, acct.ID)
	writeJSON(w, http.StatusCreated, newUserResponse(acct))
}

// Token handles POST /token. It accepts the OAuth2 password form
// (username, password) or a JSON LoginRequest.
func (a *API) Token(w http.ResponseWriter, r *http.Request) {
	req, ok := readLoginRequest(w, r)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	emailKey := vault.NormalizeEmail(req.Email)
	clientIP := a.extractClientIP(r)

	// Check rate limits before any expensive work: global, IP, then account.
	if blocked, retryAfter := a.limits.loginGlobal.check(); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, 0, "global rate limited")
		writeRateLimited(w, retryAfter, "too many failed login attempts; try again later")
		return
	}
	if blocked, retryAfter := a.limits.loginIP.check(clientIP); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, 0, "ip rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter, "too many failed login attempts; try again later")
		return
	}
	if blocked, retryAfter := a.limits.loginAccount.check(emailKey); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, 0, "account rate limited")
		writeRateLimited(w, retryAfter, "too many failed login attempts; try again later")
		return
	}

	acct, err := a.accounts.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, vault.ErrInvalidCredentials):
		a.limits.loginAccount.recordFailure(emailKey)
		a.limits.loginIP.recordFailure(clientIP)
		a.limits.loginGlobal.record()
		a.audit.logFailure(AuditLoginFailure, r, 0, "invalid credentials",
			slog.String("client_ip", clientIP))
		a.mapError(w, r, err)
		return
	case errors.Is(err, vault.ErrAccountDisabled):
		a.audit.logFailure(AuditLoginDisabled, r, 0, "account disabled")
		a.mapError(w, r, err)
		return
	case err != nil:
		a.mapError(w, r, err)
		return
	}

	token, err := a.tokens.issue(acct.ID)
	if err != nil {
		a.writeInternalError(w, r, "issuing token", err)
		return
	}
	a.limits.loginAccount.recordSuccess(emailKey)
	a.limits.loginIP.recordSuccess(clientIP)
	a.audit.logEvent(AuditLoginSuccess, r, acct.ID)

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(a.tokens.ttl.Seconds()),
	})
}

func readLoginRequest(w http.ResponseWriter, r *http.Request) (LoginRequest, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxAuthBodySize)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			writeDecodeError(w, err)
			return LoginRequest{}, false
		}
		return LoginRequest{
			Email:    r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		}, true
	default:
		return decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	}
}

// Me handles GET /users/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUserResponse(accountFromContext(r.Context())))
}

// Activity handles GET /users/me/activity: the caller's audit trail, newest
// first, paginated with limit and offset.
func (a *API) Activity(w http.ResponseWriter, r *http.Request) {
	if a.audit.activity == nil {
		writeError(w, http.StatusNotFound, "activity log is disabled")
		return
	}
	acct := accountFromContext(r.Context())
	entries, err := a.audit.activity.list(acct.ID)
	if err != nil {
		a.writeInternalError(w, r, "listing activity", err)
		return
	}
	limit, offset := parsePagination(r)
	page, meta := paginate(entries, limit, offset)
	writePaginationHeaders(w, meta)
	writeJSON(w, http.StatusOK, page)
}
