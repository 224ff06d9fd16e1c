package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditRegister            AuditEvent = "register"
	AuditRegisterRateLimited AuditEvent = "register_rate_limited"
	AuditLoginSuccess        AuditEvent = "login_success"
	AuditLoginFailure        AuditEvent = "login_failure"
	AuditLoginRateLimited    AuditEvent = "login_rate_limited"
	AuditLoginDisabled       AuditEvent = "login_disabled"
	AuditEntryCreated        AuditEvent = "entry_created"
	AuditEntryRevealed       AuditEvent = "entry_revealed"
	AuditRevealFailure       AuditEvent = "entry_reveal_failed"
	AuditRevealRateLimited   AuditEvent = "entry_reveal_rate_limited"
	AuditEntryDeleted        AuditEvent = "entry_deleted"
)

// auditLogger wraps slog.Logger for structured security audit logging and
// fans each event out to the metrics collector, the per-account activity
// log and the optional webhook.
type auditLogger struct {
	logger   *slog.Logger
	metrics  *metricsCollector
	activity *activityStore
	webhook  *auditWebhook
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry. accountID is zero for events
// where the caller is not yet known.
func (al *auditLogger) log(event AuditEvent, r *http.Request, accountID uint64, attrs ...slog.Attr) {
	now := time.Now().UTC()
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", now.Format(time.RFC3339)),
	}
	if accountID != 0 {
		baseAttrs = append(baseAttrs, slog.Uint64("account_id", accountID))
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)

	al.metrics.recordEvent(event)
	if accountID != 0 && al.activity != nil {
		if err := al.activity.append(accountID, event, now, attrs); err != nil {
			al.logger.Warn("activity log append failed", "event", string(event), "error", err)
		}
	}
	if al.webhook != nil {
		evt := webhookEvent{
			Event:      string(event),
			RemoteAddr: r.RemoteAddr,
			Timestamp:  now.Format(time.RFC3339),
		}
		if accountID != 0 {
			evt.AccountID = strconv.FormatUint(accountID, 10)
		}
		if len(attrs) > 0 {
			evt.Attrs = make(map[string]string, len(attrs))
			for _, a := range attrs {
				evt.Attrs[a.Key] = a.Value.String()
			}
		}
		al.webhook.enqueue(evt)
	}
}

// logEvent records a successful action by a known account.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, accountID uint64, extra ...slog.Attr) {
	al.log(event, r, accountID, extra...)
}

// logFailure records a rejected attempt together with its reason.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, accountID uint64, reason string, extra ...slog.Attr) {
	attrs := append([]slog.Attr{slog.String("reason", reason)}, extra...)
	al.log(event, r, accountID, attrs...)
}
