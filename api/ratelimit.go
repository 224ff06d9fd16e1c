package api

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

// backoffPolicy describes when a key gets locked out and for how long.
type backoffPolicy struct {
	// threshold is the number of consecutive failures before lockout begins.
	threshold int
	// base is the lockout after threshold is reached; it doubles per extra
	// failure up to max.
	base time.Duration
	max  time.Duration
	// expiry is how long after the last failure a record is forgotten.
	expiry time.Duration
}

var (
	// Login failures per account (keyed by the normalised email).
	loginAccountPolicy = backoffPolicy{threshold: 5, base: time.Minute, max: 15 * time.Minute, expiry: time.Hour}
	// Login failures per client IP.
	loginIPPolicy = backoffPolicy{threshold: 20, base: time.Minute, max: 30 * time.Minute, expiry: time.Hour}
	// Every registration per client IP counts, successful or not.
	registerIPPolicy = backoffPolicy{threshold: 5, base: 5 * time.Minute, max: time.Hour, expiry: time.Hour}
	// Wrong master passphrases per account on the decrypt endpoint.
	revealPolicy = backoffPolicy{threshold: 5, base: 30 * time.Second, max: 15 * time.Minute, expiry: time.Hour}
)

// backoffLimiter tracks failures per key and enforces exponential backoff.
// Keys are identifiers that are safe to hold in memory (emails, IPs,
// account IDs), never passphrases.
type backoffLimiter struct {
	policy backoffPolicy
	now    func() time.Time

	mu       sync.Mutex
	attempts map[string]*attemptRecord
}

type attemptRecord struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

func newBackoffLimiter(policy backoffPolicy) *backoffLimiter {
	return &backoffLimiter{
		policy:   policy,
		now:      time.Now,
		attempts: make(map[string]*attemptRecord),
	}
}

// check reports whether key is locked out and how long the caller should wait.
func (rl *backoffLimiter) check(key string) (blocked bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key]
	if !ok {
		return false, 0
	}
	now := rl.now()
	if now.Sub(rec.lastFailure) > rl.policy.expiry {
		delete(rl.attempts, key)
		return false, 0
	}
	if now.Before(rec.lockedUntil) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

// recordFailure counts a failure and, past the threshold, extends the lockout
// to base * 2^(failures - threshold), capped at max.
func (rl *backoffLimiter) recordFailure(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key]
	if !ok {
		rec = &attemptRecord{}
		rl.attempts[key] = rec
	}
	now := rl.now()
	rec.failures++
	rec.lastFailure = now

	if rec.failures >= rl.policy.threshold {
		lockout := rl.policy.base
		for i := 0; i < rec.failures-rl.policy.threshold; i++ {
			lockout *= 2
			if lockout > rl.policy.max {
				lockout = rl.policy.max
				break
			}
		}
		rec.lockedUntil = now.Add(lockout)
	}
}

// recordSuccess clears the key's history.
func (rl *backoffLimiter) recordSuccess(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// sweep removes expired records. Call periodically from a background goroutine.
func (rl *backoffLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, rec := range rl.attempts {
		if now.Sub(rec.lastFailure) > rl.policy.expiry {
			delete(rl.attempts, key)
		}
	}
}

// windowPolicy locks everyone out for lockout once max events land inside
// window.
type windowPolicy struct {
	window  time.Duration
	max     int
	lockout time.Duration
}

var (
	loginGlobalPolicy    = windowPolicy{window: time.Minute, max: 100, lockout: 5 * time.Minute}
	registerGlobalPolicy = windowPolicy{window: time.Minute, max: 50, lockout: 5 * time.Minute}
)

// windowLimiter counts events across all callers in a sliding window.
type windowLimiter struct {
	policy windowPolicy
	now    func() time.Time

	mu          sync.Mutex
	events      []time.Time
	lockedUntil time.Time
}

func newWindowLimiter(policy windowPolicy) *windowLimiter {
	return &windowLimiter{policy: policy, now: time.Now}
}

func (rl *windowLimiter) check() (blocked bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Before(rl.lockedUntil) {
		return true, rl.lockedUntil.Sub(now)
	}
	return false, 0
}

func (rl *windowLimiter) record() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.events = trimWindow(append(rl.events, now), now, rl.policy.window)
	if len(rl.events) >= rl.policy.max {
		rl.lockedUntil = now.Add(rl.policy.lockout)
	}
}

// rateLimiters groups every limiter the API consults.
type rateLimiters struct {
	loginAccount   *backoffLimiter
	loginIP        *backoffLimiter
	loginGlobal    *windowLimiter
	registerIP     *backoffLimiter
	registerGlobal *windowLimiter
	reveal         *backoffLimiter
}

func newRateLimiters() *rateLimiters {
	return &rateLimiters{
		loginAccount:   newBackoffLimiter(loginAccountPolicy),
		loginIP:        newBackoffLimiter(loginIPPolicy),
		loginGlobal:    newWindowLimiter(loginGlobalPolicy),
		registerIP:     newBackoffLimiter(registerIPPolicy),
		registerGlobal: newWindowLimiter(registerGlobalPolicy),
		reveal:         newBackoffLimiter(revealPolicy),
	}
}

func (l *rateLimiters) sweep() {
	l.loginAccount.sweep()
	l.loginIP.sweep()
	l.registerIP.sweep()
	l.reveal.sweep()
}

// writeRateLimited sends a 429 Too Many Requests response.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration, msg string) {
	w.Header().Set("Retry-After", retryAfterString(retryAfter))
	writeError(w, http.StatusTooManyRequests, msg)
}

func retryAfterString(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// extractClientIP returns the client IP for rate limiting using the API's
// configured trusted proxies.
func (a *API) extractClientIP(r *http.Request) string {
	return extractClientIPWithProxies(r, a.trustedProxies)
}

// extractClientIPWithProxies returns the best-effort client IP address.
//
// Proxy headers (X-Forwarded-For, Forwarded, X-Real-IP) are only honoured
// when the request's RemoteAddr falls within one of trustedProxies. With no
// trusted proxies RemoteAddr is always returned.
//
// Priority when proxy headers are trusted:
// 1. First valid entry in X-Forwarded-For
// 2. First valid "for=" value in Forwarded
// 3. X-Real-IP
// 4. RemoteAddr
func extractClientIPWithProxies(r *http.Request, trustedProxies []netip.Prefix) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)

	proxyTrusted := false
	if len(trustedProxies) > 0 && remoteIP != "" {
		if addr, err := netip.ParseAddr(remoteIP); err == nil {
			for _, prefix := range trustedProxies {
				if prefix.Contains(addr) {
					proxyTrusted = true
					break
				}
			}
		}
	}

	if proxyTrusted {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip, ok := parseIPCandidate(part); ok {
					return ip
				}
			}
		}

		if fwd := strings.TrimSpace(r.Header.Get("Forwarded")); fwd != "" {
			for _, elem := range strings.Split(fwd, ",") {
				for _, param := range strings.Split(elem, ";") {
					param = strings.TrimSpace(param)
					if !strings.HasPrefix(strings.ToLower(param), "for=") {
						continue
					}
					if ip, ok := parseIPCandidate(param[4:]); ok {
						return ip
					}
				}
			}
		}

		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
			if ip, ok := parseIPCandidate(xrip); ok {
				return ip
			}
		}
	}

	return remoteIP
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"")
	if s == "" {
		return "", false
	}

	// RFC 7239 quoted IPv6 may appear as [::1]:1234.
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	// Drop zone if any (e.g. fe80::1%eth0).
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap().String(), true
	}
	return "", false
}
