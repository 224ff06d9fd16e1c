package api

import (
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source for limiter tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBackoff(policy backoffPolicy) (*backoffLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := newBackoffLimiter(policy)
	rl.now = clock.now
	return rl, clock
}

func TestBackoff_AllowsBeforeThreshold(t *testing.T) {
	rl, _ := newTestBackoff(loginAccountPolicy)
	for range loginAccountPolicy.threshold - 1 {
		rl.recordFailure("alice@example.com")
		blocked, _ := rl.check("alice@example.com")
		assert.False(t, blocked, "should not block before reaching the threshold")
	}
}

func TestBackoff_BlocksAfterThreshold(t *testing.T) {
	rl, _ := newTestBackoff(loginAccountPolicy)
	for range loginAccountPolicy.threshold {
		rl.recordFailure("alice@example.com")
	}

	blocked, retryAfter := rl.check("alice@example.com")
	require.True(t, blocked)
	assert.Equal(t, loginAccountPolicy.base, retryAfter)
}

func TestBackoff_ExponentialAndCapped(t *testing.T) {
	rl, _ := newTestBackoff(loginAccountPolicy)
	for range loginAccountPolicy.threshold {
		rl.recordFailure("k")
	}
	_, first := rl.check("k")

	rl.recordFailure("k")
	_, second := rl.check("k")
	assert.Equal(t, 2*first, second, "one more failure doubles the lockout")

	for range 50 {
		rl.recordFailure("k")
	}
	_, capped := rl.check("k")
	assert.Equal(t, loginAccountPolicy.max, capped)
}

func TestBackoff_LockoutElapses(t *testing.T) {
	rl, clock := newTestBackoff(revealPolicy)
	for range revealPolicy.threshold {
		rl.recordFailure("7")
	}
	blocked, _ := rl.check("7")
	require.True(t, blocked)

	clock.advance(revealPolicy.base + time.Second)
	blocked, _ = rl.check("7")
	assert.False(t, blocked)
}

func TestBackoff_SuccessResets(t *testing.T) {
	rl, _ := newTestBackoff(loginIPPolicy)
	for range loginIPPolicy.threshold {
		rl.recordFailure("203.0.113.9")
	}
	blocked, _ := rl.check("203.0.113.9")
	require.True(t, blocked)

	rl.recordSuccess("203.0.113.9")
	blocked, _ = rl.check("203.0.113.9")
	assert.False(t, blocked)
}

func TestBackoff_IsolatesKeys(t *testing.T) {
	rl, _ := newTestBackoff(loginAccountPolicy)
	for range loginAccountPolicy.threshold {
		rl.recordFailure("a")
	}
	blocked, _ := rl.check("a")
	require.True(t, blocked)
	blocked, _ = rl.check("b")
	assert.False(t, blocked)
}

func TestBackoff_ExpiryAndSweep(t *testing.T) {
	rl, clock := newTestBackoff(loginAccountPolicy)
	rl.recordFailure("old")
	clock.advance(loginAccountPolicy.expiry + time.Minute)
	rl.recordFailure("fresh")

	rl.sweep()
	rl.mu.Lock()
	_, hasOld := rl.attempts["old"]
	_, hasFresh := rl.attempts["fresh"]
	rl.mu.Unlock()
	assert.False(t, hasOld)
	assert.True(t, hasFresh)
}

func TestWindowLimiter(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	policy := windowPolicy{window: time.Minute, max: 3, lockout: 5 * time.Minute}
	rl := newWindowLimiter(policy)
	rl.now = clock.now

	rl.record()
	rl.record()
	clock.advance(2 * time.Minute)
	rl.record()
	blocked, _ := rl.check()
	assert.False(t, blocked, "events outside the window do not count")

	rl.record()
	rl.record()
	blocked, retryAfter := rl.check()
	require.True(t, blocked)
	assert.Equal(t, policy.lockout, retryAfter)

	clock.advance(policy.lockout)
	blocked, _ = rl.check()
	assert.False(t, blocked)
}

func TestRetryAfterString(t *testing.T) {
	assert.Equal(t, "1", retryAfterString(0))
	assert.Equal(t, "1", retryAfterString(300*time.Millisecond))
	assert.Equal(t, "90", retryAfterString(90*time.Second))
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trusted    []string
		want       string
	}{
		{"remote addr only", "192.0.2.1:5555", nil, nil, "192.0.2.1"},
		{"ipv6 remote addr", "[2001:db8::1]:443", nil, nil, "2001:db8::1"},
		{"headers ignored without trusted proxies", "192.0.2.1:5555",
			map[string]string{"X-Forwarded-For": "198.51.100.7"}, nil, "192.0.2.1"},
		{"headers ignored from untrusted peer", "192.0.2.1:5555",
			map[string]string{"X-Forwarded-For": "198.51.100.7"}, []string{"10.0.0.0/8"}, "192.0.2.1"},
		{"xff from trusted proxy", "10.1.2.3:5555",
			map[string]string{"X-Forwarded-For": "198.51.100.7, 10.1.2.3"}, []string{"10.0.0.0/8"}, "198.51.100.7"},
		{"xff skips garbage", "10.1.2.3:5555",
			map[string]string{"X-Forwarded-For": "unknown, 198.51.100.8"}, []string{"10.0.0.0/8"}, "198.51.100.8"},
		{"forwarded header", "10.1.2.3:5555",
			map[string]string{"Forwarded": `for="[2001:db8::7]:4711";proto=https`}, []string{"10.0.0.0/8"}, "2001:db8::7"},
		{"x-real-ip", "10.1.2.3:5555",
			map[string]string{"X-Real-IP": "198.51.100.9"}, []string{"10.0.0.0/8"}, "198.51.100.9"},
		{"trusted proxy without headers", "10.1.2.3:5555", nil, []string{"10.0.0.0/8"}, "10.1.2.3"},
		{"zone dropped", "[fe80::1%eth0]:80", nil, nil, "fe80::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodPost, "/token", nil)
			require.NoError(t, err)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			var prefixes []netip.Prefix
			for _, p := range tt.trusted {
				prefixes = append(prefixes, netip.MustParsePrefix(p))
			}
			assert.Equal(t, tt.want, extractClientIPWithProxies(r, prefixes))
		})
	}
}

func TestAPIExtractClientIP_UsesConfiguredProxies(t *testing.T) {
	a := &API{trustedProxies: []netip.Prefix{netip.MustParsePrefix("127.0.0.1/32")}}
	r, err := http.NewRequest(http.MethodPost, "/token", nil)
	require.NoError(t, err)
	r.RemoteAddr = "127.0.0.1:9999"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "198.51.100.1", a.extractClientIP(r))
}
