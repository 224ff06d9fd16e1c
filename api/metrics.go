package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike  AlertType = "login_failure_spike"
	AlertRevealFailureSpike AlertType = "reveal_failure_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// spikeCounter is a sliding window of event times.
type spikeCounter struct {
	alert     AlertType
	message   string
	window    time.Duration
	threshold int
	times     []time.Time
}

// metricsCollector watches audit events for server-wide failure spikes.
type metricsCollector struct {
	mu  sync.Mutex
	now func() time.Time

	loginFailures  spikeCounter
	revealFailures spikeCounter

	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow     = 1 * time.Minute
	defaultLoginFailureThreshold  = 50
	defaultRevealFailureWindow    = 5 * time.Minute
	defaultRevealFailureThreshold = 25
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		now: time.Now,
		loginFailures: spikeCounter{
			alert:     AlertLoginFailureSpike,
			message:   "login failure rate exceeds threshold",
			window:    defaultLoginFailureWindow,
			threshold: defaultLoginFailureThreshold,
		},
		revealFailures: spikeCounter{
			alert:     AlertRevealFailureSpike,
			message:   "failed decrypt rate exceeds threshold",
			window:    defaultRevealFailureWindow,
			threshold: defaultRevealFailureThreshold,
		},
		alertFn: alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch event {
	case AuditLoginFailure:
		m.record(&m.loginFailures)
	case AuditRevealFailure:
		m.record(&m.revealFailures)
	}
}

func (m *metricsCollector) record(c *spikeCounter) {
	m.mu.Lock()
	now := m.now()
	c.times = trimWindow(append(c.times, now), now, c.window)
	var alert *AlertEvent
	if len(c.times) >= c.threshold {
		alert = &AlertEvent{
			Type:      c.alert,
			Message:   c.message,
			Count:     len(c.times),
			Threshold: c.threshold,
			Timestamp: now,
		}
		// Reset to avoid repeated alerts within the same spike.
		c.times = c.times[:0]
	}
	m.mu.Unlock()

	if alert != nil {
		m.alertFn(*alert)
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
