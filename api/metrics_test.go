package api

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alertRecorder struct {
	mu     sync.Mutex
	alerts []AlertEvent
}

func (r *alertRecorder) record(e AlertEvent) {
	r.mu.Lock()
	r.alerts = append(r.alerts, e)
	r.mu.Unlock()
}

func (r *alertRecorder) snapshot() []AlertEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AlertEvent(nil), r.alerts...)
}

func TestLoginFailureSpikeAlert(t *testing.T) {
	var rec alertRecorder
	collector := newMetricsCollector(rec.record)
	collector.loginFailures.threshold = 5

	for range 4 {
		collector.recordEvent(AuditLoginFailure)
	}
	assert.Empty(t, rec.snapshot(), "no alert below threshold")

	collector.recordEvent(AuditLoginFailure)
	alerts := rec.snapshot()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLoginFailureSpike, alerts[0].Type)
	assert.Equal(t, 5, alerts[0].Count)
	assert.Equal(t, 5, alerts[0].Threshold)

	// The counter resets after alerting.
	collector.recordEvent(AuditLoginFailure)
	assert.Len(t, rec.snapshot(), 1)
}

func TestRevealFailureSpikeAlert(t *testing.T) {
	var rec alertRecorder
	collector := newMetricsCollector(rec.record)
	collector.revealFailures.threshold = 3

	for range 3 {
		collector.recordEvent(AuditRevealFailure)
	}
	alerts := rec.snapshot()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRevealFailureSpike, alerts[0].Type)
}

func TestSpikeWindowExpires(t *testing.T) {
	var rec alertRecorder
	collector := newMetricsCollector(rec.record)
	collector.loginFailures.threshold = 3
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	collector.now = func() time.Time { return now }

	collector.recordEvent(AuditLoginFailure)
	collector.recordEvent(AuditLoginFailure)
	now = now.Add(2 * defaultLoginFailureWindow)
	collector.recordEvent(AuditLoginFailure)

	assert.Empty(t, rec.snapshot(), "old failures fall out of the window")
}

func TestUnrelatedEventsIgnored(t *testing.T) {
	var rec alertRecorder
	collector := newMetricsCollector(rec.record)
	collector.loginFailures.threshold = 1
	collector.revealFailures.threshold = 1

	collector.recordEvent(AuditLoginSuccess)
	collector.recordEvent(AuditEntryCreated)
	collector.recordEvent(AuditEntryRevealed)
	assert.Empty(t, rec.snapshot())
}

func TestNilCollectorIsNoop(t *testing.T) {
	var collector *metricsCollector
	assert.NotPanics(t, func() { collector.recordEvent(AuditLoginFailure) })

	noAlert := newMetricsCollector(nil)
	assert.NotPanics(t, func() { noAlert.recordEvent(AuditLoginFailure) })
}

func TestTrimWindow(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(30 * time.Second), base.Add(90 * time.Second)}

	got := trimWindow(times, base.Add(2*time.Minute), time.Minute)
	assert.Equal(t, []time.Time{base.Add(90 * time.Second)}, got)
	assert.Empty(t, trimWindow(times, base.Add(time.Hour), time.Minute))
}
