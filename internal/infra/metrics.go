package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	refreshesTotal  atomic.Uint64
	refreshFailures atomic.Uint64
	refreshSkipped  atomic.Uint64
	alertsFired     atomic.Uint64
	eventsPublished atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeClients atomic.Int32
	lastSuccessNs atomic.Int64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordRefresh records a successful refresh with its latency.
func (m *Metrics) RecordRefresh(latency time.Duration) {
	m.refreshesTotal.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
	m.lastSuccessNs.Store(time.Now().UnixNano())
}

// RecordError records a failed refresh.
func (m *Metrics) RecordError() {
	m.refreshFailures.Add(1)
}

// RecordSkipped records a refresh tick skipped because one was in flight.
func (m *Metrics) RecordSkipped() {
	m.refreshSkipped.Add(1)
}

// RecordAlerts records fired alerts.
func (m *Metrics) RecordAlerts(n int) {
	if n > 0 {
		m.alertsFired.Add(uint64(n))
	}
}

// RecordEvent records an event pushed to the notification sink.
func (m *Metrics) RecordEvent() {
	m.eventsPublished.Add(1)
}

// IncrementClients increments connected notification clients by 1.
func (m *Metrics) IncrementClients() {
	m.activeClients.Add(1)
}

// DecrementClients decrements connected notification clients by 1.
func (m *Metrics) DecrementClients() {
	m.activeClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	RefreshesTotal  uint64    `json:"refreshes_total"`
	RefreshFailures uint64    `json:"refresh_failures"`
	RefreshSkipped  uint64    `json:"refresh_skipped"`
	AlertsFired     uint64    `json:"alerts_fired"`
	EventsPublished uint64    `json:"events_published"`
	AvgLatencyMs    float64   `json:"avg_latency_ms"`
	ActiveClients   int32     `json:"active_clients"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency float64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = float64(m.latencySumNs.Load()) / float64(count) / float64(time.Millisecond)
	}

	var last time.Time
	if ns := m.lastSuccessNs.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}

	return MetricsSnapshot{
		RefreshesTotal:  m.refreshesTotal.Load(),
		RefreshFailures: m.refreshFailures.Load(),
		RefreshSkipped:  m.refreshSkipped.Load(),
		AlertsFired:     m.alertsFired.Load(),
		EventsPublished: m.eventsPublished.Load(),
		AvgLatencyMs:    avgLatency,
		ActiveClients:   m.activeClients.Load(),
		LastSuccess:     last,
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.refreshesTotal.Store(0)
	m.refreshFailures.Store(0)
	m.refreshSkipped.Store(0)
	m.alertsFired.Store(0)
	m.eventsPublished.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeClients.Store(0)
	m.lastSuccessNs.Store(0)
}
