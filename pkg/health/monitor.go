package health

import (
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

// default circuit breaker thresholds
const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 2
	defaultProbeAfter       = 5 * time.Minute
)

// Record holds per-source health metrics. Created on the first fetch
// attempt and kept for the process lifetime; Prune removes records for
// sources that never produced traffic.
type Record struct {
	SourceName           string        `json:"source_name"`
	Enabled              bool          `json:"enabled"`
	Disabled             bool          `json:"disabled"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	TotalRequests        int           `json:"total_requests"`
	TotalSuccesses       int           `json:"total_successes"`
	TotalFailures        int           `json:"total_failures"`
	LastSuccess          time.Time     `json:"last_success,omitempty"`
	LastFailure          time.Time     `json:"last_failure,omitempty"`
	LastAttempt          time.Time     `json:"last_attempt,omitempty"`
	AvgResponseTime      time.Duration `json:"avg_response_time"`
	LastResponseTime     time.Duration `json:"last_response_time"`
	LastItemCount        int           `json:"last_item_count"`
	LastError            string        `json:"last_error,omitempty"`
	DisabledAt           time.Time     `json:"disabled_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
}

// SuccessRate returns the fraction of successful requests, 0 if none made
func (r *Record) SuccessRate() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return float64(r.TotalSuccesses) / float64(r.TotalRequests)
}

// Monitor is a per-source circuit breaker. A source moves to disabled after
// failureThreshold consecutive failures and back to enabled after
// successThreshold consecutive successes. Consecutive counters use strict
// semantics: a success zeroes the failure counter and vice versa.
type Monitor struct {
	failureThreshold int
	successThreshold int
	probeAfter       time.Duration
	now              func() time.Time

	mu      sync.Mutex
	records map[string]*Record
}

// Option modifies monitor construction
type Option func(*Monitor)

// WithThresholds overrides the failure/success thresholds
func WithThresholds(failures, successes int) Option {
	return func(m *Monitor) {
		m.failureThreshold = failures
		m.successThreshold = successes
	}
}

// WithProbeAfter sets how long a disabled source waits before it is probed again
func WithProbeAfter(d time.Duration) Option {
	return func(m *Monitor) { m.probeAfter = d }
}

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a health monitor with default thresholds
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		probeAfter:       defaultProbeAfter,
		now:              time.Now,
		records:          map[string]*Record{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// record returns the health record for a source, creating it on first use.
// Caller must hold the lock.
func (m *Monitor) record(sourceName string) *Record {
	rec, ok := m.records[sourceName]
	if !ok {
		rec = &Record{SourceName: sourceName, Enabled: true, CreatedAt: m.now()}
		m.records[sourceName] = rec
	}
	return rec
}

// RecordSuccess registers a successful fetch with its latency and item count
func (m *Monitor) RecordSuccess(sourceName string, latency time.Duration, itemCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(sourceName)
	now := m.now()
	rec.LastSuccess = now
	rec.LastAttempt = now
	rec.ConsecutiveFailures = 0
	rec.ConsecutiveSuccesses++
	rec.TotalRequests++
	rec.TotalSuccesses++
	rec.LastResponseTime = latency
	rec.LastItemCount = itemCount

	// exponential moving average of response time
	if rec.AvgResponseTime == 0 {
		rec.AvgResponseTime = latency
	} else {
		rec.AvgResponseTime = time.Duration(float64(rec.AvgResponseTime)*0.9 + float64(latency)*0.1)
	}

	if rec.Disabled && rec.ConsecutiveSuccesses >= m.successThreshold {
		rec.Disabled = false
		rec.DisabledAt = time.Time{}
		lgr.Printf("[INFO] re-enabled source %s after %d consecutive successes", sourceName, rec.ConsecutiveSuccesses)
	}
}

// RecordFailure registers a failed fetch
func (m *Monitor) RecordFailure(sourceName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(sourceName)
	now := m.now()
	rec.LastFailure = now
	rec.LastAttempt = now
	rec.ConsecutiveSuccesses = 0
	rec.ConsecutiveFailures++
	rec.TotalRequests++
	rec.TotalFailures++
	if err != nil {
		rec.LastError = err.Error()
	}

	if rec.ConsecutiveFailures >= m.failureThreshold && !rec.Disabled {
		rec.Disabled = true
		rec.DisabledAt = now
		lgr.Printf("[WARN] disabled source %s after %d consecutive failures: %v", sourceName, rec.ConsecutiveFailures, err)
	}
}

// IsHealthy reports whether the source should participate in the next fan-out
func (m *Monitor) IsHealthy(sourceName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(sourceName)
	return rec.Enabled && !rec.Disabled
}

// ShouldProbe reports whether a disabled source is due a reduced-priority
// probe, which is how it earns its consecutive successes back
func (m *Monitor) ShouldProbe(sourceName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(sourceName)
	if !rec.Enabled || !rec.Disabled {
		return false
	}
	return m.now().Sub(rec.LastAttempt) >= m.probeAfter
}

// Enable manually enables a source and clears the breaker state
func (m *Monitor) Enable(sourceName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(sourceName)
	rec.Enabled = true
	rec.Disabled = false
	rec.ConsecutiveFailures = 0
	rec.DisabledAt = time.Time{}
	lgr.Printf("[INFO] source %s manually enabled", sourceName)
}

// Disable manually disables a source until Enable is called
func (m *Monitor) Disable(sourceName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(sourceName)
	rec.Enabled = false
	rec.Disabled = true
	rec.DisabledAt = m.now()
	lgr.Printf("[INFO] source %s manually disabled", sourceName)
}

// Status returns a snapshot of all health records, keyed by source name
func (m *Monitor) Status() map[string]Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := make(map[string]Record, len(m.records))
	for name, rec := range m.records {
		status[name] = *rec
	}
	return status
}

// Prune removes records that never produced traffic and are older than maxAge
func (m *Monitor) Prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	pruned := 0
	for name, rec := range m.records {
		if rec.TotalRequests == 0 && rec.CreatedAt.Before(cutoff) {
			delete(m.records, name)
			pruned++
		}
	}
	if pruned > 0 {
		lgr.Printf("[INFO] pruned %d stale source health records", pruned)
	}
	return pruned
}
