package metrics

import (
	"sync"
	"time"
)

// BreakerState is the circuit state for one plugin.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// BreakerConfig tunes the per-plugin circuit breaker.
type BreakerConfig struct {
	ErrorThreshold   int           // consecutive failures before opening
	CoolDown         time.Duration // open duration before half-open
	ExtendedCoolDown time.Duration // re-open duration after a failed probe
}

// DefaultBreakerConfig matches the documented state machine: open after 5
// consecutive failures, probe after 30s, extended 2m cool-down on re-open.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ErrorThreshold:   5,
		CoolDown:         30 * time.Second,
		ExtendedCoolDown: 2 * time.Minute,
	}
}

type breakerEntry struct {
	state      BreakerState
	failures   int
	openedAt   time.Time
	coolDown   time.Duration
	probeInUse bool
}

// BreakerTable holds one breaker per plugin.
type BreakerTable struct {
	mu      sync.Mutex
	cfg     BreakerConfig
	entries map[string]*breakerEntry
	now     func() time.Time
}

// NewBreakerTable creates a breaker table.
func NewBreakerTable(cfg BreakerConfig) *BreakerTable {
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.ExtendedCoolDown <= 0 {
		cfg.ExtendedCoolDown = 2 * time.Minute
	}
	return &BreakerTable{
		cfg:     cfg,
		entries: make(map[string]*breakerEntry),
		now:     time.Now,
	}
}

func (t *BreakerTable) entry(plugin string) *breakerEntry {
	e, ok := t.entries[plugin]
	if !ok {
		e = &breakerEntry{state: StateClosed, coolDown: t.cfg.CoolDown}
		t.entries[plugin] = e
	}
	return e
}

// Allow reports whether the plugin may execute. In half-open exactly one
// probe is admitted; further callers are rejected until it reports.
func (t *BreakerTable) Allow(plugin string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(plugin)
	switch e.state {
	case StateClosed:
		return true
	case StateOpen:
		if t.now().Sub(e.openedAt) >= e.coolDown {
			e.state = StateHalfOpen
			e.probeInUse = true
			return true
		}
		return false
	case StateHalfOpen:
		if e.probeInUse {
			return false
		}
		e.probeInUse = true
		return true
	}
	return false
}

// ReportSuccess records a successful execution: a half-open probe success
// closes the circuit.
func (t *BreakerTable) ReportSuccess(plugin string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(plugin)
	e.failures = 0
	e.probeInUse = false
	if e.state == StateHalfOpen || e.state == StateOpen {
		e.state = StateClosed
		e.coolDown = t.cfg.CoolDown
	}
}

// ReportFailure records a failed execution. At the threshold the circuit
// opens; a failed half-open probe re-opens with the extended cool-down.
func (t *BreakerTable) ReportFailure(plugin string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(plugin)
	switch e.state {
	case StateHalfOpen:
		e.state = StateOpen
		e.openedAt = t.now()
		e.coolDown = t.cfg.ExtendedCoolDown
		e.probeInUse = false
	default:
		e.failures++
		if e.failures >= t.cfg.ErrorThreshold {
			e.state = StateOpen
			e.openedAt = t.now()
			e.coolDown = t.cfg.CoolDown
			e.failures = 0
		}
	}
}

// State returns the current state for a plugin.
func (t *BreakerTable) State(plugin string) BreakerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entry(plugin).state
}

// Snapshot returns every plugin's breaker state.
func (t *BreakerTable) Snapshot() map[string]BreakerState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]BreakerState, len(t.entries))
	for name, e := range t.entries {
		out[name] = e.state
	}
	return out
}

// SetClock overrides the time source for tests.
func (t *BreakerTable) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}
