// Package metrics tracks per-plugin execution statistics and hosts the
// circuit breaker that gates repeatedly failing plugins.
package metrics

import (
	"sync"
	"time"
)

// ewmaAlpha weights new latency samples; ~20 samples of memory.
const ewmaAlpha = 0.1

// PluginStats is a snapshot of one plugin's counters.
type PluginStats struct {
	Plugin      string        `json:"plugin"`
	Attempts    int64         `json:"attempts"`
	Successes   int64         `json:"successes"`
	Timeouts    int64         `json:"timeouts"`
	Errors      int64         `json:"errors"`
	EWMALatency time.Duration `json:"ewma_latency"`
	LastError   string        `json:"last_error,omitempty"`
}

// SuccessRate is successes/attempts, 1.0 when unused.
func (s PluginStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 1.0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

type pluginEntry struct {
	stats PluginStats
}

// Collector aggregates counters for every plugin in the process.
type Collector struct {
	mu      sync.Mutex
	plugins map[string]*pluginEntry
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{plugins: make(map[string]*pluginEntry)}
}

func (c *Collector) entry(plugin string) *pluginEntry {
	e, ok := c.plugins[plugin]
	if !ok {
		e = &pluginEntry{stats: PluginStats{Plugin: plugin}}
		c.plugins[plugin] = e
	}
	return e
}

// RecordSuccess counts a successful plugin execution and folds the latency
// into the EWMA.
func (c *Collector) RecordSuccess(plugin string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(plugin)
	e.stats.Attempts++
	e.stats.Successes++
	e.stats.EWMALatency = ewma(e.stats.EWMALatency, latency)
}

// RecordTimeout counts a deadline-exceeded plugin execution.
func (c *Collector) RecordTimeout(plugin string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(plugin)
	e.stats.Attempts++
	e.stats.Timeouts++
	e.stats.EWMALatency = ewma(e.stats.EWMALatency, latency)
	e.stats.LastError = "timeout"
}

// RecordError counts a failed plugin execution.
func (c *Collector) RecordError(plugin string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(plugin)
	e.stats.Attempts++
	e.stats.Errors++
	e.stats.EWMALatency = ewma(e.stats.EWMALatency, latency)
	if err != nil {
		e.stats.LastError = err.Error()
	}
}

// Snapshot returns a copy of all plugin stats.
func (c *Collector) Snapshot() []PluginStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PluginStats, 0, len(c.plugins))
	for _, e := range c.plugins {
		out = append(out, e.stats)
	}
	return out
}

func ewma(current, sample time.Duration) time.Duration {
	if current == 0 {
		return sample
	}
	return time.Duration(float64(current)*(1-ewmaAlpha) + float64(sample)*ewmaAlpha)
}
