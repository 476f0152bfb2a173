package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.RecordSuccess("site", 100*time.Millisecond)
	c.RecordSuccess("site", 100*time.Millisecond)
	c.RecordTimeout("site", 90*time.Second)
	c.RecordError("site", 50*time.Millisecond, errors.New("connection refused"))

	snapshot := c.Snapshot()
	require.Len(t, snapshot, 1)

	stats := snapshot[0]
	assert.Equal(t, "site", stats.Plugin)
	assert.Equal(t, int64(4), stats.Attempts)
	assert.Equal(t, int64(2), stats.Successes)
	assert.Equal(t, int64(1), stats.Timeouts)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, "connection refused", stats.LastError)
	assert.Equal(t, 0.5, stats.SuccessRate())
}

func TestCollector_EWMALatency(t *testing.T) {
	c := NewCollector()

	// First sample seeds the average directly.
	c.RecordSuccess("site", 100*time.Millisecond)
	stats := c.Snapshot()[0]
	assert.Equal(t, 100*time.Millisecond, stats.EWMALatency)

	// A slower sample moves the average up, but only by the sample weight.
	c.RecordSuccess("site", 1100*time.Millisecond)
	stats = c.Snapshot()[0]
	assert.Greater(t, stats.EWMALatency, 100*time.Millisecond)
	assert.Less(t, stats.EWMALatency, 1100*time.Millisecond)
}

func TestSuccessRate_NoAttempts(t *testing.T) {
	assert.Equal(t, 1.0, PluginStats{}.SuccessRate())
}
