package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "POST", 201, 10*time.Millisecond)
	m.RecordRequest("/api/tickets", "POST", 201, 30*time.Millisecond)
	m.RecordRequest("/api/approvals/:id/approve", "POST", 409, time.Millisecond)
	m.RecordError("/api/approvals/:id/approve", "POST", "INVALID_STATE")
	m.RecordRateLimited()

	snap := m.Snapshot()
	require.Len(t, snap.Requests, 2)
	assert.Equal(t, "POST /api/approvals/:id/approve 409", snap.Requests[0].Key)
	assert.Equal(t, "POST /api/tickets 201", snap.Requests[1].Key)
	assert.Equal(t, int64(2), snap.Requests[1].Count)
	assert.InDelta(t, 20.0, snap.Requests[1].AvgLatencyMS, 0.001)
	assert.Equal(t, int64(1), snap.Errors["POST /api/approvals/:id/approve INVALID_STATE"])
	assert.Equal(t, int64(1), snap.RateLimited)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordRateLimited()
	assert.Empty(t, m.Snapshot().Requests)
}
