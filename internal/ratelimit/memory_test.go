package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	d, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, time.Minute, d.ResetAfter)

	now = now.Add(10 * time.Second)
	d, _ = l.Allow(ctx, "alice")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, _ = l.Allow(ctx, "alice")
	assert.False(t, d.Allowed)
	assert.Equal(t, 50*time.Second, d.ResetAfter)

	d, _ = l.Allow(ctx, "bob")
	assert.True(t, d.Allowed, "keys are independent")

	now = now.Add(50 * time.Second)
	d, _ = l.Allow(ctx, "alice")
	assert.True(t, d.Allowed, "window expired")
	assert.Equal(t, 1, d.Remaining)
}

func TestMemoryLimiter_Reset(t *testing.T) {
	l := NewMemoryLimiter(1, time.Hour)
	ctx := context.Background()

	d, _ := l.Allow(ctx, "alice")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "alice")
	assert.False(t, d.Allowed)

	require.NoError(t, l.Reset(ctx, "alice"))
	d, _ = l.Allow(ctx, "alice")
	assert.True(t, d.Allowed)
}
