package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-process limiter used when Redis is not reachable
// and in tests.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*fixedWindow
}

type fixedWindow struct {
	count   int64
	resetAt time.Time
}

// NewMemoryLimiter builds a limiter allowing limit hits per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*fixedWindow),
	}
}

// Allow records a hit for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	w, ok := l.windows[key]
	if !ok {
		w = &fixedWindow{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return decide(w.count, l.limit, w.resetAt.Sub(now)), nil
}

// Reset clears the window of key.
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// evict drops expired windows so idle callers do not accumulate.
func (l *MemoryLimiter) evict(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
