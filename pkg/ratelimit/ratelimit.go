// Package ratelimit provides an in-process per-principal request
// throttle in front of the Auth Guard. It has no distributed backing
// store: the service does not replicate, so a process-local window is
// sufficient.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a request for key is allowed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// SlidingWindowLimiter allows at most limit requests per windowSize for
// any given key.
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string][]time.Time
	limit      int
	windowSize time.Duration
}

func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string][]time.Time),
		limit:      limit,
		windowSize: windowSize,
	}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.windowSize)

	requests := l.windows[key]
	kept := requests[:0]
	for _, t := range requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.windows[key] = kept
		return false
	}

	l.windows[key] = append(kept, now)
	return true
}

// PrincipalLimiter wraps a Limiter keyed by authenticated user.
type PrincipalLimiter struct {
	limiter Limiter
}

func NewPrincipalLimiter(requestsPerMinute int) *PrincipalLimiter {
	return &PrincipalLimiter{limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute)}
}

func (l *PrincipalLimiter) Allow(ctx context.Context, user string) bool {
	return l.limiter.Allow(ctx, user)
}
