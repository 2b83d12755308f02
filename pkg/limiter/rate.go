package limiter

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitedError reports an endpoint over its per-minute allowance.
type RateLimitedError struct {
	Limit int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit of %d requests per minute exceeded", e.Limit)
}

// RateLimiter counts requests per endpoint in fixed one-minute windows
// aligned to wall-clock minute boundaries. The counter resets when the
// window rolls over; a rejected request does not increment the count.
// It is safe for concurrent use.
type RateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*rateWindow
	lastSweep time.Time
	now       func() time.Time
}

type rateWindow struct {
	start time.Time
	count int
}

// NewRateLimiter creates an empty per-endpoint rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Allow records one request against the endpoint's current window and
// returns a RateLimitedError when the window is already at the limit.
// A limit <= 0 disables the check.
func (l *RateLimiter) Allow(endpointID string, limit int) error {
	if limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	minute := now.Truncate(time.Minute)

	w := l.windows[endpointID]
	if w == nil || !w.start.Equal(minute) {
		w = &rateWindow{start: minute}
		l.windows[endpointID] = w
	}

	if w.count >= limit {
		return &RateLimitedError{Limit: limit}
	}
	w.count++

	l.sweepLocked(minute)
	return nil
}

// Count returns the number of requests recorded in the endpoint's current
// window.
func (l *RateLimiter) Count(endpointID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[endpointID]
	if w == nil || !w.start.Equal(l.now().Truncate(time.Minute)) {
		return 0
	}
	return w.count
}

// Reset drops all windows, e.g. when the endpoint set is replaced.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string]*rateWindow)
}

// sweepLocked drops windows from past minutes, at most once per minute,
// so deleted endpoints do not leak counters. Caller holds l.mu.
func (l *RateLimiter) sweepLocked(minute time.Time) {
	if minute.Equal(l.lastSweep) {
		return
	}
	l.lastSweep = minute
	for id, w := range l.windows {
		if w.start.Before(minute) {
			delete(l.windows, id)
		}
	}
}
