package matchmaker

import (
	"sync"
	"time"
)

// slidingWindowLimiter caps events per key within a rolling window. Used
// to keep component spam in a single channel from flooding handlers.
type slidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
}

func newSlidingWindowLimiter(limit int, window time.Duration) *slidingWindowLimiter {
	return &slidingWindowLimiter{
		limit:  limit,
		window: window,
		events: map[string][]time.Time{},
	}
}

// Allow records an event for key and reports whether it fits within the
// window.
func (l *slidingWindowLimiter) Allow(key string) bool {
	return l.allowAt(key, time.Now())
}

func (l *slidingWindowLimiter) allowAt(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	recent := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.events[key] = recent
		return false
	}
	l.events[key] = append(recent, now)
	return true
}
