package httpapi

import (
	"sync"
	"time"
)

// loginLimiter throttles credential-guessing surfaces (login and password
// reset requests) per key within a sliding window.
type loginLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string][]time.Time
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{
		window:  5 * time.Minute,
		max:     10,
		entries: make(map[string][]time.Time),
	}
}

// AllowAll checks every key in order and records the attempt against each
// key that passes. Handlers throttle on both the client address and the
// targeted account.
func (l *loginLimiter) AllowAll(now time.Time, keys ...string) bool {
	for _, key := range keys {
		if !l.Allow(key, now) {
			return false
		}
	}
	return true
}

func (l *loginLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	ts := l.entries[key]

	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	ts = kept
	if len(ts) >= l.max {
		l.entries[key] = ts
		return false
	}

	ts = append(ts, now)
	l.entries[key] = ts
	return true
}
