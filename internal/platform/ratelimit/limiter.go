// Package ratelimit throttles expensive API calls per client with an
// in-memory sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window frees a slot.
func (r Result) RetryAfter(now time.Time) int {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Limiter allows up to limit units of cost per key within a sliding
// window. It is process-local.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string][]time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one unit for key if it fits.
func (l *Limiter) Allow(key string) Result { return l.AllowN(key, 1) }

// AllowN records cost units for key if they all fit. A rejected call
// records nothing.
func (l *Limiter) AllowN(key string, cost int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := expire(l.windows[key], now.Add(-l.window))
	if len(stamps)+cost > l.limit {
		l.windows[key] = stamps
		reset := now.Add(l.window)
		if len(stamps) > 0 {
			reset = stamps[0].Add(l.window)
		}
		return Result{Allowed: false, Limit: l.limit, ResetAt: reset}
	}
	for range cost {
		stamps = append(stamps, now)
	}
	l.windows[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(stamps),
		ResetAt:   stamps[0].Add(l.window),
	}
}

// Prune drops keys with no stamps left in the window.
func (l *Limiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	for key, stamps := range l.windows {
		if stamps = expire(stamps, cutoff); len(stamps) == 0 {
			delete(l.windows, key)
		} else {
			l.windows[key] = stamps
		}
	}
}

func expire(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
