package engine

import (
	"sync"
	"time"
)

// rateWindow is the rolling window alert creations are counted over.
const rateWindow = time.Hour

// RateLimiter decides whether a new alert of a given type may be created
// right now. It keeps a rolling one-hour window of accepted creations and a
// per-type last-fired map for cooldowns. Rejected attempts are never
// recorded.
type RateLimiter struct {
	mu         sync.Mutex
	timestamps []time.Time
	lastByType map[string]time.Time
}

// NewRateLimiter creates an empty rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		timestamps: make([]time.Time, 0, 16),
		lastByType: make(map[string]time.Time),
	}
}

// Allow checks the rolling window and the per-type cooldown, recording the
// attempt only when it is accepted.
func (r *RateLimiter) Allow(alertType string, maxPerHour int, cooldown time.Duration) bool {
	return r.AllowAt(alertType, maxPerHour, cooldown, time.Now())
}

// AllowAt is Allow with an explicit clock, for tests.
func (r *RateLimiter) AllowAt(alertType string, maxPerHour int, cooldown time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(now)

	if len(r.timestamps) >= maxPerHour {
		return false
	}
	if last, ok := r.lastByType[alertType]; ok && cooldown > 0 && now.Sub(last) < cooldown {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	r.lastByType[alertType] = now
	return true
}

// Remaining returns how many creations the rolling window still admits.
func (r *RateLimiter) Remaining(maxPerHour int) int {
	return r.RemainingAt(maxPerHour, time.Now())
}

// RemainingAt is Remaining with an explicit clock, for tests.
func (r *RateLimiter) RemainingAt(maxPerHour int, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(now)
	remaining := maxPerHour - len(r.timestamps)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// pruneLocked drops entries older than the window. Caller holds mu.
func (r *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-rateWindow)
	idx := 0
	for idx < len(r.timestamps) && r.timestamps[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		copy(r.timestamps, r.timestamps[idx:])
		r.timestamps = r.timestamps[:len(r.timestamps)-idx]
	}
}

// Reset clears all recorded state.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.timestamps = r.timestamps[:0]
	r.lastByType = make(map[string]time.Time)
}
