package ratelimit

import (
	"sync"
	"time"
)

// Action types metered by the daily limiter.
const (
	ActionVisit   = "visit"
	ActionConnect = "connect"
	ActionMessage = "message"
	ActionFollow  = "follow"
)

// Limiter keeps in-memory per-action-type daily counters with UTC-day
// rollover. Safe for concurrent use across account workers.
type Limiter struct {
	mu       sync.Mutex
	limits   map[string]int
	counters map[string]int
	day      string
	now      func() time.Time
}

// NewLimiter creates a limiter with the given per-action daily limits.
// An action without an entry is unlimited.
func NewLimiter(limits map[string]int) *Limiter {
	l := &Limiter{
		limits:   make(map[string]int, len(limits)),
		counters: make(map[string]int),
		now:      time.Now,
	}
	for k, v := range limits {
		l.limits[k] = v
	}
	l.day = utcDay(l.now())
	return l
}

// SetNowFunc overrides the clock, for tests.
func (l *Limiter) SetNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// SetLimit sets the daily limit for an action type.
func (l *Limiter) SetLimit(action string, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[action] = limit
}

// CanPerform reports whether the action is still under its daily limit.
func (l *Limiter) CanPerform(action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()

	limit, ok := l.limits[action]
	if !ok {
		return true
	}
	return l.counters[action] < limit
}

// Record counts one performed action against today's quota.
func (l *Limiter) Record(action string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()
	l.counters[action]++
}

// Remaining returns how many actions of this type are left today.
// Unlimited actions return -1.
func (l *Limiter) Remaining(action string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()

	limit, ok := l.limits[action]
	if !ok {
		return -1
	}
	left := limit - l.counters[action]
	if left < 0 {
		return 0
	}
	return left
}

// rolloverLocked resets all counters when the UTC day has changed.
func (l *Limiter) rolloverLocked() {
	today := utcDay(l.now())
	if today != l.day {
		l.day = today
		l.counters = make(map[string]int)
	}
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
