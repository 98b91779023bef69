package generator

import (
	"sync"
	"time"
)

// QuotaGuard tracks consecutive quota failures and the resulting pause. The
// n-th consecutive failure pauses for base·2^n, capped at max.
type QuotaGuard struct {
	mu       sync.Mutex
	base     time.Duration
	max      time.Duration
	failures int
	until    time.Time
	now      func() time.Time
}

// NewQuotaGuard creates a guard with the given backoff bounds
func NewQuotaGuard(base, max time.Duration) *QuotaGuard {
	return &QuotaGuard{base: base, max: max, now: time.Now}
}

// Fail records a quota failure and returns the new pause length
func (q *QuotaGuard) Fail() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.failures++
	pause := q.max
	if shift := q.failures; shift < 32 {
		if d := q.base << shift; d > 0 && d < q.max {
			pause = d
		}
	}
	q.until = q.now().Add(pause)
	return pause
}

// Succeed clears the failure streak
func (q *QuotaGuard) Succeed() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failures = 0
	q.until = time.Time{}
}

// Paused reports whether calls should be skipped, and until when
func (q *QuotaGuard) Paused() (bool, time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.until.IsZero() || !q.now().Before(q.until) {
		return false, time.Time{}
	}
	return true, q.until
}

// Failures returns the number of consecutive quota failures
func (q *QuotaGuard) Failures() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failures
}
