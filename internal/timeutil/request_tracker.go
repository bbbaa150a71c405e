package timeutil

import "time"

// DefaultRetryInterval is the retry-rate limit spec.md §4.5 calls "rate
// limited to one request per ~1s", and matches the original
// RequestTracker's default of 1000ms.
const DefaultRetryInterval = time.Second

// RequestTracker rate-limits retries of a desired-vs-actual reconciliation
// request. It does not hold the desired/actual values themselves (those
// vary in shape per caller - power bool, play state enum, ...); it only
// tracks when the last request went out and when the next one is allowed.
type RequestTracker struct {
	retryInterval time.Duration
	lastRequestAt time.Time
	nextRequestAt time.Time
}

// NewRequestTracker returns a tracker that allows an immediate first retry.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{retryInterval: DefaultRetryInterval}
}

// SetRetryInterval overrides the default 1s retry rate limit.
func (t *RequestTracker) SetRetryInterval(d time.Duration) {
	t.retryInterval = d
}

// ShouldRetry reports whether enough time has elapsed since the last
// request (or no request has ever been sent) to justify sending another.
func (t *RequestTracker) ShouldRetry() bool {
	return time.Now().After(t.nextRequestAt) || time.Now().Equal(t.nextRequestAt)
}

// Retried records that a request was just dispatched, resetting the
// retry window.
func (t *RequestTracker) Retried() {
	now := time.Now()
	t.lastRequestAt = now
	interval := t.retryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	t.nextRequestAt = now.Add(interval)
}

// Reset clears the retry window so the very next ShouldRetry call
// succeeds - used when the desired state changes and any backoff from
// the previous desired state no longer applies.
func (t *RequestTracker) Reset() {
	t.lastRequestAt = time.Time{}
	t.nextRequestAt = time.Time{}
}

// LastRequestAt returns the zero time if no request has ever been sent.
func (t *RequestTracker) LastRequestAt() time.Time {
	return t.lastRequestAt
}
