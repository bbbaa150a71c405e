package timeutil

// RemoteValue mirrors a value that is held remotely (on a driver, on an
// engine) and written through with at most one write in flight at a time.
// A newer local change supersedes an un-sent one rather than queuing
// behind it - spec.md §4.5, "a newer local change supersedes an un-sent
// one".
type RemoteValue[T comparable] struct {
	desired      Timestamped[T]
	acked        Timestamped[T]
	inFlight     bool
	inFlightVer  uint64
	nextVersion  uint64
	forceFlush   bool
	retryTracker RequestTracker
}

// NewRemoteValue creates a RemoteValue whose desired and last-acked
// value both start at initial.
func NewRemoteValue[T comparable](initial T) *RemoteValue[T] {
	rv := &RemoteValue[T]{
		desired: Now(initial),
		acked:   Now(initial),
	}
	rv.retryTracker = *NewRequestTracker()
	return rv
}

// Set updates the desired value. If a write for the previous desired
// value is in flight and unacked, this supersedes it: the in-flight
// version is abandoned and a fresh version is issued on the next
// StartUpdate.
func (rv *RemoteValue[T]) Set(value T) {
	if rv.desired.Value() == value && !rv.forceFlush {
		return
	}
	rv.desired = Now(value)
	if rv.inFlight {
		rv.inFlight = false
		// Invalidate the abandoned write's version so a late FinishUpdate
		// for it can't be mistaken for an ack of the new desired value.
		rv.inFlightVer = 0
	}
	rv.retryTracker.Reset()
}

// Flush forces a re-send on the next StartUpdate even without a local
// change - used when a driver reconnects and local/remote state may have
// diverged silently (spec.md §4.5 "flush() forces a re-send").
func (rv *RemoteValue[T]) Flush() {
	rv.forceFlush = true
	rv.retryTracker.Reset()
}

// Desired returns the current target value.
func (rv *RemoteValue[T]) Desired() T { return rv.desired.Value() }

// Acked returns the last value the remote end confirmed.
func (rv *RemoteValue[T]) Acked() T { return rv.acked.Value() }

// IsSatisfied reports whether the last acked value already matches desired
// and no flush was requested.
func (rv *RemoteValue[T]) IsSatisfied() bool {
	return !rv.forceFlush && rv.acked.Value() == rv.desired.Value()
}

// StartUpdate returns (version, value, true) if a write is warranted: the
// remote value is not yet acked to the desired value (or a flush was
// requested) AND no write is currently in flight AND the retry window has
// elapsed. Calling it when no write is warranted returns (0, zero, false).
func (rv *RemoteValue[T]) StartUpdate() (uint64, T, bool) {
	var zero T
	if rv.inFlight {
		return 0, zero, false
	}
	if rv.IsSatisfied() {
		return 0, zero, false
	}
	if !rv.retryTracker.ShouldRetry() {
		return 0, zero, false
	}

	rv.nextVersion++
	rv.inFlightVer = rv.nextVersion
	rv.inFlight = true
	rv.retryTracker.Retried()

	return rv.inFlightVer, rv.desired.Value(), true
}

// FinishUpdate acks (or fails) the write that StartUpdate returned
// version for. A version mismatch (a superseded write acking late) is
// ignored. On success the acked value becomes the value that was in
// flight for that version, and forceFlush is cleared.
func (rv *RemoteValue[T]) FinishUpdate(version uint64, success bool) {
	if version != rv.inFlightVer {
		return
	}
	rv.inFlight = false
	if success {
		rv.acked = Now(rv.desired.Value())
		rv.forceFlush = false
	}
}

// HasInFlightWrite reports whether a write is currently outstanding -
// exercised by the "at most one in-flight write" property test.
func (rv *RemoteValue[T]) HasInFlightWrite() bool { return rv.inFlight }
