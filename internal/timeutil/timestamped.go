// Package timeutil provides the small state-tracking primitives shared by
// every component that has to reconcile a desired value against an actual
// one: Timestamped, RequestTracker and RemoteValue.
package timeutil

import "time"

// Timestamped pairs a value with the monotonic instant at which it was
// created. A Timestamped is immutable; producing a new value means
// constructing a new Timestamped, never mutating the instant in place.
type Timestamped[T any] struct {
	value   T
	created time.Time
}

// Now wraps value with the current instant.
func Now[T any](value T) Timestamped[T] {
	return Timestamped[T]{value: value, created: time.Now()}
}

// Value returns the wrapped value.
func (t Timestamped[T]) Value() T { return t.value }

// Elapsed returns the time since creation.
func (t Timestamped[T]) Elapsed() time.Duration { return time.Since(t.created) }

// CreatedAt returns the creation instant.
func (t Timestamped[T]) CreatedAt() time.Time { return t.created }
