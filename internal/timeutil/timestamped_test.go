package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestamped_Elapsed(t *testing.T) {
	ts := Now(42)

	assert.Equal(t, 42, ts.Value())
	assert.Less(t, ts.Elapsed(), time.Second)
}

func TestRequestTracker_FirstRetryIsImmediate(t *testing.T) {
	tr := NewRequestTracker()

	assert.True(t, tr.ShouldRetry())
}

func TestRequestTracker_RetriedResetsWindow(t *testing.T) {
	tr := NewRequestTracker()
	tr.SetRetryInterval(50 * time.Millisecond)

	tr.Retried()
	assert.False(t, tr.ShouldRetry(), "should not retry immediately after a request")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, tr.ShouldRetry())
}

func TestRequestTracker_ResetAllowsImmediateRetry(t *testing.T) {
	tr := NewRequestTracker()
	tr.SetRetryInterval(time.Hour)
	tr.Retried()

	assert.False(t, tr.ShouldRetry())

	tr.Reset()
	assert.True(t, tr.ShouldRetry())
}
