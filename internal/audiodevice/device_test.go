package audiodevice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevice_GenerationIsMonotonic(t *testing.T) {
	d := New("dev0", nil)

	r1 := d.Flip(nil, time.Now().Add(20*time.Millisecond))
	r2 := d.Flip(nil, time.Now().Add(20*time.Millisecond))

	assert.Less(t, r1.Generation, r2.Generation)
}

func TestDevice_ClientAcknowledgingInTimeIsNotMissed(t *testing.T) {
	d := New("dev0", nil)
	ch := d.Register("client-a")

	done := make(chan struct{})
	go func() {
		flip := <-ch
		d.FlipFinished("client-a", flip.Generation)
		close(done)
	}()

	result := d.Flip(nil, time.Now().Add(50*time.Millisecond))
	<-done

	assert.Empty(t, result.Missed)
	assert.Equal(t, 1, d.ClientCount())
}

func TestDevice_ClientMissingDeadlineIsUnregistered(t *testing.T) {
	d := New("dev0", nil)
	d.Register("slow-client")

	result := d.Flip(nil, time.Now().Add(10*time.Millisecond))

	require.Len(t, result.Missed, 1)
	assert.Equal(t, "slow-client", result.Missed[0])
	assert.Equal(t, 0, d.ClientCount())
}

func TestDevice_SpuriousGenerationAckIgnored(t *testing.T) {
	d := New("dev0", nil)
	ch := d.Register("client-a")

	d.FlipFinished("client-a", 9999) // ack for a flip that hasn't happened yet

	result := d.Flip(nil, time.Now().Add(15*time.Millisecond))

	// The stale ack must not have satisfied this flip's wait.
	require.Len(t, result.Missed, 1)
	_ = ch
}

func TestDevice_NeverBlocksPastDeadline(t *testing.T) {
	d := New("dev0", nil)
	d.Register("never-acks")

	deadline := time.Now().Add(30 * time.Millisecond)
	start := time.Now()
	d.Flip(nil, deadline)
	elapsed := time.Since(start)

	assert.LessOrEqual(t, elapsed, 40*time.Millisecond)
}
