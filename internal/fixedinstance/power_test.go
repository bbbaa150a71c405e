package fixedinstance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPowerConfig() PowerConfig {
	return PowerConfig{
		InstanceID:   "inst-1",
		Channel:      2,
		IdleOffDelay: 5 * time.Millisecond,
		WarmUp:       5 * time.Millisecond,
		CoolDown:     5 * time.Millisecond,
	}
}

// newTestPower returns a Power with its command retry rate limit
// shrunk well below the 1s production default, so tests that sleep a
// few milliseconds to cross a warm-up/cool-down boundary aren't also
// still inside the retry backoff window.
func newTestPower() *Power {
	p := NewPower(testPowerConfig())
	p.SetRetryInterval(time.Millisecond)
	return p
}

func TestPower_TaskAssignedRequestsPowerUp(t *testing.T) {
	p := newTestPower()

	cmd := p.Update(true, 0)

	require.NotNil(t, cmd)
	assert.True(t, cmd.PowerUp)
	assert.Equal(t, "inst-1", cmd.InstanceID)
	assert.Equal(t, 2, cmd.Channel)
}

func TestPower_RetryIsRateLimited(t *testing.T) {
	p := newTestPower()

	first := p.Update(true, 0)
	require.NotNil(t, first)

	second := p.Update(true, 0)
	assert.Nil(t, second, "a retry within the rate-limit window must not resend")
}

func TestPower_IdleBeyondDelayRequestsShutDown(t *testing.T) {
	p := newTestPower()
	p.Update(true, 0)
	p.OnChannelsChanged(map[int]bool{2: true})
	time.Sleep(6 * time.Millisecond)
	p.Update(true, 0) // settles into PoweredUp

	// ForceResend decouples this assertion from the retry rate limit's
	// exact timing - the point of this test is the desired-state
	// derivation, not the backoff window.
	p.ForceResend()
	cmd := p.Update(false, 10*time.Millisecond)
	require.NotNil(t, cmd)
	assert.False(t, cmd.PowerUp)
}

func TestPower_TransitionsFromPoweringUpToPoweredUpAfterWarmUp(t *testing.T) {
	p := newTestPower()
	p.Update(true, 0)
	p.OnChannelsChanged(map[int]bool{2: true})

	time.Sleep(6 * time.Millisecond)
	p.Update(true, 0)

	assert.Equal(t, PoweredUp, p.GetPowerState().Actual.Value())
}

func TestPower_ForceResendBypassesRateLimit(t *testing.T) {
	p := newTestPower()
	require.NotNil(t, p.Update(true, 0))
	require.Nil(t, p.Update(true, 0))

	p.ForceResend()
	assert.NotNil(t, p.Update(true, 0))
}
