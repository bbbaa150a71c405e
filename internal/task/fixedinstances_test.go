package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
	"github.com/doismellburning/audiocloud-domain/internal/timeutil"
)

func poweredUpReport() *fixedinstance.PowerReport {
	return &fixedinstance.PowerReport{
		Actual:  timeutil.Now(fixedinstance.PoweredUp),
		Desired: timeutil.Now(fixedinstance.DesiredPoweredUp),
	}
}

func playingReport(playID string) *fixedinstance.PlayReport {
	return &fixedinstance.PlayReport{
		Actual:  timeutil.Now(fixedinstance.PlayState{Kind: fixedinstance.Playing, PlayID: playID}),
		Desired: timeutil.Now(fixedinstance.DesiredPlayState{Kind: fixedinstance.DesiredPlaying, PlayID: playID}),
	}
}

func TestFixedInstances_UnreportedInstanceIsNeverReady(t *testing.T) {
	f := NewFixedInstances()
	assert.False(t, f.Ready("inst-1"))
	assert.Equal(t, []string{"inst-1"}, f.WaitingFor([]string{"inst-1"}))
}

func TestFixedInstances_ReadyOncePowerAndPlaySatisfyDesired(t *testing.T) {
	f := NewFixedInstances()
	f.SetDesiredState(fixedinstance.DesiredPlayState{Kind: fixedinstance.DesiredPlaying, PlayID: "p1"})
	f.NotifyInstanceState("inst-1", poweredUpReport(), playingReport("p1"))

	assert.True(t, f.Ready("inst-1"))
	assert.True(t, f.AllReady([]string{"inst-1"}))
}

func TestFixedInstances_NotReadyWhenPlayIDMismatches(t *testing.T) {
	f := NewFixedInstances()
	f.SetDesiredState(fixedinstance.DesiredPlayState{Kind: fixedinstance.DesiredPlaying, PlayID: "p1"})
	f.NotifyInstanceState("inst-1", poweredUpReport(), playingReport("p2"))

	assert.False(t, f.Ready("inst-1"))
}

func TestFixedInstances_InstanceWithNoPowerControllerIsAlwaysPowerSatisfied(t *testing.T) {
	f := NewFixedInstances()
	f.SetDesiredState(fixedinstance.DesiredPlayState{Kind: fixedinstance.DesiredPlaying, PlayID: "p1"})
	f.NotifyInstanceState("inst-1", nil, playingReport("p1"))

	assert.True(t, f.Ready("inst-1"))
}

func TestFixedInstances_AllReadyRequiresEveryInstance(t *testing.T) {
	f := NewFixedInstances()
	f.SetDesiredState(fixedinstance.DesiredPlayState{Kind: fixedinstance.DesiredPlaying, PlayID: "p1"})
	f.NotifyInstanceState("inst-1", poweredUpReport(), playingReport("p1"))

	assert.False(t, f.AllReady([]string{"inst-1", "inst-2"}))
	assert.Equal(t, []string{"inst-2"}, f.WaitingFor([]string{"inst-1", "inst-2"}))
}
