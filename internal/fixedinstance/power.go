package fixedinstance

import (
	"time"

	"github.com/doismellburning/audiocloud-domain/internal/timeutil"
)

// PowerConfig describes one instance's power controller wiring -
// grounded on original_source's DomainPowerInstanceConfig.
type PowerConfig struct {
	InstanceID  string
	Channel     int
	IdleOffDelay time.Duration
	WarmUp      time.Duration
	CoolDown    time.Duration
}

// SetPowerChannel is the command Power emits when it wants the power
// controller driving InstanceID's channel flipped.
type SetPowerChannel struct {
	InstanceID string
	Channel    int
	PowerUp    bool
}

// PowerReport pairs the actual and desired power state for reporting
// upstream - spec.md §5.
type PowerReport struct {
	Actual  timeutil.Timestamped[PowerState]
	Desired timeutil.Timestamped[DesiredPowerState]
}

// Power reconciles an instance's power controller toward whatever the
// instance's current task spec demands, grounded on
// original_source/domain/.../fixed_instances/power.rs.
type Power struct {
	state   timeutil.Timestamped[PowerState]
	desired timeutil.Timestamped[DesiredPowerState]
	tracker timeutil.RequestTracker
	config  PowerConfig
}

// NewPower returns a Power sub-machine that starts out believing the
// instance is shut down.
func NewPower(config PowerConfig) *Power {
	return &Power{
		state:   timeutil.Now(ShutDown),
		desired: timeutil.Now(DesiredShutDown),
		config:  config,
	}
}

// GetPowerState reports the current actual/desired pair.
func (p *Power) GetPowerState() PowerReport {
	return PowerReport{Actual: p.state, Desired: p.desired}
}

// Update derives the desired power state from whether a task is
// currently assigned (hasTaskSpec, stamped at specAge), advances the
// PoweringUp/ShuttingDown transition timers, and returns a command to
// issue if the actual state doesn't satisfy the desired one and the
// retry tracker says it's time to try again.
func (p *Power) Update(hasTaskSpec bool, specAge time.Duration) *SetPowerChannel {
	if hasTaskSpec {
		p.desired = timeutil.Now(DesiredPoweredUp)
	} else if specAge > p.config.IdleOffDelay {
		p.desired = timeutil.Now(DesiredShutDown)
	}

	var cmd *SetPowerChannel
	if !p.state.Value().Satisfies(p.desired.Value()) && p.tracker.ShouldRetry() {
		p.tracker.Retried()
		cmd = &SetPowerChannel{
			InstanceID: p.config.InstanceID,
			Channel:    p.config.Channel,
			PowerUp:    p.desired.Value() == DesiredPoweredUp,
		}
	}

	switch p.state.Value() {
	case PoweringUp:
		if p.state.Elapsed() > p.config.WarmUp {
			p.state = timeutil.Now(PoweredUp)
		}
	case ShuttingDown:
		if p.state.Elapsed() > p.config.CoolDown {
			p.state = timeutil.Now(ShutDown)
		}
	}

	return cmd
}

// SetDesiredState lets a caller override the derived desired state
// directly (e.g. an operator-issued shutdown).
func (p *Power) SetDesiredState(desired DesiredPowerState) {
	if p.desired.Value() != desired {
		p.desired = timeutil.Now(desired)
	}
}

// SetRetryInterval overrides the default 1s command retry rate limit.
func (p *Power) SetRetryInterval(d time.Duration) {
	p.tracker.SetRetryInterval(d)
}

// ForceResend resets the retry tracker so the next Update reissues a
// command immediately, regardless of how recently one was sent -
// SPEC_FULL.md supplement 7 (driver reconnect force-flush).
func (p *Power) ForceResend() {
	p.tracker.Reset()
}

// OnChannelsChanged folds a driver-reported power-channel snapshot
// into the actual state: channels maps channel index to its observed
// power-on/off reading.
func (p *Power) OnChannelsChanged(channels map[int]bool) {
	powerIsNowUp, ok := channels[p.config.Channel]
	if !ok {
		return
	}
	wasShutDown := p.state.Value() == ShuttingDown || p.state.Value() == ShutDown
	wasPoweredUp := !wasShutDown

	switch {
	case powerIsNowUp && wasShutDown:
		p.state = timeutil.Now(PoweringUp)
	case !powerIsNowUp && wasPoweredUp:
		p.state = timeutil.Now(ShuttingDown)
	}
}
