package fixedinstance

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/audiocloud-domain/internal/timeutil"
)

// UpdateInterval is how often the actor reconciles desired vs actual
// state - grounded on original_source's `ctx.run_interval(Duration::
// from_millis(30), ...)` in fixed_instances/instance.rs.
const UpdateInterval = 30 * time.Millisecond

// TaskSpec is the minimal shape the Fixed-Instance Actor needs from a
// task assignment: whether one is currently held against this
// instance. The full task spec lives in internal/task.
type TaskSpec struct {
	TaskID string
}

// Driver is how the actor talks to an instance's driver process -
// grounded on original_source's InstanceDriverClient.
type Driver interface {
	SetPowerChannel(ctx context.Context, cmd SetPowerChannel) error
	SetPlayState(ctx context.Context, instanceID string, desired DesiredPlayState) error
	MergeParameters(ctx context.Context, instanceID string, parameters map[string]float64) error
}

// Actor is the Fixed-Instance Actor: it owns one instance's Power and
// Media sub-machines (either may be absent - spec.md §5, "an instance
// need not have a power controller or a transport") and mirrors
// parameter writes through a RemoteValue, grounded on
// original_source/domain/.../fixed_instances/instance.rs.
type Actor struct {
	id     string
	logger *log.Logger
	driver Driver

	connected timeutil.Timestamped[bool]
	power     *Power
	media     *Media
	spec      timeutil.Timestamped[*TaskSpec]

	parameters *timeutil.RemoteValue[string]
}

// New returns an Actor for instance id. power and media may be nil if
// the instance has no power controller or no transport respectively.
func New(id string, power *Power, media *Media, driver Driver, defaultParameters map[string]float64, logger *log.Logger) *Actor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Actor{
		id:         id,
		logger:     logger.With("instance", id),
		driver:     driver,
		connected:  timeutil.Now(false),
		power:      power,
		media:      media,
		parameters: timeutil.NewRemoteValue(encodeParameters(defaultParameters)),
	}
}

// Run ticks the actor's reconciliation loop every UpdateInterval until
// ctx is cancelled.
func (a *Actor) Run(ctx context.Context) {
	ticker := time.NewTicker(UpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.update(ctx)
		}
	}
}

func (a *Actor) update(ctx context.Context) {
	if a.power != nil {
		hasTask := a.spec.Value() != nil
		if cmd := a.power.Update(hasTask, a.spec.Elapsed()); cmd != nil {
			if err := a.driver.SetPowerChannel(ctx, *cmd); err != nil {
				a.logger.Warn("power command failed", "error", err)
			}
		}
	}

	if a.media != nil {
		if version, desired, ok := a.media.Update(); ok {
			err := a.driver.SetPlayState(ctx, a.id, desired)
			a.media.FinishUpdate(version, err == nil)
			if err != nil {
				a.logger.Warn("play state command failed", "error", err)
			}
		}
	}

	if version, encoded, ok := a.parameters.StartUpdate(); ok {
		params, _ := decodeParameters(encoded)
		err := a.driver.MergeParameters(ctx, a.id, params)
		a.parameters.FinishUpdate(version, err == nil)
		if err != nil {
			a.logger.Warn("parameter merge failed", "error", err)
		}
	}
}

// OnDriverConnected force-resends every mirrored value regardless of
// whether it's currently believed satisfied - SPEC_FULL.md supplement
// 7, grounded on instance.rs::on_instance_driver_connected's
// force_update_parameters call, extended here to the power and media
// sub-machines so a reconnecting driver gets a full resync rather than
// just fresh parameters.
func (a *Actor) OnDriverConnected() {
	a.connected = timeutil.Now(true)
	a.parameters.Flush()
	if a.power != nil {
		a.power.ForceResend()
	}
	if a.media != nil {
		a.media.ForceResend()
	}
}

// OnDriverConnectionLost marks the instance as disconnected; in-flight
// writes are left alone; the next successful StartUpdate after
// reconnection will pick up wherever the desired state landed.
func (a *Actor) OnDriverConnectionLost() {
	a.connected = timeutil.Now(false)
}

// OnReports folds a driver's report batch into the Power and Media
// sub-machines' actual state.
func (a *Actor) OnReports(powerChannels map[int]bool, play *PlayState) {
	if a.power != nil && powerChannels != nil {
		a.power.OnChannelsChanged(powerChannels)
	}
	if a.media != nil && play != nil {
		a.media.OnPlayStateChanged(*play)
	}
}

// SetTaskSpec records whether a task is currently assigned to this
// instance; a present spec is what drives the Power sub-machine to
// keep the instance powered up.
func (a *Actor) SetTaskSpec(spec *TaskSpec) {
	a.spec = timeutil.Now(spec)
}

// SetParameters requests a parameter merge be sent to the driver.
func (a *Actor) SetParameters(parameters map[string]float64) {
	a.parameters.Set(encodeParameters(parameters))
}

// SetDesiredPlayState requests a new play state, if a Media
// sub-machine is present.
func (a *Actor) SetDesiredPlayState(desired DesiredPlayState) bool {
	if a.media == nil {
		return false
	}
	a.media.SetDesiredState(desired)
	return true
}

// SetDesiredPowerState requests a new power state, if a Power
// sub-machine is present.
func (a *Actor) SetDesiredPowerState(desired DesiredPowerState) bool {
	if a.power == nil {
		return false
	}
	a.power.SetDesiredState(desired)
	return true
}

// Connected reports whether the instance's driver is currently
// believed connected.
func (a *Actor) Connected() bool { return a.connected.Value() }

// encodeParameters produces a canonical (sorted-key) string
// representation so it can back a RemoteValue[string], whose
// no-op-on-unchanged-Set optimization requires a comparable type.
func encodeParameters(parameters map[string]float64) string {
	encoded, err := json.Marshal(parameters)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func decodeParameters(encoded string) (map[string]float64, error) {
	var params map[string]float64
	err := json.Unmarshal([]byte(encoded), &params)
	return params, err
}
