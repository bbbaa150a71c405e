// Package fixedinstance implements the Fixed-Instance Actor of
// spec.md §5: it composes a Power and a Media sub-machine, each
// reconciling a desired state against the actual state last reported
// by the instance's driver, retry-rate-limited via
// internal/timeutil.RequestTracker.
package fixedinstance

// PowerState is the actual power state last observed from an
// instance's driver - grounded on original_source's
// domain/.../fixed_instances/power.rs (InstancePowerState).
type PowerState string

const (
	PoweringUp   PowerState = "powering_up"
	ShuttingDown PowerState = "shutting_down"
	PoweredUp    PowerState = "powered_up"
	ShutDown     PowerState = "shut_down"
)

// DesiredPowerState is what the Power sub-machine wants the instance
// to be.
type DesiredPowerState string

const (
	DesiredPoweredUp DesiredPowerState = "powered_up"
	DesiredShutDown  DesiredPowerState = "shut_down"
)

// Satisfies reports whether the actual power state already matches
// desired - only the two steady states count, so a transition in
// progress (PoweringUp/ShuttingDown) never satisfies anything and the
// control loop keeps waiting rather than issuing a redundant command.
func (s PowerState) Satisfies(desired DesiredPowerState) bool {
	switch {
	case s == PoweredUp && desired == DesiredPoweredUp:
		return true
	case s == ShutDown && desired == DesiredShutDown:
		return true
	default:
		return false
	}
}

// PlayStateKind tags the variant of PlayState/DesiredPlayState -
// grounded on specs/audiocloud-api/src/common/instance.rs.
type PlayStateKind string

const (
	PreparingToPlay   PlayStateKind = "preparing_to_play"
	Playing           PlayStateKind = "playing"
	PreparingToRender PlayStateKind = "preparing_to_render"
	Rendering         PlayStateKind = "rendering"
	Rewinding         PlayStateKind = "rewinding"
	Stopping          PlayStateKind = "stopping"
	Stopped           PlayStateKind = "stopped"
)

// DesiredPlayStateKind is the subset of PlayStateKind a caller is
// allowed to request.
type DesiredPlayStateKind string

const (
	DesiredPlaying   DesiredPlayStateKind = "playing"
	DesiredRendering DesiredPlayStateKind = "rendering"
	DesiredStopped   DesiredPlayStateKind = "stopped"
)

// PlayState is the actual play state last observed from an instance's
// driver. Position is valid only when HasPosition is set - Go structs
// with a *float64 field aren't a clean fit for RemoteValue's
// `comparable` constraint (pointer identity, not value, would govern
// equality), so the optional float is spelled out as two fields
// instead.
type PlayState struct {
	Kind        PlayStateKind
	PlayID      string  // Playing, PreparingToPlay
	RenderID    string  // Rendering, PreparingToRender
	Length      float64 // Rendering, PreparingToRender
	RewindTo    float64 // Rewinding
	HasPosition bool    // Stopped
	Position    float64 // Stopped, valid iff HasPosition
}

// DesiredPlayState is what the Media sub-machine wants the instance to
// be doing.
type DesiredPlayState struct {
	Kind        DesiredPlayStateKind
	PlayID      string
	RenderID    string
	Length      float64
	HasPosition bool
	Position    float64
}

// Satisfies reports whether the actual play state already matches
// desired. A Stopped actual state with no position opinion on the
// desired side is always satisfied (spec.md §5: "stop with no position
// request just means not playing").
func (s PlayState) Satisfies(desired DesiredPlayState) bool {
	switch {
	case s.Kind == Playing && desired.Kind == DesiredPlaying:
		return s.PlayID == desired.PlayID
	case s.Kind == Rendering && desired.Kind == DesiredRendering:
		return s.RenderID == desired.RenderID
	case s.Kind == Stopped && desired.Kind == DesiredStopped:
		if !desired.HasPosition {
			return true
		}
		return s.HasPosition && s.Position == desired.Position
	default:
		return false
	}
}
