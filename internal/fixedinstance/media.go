package fixedinstance

import "github.com/doismellburning/audiocloud-domain/internal/timeutil"

// PlayReport pairs the actual and desired play state for reporting
// upstream - spec.md §5. The media position travels inside Actual
// (PlayState.Position, valid iff HasPosition).
type PlayReport struct {
	Actual  timeutil.Timestamped[PlayState]
	Desired timeutil.Timestamped[DesiredPlayState]
}

// Media reconciles an instance's transport toward whatever play state
// has been requested, mirrored through a single in-flight
// RemoteValue write - grounded on
// original_source/domain/.../fixed_instances/instance/media.rs.
type Media struct {
	actual  timeutil.Timestamped[PlayState]
	desired *timeutil.RemoteValue[DesiredPlayState]
	tracker timeutil.RequestTracker
}

// NewMedia returns a Media sub-machine that starts out believing the
// instance is stopped with no known position.
func NewMedia() *Media {
	return &Media{
		actual:  timeutil.Now(PlayState{Kind: Stopped}),
		desired: timeutil.NewRemoteValue(DesiredPlayState{Kind: DesiredStopped}),
	}
}

// GetPlayState reports the current actual/desired pair.
func (m *Media) GetPlayState() PlayReport {
	return PlayReport{Actual: m.actual, Desired: timeutil.Now(m.desired.Desired())}
}

// Update bumps the retry tracker when the actual state doesn't satisfy
// the desired one (purely for external observability - the send
// decision itself lives in RemoteValue's own retry tracker) and
// returns the next write to send, if any.
func (m *Media) Update() (version uint64, desired DesiredPlayState, ok bool) {
	if !m.actual.Value().Satisfies(m.desired.Desired()) && m.tracker.ShouldRetry() {
		m.tracker.Retried()
	}
	return m.desired.StartUpdate()
}

// FinishUpdate acknowledges a previously started write.
func (m *Media) FinishUpdate(version uint64, success bool) {
	m.desired.FinishUpdate(version, success)
}

// SetDesiredState requests a new play state.
func (m *Media) SetDesiredState(desired DesiredPlayState) {
	m.desired.Set(desired)
}

// ForceResend re-sends the current desired state even if it's already
// believed satisfied - SPEC_FULL.md supplement 7 (driver reconnect
// force-flush).
func (m *Media) ForceResend() {
	m.desired.Flush()
}

// OnPlayStateChanged folds a driver-reported play state (position
// included, via PlayState.HasPosition/Position) into the actual state.
func (m *Media) OnPlayStateChanged(state PlayState) {
	m.actual = timeutil.Now(state)
}
