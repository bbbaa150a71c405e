package task

import (
	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
	"github.com/doismellburning/audiocloud-domain/internal/timeutil"
)

// instanceReadiness is the last state reported for one fixed instance
// this task depends on, grounded on task_fixed_instance.rs's
// TaskFixedInstance (there named via NotifyInstanceState; here built
// directly on the Power/Media reports internal/fixedinstance already
// exposes, since both live in the same process).
type instanceReadiness struct {
	power   *fixedinstance.PowerReport
	play    *fixedinstance.PlayReport
	tracker timeutil.RequestTracker
}

func (r *instanceReadiness) powerSatisfied() bool {
	if r.power == nil {
		return true
	}
	return r.power.Actual.Value().Satisfies(r.power.Desired.Value())
}

func (r *instanceReadiness) playSatisfied(desired fixedinstance.DesiredPlayState) bool {
	if r.play == nil {
		return true
	}
	return r.play.Actual.Value().Satisfies(desired)
}

// FixedInstances tracks readiness of every fixed instance a task has
// been assigned, grounded on task_fixed_instance.rs's
// TaskFixedInstances.
type FixedInstances struct {
	instances map[string]*instanceReadiness
	desired   fixedinstance.DesiredPlayState
}

// NewFixedInstances returns a tracker with its desired play state at
// Stopped and no instances registered yet.
func NewFixedInstances() *FixedInstances {
	return &FixedInstances{
		instances: make(map[string]*instanceReadiness),
		desired:   fixedinstance.DesiredPlayState{Kind: fixedinstance.DesiredStopped},
	}
}

// NotifyInstanceState folds a fresh report for instanceID into the
// tracker, adding it if this is the first report seen for it.
func (f *FixedInstances) NotifyInstanceState(instanceID string, power *fixedinstance.PowerReport, play *fixedinstance.PlayReport) {
	r, ok := f.instances[instanceID]
	if !ok {
		r = &instanceReadiness{}
		f.instances[instanceID] = r
	}
	r.power = power
	r.play = play
	r.tracker.Reset()
}

// SetDesiredState changes what every tracked instance should be
// doing and clears each instance's retry backoff, since the old
// backoff no longer applies to a different target state.
func (f *FixedInstances) SetDesiredState(desired fixedinstance.DesiredPlayState) {
	f.desired = desired
	for _, r := range f.instances {
		r.tracker.Reset()
	}
}

// Ready reports whether instanceID's last-known power and play state
// both already satisfy what's wanted of it. An instance with no
// report yet is never ready.
func (f *FixedInstances) Ready(instanceID string) bool {
	r, ok := f.instances[instanceID]
	if !ok {
		return false
	}
	return r.powerSatisfied() && r.playSatisfied(f.desired)
}

// AllReady reports whether every instance in ids is ready - grounded
// on task_fixed_instance.rs::TaskFixedInstances::update, which a task
// calls once per tick across all of its assigned instance ids.
func (f *FixedInstances) AllReady(ids []string) bool {
	for _, id := range ids {
		if !f.Ready(id) {
			return false
		}
	}
	return true
}

// WaitingFor returns every id in ids that isn't yet ready, grounded
// on TaskFixedInstances::waiting_for_instances.
func (f *FixedInstances) WaitingFor(ids []string) []string {
	var waiting []string
	for _, id := range ids {
		if !f.Ready(id) {
			waiting = append(waiting, id)
		}
	}
	return waiting
}
