package task

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/audiocloud-domain/internal/apierror"
	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
)

// TickInterval is how often a Task Actor reconciles its engine,
// fixed-instance, and media readiness sub-machines - grounded on
// spec.md §4.6's "on every 30 ms tick".
const TickInterval = 30 * time.Millisecond

// EngineDispatcher sends a task's derived EngineCommand to whichever
// audio engine the task is currently assigned, grounded on spec.md
// §4.6's "dispatch it to the Graph Player via an RPC subject keyed by
// engine id". The implementation in this module is internal/tasksup's
// pubsub dispatcher, which publishes each command on
// pubsub.EngineCommandSubject(engineID).
type EngineDispatcher interface {
	Dispatch(ctx context.Context, engineID string, cmd EngineCommand) error
}

// Spec is the minimal shape of a task's specification the actor needs
// to know which fixed instances and media objects gate readiness -
// grounded on audiocloud_api::common::task::TaskSpec's
// get_fixed_instance_ids().
type Spec struct {
	FixedInstanceIDs []string
	MediaObjectIDs   []string
}

// Actor is the Task Actor of spec.md §4.6.
type Actor struct {
	id       string
	engineID string
	logger   *log.Logger

	dispatcher EngineDispatcher
	engine     *Engine
	instances  *FixedInstances
	media      *MediaObjects
	packets    *PacketFlusher

	spec Spec

	events chan Event
}

// Event is something a Task Actor reports to subscribers.
type Event interface{ isTaskEvent() }

// PacketReady is emitted whenever the packet flusher cuts a new
// streaming packet.
type PacketReady struct{ Packet StreamingPacket }

func (PacketReady) isTaskEvent() {}

// StateChanged is emitted whenever the engine's actual play state
// changes.
type StateChanged struct{ State PlayState }

func (StateChanged) isTaskEvent() {}

// New returns a Task Actor for taskID, dispatching engine commands to
// engineID via dispatcher.
func New(taskID, engineID string, dispatcher EngineDispatcher, maxPacketAge time.Duration, maxPacketFrames int, logger *log.Logger) *Actor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Actor{
		id:         taskID,
		engineID:   engineID,
		logger:     logger.With("task", taskID),
		dispatcher: dispatcher,
		engine:     NewEngine(taskID),
		instances:  NewFixedInstances(),
		media:      NewMediaObjects(),
		packets:    NewPacketFlusher(maxPacketAge, maxPacketFrames),
		events:     make(chan Event, 64),
	}
}

// Events returns the channel the actor publishes PacketReady and
// StateChanged events on.
func (a *Actor) Events() <-chan Event { return a.events }

// SetSpec replaces the set of fixed instances and media objects the
// task depends on.
func (a *Actor) SetSpec(spec Spec) { a.spec = spec }

// Run ticks the actor's reconciliation loop every TickInterval until
// ctx is cancelled.
func (a *Actor) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Actor) tick(ctx context.Context) {
	if pkt, ok := a.packets.MaybeFlush(); ok {
		a.emit(PacketReady{Packet: pkt})
	}

	a.engine.SetInstancesAreReady(a.instances.AllReady(a.spec.FixedInstanceIDs))
	a.engine.SetMediaIsReady(a.media.AllReady(a.spec.MediaObjectIDs))

	cmd := a.engine.Update()
	if cmd == nil {
		return
	}
	if err := a.dispatcher.Dispatch(ctx, a.engineID, cmd); err != nil {
		a.logger.Warn("engine command failed", "error", err)
	}
}

// RequestPlay asks the task to start playing playID, grounded on
// tasks/task.rs's play request handling: fast-fails with
// TaskIllegalPlayState if the engine isn't currently stopped.
func (a *Actor) RequestPlay(playID string) error {
	if a.engine.GetActualPlayState().Kind != TaskStopped {
		return apierror.New(apierror.IllegalState, "task %s: cannot start play %s from state %s", a.id, playID, a.engine.GetActualPlayState().Kind)
	}
	a.packets.Reset(playID)
	a.engine.SetDesiredState(DesiredPlayState{Kind: DesiredTaskPlay, PlayID: playID})
	return nil
}

// RequestRender asks the task to start rendering renderID.
func (a *Actor) RequestRender(renderID string) error {
	if a.engine.GetActualPlayState().Kind != TaskStopped {
		return apierror.New(apierror.IllegalState, "task %s: cannot start render %s from state %s", a.id, renderID, a.engine.GetActualPlayState().Kind)
	}
	a.engine.SetDesiredState(DesiredPlayState{Kind: DesiredTaskRender, RenderID: renderID})
	return nil
}

// RequestSeek asks the task to seek within playID, grounded on
// tasks/task/seek_task.rs: fast-fails with TaskIllegalPlayState
// unless playID is the session actually in flight.
func (a *Actor) RequestSeek(playID string) error {
	actual := a.engine.GetActualPlayState()
	if actual.Kind != TaskPlaying || actual.PlayID != playID {
		return apierror.New(apierror.IllegalState, "task %s: cannot seek play %s from state %s", a.id, playID, actual.Kind)
	}
	return nil
}

// RequestStop asks the task to stop, regardless of whether it's
// currently playing, rendering, or already stopped.
func (a *Actor) RequestStop() {
	a.engine.SetDesiredState(DesiredPlayState{Kind: DesiredTaskStopped})
}

// NotifyInstanceState folds a fresh fixed-instance report into the
// readiness tracker. Either report may be nil if the instance has no
// power controller or no transport.
func (a *Actor) NotifyInstanceState(instanceID string, power *fixedinstance.PowerReport, play *fixedinstance.PlayReport) {
	a.instances.NotifyInstanceState(instanceID, power, play)
}

// NotifyMediaLocalized records that a media object dependency has
// finished downloading.
func (a *Actor) NotifyMediaLocalized(objectID, localPath string) {
	a.media.NotifyLocalized(objectID, localPath)
}

// NotifyEngineEvent folds an engine-reported state transition into
// the engine sub-machine, grounded on
// tasks/task/handle_engine_events.rs.
func (a *Actor) NotifyEngineEvent(event EngineEvent) {
	switch ev := event.(type) {
	case EngineStopped:
		a.setActualState(PlayState{Kind: TaskStopped})
	case EnginePlaying:
		if a.engine.ShouldBePlaying(ev.PlayID) {
			a.setActualState(PlayState{Kind: TaskPlaying, PlayID: ev.PlayID})
			a.packets.MergePeakMeters(ev.PeakMeters)
			for _, frame := range ev.Audio {
				a.packets.PushAudio(frame)
			}
		}
	case EnginePlayingFailed:
		a.engine.SetDesiredState(DesiredPlayState{Kind: DesiredTaskStopped})
		a.setActualState(PlayState{Kind: TaskStopped})
	case EngineRendering:
		a.setActualState(PlayState{Kind: TaskRendering, RenderID: ev.RenderID})
	case EngineRenderingFinished:
		a.engine.SetDesiredState(DesiredPlayState{Kind: DesiredTaskStopped})
		a.setActualState(PlayState{Kind: TaskStopped})
	case EngineRenderingFailed:
		a.engine.SetDesiredState(DesiredPlayState{Kind: DesiredTaskStopped})
		a.setActualState(PlayState{Kind: TaskStopped})
	}
}

func (a *Actor) setActualState(state PlayState) {
	a.engine.SetActualState(state)
	a.emit(StateChanged{State: state})
}

func (a *Actor) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		a.logger.Warn("event buffer full, dropping event")
	}
}
