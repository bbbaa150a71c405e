// Package task implements the Task Actor: it reconciles a task's
// desired play/render state against the audio engine that's actually
// executing its graph, and tracks readiness of every fixed instance
// and media object the task depends on before it will ask the engine
// to start - grounded on
// original_source/domain/audiocloud-domain-server/src/tasks/{task_engine,task_fixed_instance}.rs.
package task

import (
	"time"

	"github.com/doismellburning/audiocloud-domain/internal/timeutil"
)

// PlayStateKind is the actual play state of a task's graph on its
// assigned engine.
type PlayStateKind string

const (
	TaskStopped   PlayStateKind = "stopped"
	TaskPlaying   PlayStateKind = "playing"
	TaskRendering PlayStateKind = "rendering"
)

// PlayState is the actual state last reported by the engine running
// this task's graph.
type PlayState struct {
	Kind     PlayStateKind
	PlayID   string
	RenderID string
}

// DesiredPlayStateKind is what a caller may ask a task to do.
type DesiredPlayStateKind string

const (
	DesiredTaskStopped DesiredPlayStateKind = "stopped"
	DesiredTaskPlay    DesiredPlayStateKind = "play"
	DesiredTaskRender  DesiredPlayStateKind = "render"
)

// DesiredPlayState is what the Task Engine wants the assigned engine
// to be doing.
type DesiredPlayState struct {
	Kind     DesiredPlayStateKind
	PlayID   string
	RenderID string
}

// Satisfies reports whether the actual state already matches desired.
func (s PlayState) Satisfies(desired DesiredPlayState) bool {
	switch {
	case s.Kind == TaskPlaying && desired.Kind == DesiredTaskPlay:
		return s.PlayID == desired.PlayID
	case s.Kind == TaskRendering && desired.Kind == DesiredTaskRender:
		return s.RenderID == desired.RenderID
	case s.Kind == TaskStopped && desired.Kind == DesiredTaskStopped:
		return true
	default:
		return false
	}
}

// EngineCommand is a command TaskEngine asks to be sent to the audio
// engine running this task's graph.
type EngineCommand interface{ isEngineCommand() }

type Play struct{ PlayID string }
type Render struct{ RenderID string }
type StopPlay struct{ PlayID string }
type CancelRender struct{ RenderID string }

func (Play) isEngineCommand()         {}
func (Render) isEngineCommand()       {}
func (StopPlay) isEngineCommand()     {}
func (CancelRender) isEngineCommand() {}

// Engine reconciles a task's desired play state against the engine's
// last-reported actual state, grounded on tasks/task_engine.rs.
type Engine struct {
	taskID            string
	desired           timeutil.Timestamped[DesiredPlayState]
	actual            timeutil.Timestamped[PlayState]
	tracker           timeutil.RequestTracker
	instancesAreReady bool
	mediaIsReady      bool
}

// NewEngine returns an Engine that starts out believing the task is
// stopped.
func NewEngine(taskID string) *Engine {
	return &Engine{
		taskID:  taskID,
		desired: timeutil.Now(DesiredPlayState{Kind: DesiredTaskStopped}),
		actual:  timeutil.Now(PlayState{Kind: TaskStopped}),
	}
}

// SetInstancesAreReady records whether every fixed instance this
// task depends on currently satisfies its desired play state -
// grounded on task_engine.rs::set_instances_are_ready.
func (e *Engine) SetInstancesAreReady(ready bool) { e.instancesAreReady = ready }

// SetMediaIsReady records whether every media object this task
// depends on has been localized - grounded on
// task_engine.rs::set_media_is_ready.
func (e *Engine) SetMediaIsReady(ready bool) { e.mediaIsReady = ready }

// GetActualPlayState reports the last state the engine confirmed.
func (e *Engine) GetActualPlayState() PlayState { return e.actual.Value() }

// SetDesiredState requests a new play/render/stop state.
func (e *Engine) SetDesiredState(desired DesiredPlayState) {
	if e.desired.Value() != desired {
		e.desired = timeutil.Now(desired)
		e.tracker.Reset()
	}
}

// SetActualState folds a state report from the engine into Engine,
// and resets the retry tracker - a fresh actual observation means any
// outstanding command has been accounted for one way or another.
func (e *Engine) SetActualState(actual PlayState) {
	e.actual = timeutil.Now(actual)
	e.tracker.Reset()
}

// ShouldBePlaying reports whether the task currently wants to be
// playing playID - used by the Task Actor to fast-fail a seek request
// against a play session that isn't the one actually in flight.
func (e *Engine) ShouldBePlaying(playID string) bool {
	d := e.desired.Value()
	return d.Kind == DesiredTaskPlay && d.PlayID == playID
}

// Update derives the command to send the engine, if any - grounded on
// task_engine.rs::update. The command is derived from the *actual*
// state, not the desired one: a Playing task that should stop gets
// StopPlay, a Rendering task that should stop gets CancelRender, and
// only a Stopped task gets a fresh Play/Render. This keeps the engine
// from ever being asked to jump straight from one play session to
// another without an intervening stop.
func (e *Engine) Update() EngineCommand {
	actual := e.actual.Value()
	desired := e.desired.Value()

	if actual.Satisfies(desired) || !e.tracker.ShouldRetry() {
		return nil
	}

	var cmd EngineCommand
	switch {
	case actual.Kind == TaskPlaying:
		cmd = StopPlay{PlayID: actual.PlayID}
	case actual.Kind == TaskRendering:
		cmd = CancelRender{RenderID: actual.RenderID}
	case actual.Kind == TaskStopped && desired.Kind == DesiredTaskPlay && e.instancesAreReady && e.mediaIsReady:
		cmd = Play{PlayID: desired.PlayID}
	case actual.Kind == TaskStopped && desired.Kind == DesiredTaskRender && e.instancesAreReady && e.mediaIsReady:
		cmd = Render{RenderID: desired.RenderID}
	}

	if cmd != nil {
		e.tracker.Retried()
	}
	return cmd
}

// Age reports how long the actual state has held, for staleness
// checks (e.g. "no report from the engine in N seconds").
func (e *Engine) Age() time.Duration { return e.actual.Elapsed() }
