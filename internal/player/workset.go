package player

import (
	"time"

	"github.com/doismellburning/audiocloud-domain/internal/graph"
)

// PartialWorkSetMaxQueueDepth bounds how many drained-but-not-finished
// WorkSets the Player retains at once - SPEC_FULL.md supplement 10.
// Exceeding it emits PlayerBackPressure; the partial queue itself is
// not capped.
const PartialWorkSetMaxQueueDepth = 8

// workSet tracks one buffer-cycle's worth of node dispatch bookkeeping,
// grounded on original_source's rust/audio-engine/src/player/work_set.rs.
// A WorkSet starts out "current": new Flips feed it and newly-runnable
// nodes dispatch out of it. Once every dispatchable node has at least
// been started (nodesToExecute empty) it stops accepting new work and,
// if some of its nodes are still executing, survives as a "partial"
// WorkSet purely to collect their completions while a fresh current
// WorkSet begins forming around the advanced play head.
type workSet struct {
	playHead graph.PlayHead

	nodesToExecute map[graph.NodeID]bool
	nodesExecuting map[graph.NodeID]bool
	nodesExecuted  map[graph.NodeID]bool

	deviceFlipsStarted  map[string]*graph.DevicePlanes
	deviceFlipsFinished map[string]bool

	deadline time.Time
	failed   bool
}

func newWorkSet(playHead graph.PlayHead, allNodes []graph.NodeID) *workSet {
	ws := &workSet{
		playHead:            playHead,
		nodesToExecute:      map[graph.NodeID]bool{},
		nodesExecuting:      map[graph.NodeID]bool{},
		nodesExecuted:       map[graph.NodeID]bool{},
		deviceFlipsStarted:  map[string]*graph.DevicePlanes{},
		deviceFlipsFinished: map[string]bool{},
	}
	for _, id := range allNodes {
		ws.nodesToExecute[id] = true
	}
	return ws
}

func (ws *workSet) idle() bool {
	return len(ws.nodesToExecute) == 0 && len(ws.nodesExecuting) == 0
}

func (ws *workSet) drained() bool {
	return len(ws.nodesExecuting) == 0
}

func (ws *workSet) extendDeadline(d time.Time) {
	if ws.deadline.IsZero() || d.Before(ws.deadline) {
		ws.deadline = d
	}
}
