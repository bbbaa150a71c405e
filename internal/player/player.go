// Package player implements the Graph Player / Deadline Scheduler of
// spec.md §4.3: it owns a node graph exclusively, drives node execution
// off Audio Device Handle Flip events via WorkSets, and applies
// structural changes only at WorkSet boundaries so a mutation never
// tears a buffer cycle in half.
package player

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/audiocloud-domain/internal/audiodevice"
	"github.com/doismellburning/audiocloud-domain/internal/graph"
)

type nodeState struct {
	info                 graph.NodeInfo
	requirements         []graph.NodeID
	node                 graph.Node
	processingGeneration *uint64
	buffers              graph.NodeBuffers
}

type flipEnvelope struct {
	deviceID string
	flip     audiodevice.Flip
}

type taskCompletion struct {
	node       graph.NodeID
	generation uint64
	reports    []graph.Report
	err        error
}

type commandEnvelope struct {
	cmd   Command
	reply chan error
}

// Player is the Graph Player actor. All graph mutation and dispatch
// happens on its own goroutine (Run); Submit and Events work through
// channels, while RegisterDevice updates the device table directly,
// outside the control loop.
type Player struct {
	id     string
	logger *log.Logger

	g       *graph.Graph
	nodes   map[graph.NodeID]*nodeState
	devices map[string]*audiodevice.Device

	state    State
	playHead graph.PlayHead

	current  *workSet
	partials []*workSet

	pendingOps []GraphOp
	draining   bool

	flips    chan flipEnvelope
	taskDone chan taskCompletion
	commands chan commandEnvelope
	events   chan Event
}

// New returns an idle Player with an empty graph, fixed at the given
// sample rate and buffer size for the lifetime of the Player (spec.md
// §4.1: these are properties of the audio device(s) the graph runs
// against, not something a running graph renegotiates).
func New(id string, sampleRate, bufferSize uint32, logger *log.Logger) *Player {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	p := &Player{
		id:       id,
		logger:   logger.With("player", id),
		g:        graph.New(),
		nodes:    map[graph.NodeID]*nodeState{},
		devices:  map[string]*audiodevice.Device{},
		state:    Idle,
		playHead: graph.PlayHead{SampleRate: sampleRate, BufferSize: bufferSize},
		flips:    make(chan flipEnvelope, 32),
		taskDone: make(chan taskCompletion, 32),
		commands: make(chan commandEnvelope, 8),
		events:   make(chan Event, 256),
	}
	p.current = newWorkSet(p.playHead, nil)
	return p
}

// Events returns the Player's event stream - SPEC_FULL.md supplement 1.
func (p *Player) Events() <-chan Event { return p.events }

// RegisterDevice subscribes the Player as a client of dev, forwarding
// every Flip it receives into the Player's control loop.
func (p *Player) RegisterDevice(dev *audiodevice.Device) {
	p.devices[dev.ID()] = dev
	ch := dev.Register(p.id)
	go func() {
		for flip := range ch {
			p.flips <- flipEnvelope{deviceID: dev.ID(), flip: flip}
		}
	}()
}

// Submit enqueues a Command and blocks until it has been applied (or
// rejected) by the Player's control loop.
func (p *Player) Submit(ctx context.Context, cmd Command) error {
	reply := make(chan error, 1)
	select {
	case p.commands <- commandEnvelope{cmd: cmd, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the Player's control loop until ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-p.flips:
			p.onFlip(env)
		case tc := <-p.taskDone:
			p.onTaskCompleted(tc)
		case ce := <-p.commands:
			ce.reply <- p.onCommand(ce.cmd)
		}
	}
}

func (p *Player) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("event stream full, dropping event")
	}
}

func (p *Player) setState(s State) {
	if p.state == s {
		return
	}
	p.state = s
	p.emit(StateChanged{State: s})
}

func (p *Player) onCommand(cmd Command) error {
	switch c := cmd.(type) {
	case Play:
		p.playHead = p.playHead.WithPlayRegion(c.Region)
		p.current = newWorkSet(p.playHead, p.g.NodeIDs())
		p.setState(Running)
		p.dispatch(p.current)
		return nil
	case Stop:
		p.setState(Idle)
		p.current = newWorkSet(p.playHead, nil)
		p.partials = nil
		return nil
	case Seek:
		p.playHead.Position = c.Position
		p.playHead.Generation++
		p.current = newWorkSet(p.playHead, p.g.NodeIDs())
		p.dispatch(p.current)
		return nil
	case ModifyGraph:
		if err := p.validateOps(c.Ops); err != nil {
			return err
		}
		p.pendingOps = append(p.pendingOps, c.Ops...)
		if p.current.idle() && p.drained() {
			return p.applyPendingOps()
		}
		p.draining = true
		p.setState(Draining)
		return nil
	default:
		return fmt.Errorf("player: unknown command %T", cmd)
	}
}

func (p *Player) drained() bool {
	for _, ws := range p.partials {
		if !ws.drained() {
			return false
		}
	}
	return true
}

// validateOps checks every op against a scratch copy of the graph so a
// bad batch is rejected wholesale before any of it is queued -
// spec.md §4.3 "ModifyGraph is all-or-nothing".
func (p *Player) validateOps(ops []GraphOp) error {
	scratch := p.g.Clone()
	return applyOpsTo(scratch, ops)
}

func (p *Player) applyPendingOps() error {
	ops := p.pendingOps
	p.pendingOps = nil
	p.draining = false
	if err := applyOpsTo(p.g, ops); err != nil {
		return err
	}
	for _, op := range ops {
		p.syncNodeState(op)
	}
	p.recomputeRequirements()
	p.recomputeLatencies()
	if p.state == Draining {
		p.setState(Running)
	}
	p.current = newWorkSet(p.playHead, p.g.NodeIDs())
	p.emit(NodesPrepared{PlayID: p.playHead.PlayID, Nodes: p.nodeInfoSnapshot()})
	if p.state == Running {
		p.dispatch(p.current)
	}
	return nil
}

func (p *Player) nodeInfoSnapshot() map[graph.NodeID]graph.NodeInfo {
	out := make(map[graph.NodeID]graph.NodeInfo, len(p.nodes))
	for id, ns := range p.nodes {
		out[id] = ns.info
	}
	return out
}

func applyOpsTo(g *graph.Graph, ops []GraphOp) error {
	for _, op := range ops {
		switch o := op.(type) {
		case AddSource:
			if err := g.AddNode(graph.NodeID{Kind: graph.Source, ID: o.ID}, o.Info); err != nil {
				return err
			}
		case AddInsert:
			if err := g.AddNode(graph.NodeID{Kind: graph.Insert, ID: o.ID}, o.Info); err != nil {
				return err
			}
		case AddBus:
			if err := g.AddNode(graph.NodeID{Kind: graph.Bus, ID: o.ID}, o.Info); err != nil {
				return err
			}
		case AddSink:
			if err := g.AddNode(graph.NodeID{Kind: graph.Sink, ID: o.ID}, o.Info); err != nil {
				return err
			}
		case RemoveNode:
			if err := g.RemoveNode(o.ID); err != nil {
				return err
			}
		case Connect:
			if err := g.Connect(o.From, o.To); err != nil {
				return err
			}
		case Disconnect:
			if err := g.Disconnect(o.From, o.To); err != nil {
				return err
			}
		case SetSourcePath:
			// Path retargeting is a node-level concern handled by the
			// node implementation itself on its next Process call; the
			// graph topology is unaffected.
		default:
			return fmt.Errorf("player: unknown graph op %T", op)
		}
	}
	return nil
}

func (p *Player) syncNodeState(op GraphOp) {
	switch o := op.(type) {
	case AddSource:
		p.addNodeState(graph.NodeID{Kind: graph.Source, ID: o.ID}, o.Info, o.Node)
	case AddInsert:
		p.addNodeState(graph.NodeID{Kind: graph.Insert, ID: o.ID}, o.Info, o.Node)
	case AddBus:
		p.addNodeState(graph.NodeID{Kind: graph.Bus, ID: o.ID}, o.Info, o.Node)
	case AddSink:
		p.addNodeState(graph.NodeID{Kind: graph.Sink, ID: o.ID}, o.Info, o.Node)
	case RemoveNode:
		delete(p.nodes, o.ID)
	}
}

func (p *Player) addNodeState(id graph.NodeID, info graph.NodeInfo, node graph.Node) {
	p.nodes[id] = &nodeState{
		info:    info,
		node:    node,
		buffers: graph.NewNodeBuffers(info.NumInputs, info.NumOutputs, int(p.playHead.BufferSize)),
	}
}

// recomputeRequirements refreshes every surviving node's upstream
// dependency set from the graph's current wiring; called after a batch
// of structural ops so Connect/Disconnect/RemoveNode are all reflected
// before the next WorkSet dispatches against them.
func (p *Player) recomputeRequirements() {
	for id, ns := range p.nodes {
		ns.requirements = p.g.NodeRequirements(id)
	}
}

// onFlip folds one device's Flip into the current WorkSet: it records
// the device's buffers, keeps the earliest deadline received, and dispatches whatever
// becomes runnable as a result - spec.md §4.3 steps 2-3.
func (p *Player) onFlip(env flipEnvelope) {
	if p.draining {
		// New flips are not accepted while a structural change drains
		// in-flight WorkSets; the device will simply see this client
		// miss a deadline, which is fine - no audio is expected to flow
		// mid-reconfiguration.
		return
	}
	ws := p.current
	ws.deviceFlipsStarted[env.deviceID] = env.flip.Buffers
	ws.extendDeadline(env.flip.Deadline)
	p.dispatch(ws)
}

// dispatch starts every node in ws whose upstream node requirements
// have already executed in ws and whose device requirements have all
// delivered a Flip this cycle.
func (p *Player) dispatch(ws *workSet) {
	for id := range ws.nodesToExecute {
		ns, ok := p.nodes[id]
		if !ok {
			delete(ws.nodesToExecute, id)
			continue
		}
		if !p.requirementsMet(ws, ns) {
			continue
		}
		delete(ws.nodesToExecute, id)
		ws.nodesExecuting[id] = true
		gen := ws.playHead.Generation
		ns.processingGeneration = &gen
		go p.execute(id, ns, ws)
	}
}

func (p *Player) requirementsMet(ws *workSet, ns *nodeState) bool {
	for _, req := range ns.requirements {
		if !ws.nodesExecuted[req] {
			return false
		}
	}
	for _, devID := range ns.info.AudioDeviceRequirements {
		if _, ok := ws.deviceFlipsStarted[devID]; !ok {
			return false
		}
	}
	return true
}

func (p *Player) execute(id graph.NodeID, ns *nodeState, ws *workSet) {
	devBuffers := graph.DeviceBuffers{}
	for _, devID := range ns.info.AudioDeviceRequirements {
		if planes, ok := ws.deviceFlipsStarted[devID]; ok {
			devBuffers[devID] = planes
		}
	}
	reports, err := ns.node.Process(context.Background(), ws.playHead, devBuffers, ns.buffers, ws.deadline)
	p.taskDone <- taskCompletion{node: id, generation: ws.playHead.Generation, reports: reports, err: err}
}

// onTaskCompleted routes a finished node back to the WorkSet it belongs
// to (current, or one of the surviving partials), closes out that
// WorkSet if it is now fully drained, and advances the play head when
// the current WorkSet has nothing left to dispatch.
func (p *Player) onTaskCompleted(tc taskCompletion) {
	ws := p.workSetForGeneration(tc.generation)
	if ws == nil {
		p.logger.Warn("completion for unknown generation, dropping", "node", tc.node, "generation", tc.generation)
		return
	}

	ns := p.nodes[tc.node]
	if ns != nil {
		ns.processingGeneration = nil
	}
	delete(ws.nodesExecuting, tc.node)
	ws.nodesExecuted[tc.node] = true

	if tc.err != nil {
		p.logger.Error("node failed, aborting work set", "node", tc.node, "error", tc.err)
		p.abort(ws, tc.node)
	} else if len(tc.reports) > 0 {
		entries := make([]NodeEventEntry, len(tc.reports))
		for i, r := range tc.reports {
			entries[i] = NodeEventEntry{Node: tc.node, Report: r}
		}
		p.emit(NodeEvents{PlayID: ws.playHead.PlayID, Generation: ws.playHead.Generation, Events: entries})
	}

	p.dispatch(ws)
	p.checkFlipsFinished(ws)

	if len(ws.nodesToExecute) == 0 {
		if ws == p.current {
			p.finishCurrent()
		} else if ws.drained() {
			p.removePartial(ws)
		}
	}
}

func (p *Player) workSetForGeneration(gen uint64) *workSet {
	if p.current != nil && p.current.playHead.Generation == gen {
		return p.current
	}
	for _, ws := range p.partials {
		if ws.playHead.Generation == gen {
			return ws
		}
	}
	return nil
}

func (p *Player) removePartial(target *workSet) {
	out := p.partials[:0]
	for _, ws := range p.partials {
		if ws != target {
			out = append(out, ws)
		}
	}
	p.partials = out
}

// abort tops the failed node's own outputs up with silence (its
// Process call errored, so whatever it wrote is not trustworthy) and
// does the same for every node that never got a chance to dispatch
// this cycle, so sample-accuracy downstream is preserved - spec.md
// §4.3 "A node returning an error fails the WorkSet".
func (p *Player) abort(ws *workSet, failedNode graph.NodeID) {
	ws.failed = true
	p.silenceOutputsOf(failedNode, int(ws.playHead.BufferSize))
	for id := range ws.nodesToExecute {
		p.silenceOutputsOf(id, int(ws.playHead.BufferSize))
		ws.nodesExecuted[id] = true
	}
	ws.nodesToExecute = map[graph.NodeID]bool{}
}

func (p *Player) silenceOutputsOf(id graph.NodeID, bufferSize int) {
	for key, conn := range p.g.Connections() {
		if key.From.Node == id {
			conn.Push(make([]float64, bufferSize))
		}
	}
}

// checkFlipsFinished reports FlipFinished to any device whose buffers
// no longer have an outstanding consumer in ws.
func (p *Player) checkFlipsFinished(ws *workSet) {
	for devID := range ws.deviceFlipsStarted {
		if ws.deviceFlipsFinished[devID] {
			continue
		}
		if p.deviceStillNeeded(ws, devID) {
			continue
		}
		ws.deviceFlipsFinished[devID] = true
		if dev, ok := p.devices[devID]; ok {
			dev.FlipFinished(p.id, ws.playHead.Generation)
		}
	}
}

func (p *Player) deviceStillNeeded(ws *workSet, devID string) bool {
	for id := range ws.nodesToExecute {
		if p.requiresDevice(id, devID) {
			return true
		}
	}
	for id := range ws.nodesExecuting {
		if p.requiresDevice(id, devID) {
			return true
		}
	}
	return false
}

func (p *Player) requiresDevice(id graph.NodeID, devID string) bool {
	ns, ok := p.nodes[id]
	if !ok {
		return false
	}
	for _, d := range ns.info.AudioDeviceRequirements {
		if d == devID {
			return true
		}
	}
	return false
}

// finishCurrent advances the play head by one buffer, applies any
// structural changes queued while the cycle ran, and rotates the
// WorkSet - spec.md §4.3 step 6. If the outgoing WorkSet still has
// nodes executing, it survives as a partial WorkSet rather than being
// discarded.
func (p *Player) finishCurrent() {
	prev := p.current
	p.playHead = prev.playHead.AdvancePositionBy(int(prev.playHead.BufferSize))

	if !prev.drained() {
		p.partials = append(p.partials, prev)
		if len(p.partials) > PartialWorkSetMaxQueueDepth {
			p.emit(PlayerBackPressure{QueueDepth: len(p.partials)})
		}
	}

	if len(p.pendingOps) > 0 && p.drained() {
		if err := p.applyPendingOps(); err != nil {
			p.logger.Error("failed to apply queued graph ops", "error", err)
		}
		return
	}

	p.current = newWorkSet(p.playHead, p.g.NodeIDs())
	if p.state == Running {
		p.dispatch(p.current)
	}
}

// recomputeLatencies re-runs the two-pass latency-compensation
// relaxation over every connection after a structural change -
// SPEC_FULL.md supplement 3, grounded on original_source's
// rust/audio-engine/src/connection.rs::update_latency.
func (p *Player) recomputeLatencies() {
	needsReset := RecomputeLatencies(p.g, p.nodeLatencyLookup)
	for _, key := range needsReset {
		if conn, ok := p.g.Connection(key.From, key.To); ok {
			_ = conn.SetLatency(0)
		}
	}
}

func (p *Player) nodeLatencyLookup(id graph.NodeID) int {
	if ns, ok := p.nodes[id]; ok {
		return ns.info.LatencySamples
	}
	return 0
}
