package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/audiocloud-domain/internal/audiodevice"
	"github.com/doismellburning/audiocloud-domain/internal/graph"
)

// countingNode records how many times it was processed and optionally
// fails on demand; it satisfies graph.Node.
type countingNode struct {
	mu    sync.Mutex
	calls int
	info  graph.NodeInfo
	fail  bool
}

func (n *countingNode) Info() graph.NodeInfo { return n.info }

func (n *countingNode) Process(_ context.Context, _ graph.PlayHead, _ graph.DeviceBuffers, io graph.NodeBuffers, _ time.Time) ([]graph.Report, error) {
	n.mu.Lock()
	n.calls++
	fail := n.fail
	n.mu.Unlock()
	for _, out := range io.Outputs {
		for i := range out {
			out[i] = 1
		}
	}
	if fail {
		return nil, assertErr
	}
	return nil, nil
}

func (n *countingNode) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

var assertErr = &fakeErr{"node failed"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

func buildSourceSinkGraph(t *testing.T, p *Player, deviceID string) (*countingNode, *countingNode) {
	t.Helper()
	source := &countingNode{info: graph.NodeInfo{NumOutputs: 1, AudioDeviceRequirements: []string{deviceID}}}
	sink := &countingNode{info: graph.NodeInfo{NumInputs: 1}}

	err := p.Submit(context.Background(), ModifyGraph{Ops: []GraphOp{
		AddSource{ID: "src", Info: source.info, Node: source},
		AddSink{ID: "snk", Info: sink.info, Node: sink},
		Connect{
			From: graph.OutputID{Node: graph.NodeID{Kind: graph.Source, ID: "src"}, Channel: 0},
			To:   graph.InputID{Node: graph.NodeID{Kind: graph.Sink, ID: "snk"}, Channel: 0},
		},
	}})
	require.NoError(t, err)
	return source, sink
}

func TestPlayer_DispatchesNodesOnFlipAndAdvancesPlayHead(t *testing.T) {
	p := New("p1", 48000, 512, nil)
	dev := audiodevice.New("dev0", nil)
	p.RegisterDevice(dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	source, sink := buildSourceSinkGraph(t, p, "dev0")

	require.NoError(t, p.Submit(ctx, Play{Region: graph.PlayRegion{End: 96000}}))

	for i := 0; i < 5; i++ {
		dev.Flip(&graph.DevicePlanes{}, time.Now().Add(50*time.Millisecond))
	}

	require.Eventually(t, func() bool {
		return source.callCount() >= 5 && sink.callCount() >= 5
	}, time.Second, time.Millisecond)
}

func TestPlayer_StopStartsFreshWorkSetAtIdle(t *testing.T) {
	p := New("p1", 48000, 512, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	source, _ := buildSourceSinkGraph(t, p, "dev0")
	require.NoError(t, p.Submit(ctx, Play{Region: graph.PlayRegion{End: 1000}}))
	require.NoError(t, p.Submit(ctx, Stop{}))

	// Idle: no device is registered and no flip is being driven, so the
	// node must not be dispatched at all.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, source.callCount())
}

func TestPlayer_FailingNodeAbortsWorkSetAndLogsWithoutPanicking(t *testing.T) {
	p := New("p1", 48000, 512, nil)
	dev := audiodevice.New("dev0", nil)
	p.RegisterDevice(dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	source, _ := buildSourceSinkGraph(t, p, "dev0")
	source.mu.Lock()
	source.fail = true
	source.mu.Unlock()

	require.NoError(t, p.Submit(ctx, Play{Region: graph.PlayRegion{End: 96000}}))

	assert.NotPanics(t, func() {
		dev.Flip(&graph.DevicePlanes{}, time.Now().Add(50*time.Millisecond))
		time.Sleep(20 * time.Millisecond)
	})
}

func TestPlayer_ModifyGraphRejectsCycleWithoutMutatingLiveGraph(t *testing.T) {
	p := New("p1", 48000, 512, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	a := &countingNode{info: graph.NodeInfo{NumInputs: 1, NumOutputs: 1}}
	b := &countingNode{info: graph.NodeInfo{NumInputs: 1, NumOutputs: 1}}

	err := p.Submit(ctx, ModifyGraph{Ops: []GraphOp{
		AddInsert{ID: "a", Info: a.info, Node: a},
		AddInsert{ID: "b", Info: b.info, Node: b},
		Connect{
			From: graph.OutputID{Node: graph.NodeID{Kind: graph.Insert, ID: "a"}, Channel: 0},
			To:   graph.InputID{Node: graph.NodeID{Kind: graph.Insert, ID: "b"}, Channel: 0},
		},
		Connect{
			From: graph.OutputID{Node: graph.NodeID{Kind: graph.Insert, ID: "b"}, Channel: 0},
			To:   graph.InputID{Node: graph.NodeID{Kind: graph.Insert, ID: "a"}, Channel: 0},
		},
	}})

	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrLoopDetected)
}
