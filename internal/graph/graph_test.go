package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func src(id string) NodeID { return NodeID{Kind: Source, ID: id} }
func bus(id string) NodeID { return NodeID{Kind: Bus, ID: id} }
func sink(id string) NodeID { return NodeID{Kind: Sink, ID: id} }

func TestGraph_RejectsCycle(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(bus("a"), NodeInfo{NumInputs: 1, NumOutputs: 1}))
	require.NoError(t, g.AddNode(bus("b"), NodeInfo{NumInputs: 1, NumOutputs: 1}))

	require.NoError(t, g.Connect(OutputID{Node: bus("a"), Channel: 0}, InputID{Node: bus("b"), Channel: 0}))

	err := g.Connect(OutputID{Node: bus("b"), Channel: 0}, InputID{Node: bus("a"), Channel: 0})
	assert.ErrorIs(t, err, ErrLoopDetected)
	assert.True(t, g.IsAcyclic())
}

func TestGraph_RejectsSelfLoop(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(bus("a"), NodeInfo{NumInputs: 1, NumOutputs: 1}))

	err := g.Connect(OutputID{Node: bus("a"), Channel: 0}, InputID{Node: bus("a"), Channel: 0})
	assert.ErrorIs(t, err, ErrLoopDetected)
}

func TestGraph_RejectsMissingPad(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(sink("out"), NodeInfo{NumInputs: 1}))

	err := g.Connect(OutputID{Node: src("ghost"), Channel: 0}, InputID{Node: sink("out"), Channel: 0})
	assert.ErrorIs(t, err, ErrInputSourceNotFound)
}

func TestGraph_AddRemoveSourceRoundTrip(t *testing.T) {
	g := New()
	id := src("s1")
	require.NoError(t, g.AddNode(id, NodeInfo{NumOutputs: 1}))
	require.NoError(t, g.RemoveNode(id))

	_, ok := g.Node(id)
	assert.False(t, ok)
	assert.Empty(t, g.NodeIDs())
}

func TestGraph_ValidAcyclicChainAccepted(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(src("a"), NodeInfo{NumOutputs: 1}))
	require.NoError(t, g.AddNode(bus("b"), NodeInfo{NumInputs: 1, NumOutputs: 1}))
	require.NoError(t, g.AddNode(sink("c"), NodeInfo{NumInputs: 1}))

	require.NoError(t, g.Connect(OutputID{Node: src("a"), Channel: 0}, InputID{Node: bus("b"), Channel: 0}))
	require.NoError(t, g.Connect(OutputID{Node: bus("b"), Channel: 0}, InputID{Node: sink("c"), Channel: 0}))

	assert.True(t, g.IsAcyclic())
	assert.ElementsMatch(t, []NodeID{src("a")}, g.NodeRequirements(bus("b")))
}
