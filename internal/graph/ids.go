// Package graph implements the audio processing DAG: nodes, pads,
// connections (sample-accurate delay lines), the play head, and the
// WorkSet unit of scheduled work. It is the data model behind
// internal/player's Graph Player.
package graph

import "fmt"

// Kind tags a node's role in the DAG. spec.md §3: "Identified by a
// tagged id: source | insert | bus | sink."
type Kind string

const (
	Source Kind = "source"
	Insert Kind = "insert"
	Bus    Kind = "bus"
	Sink   Kind = "sink"
)

// NodeID identifies one node in a Graph.
type NodeID struct {
	Kind Kind
	ID   string
}

func (n NodeID) String() string { return fmt.Sprintf("%s:%s", n.Kind, n.ID) }

// OutputID is a node's output pad: (NodeId, channel_index).
type OutputID struct {
	Node    NodeID
	Channel int
}

func (o OutputID) String() string { return fmt.Sprintf("%s.out[%d]", o.Node, o.Channel) }

// InputID is a node's input pad: (NodeId, channel_index).
type InputID struct {
	Node    NodeID
	Channel int
}

func (i InputID) String() string { return fmt.Sprintf("%s.in[%d]", i.Node, i.Channel) }

// EdgeKey identifies a single Connection in a Graph - (OutputID -> InputID).
type EdgeKey struct {
	From OutputID
	To   InputID
}
