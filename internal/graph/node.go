package graph

import (
	"context"
	"time"
)

// ParameterModel and ReportModel describe a node's controllable
// parameters and emittable report channels. The spec treats their exact
// schema as a collaborator concern (driver/model definitions); here they
// are opaque JSON-shaped trees.
type ParameterModel struct {
	Kind    string `json:"kind"`
	Default any    `json:"default,omitempty"`
}

type ReportModel struct {
	Kind string `json:"kind"`
}

// NodeInfo is the static description of a node - spec.md §3.
type NodeInfo struct {
	LatencySamples int
	NumInputs      int
	NumOutputs     int
	Parameters     map[string]ParameterModel
	Reports        map[string]ReportModel
	// AudioDeviceRequirements names the audio devices (by id) whose flip
	// this node must wait for before it can execute - spec.md §4.3 step 1.
	AudioDeviceRequirements []string
}

// Report is one event a node emits during a process() cycle - metering,
// LUFS, peak levels, spec.md §4.4.
type Report struct {
	Name    string
	Channel int
	Value   float64
}

// DeviceBuffers is the per-device set of hardware input/output sample
// planes for one buffer flip, keyed by device id.
type DeviceBuffers map[string]*DevicePlanes

// DevicePlanes holds one audio device's input (captured) and output (to
// be written) sample planes for the current cycle, one slice per channel.
type DevicePlanes struct {
	Input  [][]float64
	Output [][]float64
}

// NodeBuffers is the node-local clone-cheap handle onto its pre-allocated
// input/output sample planes - the "Node Buffer Pool" of spec.md §2.
type NodeBuffers struct {
	Inputs  [][]float64
	Outputs [][]float64
}

// NewNodeBuffers pre-allocates buffer_size-sized planes for a node with
// the given input/output channel counts.
func NewNodeBuffers(numInputs, numOutputs, bufferSize int) NodeBuffers {
	nb := NodeBuffers{
		Inputs:  make([][]float64, numInputs),
		Outputs: make([][]float64, numOutputs),
	}
	for i := range nb.Inputs {
		nb.Inputs[i] = make([]float64, bufferSize)
	}
	for i := range nb.Outputs {
		nb.Outputs[i] = make([]float64, bufferSize)
	}
	return nb
}

// Clone returns a shallow copy sharing the same underlying sample slices
// - "clone-cheap handles" per spec.md §2. Callers that need isolated
// storage across concurrent WorkSets must allocate a fresh NodeBuffers.
func (nb NodeBuffers) Clone() NodeBuffers {
	return NodeBuffers{Inputs: nb.Inputs, Outputs: nb.Outputs}
}

// Node is the uniform contract implemented by sources, sinks, busses and
// fixed-instance inserts - spec.md §4.4.
//
//	process(play_head, devices_buffers, io_buffers, deadline) -> events
//
// Implementations must complete before deadline; inputs are read-only,
// outputs must be written in full. A node whose context is cancelled
// (pre-empted past its deadline) may still be running when the Player
// moves on - its output for that cycle is treated as silence.
type Node interface {
	Info() NodeInfo
	Process(ctx context.Context, playHead PlayHead, devices DeviceBuffers, io NodeBuffers, deadline time.Time) ([]Report, error)
}
