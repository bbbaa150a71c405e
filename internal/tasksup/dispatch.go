package tasksup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/doismellburning/audiocloud-domain/internal/pubsub"
	"github.com/doismellburning/audiocloud-domain/internal/task"
)

// engineCommandEnvelope is the wire shape an EngineCommand is published
// as on pubsub.EngineCommandSubject - a discriminated "kind" field
// alongside whichever id the command carries, since task.EngineCommand
// is a closed Go interface with no serialization of its own.
type engineCommandEnvelope struct {
	Kind     string `json:"kind"`
	PlayID   string `json:"play_id,omitempty"`
	RenderID string `json:"render_id,omitempty"`
}

func encodeEngineCommand(cmd task.EngineCommand) ([]byte, error) {
	var envelope engineCommandEnvelope
	switch c := cmd.(type) {
	case task.Play:
		envelope = engineCommandEnvelope{Kind: "play", PlayID: c.PlayID}
	case task.Render:
		envelope = engineCommandEnvelope{Kind: "render", RenderID: c.RenderID}
	case task.StopPlay:
		envelope = engineCommandEnvelope{Kind: "stop_play", PlayID: c.PlayID}
	case task.CancelRender:
		envelope = engineCommandEnvelope{Kind: "cancel_render", RenderID: c.RenderID}
	default:
		return nil, fmt.Errorf("tasksup: unknown engine command %T", cmd)
	}
	return json.Marshal(envelope)
}

// PubSubDispatcherFactory builds EngineDispatchers that publish every
// command onto pubsub.EngineCommandSubject, the subject an engine
// process reads its work from. No package in this module subscribes
// to that subject.
type PubSubDispatcherFactory struct {
	Bus pubsub.Bus
}

// NewDispatcher satisfies EngineDispatcherFactory.
func (f PubSubDispatcherFactory) NewDispatcher(engineID string) task.EngineDispatcher {
	return pubSubDispatcher{bus: f.Bus, engineID: engineID}
}

type pubSubDispatcher struct {
	bus      pubsub.Bus
	engineID string
}

// Dispatch satisfies task.EngineDispatcher.
func (d pubSubDispatcher) Dispatch(_ context.Context, engineID string, cmd task.EngineCommand) error {
	payload, err := encodeEngineCommand(cmd)
	if err != nil {
		return err
	}
	return d.bus.Publish(pubsub.EngineCommandSubject(engineID), payload)
}
