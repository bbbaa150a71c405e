package main

import (
	"encoding/json"

	"github.com/doismellburning/audiocloud-domain/internal/driverrt"
	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
	"github.com/doismellburning/audiocloud-domain/internal/pubsub"
)

// driverEventEnvelope is the wire shape of a driverrt.Event published
// on pubsub.InstanceEventsSubject, mirroring the discriminated-kind
// envelope internal/instancesup and internal/tasksup use for their own
// pub/sub payloads.
type driverEventEnvelope struct {
	Kind      driverrt.EventKind     `json:"kind"`
	Parameter string                 `json:"parameter,omitempty"`
	Value     float64                `json:"value,omitempty"`
	PowerUp   bool                   `json:"power_up,omitempty"`
	PlayState *playStateEventPayload `json:"play_state,omitempty"`
}

type playStateEventPayload struct {
	Kind        fixedinstance.PlayStateKind `json:"kind"`
	PlayID      string                      `json:"play_id,omitempty"`
	RenderID    string                      `json:"render_id,omitempty"`
	Length      float64                     `json:"length,omitempty"`
	RewindTo    float64                     `json:"rewind_to,omitempty"`
	HasPosition bool                        `json:"has_position,omitempty"`
	Position    float64                     `json:"position,omitempty"`
}

// pubSubEventSink publishes every driverrt.Event a Runtime reports
// onto pubsub.InstanceEventsSubject, satisfying driverrt.EventSink.
type pubSubEventSink struct {
	bus pubsub.Bus
}

func (s pubSubEventSink) PublishDriverEvent(instanceID string, event driverrt.Event) {
	envelope := driverEventEnvelope{
		Kind:      event.Kind,
		Parameter: event.Parameter,
		Value:     event.Value,
		PowerUp:   event.PowerUp,
	}

	if event.Kind == driverrt.EventPlayStateChanged {
		ps := event.PlayState
		envelope.PlayState = &playStateEventPayload{
			Kind:        ps.Kind,
			PlayID:      ps.PlayID,
			RenderID:    ps.RenderID,
			Length:      ps.Length,
			RewindTo:    ps.RewindTo,
			HasPosition: ps.HasPosition,
			Position:    ps.Position,
		}
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}

	_ = s.bus.Publish(pubsub.InstanceEventsSubject(instanceID), payload)
}
