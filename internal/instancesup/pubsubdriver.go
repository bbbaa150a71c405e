package instancesup

import (
	"context"
	"encoding/json"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
	"github.com/doismellburning/audiocloud-domain/internal/pubsub"
)

// powerCommandEnvelope is the wire shape of a SetPowerChannel command
// published on pubsub.InstancePowerCommandSubject.
type powerCommandEnvelope struct {
	Channel int  `json:"channel"`
	PowerUp bool `json:"power_up"`
}

// playStateCommandEnvelope is the wire shape of a DesiredPlayState
// command published on pubsub.InstancePlayStateCommandSubject.
type playStateCommandEnvelope struct {
	Kind        fixedinstance.DesiredPlayStateKind `json:"kind"`
	PlayID      string                             `json:"play_id,omitempty"`
	RenderID    string                             `json:"render_id,omitempty"`
	Length      float64                            `json:"length,omitempty"`
	HasPosition bool                                `json:"has_position,omitempty"`
	Position    float64                             `json:"position,omitempty"`
}

// PubSubDriverFactory builds Drivers that dispatch every Fixed-Instance
// Actor command over internal/pubsub rather than calling hardware
// in-process, for instances whose driver runs as a separate cmd/driver
// process (grounded on spec.md's Non-goal leaving driver protocol
// details a collaborator - here, the collaborator is whatever reads
// these subjects and has a real Backend attached).
type PubSubDriverFactory struct {
	Bus pubsub.Bus
}

// NewDriver satisfies DriverFactory. driverID is unused: instances are
// addressed by instanceID alone on the pub/sub subject scheme.
func (f PubSubDriverFactory) NewDriver(_ string, instanceID string) fixedinstance.Driver {
	return pubSubDriver{bus: f.Bus, instanceID: instanceID}
}

type pubSubDriver struct {
	bus        pubsub.Bus
	instanceID string
}

func (d pubSubDriver) SetPowerChannel(_ context.Context, cmd fixedinstance.SetPowerChannel) error {
	payload, err := json.Marshal(powerCommandEnvelope{Channel: cmd.Channel, PowerUp: cmd.PowerUp})
	if err != nil {
		return err
	}
	return d.bus.Publish(pubsub.InstancePowerCommandSubject(d.instanceID), payload)
}

func (d pubSubDriver) SetPlayState(_ context.Context, _ string, desired fixedinstance.DesiredPlayState) error {
	payload, err := json.Marshal(playStateCommandEnvelope{
		Kind:        desired.Kind,
		PlayID:      desired.PlayID,
		RenderID:    desired.RenderID,
		Length:      desired.Length,
		HasPosition: desired.HasPosition,
		Position:    desired.Position,
	})
	if err != nil {
		return err
	}
	return d.bus.Publish(pubsub.InstancePlayStateCommandSubject(d.instanceID), payload)
}

func (d pubSubDriver) MergeParameters(_ context.Context, _ string, parameters map[string]float64) error {
	payload, err := json.Marshal(parameters)
	if err != nil {
		return err
	}
	return d.bus.Publish(pubsub.InstanceSetParametersSubject(d.instanceID), payload)
}
