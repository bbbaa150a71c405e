package main

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
	"github.com/doismellburning/audiocloud-domain/internal/pubsub"
)

// powerCommandEnvelope and playStateCommandEnvelope mirror the wire
// shapes internal/instancesup.PubSubDriverFactory publishes - this
// binary is the reader on the other end of those same subjects.
type powerCommandEnvelope struct {
	Channel int  `json:"channel"`
	PowerUp bool `json:"power_up"`
}

type playStateCommandEnvelope struct {
	Kind        fixedinstance.DesiredPlayStateKind `json:"kind"`
	PlayID      string                             `json:"play_id,omitempty"`
	RenderID    string                             `json:"render_id,omitempty"`
	Length      float64                            `json:"length,omitempty"`
	HasPosition bool                                `json:"has_position,omitempty"`
	Position    float64                             `json:"position,omitempty"`
}


// subscribeCommands wires driver up to receive every command
// internal/instancesup.PubSubDriverFactory may publish for instanceID,
// decoding each envelope and forwarding it to driver.
func subscribeCommands(bus pubsub.Bus, instanceID string, driver fixedinstance.Driver, logger *log.Logger) error {
	if _, err := bus.Subscribe(pubsub.InstancePowerCommandSubject(instanceID), func(_ string, payload []byte) {
		var envelope powerCommandEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			logger.Warn("malformed power command", "error", err)
			return
		}
		if err := driver.SetPowerChannel(context.Background(), fixedinstance.SetPowerChannel{
			InstanceID: instanceID,
			Channel:    envelope.Channel,
			PowerUp:    envelope.PowerUp,
		}); err != nil {
			logger.Warn("power command failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := bus.Subscribe(pubsub.InstancePlayStateCommandSubject(instanceID), func(_ string, payload []byte) {
		var envelope playStateCommandEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			logger.Warn("malformed play-state command", "error", err)
			return
		}
		if err := driver.SetPlayState(context.Background(), instanceID, fixedinstance.DesiredPlayState{
			Kind:        envelope.Kind,
			PlayID:      envelope.PlayID,
			RenderID:    envelope.RenderID,
			Length:      envelope.Length,
			HasPosition: envelope.HasPosition,
			Position:    envelope.Position,
		}); err != nil {
			logger.Warn("play-state command failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := bus.Subscribe(pubsub.InstanceSetParametersSubject(instanceID), func(_ string, payload []byte) {
		var parameters map[string]float64
		if err := json.Unmarshal(payload, &parameters); err != nil {
			logger.Warn("malformed parameter command", "error", err)
			return
		}
		if err := driver.MergeParameters(context.Background(), instanceID, parameters); err != nil {
			logger.Warn("parameter command failed", "error", err)
		}
	}); err != nil {
		return err
	}

	return nil
}
