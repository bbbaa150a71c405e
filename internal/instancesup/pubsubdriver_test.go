package instancesup

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
	"github.com/doismellburning/audiocloud-domain/internal/pubsub"
)

func TestPubSubDriverFactory_SetPowerChannelPublishesEnvelope(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	received := make(chan []byte, 1)
	_, err := bus.Subscribe(pubsub.InstancePowerCommandSubject("acme/amp/1"), func(_ string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	driver := PubSubDriverFactory{Bus: bus}.NewDriver("drv-1", "acme/amp/1")
	require.NoError(t, driver.SetPowerChannel(context.Background(), fixedinstance.SetPowerChannel{Channel: 2, PowerUp: true}))

	var envelope powerCommandEnvelope
	require.NoError(t, json.Unmarshal(<-received, &envelope))
	require.Equal(t, 2, envelope.Channel)
	require.True(t, envelope.PowerUp)
}

func TestPubSubDriverFactory_SetPlayStatePublishesEnvelope(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	received := make(chan []byte, 1)
	_, err := bus.Subscribe(pubsub.InstancePlayStateCommandSubject("acme/amp/1"), func(_ string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	driver := PubSubDriverFactory{Bus: bus}.NewDriver("drv-1", "acme/amp/1")
	require.NoError(t, driver.SetPlayState(context.Background(), "acme/amp/1", fixedinstance.DesiredPlayState{
		Kind: fixedinstance.DesiredPlaying, PlayID: "p1",
	}))

	var envelope playStateCommandEnvelope
	require.NoError(t, json.Unmarshal(<-received, &envelope))
	require.Equal(t, fixedinstance.DesiredPlaying, envelope.Kind)
	require.Equal(t, "p1", envelope.PlayID)
}

func TestPubSubDriverFactory_MergeParametersPublishesMap(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	received := make(chan []byte, 1)
	_, err := bus.Subscribe(pubsub.InstanceSetParametersSubject("acme/amp/1"), func(_ string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	driver := PubSubDriverFactory{Bus: bus}.NewDriver("drv-1", "acme/amp/1")
	require.NoError(t, driver.MergeParameters(context.Background(), "acme/amp/1", map[string]float64{"gain": 1.5}))

	var params map[string]float64
	require.NoError(t, json.Unmarshal(<-received, &params))
	require.Equal(t, 1.5, params["gain"])
}
