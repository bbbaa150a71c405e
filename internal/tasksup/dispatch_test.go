package tasksup

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doismellburning/audiocloud-domain/internal/pubsub"
	"github.com/doismellburning/audiocloud-domain/internal/task"
)

func TestPubSubDispatcherFactory_DispatchPublishesPlayCommand(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	received := make(chan []byte, 1)
	_, err := bus.Subscribe(pubsub.EngineCommandSubject("engine-1"), func(_ string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	dispatcher := PubSubDispatcherFactory{Bus: bus}.NewDispatcher("engine-1")
	require.NoError(t, dispatcher.Dispatch(context.Background(), "engine-1", task.Play{PlayID: "p1"}))

	var envelope engineCommandEnvelope
	require.NoError(t, json.Unmarshal(<-received, &envelope))
	require.Equal(t, "play", envelope.Kind)
	require.Equal(t, "p1", envelope.PlayID)
}

func TestPubSubDispatcherFactory_DispatchPublishesStopPlayCommand(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	received := make(chan []byte, 1)
	_, err := bus.Subscribe(pubsub.EngineCommandSubject("engine-1"), func(_ string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	dispatcher := PubSubDispatcherFactory{Bus: bus}.NewDispatcher("engine-1")
	require.NoError(t, dispatcher.Dispatch(context.Background(), "engine-1", task.StopPlay{PlayID: "p1"}))

	var envelope engineCommandEnvelope
	require.NoError(t, json.Unmarshal(<-received, &envelope))
	require.Equal(t, "stop_play", envelope.Kind)
}
