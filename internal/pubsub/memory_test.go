package pubsub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_DeliversToAllSubscribersOfASubject(t *testing.T) {
	b := NewMemoryBus()
	var mu sync.Mutex
	var received []string

	_, err := b.Subscribe("instance.inst-1.events", func(_ string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, string(payload))
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish("instance.inst-1.events", []byte("hello")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)
}

func TestMemoryBus_DoesNotDeliverToADifferentSubject(t *testing.T) {
	b := NewMemoryBus()
	delivered := make(chan struct{}, 1)

	_, err := b.Subscribe("instance.inst-1.events", func(string, []byte) { delivered <- struct{}{} })
	require.NoError(t, err)

	require.NoError(t, b.Publish("instance.inst-2.events", []byte("hello")))

	select {
	case <-delivered:
		t.Fatal("should not have been delivered")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemoryBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	delivered := make(chan struct{}, 1)

	sub, err := b.Subscribe("engine.e1.command", func(string, []byte) { delivered <- struct{}{} })
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, b.Publish("engine.e1.command", []byte("x")))

	select {
	case <-delivered:
		t.Fatal("should not have been delivered after unsubscribe")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubjectScheme_MatchesTheDocumentedPattern(t *testing.T) {
	assert.Equal(t, "instance.inst-1.events", InstanceEventsSubject("inst-1"))
	assert.Equal(t, "instance.inst-1.set_parameters", InstanceSetParametersSubject("inst-1"))
	assert.Equal(t, "engine.e1.command", EngineCommandSubject("e1"))
}
