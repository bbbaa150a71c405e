package instancesup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
)

type noopDriver struct{}

func (noopDriver) SetPowerChannel(context.Context, fixedinstance.SetPowerChannel) error { return nil }
func (noopDriver) SetPlayState(context.Context, string, fixedinstance.DesiredPlayState) error {
	return nil
}
func (noopDriver) MergeParameters(context.Context, string, map[string]float64) error { return nil }

type fakeFactory struct{}

func (fakeFactory) NewDriver(string, string) fixedinstance.Driver { return noopDriver{} }

func TestSupervisor_StartsActorOnceDriverAndConfigBothPresent(t *testing.T) {
	s := New(fakeFactory{}, nil)
	s.SetConfiguration(map[string]InstanceConfig{
		"inst-1": {ID: "inst-1", DriverID: "drv-1"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	_, ok := s.Actor("inst-1")
	assert.False(t, ok, "no driver registered yet")

	s.RegisterDriver("drv-1", "http://driver")
	s.reconcileActors(ctx)

	_, ok = s.Actor("inst-1")
	assert.True(t, ok)
}

func TestSupervisor_StopsActorWhenInstanceDroppedFromConfiguration(t *testing.T) {
	s := New(fakeFactory{}, nil)
	s.RegisterDriver("drv-1", "http://driver")
	s.SetConfiguration(map[string]InstanceConfig{"inst-1": {ID: "inst-1", DriverID: "drv-1"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.reconcileActors(ctx)
	require.True(t, func() bool { _, ok := s.Actor("inst-1"); return ok }())

	s.SetConfiguration(map[string]InstanceConfig{})
	s.reconcileActors(ctx)

	_, ok := s.Actor("inst-1")
	assert.False(t, ok)
}

func TestSupervisor_ExpiringADriverStopsItsInstances(t *testing.T) {
	s := New(fakeFactory{}, nil)
	s.RegisterDriver("drv-1", "http://driver")
	s.SetConfiguration(map[string]InstanceConfig{"inst-1": {ID: "inst-1", DriverID: "drv-1"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.reconcileActors(ctx)
	require.True(t, func() bool { _, ok := s.Actor("inst-1"); return ok }())

	s.mu.Lock()
	s.registeredDrivers["drv-1"].lastSeen = time.Now().Add(-2 * DriverOfflineTimeout)
	s.mu.Unlock()

	s.expireStaleDrivers()
	s.reconcileActors(ctx)

	_, ok := s.Actor("inst-1")
	assert.False(t, ok)
}

func TestSupervisor_RunStopsAllActorsOnCancel(t *testing.T) {
	s := New(fakeFactory{}, nil)
	s.RegisterDriver("drv-1", "http://driver")
	s.SetConfiguration(map[string]InstanceConfig{"inst-1": {ID: "inst-1", DriverID: "drv-1"}})

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	s.reconcileActors(ctx)
	require.Eventually(t, func() bool {
		_, ok := s.Actor("inst-1")
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.running) == 0
	}, time.Second, time.Millisecond)
}
