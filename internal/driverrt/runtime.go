// Package driverrt is the Driver Runtime: it owns the command
// translation from a Fixed-Instance Actor's abstract commands to a
// concrete hardware Backend's wire protocol, polls each Backend for
// driver-reported events, and republishes them. Grounded on
// rust/domain-server/src/instance_driver/{run.rs,server.rs,service.rs}.
package driverrt

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
)

// PollInterval is how often an idle backend is polled for new events
// when no command is pending - grounded on run_driver_server's
// `sleep(Duration::from_millis(10))` branch of its select loop.
const PollInterval = 10 * time.Millisecond

// PollBudget bounds how long a single Poll call may take, grounded on
// run_driver_server's `deadline = Instant::now() + Duration::from_millis(100)`.
const PollBudget = 100 * time.Millisecond

// RestartBackoff is how long the runtime waits before retrying
// backend creation after a failure, grounded on run_driver_server's
// `sleep(Duration::from_secs(1))` on instance-creation failure.
const RestartBackoff = time.Second

// Event is a single occurrence a Backend wants to report upstream -
// a power transition, a play-state transition, or a raw parameter
// readback - grounded on api::driver::InstanceDriverEvent.
type Event struct {
	Kind      EventKind
	Parameter string
	Value     float64
	PowerUp   bool
	PlayState fixedinstance.PlayState
}

// EventKind discriminates the union Event represents.
type EventKind int

const (
	EventParameterChanged EventKind = iota
	EventPowerChanged
	EventPlayStateChanged
)

// Backend is a concrete hardware integration a Driver Runtime drives -
// implemented by usbhid, serial and gpio in this package. Grounded on
// instance_driver::Driver's create_shared/new/set_parameter/poll/
// can_continue contract, flattened into a single per-instance value
// since Go has no separate "shared state" vs "instance" split.
type Backend interface {
	// SetParameter pushes a single named parameter write, at an
	// optional channel, to the hardware.
	SetParameter(ctx context.Context, parameter string, channel int, value float64) error
	// SetPower flips a power-controlled channel.
	SetPower(ctx context.Context, channel int, up bool) error
	// SetPlayState transitions the backend's transport.
	SetPlayState(ctx context.Context, desired fixedinstance.DesiredPlayState) error
	// Poll drains any events the backend has accumulated since the
	// last call, returning once ctx's deadline is reached or there is
	// nothing left to report.
	Poll(ctx context.Context) ([]Event, error)
	// Close releases the backend's underlying resources.
	Close() error
}

// BackendFactory constructs the Backend for a given instance,
// matching instancesup.DriverFactory's per-instance-id shape.
type BackendFactory interface {
	NewBackend(instanceID string) (Backend, error)
}

// EventSink is where a Runtime republishes Backend-reported events -
// typically internal/pubsub.Bus, kept as a narrow interface so this
// package doesn't import pubsub directly.
type EventSink interface {
	PublishDriverEvent(instanceID string, event Event)
}

// Runtime drives one Backend per instance and implements
// fixedinstance.Driver by translating each Fixed-Instance Actor
// command into a Backend call, grounded on run_driver_server's
// command-then-poll select loop.
type Runtime struct {
	factory BackendFactory
	sink    EventSink
	logger  *log.Logger

	backends map[string]Backend
}

// NewRuntime returns a Driver Runtime with no backends created yet.
func NewRuntime(factory BackendFactory, sink EventSink, logger *log.Logger) *Runtime {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runtime{
		factory:  factory,
		sink:     sink,
		logger:   logger.With("component", "driverrt"),
		backends: make(map[string]Backend),
	}
}

// NewDriver satisfies internal/instancesup.DriverFactory: it returns a
// fixedinstance.Driver bound to instanceID. The backend is created on
// the driver's first call; from then on Run polls it with the others.
func (r *Runtime) NewDriver(_ string, instanceID string) fixedinstance.Driver {
	return &instanceDriver{runtime: r, instanceID: instanceID}
}

func (r *Runtime) backendFor(instanceID string) (Backend, error) {
	if b, ok := r.backends[instanceID]; ok {
		return b, nil
	}
	b, err := r.factory.NewBackend(instanceID)
	if err != nil {
		return nil, err
	}
	r.backends[instanceID] = b
	return b, nil
}

// Run polls every created backend every PollInterval until ctx is
// cancelled, republishing whatever events each backend reports.
func (r *Runtime) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollAll(ctx)
		}
	}
}

func (r *Runtime) pollAll(ctx context.Context) {
	for instanceID, backend := range r.backends {
		pollCtx, cancel := context.WithTimeout(ctx, PollBudget)
		events, err := backend.Poll(pollCtx)
		cancel()
		if err != nil {
			r.logger.Warn("backend poll failed", "instance", instanceID, "error", err)
			continue
		}
		for _, ev := range events {
			if r.sink != nil {
				r.sink.PublishDriverEvent(instanceID, ev)
			}
		}
	}
}

// instanceDriver adapts one instance's Backend to fixedinstance.Driver.
type instanceDriver struct {
	runtime    *Runtime
	instanceID string
}

func (d *instanceDriver) SetPowerChannel(ctx context.Context, cmd fixedinstance.SetPowerChannel) error {
	b, err := d.runtime.backendFor(d.instanceID)
	if err != nil {
		return err
	}
	return b.SetPower(ctx, cmd.Channel, cmd.PowerUp)
}

func (d *instanceDriver) SetPlayState(ctx context.Context, _ string, desired fixedinstance.DesiredPlayState) error {
	b, err := d.runtime.backendFor(d.instanceID)
	if err != nil {
		return err
	}
	return b.SetPlayState(ctx, desired)
}

func (d *instanceDriver) MergeParameters(ctx context.Context, _ string, parameters map[string]float64) error {
	b, err := d.runtime.backendFor(d.instanceID)
	if err != nil {
		return err
	}
	var errs error
	for name, value := range parameters {
		if err := b.SetParameter(ctx, name, 0, value); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
