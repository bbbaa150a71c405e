// Package audiodevice implements the Audio Device Handle of spec.md
// §4.1: it owns a device's ring of buffers, fans a Flip event out to
// every registered client on every buffer rotation, and collects
// FlipFinished acknowledgements until a hard deadline. No error from a
// client crosses back into the caller of Flip - a failed send or a
// missed deadline just drops that client silently, matching the
// "audio must glitch rather than stall" guarantee.
package audiodevice

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/audiocloud-domain/internal/graph"
)

// AckEpsilon is how far before the hard deadline the device stops
// waiting for acknowledgements, spec.md §4.1 "until deadline − ε".
const AckEpsilon = 2 * time.Millisecond

// Flip is delivered to every registered client on each buffer rotation.
type Flip struct {
	DeviceID   string
	Buffers    *graph.DevicePlanes
	Generation uint64
	Deadline   time.Time
}

// FlipResult summarizes one Flip() call for the caller driving the
// device (typically internal/player).
type FlipResult struct {
	Generation uint64
	// Missed lists clients that failed to acknowledge before the
	// deadline, or that could not accept the Flip at all; both are
	// unregistered as a side effect.
	Missed []string
}

type ackMsg struct {
	clientID   string
	generation uint64
}

// Device owns one audio device's buffer rotation and client fan-out.
type Device struct {
	id     string
	logger *log.Logger

	mu      sync.Mutex
	clients map[string]chan Flip

	generation uint64
	acks       chan ackMsg
}

// New returns a Device identified by id. logger may be nil, in which
// case a discard logger is used.
func New(id string, logger *log.Logger) *Device {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Device{
		id:      id,
		logger:  logger.With("device", id),
		clients: map[string]chan Flip{},
		acks:    make(chan ackMsg, 64),
	}
}

// Register admits a client and returns the channel it will receive Flip
// events on. The channel is buffered to one outstanding flip - spec.md
// §4.1 "a client sees at most one outstanding flip".
func (d *Device) Register(clientID string) <-chan Flip {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan Flip, 1)
	d.clients[clientID] = ch
	d.logger.Debug("client registered", "client", clientID)
	return ch
}

// Unregister removes a client. Safe to call for a client that isn't
// registered, or was already dropped for missing a deadline.
func (d *Device) Unregister(clientID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unregisterLocked(clientID)
}

func (d *Device) unregisterLocked(clientID string) {
	if ch, ok := d.clients[clientID]; ok {
		close(ch)
		delete(d.clients, clientID)
	}
}

// FlipFinished acknowledges generation for clientID. Idempotent: acking
// twice, or acking a generation that has already closed out or was
// never sent, is a silent no-op - spec.md §4.1.
func (d *Device) FlipFinished(clientID string, generation uint64) {
	select {
	case d.acks <- ackMsg{clientID: clientID, generation: generation}:
	default:
		// Ack channel saturated - equivalent to a dropped ack, the
		// client will simply miss this flip's deadline.
	}
}

// Flip rotates the device's buffers once: it stamps a new strictly
// monotonic generation, fans a Flip event out to every registered
// client, and blocks until every client has acknowledged or deadline -
// AckEpsilon passes, whichever comes first. It never blocks past the
// deadline - "the device never advances past the deadline" - and a
// client that fails to receive the event or fails to acknowledge it in
// time is unregistered, never raised as an error to the caller.
func (d *Device) Flip(buffers *graph.DevicePlanes, deadline time.Time) FlipResult {
	d.mu.Lock()
	d.generation++
	gen := d.generation

	recipients := make([]string, 0, len(d.clients))
	outstanding := map[string]bool{}
	var missed []string
	for id, ch := range d.clients {
		flip := Flip{DeviceID: d.id, Buffers: buffers, Generation: gen, Deadline: deadline}
		select {
		case ch <- flip:
			recipients = append(recipients, id)
			outstanding[id] = true
		default:
			// Client's mailbox is still full from a prior flip it never
			// acknowledged - drop it now rather than let it fall further
			// behind.
			missed = append(missed, id)
			d.unregisterLocked(id)
		}
	}
	d.mu.Unlock()

	waitUntil := deadline.Add(-AckEpsilon)
	var timer *time.Timer
	if d := time.Until(waitUntil); d > 0 {
		timer = time.NewTimer(d)
	} else {
		timer = time.NewTimer(0)
	}
	defer timer.Stop()

waitLoop:
	for len(outstanding) > 0 {
		select {
		case msg := <-d.acks:
			if msg.generation == gen {
				delete(outstanding, msg.clientID)
			}
			// Acks for any other generation are spurious/stale and ignored.
		case <-timer.C:
			break waitLoop
		}
	}

	d.mu.Lock()
	for id := range outstanding {
		missed = append(missed, id)
		d.unregisterLocked(id)
	}
	d.mu.Unlock()

	if len(missed) > 0 {
		d.logger.Warn("clients missed flip deadline", "generation", gen, "clients", missed)
	}

	return FlipResult{Generation: gen, Missed: missed}
}

// Generation returns the most recently issued generation number.
func (d *Device) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// ID returns the device's identifier.
func (d *Device) ID() string { return d.id }

// ClientCount reports how many clients are currently registered -
// exercised by tests checking that a missed deadline unregisters a
// client.
func (d *Device) ClientCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}
