// Package pubsub defines the publish/subscribe subject scheme this
// domain's components talk over and two Bus implementations: an
// in-memory one for tests and single-process wiring, and a
// github.com/nats-io/nats.go-backed one for a networked deployment.
// Grounded on SPEC_FULL.md's domain-stack wiring of nats.go (present in
// this module's dependency set; no file in the retrieved corpus
// imports it directly, so this package's NATS usage follows the
// library's own documented client API rather than a pack example).
package pubsub

import "fmt"

// Subject scheme: dot-separated, one publisher type per segment
// prefix.
const (
	subjectInstanceEvents        = "instance.%s.events"
	subjectInstanceSetParameters = "instance.%s.set_parameters"
	subjectInstancePowerCommand  = "instance.%s.power_command"
	subjectInstancePlayStateCmd  = "instance.%s.play_state_command"
	subjectEngineCommand         = "engine.%s.command"
)

// InstanceEventsSubject is where a driver process (cmd/driver's event
// sink) publishes driver-reported power/play/parameter events for
// instanceID.
func InstanceEventsSubject(instanceID string) string {
	return fmt.Sprintf(subjectInstanceEvents, instanceID)
}

// InstanceSetParametersSubject is where a caller requests a parameter
// write be merged into instanceID's desired parameter map.
func InstanceSetParametersSubject(instanceID string) string {
	return fmt.Sprintf(subjectInstanceSetParameters, instanceID)
}

// InstancePowerCommandSubject is where a Fixed-Instance Actor's driver
// proxy dispatches a power-channel command to whichever process is
// driving instanceID's hardware.
func InstancePowerCommandSubject(instanceID string) string {
	return fmt.Sprintf(subjectInstancePowerCommand, instanceID)
}

// InstancePlayStateCommandSubject is where a play/render transport
// command is dispatched to instanceID's driver process.
func InstancePlayStateCommandSubject(instanceID string) string {
	return fmt.Sprintf(subjectInstancePlayStateCmd, instanceID)
}

// EngineCommandSubject is where a Task Actor dispatches an
// EngineCommand to engineID.
func EngineCommandSubject(engineID string) string {
	return fmt.Sprintf(subjectEngineCommand, engineID)
}

// Handler processes one message delivered on a subscription.
type Handler func(subject string, payload []byte)

// Subscription is a live subscription that can be cancelled.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the publish/subscribe transport every networked component in
// this domain talks through.
type Bus interface {
	Publish(subject string, payload []byte) error
	Subscribe(subject string, handler Handler) (Subscription, error)
	Close() error
}
