package pubsub

import (
	"github.com/nats-io/nats.go"
)

// natsBus is a Bus backed by a connected *nats.Conn, grounded on this
// module's declared dependency on github.com/nats-io/nats.go (no file
// in the retrieved corpus imports it directly; usage here follows the
// client library's own published Connect/Publish/Subscribe API).
type natsBus struct {
	conn *nats.Conn
}

// NewNATSBus connects to url and returns a Bus backed by it.
func NewNATSBus(url string) (Bus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &natsBus{conn: conn}, nil
}

func (b *natsBus) Publish(subject string, payload []byte) error {
	return b.conn.Publish(subject, payload)
}

func (b *natsBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return &natsSubscription{sub: sub}, nil
}

func (b *natsBus) Close() error {
	b.conn.Close()
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
