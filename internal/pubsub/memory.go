package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

// memoryBus is an in-process Bus for tests and single-process wiring;
// subjects are matched by exact string equality (no wildcard support,
// since nothing in this domain's subject scheme needs one).
type memoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[string]Handler
}

// NewMemoryBus returns an in-process Bus.
func NewMemoryBus() Bus {
	return &memoryBus{subs: make(map[string]map[string]Handler)}
}

func (b *memoryBus) Publish(subject string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, handler := range b.subs[subject] {
		go handler(subject, payload)
	}
	return nil
}

func (b *memoryBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[subject] == nil {
		b.subs[subject] = make(map[string]Handler)
	}
	id := uuid.NewString()
	b.subs[subject][id] = handler

	return &memorySubscription{bus: b, subject: subject, id: id}, nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[string]Handler)
	return nil
}

type memorySubscription struct {
	bus     *memoryBus
	subject string
	id      string
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs[s.subject], s.id)
	return nil
}
