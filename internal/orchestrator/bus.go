package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer bounds each subscriber's backlog. A subscriber that
// falls this far behind silently misses older events; status notifications
// are best effort, not a durable log.
const subscriberBuffer = 16

// Bus broadcasts lifecycle events to any number of subscribers, each
// filtered to a single server id.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscription
}

type subscription struct {
	id uuid.UUID
	ch chan Event
}

func newBus() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// publish fans the event out to matching subscribers without blocking;
// a subscriber with a full buffer drops it.
func (b *Bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.id != ev.ServerID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// subscribe registers a filtered feed seeded with the given synthetic
// status event. The returned cancel func closes the channel and is safe to
// call once; sends only ever happen under b.mu, so close cannot race a
// publish.
func (b *Bus) subscribe(id uuid.UUID, status Event) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	ch <- status

	b.mu.Lock()
	key := b.next
	b.next++
	b.subs[key] = &subscription{id: id, ch: ch}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[key]; ok {
			delete(b.subs, key)
			close(s.ch)
		}
	}
	return ch, cancel
}
