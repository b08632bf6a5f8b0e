// Package eventbus is the in-process pub/sub hub for domain.Event values,
// feeding the HTTP control surface's SSE stream and the
// notify webhook/script sinks. Subscribers only see events published
// after they subscribe — there is no replay buffer.
package eventbus

import (
	"sync"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// DefaultBufferSize is the per-subscriber channel capacity. A slow
// subscriber that falls this far behind has further events dropped for
// it rather than being allowed to stall publishers, matching the teacher's worker job channels where
// a full buffered channel signals backpressure rather than blocking
// forever.
const DefaultBufferSize = 64

// Bus fans out published events to every live subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int64]chan domain.Event
	nextID      int64
	bufferSize  int
}

// New builds a Bus with the given per-subscriber buffer size, or
// DefaultBufferSize when size <= 0.
func New(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{
		subscribers: make(map[int64]chan domain.Event),
		bufferSize:  size,
	}
}

// Publish fans ev out to every current subscriber. A subscriber whose
// channel is full has the event dropped for it rather than blocking
// every other subscriber and the publisher.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscription is a live feed plus the means to stop receiving it.
type Subscription struct {
	Events <-chan domain.Event
	bus    *Bus
	id     int64
}

// Unsubscribe closes the subscriber's channel and removes it from the
// fan-out set. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	ch, ok := s.bus.subscribers[s.id]
	if ok {
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Subscribe registers a new listener and returns its Subscription. The
// caller must call Unsubscribe when done to avoid leaking the channel.
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan domain.Event, b.bufferSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	return &Subscription{Events: ch, bus: b, id: id}
}

// SubscriberCount reports the number of live subscribers, mostly useful
// for diagnostics/metrics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
