package events

import (
	"sync"
)

// DefaultBufferSize is the subscriber channel buffer used when a
// subscription does not specify one.
const DefaultBufferSize = 256

// Bus is a channel-based pub-sub event bus. The engine publishes on every
// task status transition; transports subscribe without the core depending
// on them. Publishing never blocks: subscribers that fall behind lose
// events rather than stalling the scheduling loop.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event // topic -> subscriber channels
	allSubs []chan Event            // channels subscribed to every topic
	closed  bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe creates a subscription to a single topic. Returns a read-only
// channel; bufSize <= 0 selects DefaultBufferSize. Subscribing to a closed
// bus returns an already-closed channel.
func (b *Bus) Subscribe(topic string, bufSize int) <-chan Event {
	ch := newSubChannel(bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}

	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// SubscribeAll creates a subscription receiving events from every topic.
func (b *Bus) SubscribeAll(bufSize int) <-chan Event {
	ch := newSubChannel(bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}

	b.allSubs = append(b.allSubs, ch)
	return ch
}

// Publish sends an event to the topic's subscribers and to every
// SubscribeAll channel. Full subscriber buffers drop the event.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[topic] {
		deliver(ch, event)
	}
	for _, ch := range b.allSubs {
		deliver(ch, event)
	}
}

// Close closes the bus and every subscriber channel. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}

func newSubChannel(bufSize int) chan Event {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return make(chan Event, bufSize)
}

// deliver performs a non-blocking send, dropping the event when the
// subscriber's buffer is full.
func deliver(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
	}
}
