// Package event provides a pub/sub event bus, used to decouple the
// tool-orchestration loop from the transport connection that writes
// session/update notifications to the wire.
package event

import (
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType distinguishes the kinds of events a Bus carries.
type EventType string

const (
	// SessionUpdate carries a SessionUpdateData: one session/update
	// notification destined for the connection that owns the session.
	SessionUpdate EventType = "session.update"
)

// Event is a single published message.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber receives published events.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus is a per-connection event bus. It keeps a watermill gochannel for
// the underlying queue plumbing while preserving direct-call dispatch so
// subscribers keep Go type information on Data.
type Bus struct {
	mu          sync.RWMutex
	pubsub      *gochannel.GoChannel
	subscribers map[EventType][]subscriberEntry
	nextID      uint64
	closed      bool
}

// NewBus creates a fresh, independent event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64, Persistent: false},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers fn for eventType and returns an unsubscribe func.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})
	return func() { b.unsubscribe(eventType, id) }
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers event to eventType's subscribers, each in its own
// goroutine so a slow subscriber cannot block the publisher.
func (b *Bus) Publish(event Event) {
	for _, sub := range b.liveSubscribers(event.Type) {
		go sub(event)
	}
}

// PublishSync delivers event to eventType's subscribers synchronously, in
// registration order, on the calling goroutine. The agent's dispatcher
// uses this so the transport's subscriber writes a session/update before
// the response that follows it in program order.
func (b *Bus) PublishSync(event Event) {
	for _, sub := range b.liveSubscribers(event.Type) {
		sub(event)
	}
}

func (b *Bus) liveSubscribers(eventType EventType) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	subs := make([]Subscriber, len(b.subscribers[eventType]))
	for i, entry := range b.subscribers[eventType] {
		subs[i] = entry.fn
	}
	return subs
}

// Close stops the bus from delivering further events.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}
