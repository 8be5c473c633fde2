// Package bus is the daemon's in-process event bus. The transport publishes
// inbound batches and connection changes on it; the router, the status
// machine and the logs consume them.
package bus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// Publish never blocks: an event for a full subscriber is dropped and counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	next    int
	dropped atomic.Int64
}

type subscription struct {
	namespace string
	ch        chan Event
	dropped   atomic.Int64
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to all subscribers whose namespace is a prefix of event.Kind.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.namespace) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
}

// Emit publishes an event of kind with payload, stamped now.
func (b *Bus) Emit(kind string, payload any) {
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Subscription is a handle on one subscriber.
type Subscription struct {
	C       <-chan Event
	sub     *subscription
	release func()
}

// Dropped returns how many events this subscriber missed because its buffer
// was full.
func (s *Subscription) Dropped() int64 { return s.sub.dropped.Load() }

// Close unsubscribes. The channel is not closed.
func (s *Subscription) Close() { s.release() }

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	s := b.Open(namespace, bufSize)
	return s.C, s.Close
}

// Open is Subscribe returning a handle that also reports drops.
func (b *Bus) Open(namespace string, bufSize int) *Subscription {
	sub := &subscription{namespace: namespace, ch: make(chan Event, bufSize)}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return &Subscription{
		C:   sub.ch,
		sub: sub,
		release: func() {
			once.Do(func() {
				b.mu.Lock()
				delete(b.subs, id)
				b.mu.Unlock()
			})
		},
	}
}

// Dropped returns the total number of events dropped across all subscribers.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }
