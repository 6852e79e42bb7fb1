// Package events carries render notifications from the coordinator to
// waiters and liveness wrappers.
package events

import (
	"fmt"
	"sort"
	"sync"

	"github.com/livefir/rendertest/frame"
)

// RenderEvent announces one completed render pass.
type RenderEvent struct {
	// Sequence increases by one for every published event of a subject.
	Sequence uint64
	// Components lists the affected component ids in ascending order.
	Components []frame.ComponentID
	// Err is set when the render failed.
	Err error
}

// NewRenderEvent builds an event with a sorted, de-duplicated component set.
func NewRenderEvent(seq uint64, components []frame.ComponentID, err error) RenderEvent {
	set := make([]frame.ComponentID, 0, len(components))
	seen := make(map[frame.ComponentID]bool, len(components))
	for _, id := range components {
		if !seen[id] {
			seen[id] = true
			set = append(set, id)
		}
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return RenderEvent{Sequence: seq, Components: set, Err: err}
}

// Affects reports whether any affected component satisfies match.
func (e RenderEvent) Affects(match func(frame.ComponentID) bool) bool {
	for _, id := range e.Components {
		if match(id) {
			return true
		}
	}
	return false
}

func (e RenderEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("render #%d %v failed: %v", e.Sequence, e.Components, e.Err)
	}
	return fmt.Sprintf("render #%d %v", e.Sequence, e.Components)
}

// Observer receives render events.
type Observer func(RenderEvent)

// Source is anything observers can subscribe to.
type Source interface {
	Subscribe(Observer) *Subscription
}

// Subscription is the handle returned by Subscribe. Closing it more than
// once is a no-op.
type Subscription struct {
	observer Observer
	once     sync.Once
	closed   chan struct{}
	remove   func(*Subscription)
}

// Close stops delivery to the observer.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.closed)
		if s.remove != nil {
			s.remove(s)
		}
	})
}

// Closed reports whether Close has been called.
func (s *Subscription) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func newSubscription(observer Observer, remove func(*Subscription)) *Subscription {
	return &Subscription{observer: observer, closed: make(chan struct{}), remove: remove}
}

// Bus delivers events synchronously, in subscription order, to the
// observers subscribed when Publish starts. Safe for concurrent use;
// observers may subscribe or unsubscribe from inside a delivery.
type Bus struct {
	mu   sync.Mutex
	subs []*Subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers an observer.
func (b *Bus) Subscribe(observer Observer) *Subscription {
	sub := newSubscription(observer, b.remove)
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub
}

// Publish notifies every current observer. Observers removed during the
// delivery are skipped; observers added during it see only later events.
func (b *Bus) Publish(e RenderEvent) {
	b.mu.Lock()
	snapshot := make([]*Subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, sub := range snapshot {
		if sub.Closed() {
			continue
		}
		sub.observer(e)
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}
