package events

import "sync"

// Filtered forwards events from a source that satisfy a predicate. It holds
// a subscription on the source only while it has observers of its own.
type Filtered struct {
	source Source
	pred   func(RenderEvent) bool

	mu       sync.Mutex
	bus      *Bus
	upstream *Subscription
}

// Filter wraps source.
func Filter(source Source, pred func(RenderEvent) bool) *Filtered {
	return &Filtered{source: source, pred: pred, bus: NewBus()}
}

// Subscribe registers an observer, subscribing upstream on first use.
func (f *Filtered) Subscribe(observer Observer) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	inner := f.bus.Subscribe(observer)
	if f.upstream == nil {
		f.upstream = f.source.Subscribe(f.forward)
	}
	return newSubscription(observer, func(*Subscription) {
		inner.Close()
		f.release()
	})
}

// Active reports whether the filter currently holds an upstream subscription.
func (f *Filtered) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upstream != nil
}

func (f *Filtered) forward(e RenderEvent) {
	if f.pred(e) {
		f.bus.Publish(e)
	}
}

func (f *Filtered) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bus.Len() == 0 && f.upstream != nil {
		f.upstream.Close()
		f.upstream = nil
	}
}
