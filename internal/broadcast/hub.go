// Package broadcast fans a stream of values out to a dynamic set of subscribers.
// New subscribers first receive the most recent value, then every later one.
package broadcast

import "sync"

const DefaultBuffer = 16

// Hub remembers the latest published value. Each subscriber has its own bounded
// buffer; when it is full the oldest pending value is dropped, so slow readers
// always end on the newest value and never block publishers.
type Hub[T any] struct {
	mu        sync.Mutex
	latest    T
	hasLatest bool
	subs      map[*Subscription[T]]struct{}
	buffer    int
	closed    bool
}

func NewHub[T any](buffer int) *Hub[T] {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Hub[T]{
		subs:   make(map[*Subscription[T]]struct{}),
		buffer: buffer,
	}
}

// Publish stores v as the latest value and delivers it to every subscriber.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = v
	h.hasLatest = true
	for s := range h.subs {
		s.deliver(v)
	}
}

// Latest returns the most recent value, if any was published.
func (h *Hub[T]) Latest() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.hasLatest
}

// Subscribe registers a subscriber. The latest value, when present, is already
// waiting in its channel.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{hub: h, ch: make(chan T, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(s.ch)
		s.done = true
		return s
	}
	if h.hasLatest {
		s.ch <- h.latest
	}
	h.subs[s] = struct{}{}
	return s
}

// Len reports the number of live subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later publishes are ignored.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		s.done = true
		close(s.ch)
		delete(h.subs, s)
	}
}

func (h *Hub[T]) remove(s *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.done {
		return
	}
	s.done = true
	delete(h.subs, s)
	close(s.ch)
}

// Subscription is one subscriber's view of a Hub.
type Subscription[T any] struct {
	hub  *Hub[T]
	ch   chan T
	done bool // guarded by hub.mu
}

// C is closed when the subscription or the hub is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close unsubscribes. Other subscribers are unaffected. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.hub.remove(s)
}

// deliver is called with hub.mu held, so the channel cannot be closed underneath it.
func (s *Subscription[T]) deliver(v T) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
