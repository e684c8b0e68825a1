package messaging

import (
	"sync"
	"sync/atomic"
)

const memoryQueueSize = 1024

// MemoryBus is an in-process bus. Queue groups deliver round-robin to their members.
// Each subscriber processes its messages in order on its own goroutine.
type MemoryBus struct {
	mu        sync.Mutex
	subs      map[string][]*memorySub
	groups    map[string]map[string]*memoryGroup
	duplicate bool
	closed    bool
	acks      atomic.Int64
}

type memoryGroup struct {
	members []*memorySub
	next    int
}

func NewMemoryBus(cfg Config) *MemoryBus {
	return &MemoryBus{
		subs:      make(map[string][]*memorySub),
		groups:    make(map[string]map[string]*memoryGroup),
		duplicate: cfg.DuplicateDelivery,
	}
}

func (mb *MemoryBus) Publish(subject string, data interface{}) error {
	payload, err := encode(data)
	if err != nil {
		return err
	}

	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return ErrClosed
	}

	targets := append([]*memorySub(nil), mb.subs[subject]...)
	for _, g := range mb.groups[subject] {
		if len(g.members) == 0 {
			continue
		}
		deliveries := 1
		if mb.duplicate {
			deliveries = 2
		}
		for i := 0; i < deliveries; i++ {
			targets = append(targets, g.members[g.next%len(g.members)])
			g.next++
		}
	}
	mb.mu.Unlock()

	// Enqueue outside the lock so handlers may publish while a queue is full.
	for _, s := range targets {
		s.enqueue(&memoryMessage{bus: mb, subject: subject, data: payload})
	}

	return nil
}

func (mb *MemoryBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return nil, ErrClosed
	}

	s := newMemorySub(handler)
	s.unsubscribe = func() {
		mb.mu.Lock()
		defer mb.mu.Unlock()
		mb.subs[subject] = without(mb.subs[subject], s)
	}
	mb.subs[subject] = append(mb.subs[subject], s)
	return s, nil
}

func (mb *MemoryBus) QueueSubscribe(subject, queue string, handler Handler) (Subscription, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return nil, ErrClosed
	}

	if mb.groups[subject] == nil {
		mb.groups[subject] = make(map[string]*memoryGroup)
	}
	g := mb.groups[subject][queue]
	if g == nil {
		g = &memoryGroup{}
		mb.groups[subject][queue] = g
	}

	s := newMemorySub(handler)
	s.unsubscribe = func() {
		mb.mu.Lock()
		defer mb.mu.Unlock()
		g.members = without(g.members, s)
	}
	g.members = append(g.members, s)
	return s, nil
}

// Acks reports how many messages were acknowledged.
func (mb *MemoryBus) Acks() int64 {
	return mb.acks.Load()
}

func (mb *MemoryBus) Close() error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return nil
	}
	mb.closed = true
	var all []*memorySub
	for _, subs := range mb.subs {
		all = append(all, subs...)
	}
	for _, groups := range mb.groups {
		for _, g := range groups {
			all = append(all, g.members...)
		}
	}
	mb.subs = make(map[string][]*memorySub)
	mb.groups = make(map[string]map[string]*memoryGroup)
	mb.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
	return nil
}

type memorySub struct {
	queue       chan *memoryMessage
	quit        chan struct{}
	once        sync.Once
	unsubscribe func()
}

func newMemorySub(handler Handler) *memorySub {
	s := &memorySub{
		queue: make(chan *memoryMessage, memoryQueueSize),
		quit:  make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-s.quit:
				return
			case m := <-s.queue:
				handler(m)
			}
		}
	}()
	return s
}

func (s *memorySub) enqueue(m *memoryMessage) {
	select {
	case s.queue <- m:
	case <-s.quit:
	}
}

func (s *memorySub) stop() {
	s.once.Do(func() { close(s.quit) })
}

func (s *memorySub) Unsubscribe() error {
	s.unsubscribe()
	s.stop()
	return nil
}

func without(subs []*memorySub, s *memorySub) []*memorySub {
	out := subs[:0:0]
	for _, x := range subs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}

type memoryMessage struct {
	bus     *MemoryBus
	subject string
	data    []byte
	acked   atomic.Bool
}

func (m *memoryMessage) Subject() string { return m.subject }
func (m *memoryMessage) Data() []byte    { return m.data }

func (m *memoryMessage) Ack() error {
	if m.acked.CompareAndSwap(false, true) {
		m.bus.acks.Add(1)
	}
	return nil
}
