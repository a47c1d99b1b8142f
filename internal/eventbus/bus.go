// Package eventbus is a small in-memory fan-out bus used to decouple the
// realtime components from observability consumers.
package eventbus

import (
	"sync"
	"time"
)

// Well-known event types published by this service.
const (
	TypeSessionConnected = "session.connected"
	TypeSessionClosed    = "session.closed"
	TypeNotifySent       = "notify.sent"
	TypeNotifyDropped    = "notify.dropped"
	TypeAudienceFailed   = "audience.failed"
)

// Event is a lightweight, in-memory signal.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Data should be small and ideally JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus. It owns no background
// goroutines.
func New() Bus {
	return &memBus{}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func (s *subscriber) deliver(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		// subscriber is slow; drop
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type memBus struct {
	mu   sync.RWMutex
	subs []*subscriber
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold the bus lock while
	// attempting sends.
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subs...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.deliver(e)
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			for i, cur := range b.subs {
				if cur == sub {
					last := len(b.subs) - 1
					b.subs[i] = b.subs[last]
					b.subs[last] = nil
					b.subs = b.subs[:last]
					break
				}
			}
			b.mu.Unlock()
			sub.close()
		})
	}
	return sub.ch, unsub
}
