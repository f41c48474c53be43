// Package stream provides a last-value publish/subscribe primitive used to
// push reference, hydrated and view snapshots between pipeline stages.
package stream

import "sync"

// Subject holds the latest published value and fans it out to subscribers.
// Each subscriber channel has a buffer of one; a slow subscriber only ever
// sees the newest value (last write wins), never a backlog.
type Subject[T any] struct {
	mu     sync.Mutex
	value  T
	has    bool
	closed bool
	next   uint64
	subs   map[uint64]chan T
}

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{subs: make(map[uint64]chan T)}
}

// Publish replaces the current value and delivers it to every subscriber.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.value = v
	s.has = true
	for _, ch := range s.subs {
		deliver(ch, v)
	}
}

// Value returns the latest published value.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.has
}

// Subscribe returns a channel that immediately receives the current value
// (if any) and every subsequent one. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (s *Subject[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	if s.has {
		ch <- s.value
	}

	id := s.next
	s.next++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (s *Subject[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close closes every subscriber channel; later publishes are ignored.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// deliver replaces any undelivered value with v. Caller holds the lock, and
// all sends happen under it, so the drain-then-send cannot block.
func deliver[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
