package broadcast

import (
	"context"
	"sync"
)

// Subscriber receives values from a Broadcaster.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed when the
	// subscription ends.
	Receive() <-chan T

	// Close ends the subscription. It is idempotent.
	Close() error
}

// Broadcaster fans values out to every subscriber without blocking the
// sender. Subscribers that cannot keep up are dropped.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber that lives until ctx is done, Close
	// is called on it, or the broadcaster is closed.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast delivers msg to every active subscriber. It returns
	// ErrClosed after Close.
	Broadcast(ctx context.Context, msg T) error

	Close() error
}

type subscriber[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	closed bool
}

func newSubscriber[T any](bufferSize int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan T, bufferSize)}
}

func (s *subscriber[T]) Receive() <-chan T {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// send reports false when the subscriber is closed or its buffer is full.
func (s *subscriber[T]) send(msg T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
