// Package bridge hands values between the polling loop and the network side
// without either of them ever blocking on the other.
package bridge

import (
	"context"
	"sync"
)

// Signal is a single-slot mailbox: Publish overwrites whatever is pending
// and the consumer only ever sees the latest value. A value is taken at
// most once.
type Signal[T any] struct {
	lock    sync.Mutex
	value   T
	pending bool
	ready   chan struct{}
}

func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{ready: make(chan struct{}, 1)}
}

// Publish stores v, replacing any value not yet taken, and wakes a waiter.
// It never blocks.
func (s *Signal[T]) Publish(v T) {
	s.lock.Lock()
	s.value = v
	s.pending = true
	s.lock.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// TryTake returns the pending value, if any, and clears it.
func (s *Signal[T]) TryTake() (v T, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.pending {
		return
	}
	v, ok = s.value, true
	var zero T
	s.value = zero
	s.pending = false
	return
}

// Wait blocks until a value is pending or ctx is done.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	for {
		v, ok := s.TryTake()
		if ok {
			return v, nil
		}
		select {
		case <-s.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Ready fires after a Publish. The wake-up may be stale, so receivers must
// follow it with TryTake.
func (s *Signal[T]) Ready() <-chan struct{} {
	return s.ready
}
