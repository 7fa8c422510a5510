package services

import "context"

// Limiter is a counting semaphore bounding concurrently executing fetch
// tasks. Both pipeline stages submit against the same instance, so the
// in-flight total never exceeds the configured maximum regardless of which
// stage the tasks came from. Admission order is submission order; the
// limiter neither reorders nor cancels, and a failed task does not affect
// its siblings.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter builds a semaphore admitting at most max tasks. A max below
// one is raised to one.
func NewLimiter(max int) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by a successful Acquire.
func (l *Limiter) Release() {
	<-l.slots
}

// InFlight reports how many slots are currently held.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

// Cap reports the admission bound.
func (l *Limiter) Cap() int {
	return cap(l.slots)
}
