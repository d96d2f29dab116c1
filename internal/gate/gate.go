// Package gate wraps a width-1 semaphore as an explicit exclusive resource
// token. The document converter is not safe under concurrent invocation, so
// every ingestion pipeline must hold the token for its whole duration and
// release it on every exit path.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

type Exclusive struct {
	sem *semaphore.Weighted
}

func New() *Exclusive {
	return &Exclusive{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the token is free or ctx is done.
func (e *Exclusive) Acquire(ctx context.Context) error {
	return e.sem.Acquire(ctx, 1)
}

func (e *Exclusive) Release() {
	e.sem.Release(1)
}

// TryAcquire takes the token without blocking; it reports whether it got it.
func (e *Exclusive) TryAcquire() bool {
	return e.sem.TryAcquire(1)
}
