// Package gate limits how many resolutions run at once inside a process.
package gate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate is an in-memory slot pool. Waiters block on the semaphore instead
// of polling. It gives no guarantee across processes.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	active   atomic.Int32
}

// New creates a Gate with the given number of slots (minimum 1).
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or ctx is done.
//
// The returned release must be called when the work finishes. Calling it
// more than once is harmless.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("gate: wait for slot: %w", err)
	}
	g.active.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.active.Add(-1)
			g.sem.Release(1)
		})
	}, nil
}

// Active returns the number of held slots.
func (g *Gate) Active() int {
	return int(g.active.Load())
}

// Capacity returns the number of slots.
func (g *Gate) Capacity() int {
	return g.capacity
}
