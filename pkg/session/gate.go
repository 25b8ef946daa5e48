package session

import (
	"context"
	"sync"
)

// Gate is a re-armable event. Waiters block while the gate is closed
// and pass through while it is open. The music consumer waits on a
// Gate to implement pause: Clear pauses, Set resumes.
type Gate struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewGate returns an open Gate.
func NewGate() *Gate {
	g := &Gate{ch: make(chan struct{})}
	close(g.ch)
	return g
}

// Set opens the gate, releasing all waiters.
func (g *Gate) Set() {
	g.mu.Lock()
	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
	g.mu.Unlock()
}

// Clear closes the gate. Subsequent Wait calls block until Set.
func (g *Gate) Clear() {
	g.mu.Lock()
	select {
	case <-g.ch:
		g.ch = make(chan struct{})
	default:
	}
	g.mu.Unlock()
}

// IsSet reports whether the gate is open.
func (g *Gate) IsSet() bool {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate is open or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
