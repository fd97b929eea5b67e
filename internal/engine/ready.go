package engine

import (
	"context"
	"sync"
)

// readyGate is a one-shot future: resolved when initialization completes,
// rejected with the failure cause otherwise. Whichever happens first wins.
type readyGate struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newReadyGate() *readyGate {
	return &readyGate{done: make(chan struct{})}
}

func (g *readyGate) resolve() {
	g.once.Do(func() { close(g.done) })
}

func (g *readyGate) reject(err error) {
	g.once.Do(func() {
		g.err = err
		close(g.done)
	})
}

// Await blocks until the gate settles or ctx expires. Returns the rejection
// cause for a rejected gate.
func (g *readyGate) Await(ctx context.Context) error {
	select {
	case <-g.done:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done exposes the settled signal for select loops.
func (g *readyGate) Done() <-chan struct{} {
	return g.done
}
