package engine

import (
	"context"

	"github.com/dmitrijs2005/feedvault/internal/localstore"
)

// Listener receives committed local mutation events. Implementations should
// be pointer types so Off can match them by identity.
type Listener interface {
	Notify(change localstore.Change)
}

// On registers a listener. Delivery is synchronous, in registration order.
func (e *Engine) On(l Listener) {
	e.listMu.Lock()
	defer e.listMu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Off unregisters a previously registered listener.
func (e *Engine) Off(l Listener) {
	e.listMu.Lock()
	defer e.listMu.Unlock()
	for i, cur := range e.listeners {
		if cur == l {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// notify fans a committed mutation out to all registered listeners. A
// panicking listener must not prevent delivery to the others.
func (e *Engine) notify(change localstore.Change) {
	e.listMu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.listMu.Unlock()

	for _, l := range listeners {
		e.deliver(l, change)
	}
}

func (e *Engine) deliver(l Listener, change localstore.Change) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(context.Background(), "listener panicked",
				"id", change.ID, "kind", change.Kind.String(), "panic", r)
		}
	}()
	l.Notify(change)
}
