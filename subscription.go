package stompy

import (
	"sync"

	"github.com/google/uuid"
)

// SubscriptionHandler is invoked, on its own goroutine, for each
// MESSAGE/ERROR frame correlated to a subscription.
type SubscriptionHandler func(*Frame)

type subscription struct {
	ID          string
	Destination string
	Handler     SubscriptionHandler
}

// SubscriptionRegistry maps subscription ids to handlers and dispatches
// inbound frames to them. The core Connector does not generate
// subscription ids itself (per spec); this registry is the caller-side
// complement that does, the same role maleck13-stompy's subscriptions
// type plays over its StompSubscriber interface.
type SubscriptionRegistry struct {
	mu   sync.Mutex
	subs map[string]subscription
}

// NewSubscriptionRegistry creates an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{subs: make(map[string]subscription)}
}

// Add mints a new subscription id and registers handler for
// destination, returning the id to use on a SUBSCRIBE frame.
func (r *SubscriptionRegistry) Add(destination string, handler SubscriptionHandler) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.subs[id] = subscription{ID: id, Destination: destination, Handler: handler}
	r.mu.Unlock()
	return id
}

// AddWithID registers handler under a caller-supplied id, failing if
// that id is already registered.
func (r *SubscriptionRegistry) AddWithID(id, destination string, handler SubscriptionHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; ok {
		return ClientError("subscription already exists with that id")
	}
	r.subs[id] = subscription{ID: id, Destination: destination, Handler: handler}
	return nil
}

// Remove deregisters a subscription id; a no-op if it is not present.
func (r *SubscriptionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
}

// Dispatch forwards a MESSAGE or ERROR frame to the handler registered
// for its subscription header (falling back to its destination
// header) if one is registered; wire this into a Connector's OnMessage.
func (r *SubscriptionRegistry) Dispatch(f *Frame) {
	switch f.Command {
	case "MESSAGE", "ERROR":
	default:
		return
	}

	id := f.GetHeaderValue("subscription")
	if id == "" {
		id = f.GetHeaderValue("destination")
	}

	r.mu.Lock()
	sub, ok := r.subs[id]
	r.mu.Unlock()
	if ok {
		go sub.Handler(f)
	}
}
