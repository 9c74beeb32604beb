// Package event implements the synchronous publish/subscribe stream shared
// across devices: the network link monitor's transitions, and anything
// else that needs to tell an observer "something happened"
// without the observer polling for it.
package event

import (
	"sync"

	"github.com/google/uuid"
)

// Type names the kind of event published. Devices define their own type
// constants (see the link-state types in linkmonitor.go); the stream itself is
// type-agnostic.
type Type string

// Event is a single published occurrence. Data is payload-specific and
// left as `any` so every publisher can carry its own shape without the
// stream needing to know it.
type Event struct {
	Type Type
	Data any
}

// Token is the opaque handle Subscribe returns; pass it to Unsubscribe to
// stop receiving events.
type Token string

// Callback receives a published Event. It must not block: Publish invokes
// callbacks synchronously and a slow subscriber delays every other
// subscriber and the publisher itself.
type Callback func(Event)

// Stream is a lock-protected subscriber list with snapshot-under-lock
// publish semantics: Publish takes the lock only long enough to copy the
// current subscriber list, then invokes callbacks with the lock released.
// A callback that subscribes or unsubscribes during a publish affects only
// subsequent publishes, never the one in progress.
type Stream struct {
	mu          sync.Mutex
	subscribers map[Token]Callback
}

// NewStream returns an empty event stream.
func NewStream() *Stream {
	return &Stream{subscribers: make(map[Token]Callback)}
}

// Subscribe registers cb and returns a token identifying the subscription.
func (s *Stream) Subscribe(cb Callback) Token {
	token := Token(uuid.New().String())

	s.mu.Lock()
	s.subscribers[token] = cb
	s.mu.Unlock()

	return token
}

// Unsubscribe removes a subscription by token. Unsubscribing an unknown or
// already-removed token is a no-op.
func (s *Stream) Unsubscribe(token Token) {
	s.mu.Lock()
	delete(s.subscribers, token)
	s.mu.Unlock()
}

// Publish delivers ev to every subscriber registered at the moment Publish
// is called. The subscriber list is copied under the lock and callbacks
// run after the lock is released, so callbacks are free to call Subscribe
// or Unsubscribe (including on this same Stream) without deadlocking.
func (s *Stream) Publish(ev Event) {
	s.mu.Lock()
	snapshot := make([]Callback, 0, len(s.subscribers))
	for _, cb := range s.subscribers {
		snapshot = append(snapshot, cb)
	}
	s.mu.Unlock()

	for _, cb := range snapshot {
		cb(ev)
	}
}

// SubscriberCount returns the number of currently registered subscribers.
// Mostly useful for tests and diagnostics.
func (s *Stream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
