// Package identity wraps the external identity provider behind a small
// session-adapter port. Two interchangeable adapters exist: an
// Auth0-flavored one that refreshes bearer credentials over the
// provider's token endpoint, and a generic static-token one.
package identity

import (
	"context"
	"sync"
)

// Claims is the identity information carried by the provider's credential,
// used to synthesize a backend record on the create path.
type Claims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	Nickname   string `json:"nickname"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Name       string `json:"name"`
}

// SessionAdapter is the boundary to the identity provider.
//
// OnChange callbacks fire on login, logout and token refresh. Every
// invocation means "re-verify the session", never "assume it changed":
// the provider refreshes tokens on its own schedule and its listeners
// fire for reasons outside this system's control.
type SessionAdapter interface {
	// Active reports whether an identity session currently exists.
	Active() bool
	// Credential returns a fresh bearer credential. May fail.
	Credential(ctx context.Context) (string, error)
	// Claims returns the identity claims for the active session.
	Claims() (Claims, error)
	// OnChange registers a session-change listener and returns a
	// cancel function that unregisters it.
	OnChange(fn func()) (cancel func())
}

// changeNotifier implements listener registration shared by the adapters.
type changeNotifier struct {
	mu        sync.Mutex
	listeners map[uint64]func()
	nextID    uint64
}

func (n *changeNotifier) OnChange(fn func()) (cancel func()) {
	n.mu.Lock()
	if n.listeners == nil {
		n.listeners = map[uint64]func(){}
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *changeNotifier) notify() {
	n.mu.Lock()
	callbacks := make([]func(), 0, len(n.listeners))
	for _, fn := range n.listeners {
		callbacks = append(callbacks, fn)
	}
	n.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}
