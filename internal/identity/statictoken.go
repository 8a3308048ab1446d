package identity

import (
	"context"
	"fmt"
	"sync"
)

// StaticTokenAdapter is the generic-token flavor of the session adapter:
// the caller supplies a bearer credential and claims directly, with no
// provider round trips. Used for demo accounts and in tests.
type StaticTokenAdapter struct {
	changeNotifier

	mu     sync.Mutex
	token  string
	claims Claims
}

// NewStaticTokenAdapter builds an adapter with no active session.
func NewStaticTokenAdapter() *StaticTokenAdapter {
	return &StaticTokenAdapter{}
}

// SetSession installs a credential and claims, firing change listeners.
func (a *StaticTokenAdapter) SetSession(token string, claims Claims) {
	a.mu.Lock()
	a.token = token
	a.claims = claims
	a.mu.Unlock()
	a.notify()
}

// EndSession drops the credential, firing change listeners.
func (a *StaticTokenAdapter) EndSession() {
	a.mu.Lock()
	a.token = ""
	a.claims = Claims{}
	a.mu.Unlock()
	a.notify()
}

// Active reports whether a credential is installed.
func (a *StaticTokenAdapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token != ""
}

// Credential returns the installed credential.
func (a *StaticTokenAdapter) Credential(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == "" {
		return "", fmt.Errorf("no identity session material available")
	}
	return a.token, nil
}

// Claims returns the installed claims.
func (a *StaticTokenAdapter) Claims() (Claims, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == "" {
		return Claims{}, fmt.Errorf("no active credential")
	}
	return a.claims, nil
}
