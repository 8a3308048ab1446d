package reconcile

import (
	"time"

	"pioneer/internal/backend"
)

// EventKind enumerates the cross-component notifications emitted by the
// Store.
type EventKind string

const (
	// EventUserChanged fires whenever the cached user record is replaced.
	// The payload is nil when the session ended.
	EventUserChanged EventKind = "user.changed"
	// EventOnboardingComplete fires after a deferred onboarding submission
	// lands, including the idempotent "already onboarded" outcome.
	EventOnboardingComplete EventKind = "onboarding.complete"
	// EventOnboardingError fires when an onboarding submission fails in a
	// way worth showing the user. The draft is retained for a later retry.
	EventOnboardingError EventKind = "onboarding.error"
	// EventLoggedOut fires when the identity session ends. Emitted in
	// addition to the nil user.changed because some subscribers care only
	// about navigation, others about data.
	EventLoggedOut EventKind = "session.logged_out"
)

// Event is a typed notification delivered to Store subscribers.
type Event struct {
	Kind          EventKind
	User          *backend.UserRecord // user.changed payload, nil on logout
	Message       string              // onboarding.error detail
	CorrelationID string
	OccurredAt    time.Time
}
