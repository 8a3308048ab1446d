package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pioneer/internal/backend"
)

// Phase describes where the identity lifecycle currently stands.
type Phase string

const (
	PhaseUnauthenticated    Phase = "unauthenticated"
	PhaseSyncing            Phase = "syncing"
	PhaseAuthenticated      Phase = "authenticated"
	PhaseAuthenticatedStale Phase = "authenticated-stale"
)

// Store is the single shared state container for the reconciliation layer.
// It holds the current user record, the session credential, and the two
// in-flight guards (profile write, onboarding submission), and fans out
// typed events to subscribers.
//
// AuthenticatedStale is derived rather than stored: the phase reads as
// stale while a profile write is in flight or its absorption window has
// not yet elapsed. Comparing against the injected clock instead of
// arming timers keeps the transition deterministic under test.
type Store struct {
	mu               sync.RWMutex
	phase            Phase
	user             *backend.UserRecord
	credential       string
	profileWriting   bool
	profileHoldUntil time.Time
	onboardingBusy   bool
	now              func() time.Time

	subMu       sync.Mutex
	subscribers map[uint64]chan Event
	nextSubID   uint64
}

func NewStore() *Store {
	return &Store{
		phase:       PhaseUnauthenticated,
		now:         time.Now,
		subscribers: make(map[uint64]chan Event),
	}
}

// WithNow overrides the clock used for the absorption window.
func (s *Store) WithNow(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Phase reports the current lifecycle phase. An authenticated store reads
// as AuthenticatedStale until the in-flight profile write completes and
// its absorption window has elapsed.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase == PhaseAuthenticated && s.writeHoldLocked() {
		return PhaseAuthenticatedStale
	}
	return s.phase
}

func (s *Store) writeHoldLocked() bool {
	return s.profileWriting || s.now().Before(s.profileHoldUntil)
}

// User returns a copy of the current user record, or nil when logged out.
func (s *Store) User() *backend.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := s.user.Clone()
	return &u
}

func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

func (s *Store) SetCredential(credential string) {
	s.mu.Lock()
	s.credential = credential
	s.mu.Unlock()
}

// BeginSync moves an unauthenticated store into Syncing. Already
// authenticated stores keep their phase while a background refresh runs.
func (s *Store) BeginSync() {
	s.mu.Lock()
	if s.phase == PhaseUnauthenticated {
		s.phase = PhaseSyncing
	}
	s.mu.Unlock()
}

// FailSync reverts Syncing back to Unauthenticated. It leaves an
// authenticated store untouched so a failed background refresh never
// drops a working session.
func (s *Store) FailSync() {
	s.mu.Lock()
	if s.phase == PhaseSyncing {
		s.phase = PhaseUnauthenticated
	}
	s.mu.Unlock()
}

// SetUser replaces the current record, marks the store authenticated and
// notifies subscribers.
func (s *Store) SetUser(user backend.UserRecord) {
	s.mu.Lock()
	u := user.Clone()
	s.user = &u
	s.phase = PhaseAuthenticated
	snapshot := u.Clone()
	s.mu.Unlock()
	s.publish(Event{Kind: EventUserChanged, User: &snapshot})
}

// SyncSuppressed reports whether background reconciliation must stand
// down because a local profile write is in flight or still absorbing.
func (s *Store) SyncSuppressed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeHoldLocked()
}

// BeginProfileWrite claims the profile-write guard. It returns false when
// another write already holds it.
func (s *Store) BeginProfileWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profileWriting {
		return false
	}
	s.profileWriting = true
	return true
}

// EndProfileWrite releases the guard and keeps background syncs
// suppressed for the given absorption window. Pass zero on failure so the
// store becomes fresh immediately.
func (s *Store) EndProfileWrite(hold time.Duration) {
	s.mu.Lock()
	s.profileWriting = false
	if hold > 0 {
		s.profileHoldUntil = s.now().Add(hold)
	} else {
		s.profileHoldUntil = time.Time{}
	}
	s.mu.Unlock()
}

// TryBeginOnboarding claims the at-most-once onboarding guard.
func (s *Store) TryBeginOnboarding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onboardingBusy {
		return false
	}
	s.onboardingBusy = true
	return true
}

func (s *Store) EndOnboarding() {
	s.mu.Lock()
	s.onboardingBusy = false
	s.mu.Unlock()
}

func (s *Store) OnboardingInFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onboardingBusy
}

// Clear wipes all session state and notifies subscribers: first a nil
// user.changed, then session.logged_out.
func (s *Store) Clear() {
	s.mu.Lock()
	s.user = nil
	s.credential = ""
	s.phase = PhaseUnauthenticated
	s.profileWriting = false
	s.profileHoldUntil = time.Time{}
	s.onboardingBusy = false
	s.mu.Unlock()
	s.publish(Event{Kind: EventUserChanged})
	s.publish(Event{Kind: EventLoggedOut})
}

// EmitOnboardingComplete notifies subscribers that a pending submission
// landed.
func (s *Store) EmitOnboardingComplete() {
	s.publish(Event{Kind: EventOnboardingComplete})
}

// EmitOnboardingError surfaces a failed submission to subscribers.
func (s *Store) EmitOnboardingError(message string) {
	s.publish(Event{Kind: EventOnboardingError, Message: message})
}

// Subscribe registers an event channel with the given buffer and returns
// it with a cancel function. Events are dropped for subscribers whose
// buffer is full; the store never blocks on a slow consumer.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) publish(event Event) {
	event.CorrelationID = uuid.NewString()
	event.OccurredAt = s.clockNow()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *Store) clockNow() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}
