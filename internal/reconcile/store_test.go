package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pioneer/internal/backend"
)

func TestStorePhaseLifecycle(t *testing.T) {
	store := NewStore()
	assert.Equal(t, PhaseUnauthenticated, store.Phase())

	store.BeginSync()
	assert.Equal(t, PhaseSyncing, store.Phase())

	store.FailSync()
	assert.Equal(t, PhaseUnauthenticated, store.Phase())

	store.BeginSync()
	store.SetUser(backend.UserRecord{ID: 7, Email: "amina@example.org"})
	assert.Equal(t, PhaseAuthenticated, store.Phase())

	// A failed background refresh must not drop an authenticated session.
	store.FailSync()
	assert.Equal(t, PhaseAuthenticated, store.Phase())

	store.Clear()
	assert.Equal(t, PhaseUnauthenticated, store.Phase())
	assert.Nil(t, store.User())
	assert.Empty(t, store.Credential())
}

func TestStoreUserReturnsCopy(t *testing.T) {
	store := NewStore()
	store.SetUser(backend.UserRecord{ID: 1, FirstName: "Amina"})

	first := store.User()
	first.FirstName = "changed"

	second := store.User()
	assert.Equal(t, "Amina", second.FirstName)
}

func TestStoreAbsorptionWindow(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	store := NewStore().WithNow(func() time.Time { return current })
	store.SetUser(backend.UserRecord{ID: 1})

	require.True(t, store.BeginProfileWrite())
	assert.False(t, store.BeginProfileWrite(), "guard must be exclusive")
	assert.True(t, store.SyncSuppressed())
	assert.Equal(t, PhaseAuthenticatedStale, store.Phase())

	store.EndProfileWrite(5 * time.Second)
	assert.True(t, store.SyncSuppressed(), "absorption window still open")
	assert.Equal(t, PhaseAuthenticatedStale, store.Phase())

	current = current.Add(4 * time.Second)
	assert.True(t, store.SyncSuppressed())

	current = current.Add(2 * time.Second)
	assert.False(t, store.SyncSuppressed())
	assert.Equal(t, PhaseAuthenticated, store.Phase())
}

func TestStoreEndProfileWriteWithoutHold(t *testing.T) {
	store := NewStore()
	store.SetUser(backend.UserRecord{ID: 1})

	require.True(t, store.BeginProfileWrite())
	store.EndProfileWrite(0)

	assert.False(t, store.SyncSuppressed())
	assert.Equal(t, PhaseAuthenticated, store.Phase())
}

func TestStoreOnboardingGuard(t *testing.T) {
	store := NewStore()

	require.True(t, store.TryBeginOnboarding())
	assert.False(t, store.TryBeginOnboarding())
	assert.True(t, store.OnboardingInFlight())

	store.EndOnboarding()
	assert.False(t, store.OnboardingInFlight())
	assert.True(t, store.TryBeginOnboarding())
}

func TestStoreSubscribe(t *testing.T) {
	store := NewStore()
	events, cancel := store.Subscribe(8)
	defer cancel()

	store.SetUser(backend.UserRecord{ID: 3, Email: "amina@example.org"})
	store.EmitOnboardingError("boom")

	got := drainEvents(events)
	require.Len(t, got, 2)
	assert.Equal(t, EventUserChanged, got[0].Kind)
	require.NotNil(t, got[0].User)
	assert.Equal(t, int64(3), got[0].User.ID)
	assert.NotEmpty(t, got[0].CorrelationID)
	assert.False(t, got[0].OccurredAt.IsZero())
	assert.Equal(t, EventOnboardingError, got[1].Kind)
	assert.Equal(t, "boom", got[1].Message)
}

func TestStoreClearEmitsLogoutPair(t *testing.T) {
	store := NewStore()
	store.SetUser(backend.UserRecord{ID: 3})

	events, cancel := store.Subscribe(8)
	defer cancel()
	store.Clear()

	got := drainEvents(events)
	require.Equal(t, []EventKind{EventUserChanged, EventLoggedOut}, kindsOf(got))
	assert.Nil(t, got[0].User)
}

func TestStoreSubscribeCancelStopsDelivery(t *testing.T) {
	store := NewStore()
	events, cancel := store.Subscribe(8)
	cancel()

	// Publishing after cancel must not panic or block.
	store.SetUser(backend.UserRecord{ID: 1})

	_, open := <-events
	assert.False(t, open)
}

func TestStoreSlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewStore()
	events, cancel := store.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			store.EmitOnboardingError("overflow")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
	assert.Len(t, drainEvents(events), 1)
}
