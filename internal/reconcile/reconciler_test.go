package reconcile

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pioneer/internal/backend"
	"pioneer/internal/identity"
)

func newReconcilerRig(t *testing.T) (*Reconciler, *fakeSession, *fakeAPI, *Store) {
	t.Helper()
	session := &fakeSession{
		active:     true,
		credential: "token-123",
		claims: identity.Claims{
			Subject:    "auth0|abc",
			Email:      "amina@example.org",
			Nickname:   "amina",
			GivenName:  "Amina",
			FamilyName: "Diallo",
		},
	}
	api := &fakeAPI{user: backend.UserRecord{ID: 42, Email: "amina@example.org"}}
	store := NewStore()
	cache := newTestCache(t)
	rec := NewReconciler(session, api, store, cache, Config{}, testLogger)
	return rec, session, api, store
}

func TestReconcilerSyncFetchesExistingRecord(t *testing.T) {
	rec, _, api, store := newReconcilerRig(t)
	events, cancel := store.Subscribe(8)
	defer cancel()

	require.NoError(t, rec.HandleSessionChange(context.Background()))

	assert.Equal(t, PhaseAuthenticated, store.Phase())
	assert.Equal(t, "token-123", store.Credential())
	user := store.User()
	require.NotNil(t, user)
	assert.Equal(t, int64(42), user.ID)

	me, create, _, _, _ := api.counts()
	assert.Equal(t, 1, me)
	assert.Zero(t, create)

	got := drainEvents(events)
	require.Len(t, got, 1)
	assert.Equal(t, EventUserChanged, got[0].Kind)

	cached, ok, err := rec.cache.LoadUser()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), cached.ID)
}

func TestReconcilerCreatesRecordOnNotFound(t *testing.T) {
	rec, _, api, store := newReconcilerRig(t)
	api.meErr = &backend.APIError{StatusCode: http.StatusNotFound, Detail: "no user"}

	require.NoError(t, rec.HandleSessionChange(context.Background()))

	assert.Equal(t, PhaseAuthenticated, store.Phase())
	_, create, _, _, _ := api.counts()
	assert.Equal(t, 1, create)
	assert.Equal(t, backend.CreateUserParams{
		Email:       "amina@example.org",
		Username:    "amina",
		FirstName:   "Amina",
		LastName:    "Diallo",
		Auth0UserID: "auth0|abc",
	}, api.lastCreate)
}

func TestReconcilerTransientErrorKeepsState(t *testing.T) {
	rec, _, api, store := newReconcilerRig(t)

	require.NoError(t, rec.HandleSessionChange(context.Background()))
	require.NoError(t, rec.cache.SaveUser(api.user))

	api.meErr = &backend.APIError{StatusCode: http.StatusBadGateway}
	err := rec.HandleSessionChange(context.Background())
	require.Error(t, err)

	assert.Equal(t, PhaseAuthenticated, store.Phase())
	require.NotNil(t, store.User())

	_, ok, loadErr := rec.cache.LoadUser()
	require.NoError(t, loadErr)
	assert.True(t, ok, "transient failures must not clear the cache")
}

func TestReconcilerAuthRejectedClearsEverything(t *testing.T) {
	rec, _, api, store := newReconcilerRig(t)
	require.NoError(t, rec.HandleSessionChange(context.Background()))

	events, cancel := store.Subscribe(8)
	defer cancel()

	api.meErr = &backend.APIError{StatusCode: http.StatusUnauthorized}
	err := rec.HandleSessionChange(context.Background())
	require.Error(t, err)

	assert.Equal(t, PhaseUnauthenticated, store.Phase())
	assert.Nil(t, store.User())
	assert.Equal(t, []EventKind{EventUserChanged, EventLoggedOut}, kindsOf(drainEvents(events)))

	_, ok, loadErr := rec.cache.LoadUser()
	require.NoError(t, loadErr)
	assert.False(t, ok)
}

func TestReconcilerSessionEndClearsState(t *testing.T) {
	rec, session, _, store := newReconcilerRig(t)
	require.NoError(t, rec.HandleSessionChange(context.Background()))

	events, cancel := store.Subscribe(8)
	defer cancel()

	session.mu.Lock()
	session.active = false
	session.mu.Unlock()

	require.NoError(t, rec.HandleSessionChange(context.Background()))
	assert.Equal(t, PhaseUnauthenticated, store.Phase())
	assert.Equal(t, []EventKind{EventUserChanged, EventLoggedOut}, kindsOf(drainEvents(events)))

	// A second pass with no session is a no-op, not a second logout.
	require.NoError(t, rec.HandleSessionChange(context.Background()))
	assert.Empty(t, drainEvents(events))
}

func TestReconcilerCredentialFailureRevertsSyncing(t *testing.T) {
	rec, session, api, store := newReconcilerRig(t)
	session.credErr = errors.New("refresh rejected")

	err := rec.HandleSessionChange(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseUnauthenticated, store.Phase())

	me, _, _, _, _ := api.counts()
	assert.Zero(t, me)
}

func TestReconcilerSuppressedWhileProfileWriteInFlight(t *testing.T) {
	rec, _, api, store := newReconcilerRig(t)
	require.NoError(t, rec.HandleSessionChange(context.Background()))
	baseline, _, _, _, _ := api.counts()

	require.True(t, store.BeginProfileWrite())
	require.NoError(t, rec.HandleSessionChange(context.Background()))

	me, _, _, _, _ := api.counts()
	assert.Equal(t, baseline, me, "no backend traffic while a write is in flight")
	store.EndProfileWrite(0)
}

func TestReconcilerSuppressedDuringAbsorptionWindow(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	rec, _, api, store := newReconcilerRig(t)
	store.WithNow(func() time.Time { return current })

	require.NoError(t, rec.HandleSessionChange(context.Background()))
	require.True(t, store.BeginProfileWrite())
	store.EndProfileWrite(5 * time.Second)
	baseline, _, _, _, _ := api.counts()

	require.NoError(t, rec.HandleSessionChange(context.Background()))
	me, _, _, _, _ := api.counts()
	assert.Equal(t, baseline, me)

	current = current.Add(6 * time.Second)
	require.NoError(t, rec.HandleSessionChange(context.Background()))
	me, _, _, _, _ = api.counts()
	assert.Equal(t, baseline+1, me, "sync resumes once the window elapses")
}

func TestReconcilerRunsSubmitterAfterSync(t *testing.T) {
	rec, session, api, store := newReconcilerRig(t)
	submitter := NewSubmitter(session, api, store, rec.cache, Config{}, testLogger).
		WithSleep(func(time.Duration) {})
	rec.SetSubmitter(submitter)

	require.NoError(t, rec.cache.SaveDraft(completeDraft()))
	require.NoError(t, rec.HandleSessionChange(context.Background()))

	_, _, _, submits, _ := api.counts()
	assert.Equal(t, 1, submits)
}
