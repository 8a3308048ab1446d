// Package reconcile keeps three copies of a user's identity consistent:
// the identity provider's session, the backend-of-record, and the local
// cache. The Reconciler reacts to session changes, the ProfileEditor and
// ResponseMerger push local edits out, and the Submitter drains a saved
// onboarding draft at most once. All of them share the Store, which owns
// phase, guards and event fan-out.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"pioneer/internal/answers"
	"pioneer/internal/backend"
	pioneererrors "pioneer/internal/errors"
	"pioneer/internal/identity"
	"pioneer/internal/localstore"
	"pioneer/internal/logging"
)

// BackendAPI is the slice of the backend client the reconciliation layer
// depends on. *backend.Client satisfies it; tests substitute fakes.
type BackendAPI interface {
	Me(ctx context.Context, credential string) (backend.UserRecord, error)
	CreateFromIdentity(ctx context.Context, credential string, params backend.CreateUserParams) (backend.UserRecord, error)
	UpdateMe(ctx context.Context, credential string, patch backend.ProfilePatch) (backend.UserRecord, error)
	SubmitOnboarding(ctx context.Context, credential string, set answers.Set) error
	ReplaceResponses(ctx context.Context, credential string, set answers.Set) (backend.ResponsesResult, error)
}

var _ BackendAPI = (*backend.Client)(nil)

// Config carries the timing knobs of the reconciliation layer.
type Config struct {
	// AbsorptionDelay is how long background syncs stay suppressed after
	// a profile write completes, giving the backend's read path time to
	// catch up with the write.
	AbsorptionDelay time.Duration
	// CompletionNoticeDelay postpones the onboarding.complete event so
	// subscribers observe the refreshed user record first.
	CompletionNoticeDelay time.Duration
	// SubmitSettleDelay is a short pause before submitting a drafted
	// answer set, letting a freshly created backend record settle.
	SubmitSettleDelay time.Duration
}

const (
	defaultAbsorptionDelay       = 5 * time.Second
	defaultCompletionNoticeDelay = 200 * time.Millisecond
	defaultSubmitSettleDelay     = 500 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.AbsorptionDelay == 0 {
		c.AbsorptionDelay = defaultAbsorptionDelay
	}
	if c.CompletionNoticeDelay == 0 {
		c.CompletionNoticeDelay = defaultCompletionNoticeDelay
	}
	if c.SubmitSettleDelay == 0 {
		c.SubmitSettleDelay = defaultSubmitSettleDelay
	}
	return c
}

// Reconciler drives the session lifecycle: it verifies the identity
// session on every change notification and converges the Store and the
// local cache on the backend's record.
type Reconciler struct {
	session   identity.SessionAdapter
	api       BackendAPI
	store     *Store
	cache     *localstore.Store
	submitter *Submitter
	metrics   *Metrics
	logger    logging.Logger
	config    Config
	group     singleflight.Group
}

func NewReconciler(session identity.SessionAdapter, api BackendAPI, store *Store, cache *localstore.Store, config Config, logger logging.Logger) *Reconciler {
	return &Reconciler{
		session: session,
		api:     api,
		store:   store,
		cache:   cache,
		logger:  logging.OrNop(logger),
		config:  config.withDefaults(),
	}
}

// SetSubmitter attaches the deferred onboarding submitter, invoked after
// every successful reconciliation.
func (r *Reconciler) SetSubmitter(submitter *Submitter) {
	r.submitter = submitter
}

func (r *Reconciler) SetMetrics(metrics *Metrics) {
	r.metrics = metrics
}

// Start subscribes to session-change notifications and returns a stop
// function. Each notification triggers a full reconciliation pass.
func (r *Reconciler) Start() (stop func()) {
	return r.session.OnChange(func() {
		if err := r.HandleSessionChange(context.Background()); err != nil {
			r.logger.Warn("reconcile: session change handling failed: %v", err)
		}
	})
}

// HandleSessionChange runs one reconciliation pass. It is safe to call
// concurrently; overlapping passes for the same session collapse into a
// single backend round trip.
func (r *Reconciler) HandleSessionChange(ctx context.Context) error {
	started := time.Now()

	if !r.session.Active() {
		if r.store.Phase() == PhaseUnauthenticated {
			return nil
		}
		r.logger.Info("reconcile: session ended, clearing local state")
		r.logout()
		r.metrics.RecordSync("logout", time.Since(started))
		return nil
	}

	if r.store.SyncSuppressed() {
		r.logger.Debug("reconcile: background sync suppressed, local write wins")
		r.metrics.RecordSync("suppressed", time.Since(started))
		return nil
	}

	r.store.BeginSync()
	credential, err := r.session.Credential(ctx)
	if err != nil {
		r.store.FailSync()
		r.metrics.RecordSync("credential_error", time.Since(started))
		return fmt.Errorf("obtain credential: %w", err)
	}
	r.store.SetCredential(credential)

	result, err, _ := r.group.Do("session-sync", func() (any, error) {
		return r.fetchOrCreate(ctx, credential)
	})
	if err != nil {
		if backend.IsAuthRejected(err) {
			r.logger.Warn("reconcile: credential rejected by backend, logging out")
			r.logout()
			r.metrics.RecordSync("rejected", time.Since(started))
			return err
		}
		// Failures other than an auth rejection leave the cached record
		// and phase alone so a later pass can succeed without the user
		// noticing.
		if pioneererrors.IsTransient(err) {
			r.logger.Debug("reconcile: transient backend failure, keeping cached state: %v", err)
		} else {
			r.logger.Warn("reconcile: sync failed: %v", err)
		}
		r.metrics.RecordSync("error", time.Since(started))
		return err
	}

	user := result.(backend.UserRecord)
	r.store.SetUser(user)
	if err := r.cache.SaveUser(user); err != nil {
		r.logger.Warn("reconcile: persisting user record failed: %v", err)
	}
	r.metrics.RecordSync("ok", time.Since(started))

	if r.submitter != nil {
		if err := r.submitter.SubmitPending(ctx); err != nil {
			// Surfaced through onboarding.error events; the sync itself
			// succeeded.
			r.logger.Warn("reconcile: pending onboarding submission failed: %v", err)
		}
	}
	return nil
}

// fetchOrCreate fetches the backend record for the credential, creating
// one from the identity claims only when the backend reports no record.
// Any other failure is returned as-is so a flaky fetch can never fork a
// duplicate record.
func (r *Reconciler) fetchOrCreate(ctx context.Context, credential string) (backend.UserRecord, error) {
	user, err := r.api.Me(ctx, credential)
	if err == nil {
		return user, nil
	}
	if !backend.IsNotFound(err) {
		return backend.UserRecord{}, fmt.Errorf("fetch user record: %w", err)
	}

	claims, err := r.session.Claims()
	if err != nil {
		return backend.UserRecord{}, fmt.Errorf("read identity claims: %w", err)
	}
	r.logger.Info("reconcile: no backend record for %s, creating one", claims.Subject)
	created, err := r.api.CreateFromIdentity(ctx, credential, backend.CreateUserParams{
		Email:       claims.Email,
		Username:    identity.UsernameFor(claims),
		FirstName:   claims.GivenName,
		LastName:    claims.FamilyName,
		Auth0UserID: claims.Subject,
	})
	if err != nil {
		return backend.UserRecord{}, fmt.Errorf("create user record: %w", err)
	}
	return created, nil
}

// logout clears the cache and the store. Draft answers survive a logout
// so a returning user does not lose in-progress onboarding work.
func (r *Reconciler) logout() {
	if err := r.cache.ClearUser(); err != nil {
		r.logger.Warn("reconcile: clearing cached user failed: %v", err)
	}
	if err := r.cache.ClearTokens(); err != nil {
		r.logger.Warn("reconcile: clearing cached tokens failed: %v", err)
	}
	r.store.Clear()
}
