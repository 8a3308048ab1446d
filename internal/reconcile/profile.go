package reconcile

import (
	"context"
	"errors"
	"fmt"

	"pioneer/internal/backend"
	"pioneer/internal/localstore"
	"pioneer/internal/logging"
)

// ErrUpdateInFlight is returned when a profile write is attempted while
// another one holds the write guard.
var ErrUpdateInFlight = errors.New("profile update already in flight")

// ErrNoCredential is returned by write operations when no session
// credential is available.
var ErrNoCredential = errors.New("no session credential")

// ProfileEditor pushes partial profile edits to the backend. While a
// write is in flight, and for an absorption window after it completes,
// background reconciliation stands down so the write's result cannot be
// overwritten by a stale read.
type ProfileEditor struct {
	api     BackendAPI
	store   *Store
	cache   *localstore.Store
	metrics *Metrics
	logger  logging.Logger
	config  Config
}

func NewProfileEditor(api BackendAPI, store *Store, cache *localstore.Store, config Config, logger logging.Logger) *ProfileEditor {
	return &ProfileEditor{
		api:    api,
		store:  store,
		cache:  cache,
		logger: logging.OrNop(logger),
		config: config.withDefaults(),
	}
}

func (e *ProfileEditor) SetMetrics(metrics *Metrics) {
	e.metrics = metrics
}

// Update sends the patch, caches the server's reply, and emits
// user.changed before running a confirmatory re-fetch. On failure the
// cached record is left untouched and the write guard drops immediately.
func (e *ProfileEditor) Update(ctx context.Context, patch backend.ProfilePatch) error {
	if patch.IsZero() {
		return nil
	}
	credential := e.store.Credential()
	if credential == "" {
		return ErrNoCredential
	}
	if !e.store.BeginProfileWrite() {
		return ErrUpdateInFlight
	}

	updated, err := e.api.UpdateMe(ctx, credential, patch)
	if err != nil {
		e.store.EndProfileWrite(0)
		e.metrics.RecordProfileUpdate("error")
		return fmt.Errorf("update profile: %w", err)
	}

	// The server's reply is authoritative: persist and announce it
	// before the confirmatory re-fetch so subscribers never see the
	// pre-write record again.
	if err := e.cache.SaveUser(updated); err != nil {
		e.logger.Warn("profile: persisting user record failed: %v", err)
	}
	e.store.SetUser(updated)

	if fresh, err := e.api.Me(ctx, credential); err == nil {
		e.store.SetUser(fresh)
		if err := e.cache.SaveUser(fresh); err != nil {
			e.logger.Warn("profile: persisting refreshed record failed: %v", err)
		}
	} else {
		e.logger.Warn("profile: confirmatory refresh failed: %v", err)
	}

	e.store.EndProfileWrite(e.config.AbsorptionDelay)
	e.metrics.RecordProfileUpdate("ok")
	return nil
}
