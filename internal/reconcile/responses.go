package reconcile

import (
	"context"
	"fmt"

	"pioneer/internal/answers"
	"pioneer/internal/backend"
	"pioneer/internal/localstore"
	"pioneer/internal/logging"
)

// ResponseMerger applies incremental survey-answer edits for a user who
// already onboarded. Edits are merged over the latest known answer set
// rather than replacing it, so editing one question never erases the
// rest.
type ResponseMerger struct {
	api     BackendAPI
	store   *Store
	cache   *localstore.Store
	metrics *Metrics
	logger  logging.Logger
	config  Config
}

func NewResponseMerger(api BackendAPI, store *Store, cache *localstore.Store, config Config, logger logging.Logger) *ResponseMerger {
	return &ResponseMerger{
		api:    api,
		store:  store,
		cache:  cache,
		logger: logging.OrNop(logger),
		config: config.withDefaults(),
	}
}

func (m *ResponseMerger) SetMetrics(metrics *Metrics) {
	m.metrics = metrics
}

// MergeAndSubmit merges edits over the freshest available answer set and
// replaces the set on the backend. The base is re-fetched first; when the
// fetch fails the cached record serves as base so the edit still lands.
// Edits win per key.
//
// Like ProfileEditor.Update this is a user-initiated write: it holds the
// profile-write guard for its whole duration plus the absorption window,
// so a background sync racing the merge cannot overwrite its result.
func (m *ResponseMerger) MergeAndSubmit(ctx context.Context, edits answers.Set) error {
	if len(edits) == 0 {
		return nil
	}
	credential := m.store.Credential()
	if credential == "" {
		return ErrNoCredential
	}
	if !m.store.BeginProfileWrite() {
		return ErrUpdateInFlight
	}

	latest := m.store.User()
	if fresh, err := m.api.Me(ctx, credential); err == nil {
		latest = &fresh
	} else {
		m.logger.Debug("responses: refresh failed, merging over cached record: %v", err)
	}

	// Stored answers may predate the stable option codes; normalize the
	// base to codes before merging so an edit never resurrects a legacy
	// label.
	var existing answers.Set
	if latest != nil {
		existing = latest.SurveyResponses
	}
	base := answers.MapToCodes(answers.Canonical(existing))
	merged := answers.Merge(base, answers.ToCamel(edits))
	wire := answers.ToSnake(merged)

	result, err := m.api.ReplaceResponses(ctx, credential, wire)
	if err != nil {
		m.store.EndProfileWrite(0)
		m.metrics.RecordProfileUpdate("responses_error")
		return fmt.Errorf("replace responses: %w", err)
	}

	// Optimistic local update from what we sent plus whatever the server
	// re-derived; a confirmatory re-fetch follows.
	var updated backend.UserRecord
	if latest != nil {
		updated = latest.Clone()
	}
	updated.SurveyResponses = wire
	if lang, ok := wire["primary_language"]; ok && lang.Str() != "" {
		updated.PrimaryLanguage = lang.Str()
	}
	if result.OnboardingProfile != nil {
		updated.OnboardingProfile = result.OnboardingProfile
	}
	if result.RoadmapSummary != "" {
		updated.RoadmapSummary = result.RoadmapSummary
	}
	if result.ChecklistID != "" {
		updated.ChecklistID = result.ChecklistID
	}
	if err := m.cache.SaveUser(updated); err != nil {
		m.logger.Warn("responses: persisting user record failed: %v", err)
	}
	m.store.SetUser(updated)

	// The accepted set supersedes any per-session language override and
	// any lingering draft.
	if err := m.cache.ClearLanguageOverride(); err != nil {
		m.logger.Warn("responses: clearing language override failed: %v", err)
	}
	if err := m.cache.ClearDraft(); err != nil {
		m.logger.Warn("responses: clearing draft failed: %v", err)
	}

	if fresh, err := m.api.Me(ctx, credential); err == nil {
		m.store.SetUser(fresh)
		if err := m.cache.SaveUser(fresh); err != nil {
			m.logger.Warn("responses: persisting refreshed record failed: %v", err)
		}
	} else {
		m.logger.Warn("responses: confirmatory refresh failed: %v", err)
	}

	m.store.EndProfileWrite(m.config.AbsorptionDelay)
	m.metrics.RecordProfileUpdate("responses_ok")
	return nil
}
