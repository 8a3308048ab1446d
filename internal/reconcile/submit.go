package reconcile

import (
	"context"
	"fmt"
	"time"

	"pioneer/internal/answers"
	"pioneer/internal/backend"
	"pioneer/internal/identity"
	"pioneer/internal/localstore"
	"pioneer/internal/logging"
)

// Submitter drains a locally drafted onboarding answer set to the
// backend at most once. Drafts accumulate while the user is anonymous or
// offline; SubmitPending runs after every successful reconciliation and
// whenever the caller has reason to believe a draft exists.
type Submitter struct {
	session identity.SessionAdapter
	api     BackendAPI
	store   *Store
	cache   *localstore.Store
	metrics *Metrics
	logger  logging.Logger
	config  Config
	sleep   func(time.Duration)
}

func NewSubmitter(session identity.SessionAdapter, api BackendAPI, store *Store, cache *localstore.Store, config Config, logger logging.Logger) *Submitter {
	return &Submitter{
		session: session,
		api:     api,
		store:   store,
		cache:   cache,
		logger:  logging.OrNop(logger),
		config:  config.withDefaults(),
		sleep:   time.Sleep,
	}
}

func (s *Submitter) SetMetrics(metrics *Metrics) {
	s.metrics = metrics
}

// WithSleep overrides the pause function used for the settle and
// completion-notice delays.
func (s *Submitter) WithSleep(sleep func(time.Duration)) *Submitter {
	if sleep != nil {
		s.sleep = sleep
	}
	return s
}

// SubmitPending submits the saved draft if one exists and the user has
// not onboarded yet. It no-ops when there is nothing to do and is safe
// to call repeatedly and concurrently: overlapping calls collapse into a
// single submission.
//
// Failures keep the draft so a later pass can retry; only a corrupt
// draft is discarded.
func (s *Submitter) SubmitPending(ctx context.Context) error {
	draft, ok, err := s.cache.LoadDraft()
	if !ok {
		return nil
	}
	if err != nil {
		s.logger.Warn("submit: discarding unreadable draft: %v", err)
		if clearErr := s.cache.ClearDraft(); clearErr != nil {
			s.logger.Warn("submit: clearing draft failed: %v", clearErr)
		}
		s.store.EmitOnboardingError("saved survey answers could not be read")
		s.metrics.RecordSubmission("corrupt_draft")
		return err
	}

	if user := s.store.User(); user != nil && user.IsOnboarded {
		s.logger.Debug("submit: user already onboarded, dropping draft")
		if err := s.cache.ClearDraft(); err != nil {
			s.logger.Warn("submit: clearing draft failed: %v", err)
		}
		return nil
	}

	if !s.store.TryBeginOnboarding() {
		s.logger.Debug("submit: submission already in flight")
		return nil
	}
	defer s.store.EndOnboarding()

	credential, err := s.session.Credential(ctx)
	if err != nil {
		s.metrics.RecordSubmission("credential_error")
		return fmt.Errorf("obtain credential: %w", err)
	}

	// Re-check against a fresh record right before submitting. Another
	// device or tab may have finished onboarding since the draft was
	// saved.
	if fresh, err := s.api.Me(ctx, credential); err == nil {
		if fresh.IsOnboarded {
			s.logger.Info("submit: backend reports onboarded, dropping draft")
			if err := s.cache.ClearDraft(); err != nil {
				s.logger.Warn("submit: clearing draft failed: %v", err)
			}
			return nil
		}
	} else {
		s.logger.Debug("submit: pre-submit refresh failed, continuing with cached view: %v", err)
	}

	canonical := answers.Canonical(draft)
	if !answers.IsComplete(canonical) {
		s.logger.Debug("submit: draft incomplete, keeping it for later")
		s.metrics.RecordSubmission("incomplete")
		return nil
	}

	if s.config.SubmitSettleDelay > 0 {
		s.sleep(s.config.SubmitSettleDelay)
	}

	err = s.api.SubmitOnboarding(ctx, credential, answers.ToSnake(canonical))
	switch {
	case err == nil:
		s.metrics.RecordSubmission("ok")
	case backend.IsAlreadyOnboarded(err):
		// A concurrent submission won; treat it as success.
		s.logger.Info("submit: backend reports already onboarded, treating as success")
		s.metrics.RecordSubmission("already_onboarded")
	default:
		s.store.EmitOnboardingError(err.Error())
		s.metrics.RecordSubmission("error")
		return fmt.Errorf("submit onboarding: %w", err)
	}

	if err := s.cache.ClearDraft(); err != nil {
		s.logger.Warn("submit: clearing draft failed: %v", err)
	}
	if fresh, err := s.api.Me(ctx, credential); err == nil {
		s.store.SetUser(fresh)
		if err := s.cache.SaveUser(fresh); err != nil {
			s.logger.Warn("submit: persisting user record failed: %v", err)
		}
	} else {
		s.logger.Warn("submit: post-submit refresh failed: %v", err)
	}

	// Let subscribers see the refreshed record before the completion
	// notice lands.
	if delay := s.config.CompletionNoticeDelay; delay > 0 {
		s.sleep(delay)
	}
	s.store.EmitOnboardingComplete()
	return nil
}
