package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pioneer/internal/backend"
	"pioneer/internal/config"
	"pioneer/internal/identity"
	"pioneer/internal/localstore"
	"pioneer/internal/logging"
	"pioneer/internal/reconcile"
)

// sessionControl is the writable side of a session adapter: the read side
// the reconciler sees plus lifecycle control for login/logout.
type sessionControl interface {
	identity.SessionAdapter
	EndSession()
}

// app wires the whole client stack for one CLI invocation.
type app struct {
	cfg    config.Config
	logger logging.Logger
	cache  *localstore.Store

	session sessionControl
	auth0   *identity.Auth0Adapter // nil when running with a static token
	static  *identity.StaticTokenAdapter

	api        *backend.Client
	store      *reconcile.Store
	reconciler *reconcile.Reconciler
	submitter  *reconcile.Submitter
	editor     *reconcile.ProfileEditor
	merger     *reconcile.ResponseMerger
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.NewComponentLogger("CLI")
	cache := localstore.New(cfg.StateDir)
	api := backend.New(cfg.APIBaseURL, cfg.RequestTimeout, logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		cache:  cache,
		api:    api,
		store:  reconcile.NewStore(),
	}

	if cfg.Auth0.Domain != "" {
		a.auth0 = identity.NewAuth0Adapter(identity.Auth0Config{
			Domain:   cfg.Auth0.Domain,
			ClientID: cfg.Auth0.ClientID,
			Audience: cfg.Auth0.Audience,
			Timeout:  cfg.Auth0.Timeout,
		}, logger)
		a.session = a.auth0
	} else {
		a.static = identity.NewStaticTokenAdapter()
		a.session = a.static
	}

	timing := reconcile.Config{
		AbsorptionDelay:       cfg.AbsorptionDelay,
		CompletionNoticeDelay: cfg.CompletionNoticeDelay,
		SubmitSettleDelay:     cfg.SubmitSettleDelay,
	}
	metrics := reconcile.NewMetrics(prometheus.DefaultRegisterer)

	a.reconciler = reconcile.NewReconciler(a.session, api, a.store, cache, timing, logger)
	a.reconciler.SetMetrics(metrics)
	a.submitter = reconcile.NewSubmitter(a.session, api, a.store, cache, timing, logger)
	a.submitter.SetMetrics(metrics)
	a.reconciler.SetSubmitter(a.submitter)
	a.editor = reconcile.NewProfileEditor(api, a.store, cache, timing, logger)
	a.editor.SetMetrics(metrics)
	a.merger = reconcile.NewResponseMerger(api, a.store, cache, timing, logger)
	a.merger.SetMetrics(metrics)

	a.restoreSession()
	return a, nil
}

// restoreSession seeds the adapter from cached token material so a new
// process resumes the previous session.
func (a *app) restoreSession() {
	access, refresh, err := a.cache.LoadTokens()
	if err != nil {
		a.logger.Warn("Failed to restore cached tokens: %v", err)
		return
	}
	if access == "" && refresh == "" {
		return
	}
	if a.auth0 != nil {
		// The cached access token's remaining lifetime is unknown; give
		// it a grace period and let the refresh path correct us.
		a.auth0.SetSession(access, refresh, time.Now().Add(time.Hour))
		return
	}
	claims, err := identity.ParseClaims(access)
	if err != nil {
		a.logger.Warn("Cached token unusable: %v", err)
		return
	}
	a.static.SetSession(access, claims)
}

func (a *app) login(access, refresh string) error {
	claims, parseErr := identity.ParseClaims(access)
	if parseErr == nil {
		a.resetIfAccountChanged(claims)
	}

	if a.auth0 != nil {
		a.auth0.SetSession(access, refresh, time.Now().Add(time.Hour))
	} else {
		if parseErr != nil {
			return fmt.Errorf("parse access token: %w", parseErr)
		}
		a.static.SetSession(access, claims)
	}
	if err := a.cache.SaveTokens(access, refresh); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

// resetIfAccountChanged wipes the session-scoped cache (draft answers,
// language override) when the signing-in identity differs from the
// cached one. The same account resuming keeps its draft.
func (a *app) resetIfAccountChanged(claims identity.Claims) {
	cached, ok, err := a.cache.LoadUser()
	if err != nil || !ok {
		return
	}
	if claims.Email == "" || strings.EqualFold(claims.Email, cached.Email) {
		return
	}
	a.logger.Info("Different account signing in, resetting session scope")
	if err := a.cache.ResetSession(); err != nil {
		a.logger.Warn("Failed to reset session scope: %v", err)
	}
}

func (a *app) logout() {
	a.session.EndSession()
}
