package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"pioneer/internal/httpclient"
	"pioneer/internal/logging"
)

const (
	claimsCacheSize = 32
	// expiryLeeway refreshes shortly before the provider-reported expiry so
	// a credential handed to a caller is never already stale.
	expiryLeeway = 30 * time.Second
)

// Auth0Config configures the Auth0-flavored session adapter.
type Auth0Config struct {
	Domain   string
	ClientID string
	Audience string
	Timeout  time.Duration
}

// Auth0Adapter maintains a provider session backed by a refresh token.
// Credential refreshes happen lazily on demand; each successful refresh
// fires the registered change listeners, reproducing the provider SDK's
// background token-refresh churn.
type Auth0Adapter struct {
	changeNotifier

	config Auth0Config
	http   *http.Client
	logger logging.Logger
	now    func() time.Time

	mu           sync.Mutex
	refreshToken string
	accessToken  string
	expiresAt    time.Time

	claimsCache *lru.Cache[string, Claims]
}

// NewAuth0Adapter builds an adapter for the given provider tenant.
func NewAuth0Adapter(config Auth0Config, logger logging.Logger) *Auth0Adapter {
	logger = logging.OrNop(logger)
	cache, _ := lru.New[string, Claims](claimsCacheSize)
	return &Auth0Adapter{
		config:      config,
		http:        httpclient.New(config.Timeout, logger),
		logger:      logger,
		now:         time.Now,
		claimsCache: cache,
	}
}

// WithNow allows tests to control the clock.
func (a *Auth0Adapter) WithNow(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// SetSession seeds the adapter with token material, typically restored
// from the local cache after a restart, and fires change listeners.
func (a *Auth0Adapter) SetSession(accessToken, refreshToken string, expiresAt time.Time) {
	a.mu.Lock()
	a.accessToken = accessToken
	a.refreshToken = refreshToken
	a.expiresAt = expiresAt
	a.mu.Unlock()
	a.notify()
}

// EndSession drops all token material and fires change listeners.
func (a *Auth0Adapter) EndSession() {
	a.mu.Lock()
	a.accessToken = ""
	a.refreshToken = ""
	a.expiresAt = time.Time{}
	a.mu.Unlock()
	a.notify()
}

// Active reports whether any session material exists. A stale access
// token with a refresh token available still counts as active; Credential
// will refresh it.
func (a *Auth0Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accessToken != "" || a.refreshToken != ""
}

// Credential returns a bearer credential, refreshing through the
// provider's token endpoint when the cached one is near expiry.
func (a *Auth0Adapter) Credential(ctx context.Context) (string, error) {
	a.mu.Lock()
	token := a.accessToken
	valid := token != "" && a.now().Add(expiryLeeway).Before(a.expiresAt)
	refreshToken := a.refreshToken
	a.mu.Unlock()

	if valid {
		return token, nil
	}
	if refreshToken == "" {
		return "", fmt.Errorf("no identity session material available")
	}
	return a.refresh(ctx, refreshToken)
}

// Claims parses the identity claims out of the current credential.
func (a *Auth0Adapter) Claims() (Claims, error) {
	a.mu.Lock()
	token := a.accessToken
	a.mu.Unlock()
	if token == "" {
		return Claims{}, fmt.Errorf("no active credential")
	}
	if claims, ok := a.claimsCache.Get(token); ok {
		return claims, nil
	}
	claims, err := ParseClaims(token)
	if err != nil {
		return Claims{}, err
	}
	a.claimsCache.Add(token, claims)
	return claims, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (a *Auth0Adapter) refresh(ctx context.Context, refreshToken string) (string, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {a.config.ClientID},
		"refresh_token": {refreshToken},
	}
	if a.config.Audience != "" {
		form.Set("audience", a.config.Audience)
	}

	endpoint := fmt.Sprintf("https://%s/oauth/token", a.config.Domain)
	if strings.Contains(a.config.Domain, "://") {
		endpoint = strings.TrimRight(a.config.Domain, "/") + "/oauth/token"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh credential: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		a.logger.Warn("Token refresh rejected with status %d", resp.StatusCode)
		return "", fmt.Errorf("identity provider rejected refresh: status %d", resp.StatusCode)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("identity provider returned no access token")
	}

	a.mu.Lock()
	a.accessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		a.refreshToken = payload.RefreshToken
	}
	a.expiresAt = a.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	a.mu.Unlock()

	a.logger.Debug("Credential refreshed, expires in %ds", payload.ExpiresIn)
	a.notify()
	return payload.AccessToken, nil
}
