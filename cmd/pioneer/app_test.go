package main

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pioneer/internal/answers"
	"pioneer/internal/backend"
	"pioneer/internal/identity"
	"pioneer/internal/localstore"
	"pioneer/internal/logging"
)

func tokenFor(t *testing.T, claims identity.Claims) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	segment := base64.RawURLEncoding.EncodeToString
	return segment([]byte(`{"alg":"none"}`)) + "." + segment(payload) + ".sig"
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	static := identity.NewStaticTokenAdapter()
	return &app{
		logger:  logging.Nop(),
		cache:   localstore.New(t.TempDir()),
		static:  static,
		session: static,
	}
}

func TestLoginResetsSessionScopeForDifferentAccount(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.cache.SaveUser(backend.UserRecord{ID: 1, Email: "amina@example.org"}))
	require.NoError(t, a.cache.SaveDraft(answers.Set{"primaryLanguage": answers.String("es")}))
	require.NoError(t, a.cache.SetLanguageOverride(1, "es"))

	token := tokenFor(t, identity.Claims{Subject: "auth0|other", Email: "other@example.org"})
	require.NoError(t, a.login(token, ""))

	_, ok, err := a.cache.LoadDraft()
	require.NoError(t, err)
	assert.False(t, ok, "previous account's draft must not leak into the new session")
	_, _, overrideOK := a.cache.LanguageOverride()
	assert.False(t, overrideOK)
}

func TestLoginSameAccountKeepsDraft(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.cache.SaveUser(backend.UserRecord{ID: 1, Email: "amina@example.org"}))
	require.NoError(t, a.cache.SaveDraft(answers.Set{"primaryLanguage": answers.String("es")}))

	token := tokenFor(t, identity.Claims{Subject: "auth0|abc", Email: "Amina@Example.org"})
	require.NoError(t, a.login(token, ""))

	_, ok, err := a.cache.LoadDraft()
	require.NoError(t, err)
	assert.True(t, ok, "a returning account keeps its in-progress draft")
	assert.True(t, a.session.Active())
}
