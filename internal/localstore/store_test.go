package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pioneer/internal/answers"
	"pioneer/internal/backend"
)

func TestUserRecordRoundTripsThroughDisk(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	store := New(baseDir)

	user := backend.UserRecord{
		ID:          42,
		Email:       "maria@example.test",
		IsOnboarded: true,
		SurveyResponses: answers.Set{
			"housing_need":    answers.String("rent"),
			"immediate_needs": answers.List("meet_people"),
		},
	}
	require.NoError(t, store.SaveUser(user))

	// Use a fresh store to ensure data round-trips through disk.
	reloaded, ok, err := New(baseDir).LoadUser()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), reloaded.ID)
	assert.True(t, reloaded.SurveyResponses.Equal(user.SurveyResponses))
}

func TestLoadUserMissing(t *testing.T) {
	t.Parallel()

	_, ok, err := New(t.TempDir()).LoadUser()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetSessionClearsOnlySessionScope(t *testing.T) {
	t.Parallel()

	store := New(t.TempDir())
	require.NoError(t, store.SaveTokens("acc", "ref"))
	require.NoError(t, store.SaveDraft(answers.Set{"audience": answers.String("transplant")}))
	require.NoError(t, store.SetLanguageOverride(0, "es"))

	require.NoError(t, store.ResetSession())

	_, ok, err := store.LoadDraft()
	require.NoError(t, err)
	assert.False(t, ok, "draft is session-scoped")

	_, _, ok = store.LanguageOverride()
	assert.False(t, ok, "language override is session-scoped")

	access, refresh, err := store.LoadTokens()
	require.NoError(t, err)
	assert.Equal(t, "acc", access, "tokens are persistent-scoped")
	assert.Equal(t, "ref", refresh)
}

func TestCorruptDraftIsReportedNotSilentlyDropped(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	store := New(baseDir)
	path := filepath.Join(baseDir, string(ScopeSession), KeyDraftAnswers+".json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, ok, err := store.LoadDraft()
	assert.True(t, ok)
	assert.Error(t, err)

	require.NoError(t, store.ClearDraft())
	_, ok, err = store.LoadDraft()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLanguageOverrideBindsToUser(t *testing.T) {
	t.Parallel()

	store := New(t.TempDir())
	require.NoError(t, store.SetLanguageOverride(9, "zh"))

	userID, lang, ok := store.LanguageOverride()
	require.True(t, ok)
	assert.Equal(t, int64(9), userID)
	assert.Equal(t, "zh", lang)

	require.NoError(t, store.SetLanguageOverride(0, "fr"))
	userID, lang, ok = store.LanguageOverride()
	require.True(t, ok)
	assert.Equal(t, int64(0), userID)
	assert.Equal(t, "fr", lang)
}

func TestDeleteAbsentKeyIsNoError(t *testing.T) {
	t.Parallel()

	store := New(t.TempDir())
	assert.NoError(t, store.ClearDraft())
	assert.NoError(t, store.ClearUser())
	assert.NoError(t, store.ClearLanguageOverride())
}
