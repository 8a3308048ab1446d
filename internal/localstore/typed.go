package localstore

import (
	"fmt"
	"strconv"
	"strings"

	"pioneer/internal/answers"
	"pioneer/internal/backend"
)

// SaveUser caches the user record in the persistent scope.
func (s *Store) SaveUser(user backend.UserRecord) error {
	return s.Set(ScopePersistent, KeyUserData, user)
}

// LoadUser returns the cached user record, if any.
func (s *Store) LoadUser() (backend.UserRecord, bool, error) {
	var user backend.UserRecord
	ok, err := s.Get(ScopePersistent, KeyUserData, &user)
	return user, ok && err == nil, err
}

// ClearUser drops the cached user record.
func (s *Store) ClearUser() error {
	return s.Delete(ScopePersistent, KeyUserData)
}

// SaveTokens stores the identity provider token material.
func (s *Store) SaveTokens(access, refresh string) error {
	if err := s.Set(ScopePersistent, KeyAccessToken, access); err != nil {
		return err
	}
	return s.Set(ScopePersistent, KeyRefreshToken, refresh)
}

// LoadTokens returns the stored token material. Absent tokens are empty.
func (s *Store) LoadTokens() (access, refresh string, err error) {
	if _, err = s.Get(ScopePersistent, KeyAccessToken, &access); err != nil {
		return "", "", err
	}
	if _, err = s.Get(ScopePersistent, KeyRefreshToken, &refresh); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ClearTokens drops the stored token material.
func (s *Store) ClearTokens() error {
	if err := s.Delete(ScopePersistent, KeyAccessToken); err != nil {
		return err
	}
	return s.Delete(ScopePersistent, KeyRefreshToken)
}

// SaveDraft stores the pre-authentication draft answer set in the session
// scope.
func (s *Store) SaveDraft(set answers.Set) error {
	return s.Set(ScopeSession, KeyDraftAnswers, set)
}

// LoadDraft returns the draft answer set, if one exists. A draft that
// exists but cannot be decoded is reported with ok=true and a non-nil
// error so callers can discard it rather than retry forever.
func (s *Store) LoadDraft() (answers.Set, bool, error) {
	var set answers.Set
	ok, err := s.Get(ScopeSession, KeyDraftAnswers, &set)
	if !ok {
		return nil, false, nil
	}
	return set, true, err
}

// ClearDraft deletes the draft answer set.
func (s *Store) ClearDraft() error {
	return s.Delete(ScopeSession, KeyDraftAnswers)
}

// SetLanguageOverride records a session-scoped language override. When the
// override belongs to a signed-in user the stored value is "userID:lang"
// so a different account does not inherit it.
func (s *Store) SetLanguageOverride(userID int64, lang string) error {
	value := lang
	if userID != 0 {
		value = fmt.Sprintf("%d:%s", userID, lang)
	}
	return s.Set(ScopeSession, KeyLanguageOverride, value)
}

// LanguageOverride returns the stored override and the user it is bound
// to (0 when anonymous).
func (s *Store) LanguageOverride() (userID int64, lang string, ok bool) {
	var value string
	found, err := s.Get(ScopeSession, KeyLanguageOverride, &value)
	if !found || err != nil || value == "" {
		return 0, "", false
	}
	if id, rest, split := strings.Cut(value, ":"); split {
		if parsed, err := strconv.ParseInt(id, 10, 64); err == nil {
			return parsed, rest, true
		}
	}
	return 0, value, true
}

// ClearLanguageOverride drops the session language override. Required
// whenever the profile's primary language changes, so the new language
// takes effect immediately.
func (s *Store) ClearLanguageOverride() error {
	return s.Delete(ScopeSession, KeyLanguageOverride)
}
