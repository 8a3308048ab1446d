// Package localstore is the durable key/value cache backing the client:
// the last-known user record, token material, the pre-authentication
// draft answer set and the session language override.
//
// Two independent lifetimes exist: the persistent scope survives until
// explicitly cleared, while the session scope is wiped when a new session
// begins.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pioneer/internal/logging"
)

// Scope selects one of the two storage lifetimes.
type Scope string

const (
	// ScopePersistent survives restarts until explicitly cleared.
	ScopePersistent Scope = "persistent"
	// ScopeSession is wiped by ResetSession.
	ScopeSession Scope = "session"
)

// Storage keys shared with the rest of the client.
const (
	KeyAccessToken      = "access_token"
	KeyRefreshToken     = "refresh_token"
	KeyUserData         = "user_data"
	KeyDraftAnswers     = "survey_answers_v1"
	KeyLanguageOverride = "session_language_override"
)

// Store persists JSON values, one file per key, under a base directory.
type Store struct {
	baseDir string
	logger  logging.Logger
	mu      sync.Mutex
}

// New opens a store rooted at baseDir, creating scope directories as
// needed. A leading "~/" expands to the user's home directory.
func New(baseDir string) *Store {
	if strings.HasPrefix(baseDir, "~/") {
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, baseDir[2:])
	}
	for _, scope := range []Scope{ScopePersistent, ScopeSession} {
		// Ignore error - directory may already exist
		_ = os.MkdirAll(filepath.Join(baseDir, string(scope)), 0755)
	}
	return &Store{
		baseDir: baseDir,
		logger:  logging.NewComponentLogger("LocalStore"),
	}
}

// Get decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (s *Store) Get(scope Scope, key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(scope, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s/%s: %w", scope, key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Error("Failed to decode %s/%s: %v", scope, key, err)
		return true, fmt.Errorf("decode %s/%s: %w", scope, key, err)
	}
	return true, nil
}

// Set stores the value under key in the given scope.
func (s *Store) Set(scope Scope, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", scope, key, err)
	}
	if err := os.WriteFile(s.path(scope, key), data, 0644); err != nil {
		return fmt.Errorf("write %s/%s: %w", scope, key, err)
	}
	return nil
}

// Delete removes the key. Removing an absent key is not an error.
func (s *Store) Delete(scope Scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(scope, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s/%s: %w", scope, key, err)
	}
	return nil
}

// ResetSession wipes every session-scoped key, leaving the persistent
// scope untouched.
func (s *Store) ResetSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.baseDir, string(ScopeSession))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("reset session scope: %w", err)
	}
	return os.MkdirAll(dir, 0755)
}

func (s *Store) path(scope Scope, key string) string {
	return filepath.Join(s.baseDir, string(scope), key+".json")
}
