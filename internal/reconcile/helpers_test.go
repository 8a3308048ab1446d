package reconcile

import (
	"context"
	"sync"
	"testing"

	"pioneer/internal/answers"
	"pioneer/internal/backend"
	"pioneer/internal/identity"
	"pioneer/internal/localstore"
	"pioneer/internal/logging"
)

type fakeSession struct {
	mu         sync.Mutex
	active     bool
	credential string
	credErr    error
	claims     identity.Claims
	claimsErr  error
}

func (s *fakeSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fakeSession) Credential(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credErr != nil {
		return "", s.credErr
	}
	return s.credential, nil
}

func (s *fakeSession) Claims() (identity.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims, s.claimsErr
}

func (s *fakeSession) OnChange(func()) (cancel func()) {
	return func() {}
}

type fakeAPI struct {
	mu sync.Mutex

	user  backend.UserRecord
	meErr error

	createErr  error
	lastCreate backend.CreateUserParams

	updateErr error
	lastPatch backend.ProfilePatch

	submitErr  error
	lastSubmit answers.Set
	onSubmit   func()

	replaceErr    error
	lastReplace   answers.Set
	replaceResult backend.ResponsesResult
	onReplace     func()

	meCalls      int
	createCalls  int
	updateCalls  int
	submitCalls  int
	replaceCalls int
}

func (f *fakeAPI) Me(context.Context, string) (backend.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if f.meErr != nil {
		return backend.UserRecord{}, f.meErr
	}
	return f.user.Clone(), nil
}

func (f *fakeAPI) CreateFromIdentity(_ context.Context, _ string, params backend.CreateUserParams) (backend.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreate = params
	if f.createErr != nil {
		return backend.UserRecord{}, f.createErr
	}
	f.meErr = nil
	return f.user.Clone(), nil
}

func (f *fakeAPI) UpdateMe(_ context.Context, _ string, patch backend.ProfilePatch) (backend.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastPatch = patch
	if f.updateErr != nil {
		return backend.UserRecord{}, f.updateErr
	}
	if patch.PrimaryLanguage != nil {
		f.user.PrimaryLanguage = *patch.PrimaryLanguage
	}
	if patch.FirstName != nil {
		f.user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		f.user.LastName = *patch.LastName
	}
	if patch.Username != nil {
		f.user.Username = *patch.Username
	}
	if patch.CulturalBackground != nil {
		f.user.CulturalBackground = *patch.CulturalBackground
	}
	return f.user.Clone(), nil
}

func (f *fakeAPI) SubmitOnboarding(_ context.Context, _ string, set answers.Set) error {
	f.mu.Lock()
	f.submitCalls++
	f.lastSubmit = set.Clone()
	hook := f.onSubmit
	err := f.submitErr
	if err == nil {
		f.user.IsOnboarded = true
	}
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeAPI) ReplaceResponses(_ context.Context, _ string, set answers.Set) (backend.ResponsesResult, error) {
	f.mu.Lock()
	f.replaceCalls++
	f.lastReplace = set.Clone()
	hook := f.onReplace
	err := f.replaceErr
	if err == nil {
		f.user.SurveyResponses = set.Clone()
		if lang, ok := set["primary_language"]; ok && lang.Str() != "" {
			f.user.PrimaryLanguage = lang.Str()
		}
	}
	result := f.replaceResult
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return backend.ResponsesResult{}, err
	}
	return result, nil
}

func (f *fakeAPI) counts() (me, create, update, submit, replace int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls, f.createCalls, f.updateCalls, f.submitCalls, f.replaceCalls
}

func newTestCache(t *testing.T) *localstore.Store {
	t.Helper()
	return localstore.New(t.TempDir())
}

func drainEvents(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case event := <-ch:
			out = append(out, event)
		default:
			return out
		}
	}
}

func kindsOf(events []Event) []EventKind {
	kinds := make([]EventKind, 0, len(events))
	for _, event := range events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

// completeDraft covers every question the backend requires before it
// accepts a submission.
func completeDraft() answers.Set {
	return answers.Set{
		"audience":            answers.String("New American/Immigrant seeking settlement support"),
		"primaryLanguage":     answers.String("es"),
		"culturalBackground":  answers.String("latin_american"),
		"housingNeed":         answers.String("rent"),
		"professionalStatus":  answers.String("job_seeker"),
		"languageSupport":     answers.String("classes"),
		"employment":          answers.String("resume_help"),
		"communityPriorities": answers.List("healthcare", "education"),
		"immediateNeeds":      answers.List("housing"),
		"timeline":            answers.String("recently_arrived"),
	}
}

var testLogger = logging.Nop()
