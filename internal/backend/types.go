package backend

import (
	"pioneer/internal/answers"
)

// UserRecord is the authoritative profile owned by the backend-of-record.
// The client only ever holds a cached copy; during a write the server's
// reply, never the cache, is the source of truth.
type UserRecord struct {
	ID                 int64  `json:"id"`
	Email              string `json:"email"`
	Username           string `json:"username"`
	FirstName          string `json:"first_name,omitempty"`
	LastName           string `json:"last_name,omitempty"`
	IsActive           bool   `json:"is_active"`
	IsVerified         bool   `json:"is_verified"`
	Role               string `json:"role,omitempty"`
	UserType           string `json:"user_type,omitempty"`
	PrimaryLanguage    string `json:"primary_language,omitempty"`
	CulturalBackground string `json:"cultural_background,omitempty"`
	IsDemoUser         bool   `json:"is_demo_user,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`

	IsOnboarded       bool           `json:"is_onboarded"`
	FirstSurveyAt     string         `json:"first_survey_at,omitempty"`
	ChecklistID       string         `json:"checklist_id,omitempty"`
	SurveyResponses   answers.Set    `json:"survey_responses,omitempty"`
	OnboardingProfile map[string]any `json:"onboarding_profile,omitempty"`
	RoadmapSummary    string         `json:"roadmap_summary,omitempty"`

	RoadmapTranslationStatus   string `json:"roadmap_translation_status,omitempty"`
	LastRoadmapTranslationHash string `json:"last_roadmap_translation_hash,omitempty"`
}

// Clone returns a deep copy of the record.
func (u UserRecord) Clone() UserRecord {
	cloned := u
	cloned.SurveyResponses = u.SurveyResponses.Clone()
	if u.OnboardingProfile != nil {
		profile := make(map[string]any, len(u.OnboardingProfile))
		for key, value := range u.OnboardingProfile {
			profile[key] = value
		}
		cloned.OnboardingProfile = profile
	}
	return cloned
}

// CreateUserParams carries the identity-provider claims used to create a
// backend record when no record exists for the credential.
type CreateUserParams struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Auth0UserID string `json:"auth0_user_id"`
}

// ProfilePatch is a partial profile update. Nil fields are omitted from
// the request; the server's reply is authoritative for the merged shape.
type ProfilePatch struct {
	FirstName          *string `json:"first_name,omitempty"`
	LastName           *string `json:"last_name,omitempty"`
	Username           *string `json:"username,omitempty"`
	PrimaryLanguage    *string `json:"primary_language,omitempty"`
	CulturalBackground *string `json:"cultural_background,omitempty"`
}

// IsZero reports whether the patch would send no fields at all.
func (p ProfilePatch) IsZero() bool {
	return p.FirstName == nil && p.LastName == nil && p.Username == nil &&
		p.PrimaryLanguage == nil && p.CulturalBackground == nil
}

// ResponsesResult is the reply to a full answer-set replacement. The
// server may re-derive any of these fields; absent fields leave the cached
// record untouched.
type ResponsesResult struct {
	OnboardingProfile map[string]any `json:"onboarding_profile,omitempty"`
	RoadmapSummary    string         `json:"roadmap_summary,omitempty"`
	ChecklistID       string         `json:"checklist_id,omitempty"`
}
