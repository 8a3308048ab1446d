package answers

// RequiredQuestionIDs is the fixed, ordered list of question identifiers
// that must carry a non-empty answer before onboarding can be submitted.
// Identifiers are in the canonical camelCase convention.
var RequiredQuestionIDs = []string{
	"audience",
	"primaryLanguage",
	"culturalBackground",
	"housingNeed",
	"professionalStatus",
	"languageSupport",
	"employment",
	"communityPriorities",
	"immediateNeeds",
	"timeline",
}

var multiSelectIDs = map[string]bool{
	"communityPriorities": true,
	"immediateNeeds":      true,
}

// IsMultiSelect reports whether the canonical question id accepts multiple
// answers.
func IsMultiSelect(id string) bool {
	return multiSelectIDs[id]
}

// IsComplete evaluates the completeness predicate on a canonicalized
// answer set: every required question has a non-empty answer, and
// multi-select questions have at least one element. Callers must pass the
// canonical form; raw persisted keys will fail the check.
func IsComplete(set Set) bool {
	for _, id := range RequiredQuestionIDs {
		answer, ok := set[id]
		if !ok {
			return false
		}
		if IsMultiSelect(id) {
			if len(answer.Items()) == 0 {
				return false
			}
			continue
		}
		if answer.IsEmpty() {
			return false
		}
	}
	return true
}
