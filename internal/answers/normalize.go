package answers

import (
	"regexp"
	"strings"
)

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	separatorRuns = regexp.MustCompile(`[-\s]+`)
	snakeFollower = regexp.MustCompile(`_([a-z])`)
)

// legacyKeyRepairs corrects keys that were historically persisted with the
// separators stripped. Keys outside this table pass through unchanged.
var legacyKeyRepairs = map[string]string{
	"primarylanguage":     "primary_language",
	"culturalbackground":  "cultural_background",
	"professionalstatus":  "professional_status",
	"housingneed":         "housing_need",
	"languagesupport":     "language_support",
	"communitypriorities": "community_priorities",
	"immediateneeds":      "immediate_needs",
	"techcomfort":         "tech_comfort",
}

// ToSnakeKey converts a camelCase or PascalCase key to snake_case.
func ToSnakeKey(key string) string {
	key = camelBoundary.ReplaceAllString(key, "${1}_${2}")
	key = separatorRuns.ReplaceAllString(key, "_")
	return strings.ToLower(key)
}

// ToCamelKey converts a snake_case key to camelCase.
func ToCamelKey(key string) string {
	return snakeFollower.ReplaceAllStringFunc(key, func(match string) string {
		return strings.ToUpper(match[1:])
	})
}

// ToSnake converts every key in the set to the snake_case wire convention.
// Values and unrecognized keys pass through unchanged.
func ToSnake(set Set) Set {
	normalized := make(Set, len(set))
	for key, value := range set {
		normalized[ToSnakeKey(key)] = value
	}
	return normalized
}

// ToCamel converts every key in the set to the camelCase canonical
// convention. Values and unrecognized keys pass through unchanged.
func ToCamel(set Set) Set {
	normalized := make(Set, len(set))
	for key, value := range set {
		normalized[ToCamelKey(key)] = value
	}
	return normalized
}

// RepairLegacyKeys corrects the fixed table of known malformed keys. It
// must run exactly once on every externally-sourced answer set, before any
// conversion or merge, or merges silently drop fields.
func RepairLegacyKeys(set Set) Set {
	repaired := make(Set, len(set))
	for key, value := range set {
		if corrected, ok := legacyKeyRepairs[key]; ok {
			key = corrected
		}
		repaired[key] = value
	}
	return repaired
}

// Canonical repairs legacy keys and converts the set to the canonical
// camelCase form used by all merge and completeness logic.
func Canonical(set Set) Set {
	return ToCamel(RepairLegacyKeys(set))
}
