package answers

import (
	"regexp"
	"strings"
)

// questionCodes lists the stable option codes for every question, in the
// order the options are presented. Stored responses may carry localized
// labels or legacy variants instead of codes; MapToCodes folds them back.
var questionCodes = map[string][]string{
	"audience": {
		"student_professional",
		"boomerang",
		"refugee_tps",
		"transplant",
		"entrepreneur",
		"remote_employee",
		"other",
	},
	"primaryLanguage": {
		"en", "es", "ar", "sw", "uz", "ne_dz", "fa_ps", "zh", "other",
	},
	"culturalBackground": {
		"white",
		"black_aa",
		"latinx",
		"asian",
		"mena",
		"pacific",
		"native",
		"african",
		"caribbean",
		"other",
		"prefer_no_answer",
	},
	"housingNeed": {
		"market_rate",
		"affordable",
		"temporary",
		"shared",
		"buying",
		"secured",
	},
	"professionalStatus": {
		"student",
		"tech",
		"healthcare",
		"academic",
		"seeking",
		"recent_grad",
		"other_professional",
	},
	"languageSupport": {
		"esl",
		"professional_english",
		"translation",
		"conversation",
		"none",
	},
	"employment": {
		"networking_advancement",
		"job_search",
		"skills_training",
		"industry_networks",
		"no_support_needed",
	},
	"communityPriorities": {
		"pro_networks",
		"cultural_faith",
		"social_entertainment",
		"family_children",
		"sports_recreation",
		"arts_culture",
		"none",
	},
	"immediateNeeds": {
		"meet_people",
		"basic_services",
		"school_enrollment",
		"legal_immigration",
		"mental_health",
		"emergency_assistance",
		"none",
	},
	"timeline": {
		"just_arrived",
		"recent_1_6",
		"planning_3",
		"long_term_6_plus",
		"already_settled",
	},
}

var (
	looseStrip   = regexp.MustCompile(`[^a-z0-9_]`)
	noneVariants = regexp.MustCompile(`(?i)(^|\b)(none|ninguna|aucune|aucun|لا|hakuna)(\b|$)`)
)

// normalizeLoose lower-cases, collapses spaces and hyphens to underscores
// and strips remaining non-word characters.
func normalizeLoose(s string) string {
	s = strings.ToLower(s)
	s = separatorRuns.ReplaceAllString(s, "_")
	return looseStrip.ReplaceAllString(s, "")
}

// codeForValue maps a single stored value to its stable option code.
// Unknown values pass through unchanged for forward compatibility.
func codeForValue(id, input string) string {
	codes, ok := questionCodes[id]
	if !ok || input == "" {
		return input
	}

	for _, code := range codes {
		if code == input {
			return input
		}
	}

	// Legacy values that predate the stable code tables.
	if id == "audience" && input == "New American/Immigrant seeking settlement support" {
		return "refugee_tps"
	}
	if id == "employment" {
		lower := strings.ToLower(input)
		if strings.Contains(lower, "secured") {
			return "no_support_needed"
		}
	}

	inputLoose := normalizeLoose(input)
	for _, code := range codes {
		if normalizeLoose(code) == inputLoose {
			return code
		}
	}

	if noneVariants.MatchString(input) {
		for _, code := range codes {
			if code == "none" {
				return "none"
			}
		}
	}

	return input
}

// MapToCodes normalizes stored survey responses, which may have been saved
// as localized labels or legacy variants, to stable option codes. The set
// must already be in canonical camelCase form. The retired techComfort
// question is dropped; keys for unknown questions pass through unchanged.
func MapToCodes(set Set) Set {
	out := make(Set, len(set))
	for key, value := range set {
		if key == "techComfort" {
			continue
		}
		if _, known := questionCodes[key]; !known {
			out[key] = value
			continue
		}
		id := key
		out[key] = value.Map(func(item string) string {
			return codeForValue(id, item)
		})
	}
	return out
}
