package answers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueJSONStringOrArray(t *testing.T) {
	var set Set
	payload := []byte(`{"housing_need":"rent","immediate_needs":["meet_people","basic_services"]}`)
	require.NoError(t, json.Unmarshal(payload, &set))

	assert.False(t, set["housing_need"].IsList())
	assert.Equal(t, "rent", set["housing_need"].Str())
	assert.True(t, set["immediate_needs"].IsList())
	assert.Equal(t, []string{"meet_people", "basic_services"}, set["immediate_needs"].Items())

	encoded, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded Set
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, set.Equal(decoded))
}

func TestValueRejectsNonStringPayloads(t *testing.T) {
	var v Value
	assert.Error(t, v.UnmarshalJSON([]byte(`{"nested":"object"}`)))
	assert.Error(t, v.UnmarshalJSON([]byte(`42`)))
}

func TestMergeEditsWinPerKey(t *testing.T) {
	existing := Set{"housingNeed": String("rent")}
	edits := Set{"primaryLanguage": String("es")}

	merged := Merge(existing, edits)
	assert.Equal(t, "rent", merged["housingNeed"].Str())
	assert.Equal(t, "es", merged["primaryLanguage"].Str())

	wire := ToSnake(merged)
	assert.Equal(t, "es", wire["primary_language"].Str())
	assert.Equal(t, "rent", wire["housing_need"].Str())
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := Set{"audience": String("transplant"), "immediateNeeds": List("meet_people")}
	edits := Set{"immediateNeeds": List("basic_services")}

	merged := Merge(base, edits)
	merged["audience"] = String("changed")

	assert.Equal(t, "transplant", base["audience"].Str())
	assert.Equal(t, []string{"meet_people"}, base["immediateNeeds"].Items())
	assert.Equal(t, []string{"basic_services"}, merged["immediateNeeds"].Items())
}

func TestMergeDropsEmptyMultiSelectValues(t *testing.T) {
	base := Set{
		"communityPriorities": List("healthcare"),
		"immediateNeeds":      List(),
	}
	edits := Set{
		"communityPriorities": List(),
		"primaryLanguage":     String("es"),
	}

	merged := Merge(base, edits)
	// An empty edit does not erase the existing answer, and an empty
	// list never survives into the merged set.
	assert.Equal(t, []string{"healthcare"}, merged["communityPriorities"].Items())
	assert.NotContains(t, merged, "immediateNeeds")
	assert.Equal(t, "es", merged["primaryLanguage"].Str())

	wire := ToSnake(merged)
	assert.NotContains(t, wire, "immediate_needs")
}

func TestIsCompleteRequiresEveryQuestion(t *testing.T) {
	set := completeSet()
	require.True(t, IsComplete(set))

	for _, id := range RequiredQuestionIDs {
		broken := set.Clone()
		delete(broken, id)
		assert.False(t, IsComplete(broken), "missing %s should fail", id)
	}
}

func TestIsCompleteMultiSelectNeedsAtLeastOneElement(t *testing.T) {
	set := completeSet()
	set["immediateNeeds"] = List()
	assert.False(t, IsComplete(set))

	set["immediateNeeds"] = List("meet_people")
	assert.True(t, IsComplete(set))
}

func TestIsCompleteRejectsEmptySingleAnswers(t *testing.T) {
	set := completeSet()
	set["timeline"] = String("")
	assert.False(t, IsComplete(set))
}

func TestIsCompleteFailsOnRawPersistedKeys(t *testing.T) {
	// The predicate is defined on the canonical camelCase form.
	wire := ToSnake(completeSet())
	assert.False(t, IsComplete(wire))
	assert.True(t, IsComplete(Canonical(wire)))
}

func completeSet() Set {
	return Set{
		"audience":            String("transplant"),
		"primaryLanguage":     String("es"),
		"culturalBackground":  String("latinx"),
		"housingNeed":         String("affordable"),
		"professionalStatus":  String("tech"),
		"languageSupport":     String("none"),
		"employment":          String("job_search"),
		"communityPriorities": List("pro_networks"),
		"immediateNeeds":      List("meet_people"),
		"timeline":            String("just_arrived"),
	}
}
