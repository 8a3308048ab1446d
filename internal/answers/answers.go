// Package answers models the survey answer set: a mapping from question
// identifiers to either a single string or a list of strings.
//
// Two key-casing conventions exist at the boundary. The backend persists
// snake_case keys while the survey UI works in camelCase; both are treated
// as equivalent and the camelCase form is the canonical one for all merge
// and completeness logic.
package answers

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Value holds a single answer, which is either one string or a list of
// strings (multi-select questions). The zero Value is an empty single
// answer.
type Value struct {
	one  string
	many []string
	list bool
}

// String builds a single-valued answer.
func String(s string) Value {
	return Value{one: s}
}

// List builds a multi-valued answer.
func List(items ...string) Value {
	return Value{many: append([]string(nil), items...), list: true}
}

// IsList reports whether the answer is multi-valued.
func (v Value) IsList() bool {
	return v.list
}

// Str returns the single value. For lists it returns the first element,
// mirroring how the backend reads primary_language out of a merged set.
func (v Value) Str() string {
	if v.list {
		if len(v.many) == 0 {
			return ""
		}
		return v.many[0]
	}
	return v.one
}

// Items returns a copy of the list values. Single values yield a
// one-element slice.
func (v Value) Items() []string {
	if v.list {
		return append([]string(nil), v.many...)
	}
	if v.one == "" {
		return nil
	}
	return []string{v.one}
}

// IsEmpty reports whether the answer carries no content.
func (v Value) IsEmpty() bool {
	if v.list {
		return len(v.many) == 0
	}
	return v.one == ""
}

// Equal reports deep equality between two answers.
func (v Value) Equal(other Value) bool {
	if v.list != other.list {
		return false
	}
	if !v.list {
		return v.one == other.one
	}
	if len(v.many) != len(other.many) {
		return false
	}
	for i := range v.many {
		if v.many[i] != other.many[i] {
			return false
		}
	}
	return true
}

// Map applies fn to every element of the answer.
func (v Value) Map(fn func(string) string) Value {
	if v.list {
		mapped := make([]string, len(v.many))
		for i, item := range v.many {
			mapped[i] = fn(item)
		}
		return Value{many: mapped, list: true}
	}
	return Value{one: fn(v.one)}
}

// MarshalJSON encodes single values as JSON strings and lists as arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		if v.many == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.many)
	}
	return json.Marshal(v.one)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = Value{one: single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*v = Value{many: many, list: true}
		return nil
	}
	return fmt.Errorf("answer value must be a string or an array of strings: %s", data)
}

// Set is an answer set keyed by question identifier.
type Set map[string]Value

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	cloned := make(Set, len(s))
	for key, value := range s {
		if value.list {
			value.many = append([]string(nil), value.many...)
		}
		cloned[key] = value
	}
	return cloned
}

// Keys returns the set's keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether two sets contain the same keys and answers.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for key, value := range s {
		if !other[key].Equal(value) {
			return false
		}
	}
	return true
}

// Merge shallow-merges edits over base per-key: edited keys win, unedited
// keys are preserved. Neither input is mutated. An empty list is never a
// valid answer in a merged set: empty-list entries from either side are
// dropped, so an empty edit leaves the base answer in place.
func Merge(base, edits Set) Set {
	merged := make(Set, len(base)+len(edits))
	for key, value := range base {
		if value.list && len(value.many) == 0 {
			continue
		}
		if value.list {
			value.many = append([]string(nil), value.many...)
		}
		merged[key] = value
	}
	for key, value := range edits {
		if value.list && len(value.many) == 0 {
			continue
		}
		if value.list {
			value.many = append([]string(nil), value.many...)
		}
		merged[key] = value
	}
	return merged
}
