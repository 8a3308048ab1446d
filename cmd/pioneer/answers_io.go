package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"pioneer/internal/answers"
	"pioneer/internal/backend"
)

// parseAnswerArgs turns key=value arguments into an answer set. Keys may
// use either naming convention; multi-select questions take
// comma-separated values.
func parseAnswerArgs(args []string) (answers.Set, error) {
	set := answers.Set{}
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if answers.IsMultiSelect(answers.ToCamelKey(key)) {
			var items []string
			for _, item := range strings.Split(value, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			if len(items) == 0 {
				return nil, fmt.Errorf("%s needs at least one value", key)
			}
			set[key] = answers.List(items...)
			continue
		}
		set[key] = answers.String(value)
	}
	return set, nil
}

func patchFromFlags(cmd *cobra.Command, firstName, lastName, username, language, background string) backend.ProfilePatch {
	var patch backend.ProfilePatch
	if cmd.Flags().Changed("first-name") {
		patch.FirstName = &firstName
	}
	if cmd.Flags().Changed("last-name") {
		patch.LastName = &lastName
	}
	if cmd.Flags().Changed("username") {
		patch.Username = &username
	}
	if cmd.Flags().Changed("language") {
		patch.PrimaryLanguage = &language
	}
	if cmd.Flags().Changed("background") {
		patch.CulturalBackground = &background
	}
	return patch
}

// saveDraft merges the new answers into the existing draft and stores it
// in the persisted key convention.
func saveDraft(a *app, edits answers.Set) error {
	existing, ok, err := a.cache.LoadDraft()
	if err != nil {
		a.logger.Warn("Discarding unreadable draft: %v", err)
		existing = nil
	} else if !ok {
		existing = nil
	}
	merged := answers.Merge(answers.Canonical(existing), answers.ToCamel(edits))
	if err := a.cache.SaveDraft(answers.ToSnake(merged)); err != nil {
		return err
	}

	missing := missingRequired(merged)
	if len(missing) == 0 {
		fmt.Println("draft complete, run `pioneer submit` to send it")
	} else {
		fmt.Printf("draft saved, still missing: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

func showDraft(a *app) error {
	draft, ok, err := a.cache.LoadDraft()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no draft")
		return nil
	}
	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func missingRequired(canonical answers.Set) []string {
	var missing []string
	for _, id := range answers.RequiredQuestionIDs {
		answer, ok := canonical[id]
		if !ok || answer.IsEmpty() {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}
