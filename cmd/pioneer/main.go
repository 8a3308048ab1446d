// Command pioneer is the command-line client for the newcomer settlement
// service: it maintains the identity session, keeps the local profile
// cache reconciled with the backend-of-record, and drains drafted
// onboarding answers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pioneer/internal/reconcile"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "pioneer",
		Short:         "Client for the newcomer settlement service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to pioneer-config.json")

	root.AddCommand(newLoginCommand(&configPath))
	root.AddCommand(newLogoutCommand(&configPath))
	root.AddCommand(newSyncCommand(&configPath))
	root.AddCommand(newWhoamiCommand(&configPath))
	root.AddCommand(newProfileCommand(&configPath))
	root.AddCommand(newAnswersCommand(&configPath))
	root.AddCommand(newDraftCommand(&configPath))
	root.AddCommand(newSubmitCommand(&configPath))
	root.AddCommand(newLangCommand(&configPath))
	return root
}

// runWithEvents runs fn while echoing store events, so the user sees what
// the reconciliation pass did.
func runWithEvents(a *app, fn func(ctx context.Context) error) error {
	events, cancel := a.store.Subscribe(32)
	defer cancel()

	ctx, stop := context.WithTimeout(context.Background(), 2*a.cfg.RequestTimeout+10*time.Second)
	defer stop()

	err := fn(ctx)
	for {
		select {
		case event := <-events:
			printEvent(event)
		default:
			return err
		}
	}
}

func printEvent(event reconcile.Event) {
	switch event.Kind {
	case reconcile.EventUserChanged:
		if event.User == nil {
			fmt.Println("• session cleared")
		} else {
			fmt.Printf("• user record updated (%s)\n", event.User.Email)
		}
	case reconcile.EventOnboardingComplete:
		fmt.Println("• onboarding complete")
	case reconcile.EventOnboardingError:
		fmt.Printf("• onboarding failed: %s\n", event.Message)
	case reconcile.EventLoggedOut:
		fmt.Println("• logged out")
	}
}

func newLoginCommand(configPath *string) *cobra.Command {
	var accessToken, refreshToken string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store session tokens and sync with the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if accessToken == "" {
				return fmt.Errorf("--access-token is required")
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			if err := a.login(accessToken, refreshToken); err != nil {
				return err
			}
			return runWithEvents(a, a.reconciler.HandleSessionChange)
		},
	}
	cmd.Flags().StringVar(&accessToken, "access-token", "", "bearer access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token (Auth0 flavor only)")
	return cmd
}

func newLogoutCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear cached identity state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			a.logout()
			return runWithEvents(a, a.reconciler.HandleSessionChange)
		},
	}
}

func newSyncCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local cache with the backend record",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			return runWithEvents(a, a.reconciler.HandleSessionChange)
		},
	}
}

func newWhoamiCommand(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the cached user record",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			user, ok, err := a.cache.LoadUser()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("not logged in")
				return nil
			}
			if asJSON {
				data, err := json.MarshalIndent(user, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			fmt.Printf("%s (id %d)\n", user.Email, user.ID)
			if user.FirstName != "" || user.LastName != "" {
				fmt.Printf("  name:     %s %s\n", user.FirstName, user.LastName)
			}
			if user.PrimaryLanguage != "" {
				fmt.Printf("  language: %s\n", user.PrimaryLanguage)
			}
			fmt.Printf("  onboarded: %v\n", user.IsOnboarded)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full record as JSON")
	return cmd
}

func newProfileCommand(configPath *string) *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Edit the user profile",
	}

	var firstName, lastName, username, language, background string
	set := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields on the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			if err := runWithEvents(a, a.reconciler.HandleSessionChange); err != nil {
				return err
			}
			patch := patchFromFlags(cmd, firstName, lastName, username, language, background)
			return runWithEvents(a, func(ctx context.Context) error {
				return a.editor.Update(ctx, patch)
			})
		},
	}
	set.Flags().StringVar(&firstName, "first-name", "", "first name")
	set.Flags().StringVar(&lastName, "last-name", "", "last name")
	set.Flags().StringVar(&username, "username", "", "username")
	set.Flags().StringVar(&language, "language", "", "primary language code")
	set.Flags().StringVar(&background, "background", "", "cultural background")
	profile.AddCommand(set)
	return profile
}

func newAnswersCommand(configPath *string) *cobra.Command {
	answersCmd := &cobra.Command{
		Use:   "answers",
		Short: "Work with submitted survey answers",
	}
	merge := &cobra.Command{
		Use:   "merge key=value [key=value ...]",
		Short: "Merge edits into the submitted answer set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			edits, err := parseAnswerArgs(args)
			if err != nil {
				return err
			}
			if err := runWithEvents(a, a.reconciler.HandleSessionChange); err != nil {
				return err
			}
			return runWithEvents(a, func(ctx context.Context) error {
				return a.merger.MergeAndSubmit(ctx, edits)
			})
		},
	}
	answersCmd.AddCommand(merge)
	return answersCmd
}

func newDraftCommand(configPath *string) *cobra.Command {
	draft := &cobra.Command{
		Use:   "draft",
		Short: "Manage the local onboarding draft",
	}

	save := &cobra.Command{
		Use:   "save key=value [key=value ...]",
		Short: "Add answers to the local draft",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			edits, err := parseAnswerArgs(args)
			if err != nil {
				return err
			}
			return saveDraft(a, edits)
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			return showDraft(a)
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Discard the current draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			return a.cache.ClearDraft()
		},
	}

	draft.AddCommand(save, show, clear)
	return draft
}

func newSubmitCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Submit the drafted onboarding answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			if err := runWithEvents(a, a.reconciler.HandleSessionChange); err != nil {
				return err
			}
			return runWithEvents(a, a.submitter.SubmitPending)
		},
	}
}

func newLangCommand(configPath *string) *cobra.Command {
	lang := &cobra.Command{
		Use:   "lang",
		Short: "Manage the session language override",
	}

	set := &cobra.Command{
		Use:   "set <code>",
		Short: "Override the display language for this session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			user, ok, err := a.cache.LoadUser()
			if err != nil {
				return err
			}
			var userID int64
			if ok {
				userID = user.ID
			}
			return a.cache.SetLanguageOverride(userID, args[0])
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Drop the session language override",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			return a.cache.ClearLanguageOverride()
		},
	}

	lang.AddCommand(set, clear)
	return lang
}
