package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/sagehq/sage/internal/sessions"
	"github.com/sagehq/sage/pkg/models"
	"github.com/spf13/cobra"
)

// sessionResolver maps the CLI's -c/-r flags onto a concrete session,
// falling back to a brand-new one when neither is set.
type sessionResolver struct {
	store        sessions.Store
	continueLast bool
	resumeID     string

	// WorkingDirectory, Provider, and Model are stamped onto a freshly
	// created session; resumed/continued sessions keep whatever they were
	// created with.
	WorkingDirectory string
	Provider         string
	Model            string
}

func (r *sessionResolver) resolveForRun(ctx context.Context) (*models.Session, error) {
	if r.resumeID != "" {
		session, err := r.store.Get(ctx, r.resumeID)
		if err != nil {
			return nil, fmt.Errorf("resume session %q: %w", r.resumeID, err)
		}
		return session, nil
	}

	if r.continueLast {
		session, err := r.mostRecent(ctx)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
		// No prior session to continue; fall through to creating one.
	}

	session := &models.Session{
		WorkingDirectory: r.WorkingDirectory,
		Provider:         r.Provider,
		Model:            r.Model,
	}
	if err := r.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (r *sessionResolver) mostRecent(ctx context.Context) (*models.Session, error) {
	all, err := r.store.List(ctx, sessions.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	return all[0], nil
}

func buildSessionsCmd() *cobra.Command {
	var workingDir string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "inspect saved sessions",
	}
	cmd.PersistentFlags().StringVar(&workingDir, "working-dir", "", "workspace directory whose .sage/sessions store to use")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := workingDir
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return err
				}
			}
			store, err := sessionStoreForWorkspace(dir)
			if err != nil {
				return err
			}
			all, err := store.List(cmd.Context(), sessions.ListOptions{})
			if err != nil {
				return err
			}
			sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUPDATED\tTITLE")
			for _, session := range all {
				fmt.Fprintf(w, "%s\t%s\t%s\n", session.ID, session.UpdatedAt.Format("2006-01-02 15:04"), session.Title)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "print a session's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := workingDir
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return err
				}
			}
			store, err := sessionStoreForWorkspace(dir)
			if err != nil {
				return err
			}
			history, err := store.GetHistory(cmd.Context(), args[0], 0)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				return errors.New("no messages in session")
			}
			for _, msg := range history {
				fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
			}
			return nil
		},
	})

	return cmd
}
