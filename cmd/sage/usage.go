package main

import (
	"context"
	"fmt"
	"os"

	sagecontext "github.com/sagehq/sage/internal/context"
	"github.com/sagehq/sage/internal/sessions"
	"github.com/sagehq/sage/internal/usage"
	"github.com/sagehq/sage/pkg/models"
	"github.com/spf13/cobra"
)

// usageTracker estimates per-turn token consumption (providers in this
// codebase don't surface exact usage on CompletionChunk) and folds it into
// both the session's running TokenUsage and an in-process usage.Tracker for
// the lifetime of the CLI invocation.
type usageTracker struct {
	store    sessions.Store
	tracker  *usage.Tracker
	provider string
	model    string
}

func newUsageTracker(store sessions.Store, provider, model string) *usageTracker {
	return &usageTracker{
		store:    store,
		tracker:  usage.NewTracker(usage.DefaultTrackerConfig()),
		provider: provider,
		model:    model,
	}
}

// record estimates tokens for one turn's prompt and response text and
// updates both the session metadata and the process-lifetime tracker.
func (u *usageTracker) record(ctx context.Context, session *models.Session, promptText, responseText string) {
	reading := usage.Usage{
		InputTokens:  int64(sagecontext.EstimateTokens(promptText)),
		OutputTokens: int64(sagecontext.EstimateTokens(responseText)),
	}

	u.tracker.Record(usage.Record{
		Provider: u.provider,
		Model:    u.model,
		Usage:    reading,
	})

	session.TokenUsage.Add(models.TokenUsage{Input: reading.InputTokens, Output: reading.OutputTokens})
	if err := u.store.Update(ctx, session); err != nil {
		// Usage bookkeeping is best-effort; never fail the run over it.
		return
	}
}

func (u *usageTracker) summaryLine() string {
	totals := u.tracker.GetTotals(u.provider, u.model)
	if totals == nil {
		return ""
	}
	return fmt.Sprintf("[usage] %s/%s this run: %s", u.provider, u.model, usage.FormatUsageDetailed(totals))
}

func buildUsageCmd() *cobra.Command {
	var workingDir string

	cmd := &cobra.Command{
		Use:   "usage <session-id>",
		Short: "print a session's accumulated token usage",
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
			session, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			readable := usage.Usage{
				InputTokens:     session.TokenUsage.Input,
				OutputTokens:    session.TokenUsage.Output,
				CacheReadTokens: session.TokenUsage.Cached,
			}
			fmt.Println(usage.FormatUsageDetailed(&readable))
			return nil
		},
	}
	cmd.Flags().StringVar(&workingDir, "working-dir", "", "workspace directory whose .sage/sessions store to use")
	return cmd
}
