// Package main provides the CLI entry point for the sage coding agent.
//
// sage runs a single bounded agent loop against a configured LLM provider,
// executing filesystem and shell tools in a workspace directory and
// persisting the conversation to an on-disk session.
//
// # Basic Usage
//
// One-shot task:
//
//	sage -p "list the go files in this repo"
//
// Interactive mode (no task argument):
//
//	sage
//
// Resume the most recent session, or a specific one:
//
//	sage -c "keep going"
//	sage -r <session-id> "keep going"
//
// # Environment Variables
//
//   - SAGE_DEFAULT_PROVIDER: provider to use when --config-file doesn't set one
//   - <PROVIDER>_API_KEY: credentials for each provider (e.g. ANTHROPIC_API_KEY)
//   - SAGE_MAX_STEPS: overrides the loop's iteration budget
//   - SAGE_DEBUG_API: dumps LLM requests/responses for diagnosis
//   - SAGE_AUTOCOMPACT_PCT: overrides the auto-compaction threshold ratio
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if err == errTaskFailed {
			os.Exit(1)
		}
		if err == errCancelled {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "sage:", err)
		os.Exit(2)
	}
}

func buildRootCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "sage [task]",
		Short: "sage is an interactive coding agent",
		Long: `sage runs a bounded agent loop against a configured LLM provider,
executing filesystem and shell tools in a workspace and persisting the
conversation as an on-disk session.

Without a task argument, sage starts an interactive prompt loop reading
from stdin. With a task argument, sage runs it to completion and exits.`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
		Args:         cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Task = args[0]
			}
			return runAgent(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Print, "print", "p", false, "run one-shot and print the result, then exit")
	cmd.Flags().BoolVarP(&opts.Continue, "continue", "c", false, "continue the most recently updated session")
	cmd.Flags().StringVarP(&opts.ResumeID, "resume", "r", "", "resume a specific session by id")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "override the loop's maximum iteration count")
	cmd.Flags().StringVar(&opts.ConfigFile, "config-file", "", "path to a YAML configuration file")
	cmd.Flags().StringVar(&opts.WorkingDir, "working-dir", "", "workspace directory for file and shell tools")

	cmd.AddCommand(buildSessionsCmd())
	cmd.AddCommand(buildUsageCmd())

	return cmd
}

// runOptions mirrors the CLI surface: a positional task, one-shot vs.
// interactive mode, session selection, and the handful of overridable
// runtime knobs.
type runOptions struct {
	Task       string
	Print      bool
	Continue   bool
	ResumeID   string
	MaxSteps   int
	ConfigFile string
	WorkingDir string
}

func runAgent(ctx context.Context, opts runOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if opts.Task != "" || opts.Print {
		err := app.RunOnce(ctx, opts.Task)
		if ctx.Err() != nil {
			return errCancelled
		}
		if err != nil {
			slog.Error("task failed", "error", err)
			return errTaskFailed
		}
		return nil
	}

	return app.RunInteractive(ctx)
}

var (
	errTaskFailed = fmt.Errorf("task failed")
	errCancelled  = fmt.Errorf("cancelled")
)
