package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sagehq/sage/internal/agent"
	"github.com/sagehq/sage/internal/agent/providers"
	"github.com/sagehq/sage/internal/config"
	"github.com/sagehq/sage/internal/ratelimit"
	"github.com/sagehq/sage/internal/sessions"
	"github.com/sagehq/sage/internal/tools/exec"
	"github.com/sagehq/sage/internal/tools/files"
	"github.com/sagehq/sage/internal/tools/sandbox"
	"github.com/sagehq/sage/pkg/models"
)

// app wires configuration, an LLM provider, the tool registry, and session
// storage into a runnable agent runtime. It is the CLI's composition root;
// everything below it is the library surface that a non-CLI embedder (an
// editor plugin, a test) would also use.
type app struct {
	cfg       *config.Config
	runtime   *agent.AgenticRuntime
	sessions  *sessionResolver
	compactor *autocompactor
	usage     *usageTracker
}

func newApp(opts runOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.MaxSteps > 0 {
		cfg.MaxSteps = opts.MaxSteps
	}
	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = cfg.WorkingDir
	}
	if workingDir == "" {
		workingDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}

	providerName := cfg.DefaultProvider
	if providerName == "" {
		return nil, errors.New("no provider configured: set default_provider in the config file or SAGE_DEFAULT_PROVIDER")
	}
	providerCfg := cfg.Providers[providerName]
	provider, err := providers.New(providerName, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("construct provider %q: %w", providerName, err)
	}
	rl := cfg.RateLimitFor(providerName)
	provider = wrapWithRateLimit(provider, ratelimit.Config{
		RequestsPerSecond: float64(rl.RequestsPerMinute) / 60,
		BurstSize:         rl.Burst,
		Enabled:           true,
	})
	provider, err = newFallbackProvider(cfg, providerName, provider)
	if err != nil {
		return nil, err
	}

	store, err := sessionStoreForWorkspace(workingDir)
	if err != nil {
		return nil, err
	}

	loopCfg := agent.DefaultLoopConfig()
	if cfg.MaxSteps > 0 {
		loopCfg.MaxIterations = cfg.MaxSteps
	}
	loopCfg.RequireApproval = cfg.Tools.Execution.RequireApproval
	loopCfg.ElevatedTools = cfg.Tools.Execution.ElevatedTools
	loopCfg.AsyncTools = cfg.Tools.Execution.AsyncTools
	if loopCfg.ExecutorConfig != nil && cfg.Tools.Execution.MaxParallel > 0 {
		loopCfg.ExecutorConfig.MaxConcurrency = cfg.Tools.Execution.MaxParallel
	}

	runtime := agent.NewAgenticRuntime(provider, store, loopCfg)
	if providerCfg.DefaultModel != "" {
		runtime.SetDefaultModel(providerCfg.DefaultModel)
	}
	runtime.SetSystemPrompt(defaultSystemPrompt)

	registerTools(runtime, workingDir, cfg.Tools.Sandbox)

	return &app{
		cfg:     cfg,
		runtime: runtime,
		sessions: &sessionResolver{
			store:            store,
			continueLast:     opts.Continue,
			resumeID:         opts.ResumeID,
			WorkingDirectory: workingDir,
			Provider:         providerName,
			Model:            providerCfg.DefaultModel,
		},
		compactor: newAutocompactor(store, provider, providerCfg.DefaultModel, cfg.AutocompactPct),
		usage:     newUsageTracker(store, providerName, providerCfg.DefaultModel),
	}, nil
}

const defaultSystemPrompt = "You are sage, a careful coding agent. Use the available tools to inspect and modify the workspace before answering."

// lockHolderID identifies this process as a session-store writer. A single
// sage process only ever runs one agent loop at a time, so a fixed value is
// enough to serialize it against any other process sharing the same
// workspace's session store.
const lockHolderID = "sage"

func registerTools(runtime *agent.AgenticRuntime, workspace string, sandboxCfg config.SandboxConfig) {
	pathPolicy := files.PathPolicy{
		DeniedPaths:       sandboxCfg.DeniedPaths,
		AllowedWriteRoots: sandboxCfg.AllowedWriteRoots,
		TmpWritePrefix:    sandboxCfg.TmpWritePrefix,
	}
	fileCfg := files.Config{Workspace: workspace, Policy: pathPolicy}
	runtime.RegisterTool(files.NewReadTool(fileCfg))
	runtime.RegisterTool(files.NewWriteTool(fileCfg))
	runtime.RegisterTool(files.NewEditTool(fileCfg))
	runtime.RegisterTool(files.NewApplyPatchTool(fileCfg))

	manager := exec.NewManager(workspace, sandboxCfg)
	runtime.RegisterTool(exec.NewExecTool("exec", manager))
	runtime.RegisterTool(exec.NewProcessTool(manager))

	// execute_code is only registered when the sandbox is enabled: it runs
	// untrusted code in a container (spec §4.5's resource-limited execution
	// mode), which the plain exec tool does not provide.
	if sandboxCfg.Enabled {
		modeConfig := sandbox.ResolveModeConfig(sandboxCfg)
		if modeConfig.Mode != sandbox.ModeOff {
			access := sandbox.WorkspaceReadOnly
			for _, root := range sandboxCfg.AllowedWriteRoots {
				if root == workspace || strings.HasPrefix(workspace, root) {
					access = sandbox.WorkspaceReadWrite
					break
				}
			}
			cpuMillicores := 1000
			if sandboxCfg.Limits.CPUSeconds > 0 {
				cpuMillicores = sandboxCfg.Limits.CPUSeconds * 1000
			}
			memoryMB := 512
			if sandboxCfg.Limits.MemoryBytes > 0 {
				memoryMB = int(sandboxCfg.Limits.MemoryBytes / (1024 * 1024))
			}
			timeout := sandboxCfg.Limits.Timeout
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			codeExecutor, err := sandbox.NewExecutor(
				sandbox.WithWorkspaceRoot(workspace),
				sandbox.WithDefaultWorkspaceAccess(access),
				sandbox.WithDefaultCPU(cpuMillicores),
				sandbox.WithDefaultMemory(memoryMB),
				sandbox.WithDefaultTimeout(timeout),
				sandbox.WithNetworkEnabled(len(sandboxCfg.NetworkAllowlist) > 0),
			)
			if err == nil {
				runtime.RegisterTool(codeExecutor)
			}
		}
	}
}

// sessionLockManagers caches one SessionLockManager per session root so that
// every sessionStoreForWorkspace call against the same workspace within this
// process serializes through the same lock table, rather than each call
// getting its own manager that can't see the others' in-flight locks.
var (
	sessionLockManagersMu sync.Mutex
	sessionLockManagers   = map[string]*sessions.SessionLockManager{}
)

func sessionStoreForWorkspace(workspace string) (sessions.Store, error) {
	root := filepath.Join(workspace, ".sage", "sessions")
	store, err := sessions.NewFileStore(root)
	if err != nil {
		return nil, err
	}

	sessionLockManagersMu.Lock()
	locks, ok := sessionLockManagers[root]
	if !ok {
		locks = sessions.NewSessionLockManager(30 * time.Second)
		sessionLockManagers[root] = locks
	}
	sessionLockManagersMu.Unlock()

	locking := sessions.NewLockingStore(store, locks, lockHolderID)
	return sessions.NewGuardedSessionStore(locking, nil), nil
}

func (a *app) Close() error {
	return nil
}

// RunOnce drives a single task to completion, printing streamed assistant
// text to stdout and tool events to stderr, then returns once the loop's
// response channel closes.
func (a *app) RunOnce(ctx context.Context, task string) error {
	session, err := a.sessions.resolveForRun(ctx)
	if err != nil {
		return err
	}
	if err := a.compactor.maybeCompact(ctx, session.ID); err != nil {
		slog.Warn("autocompact skipped", "error", err)
	}

	msg := &models.Message{
		SessionID: session.ID,
		Role:      models.RoleUser,
		Content:   task,
	}

	chunks, err := a.runtime.Process(ctx, session, msg)
	if err != nil {
		return err
	}
	response, err := drainChunks(chunks, os.Stdout, os.Stderr)
	a.usage.record(ctx, session, task, response)
	return err
}

// RunInteractive reads tasks from stdin, one per line, printing the agent's
// response after each before prompting again. It exits cleanly on EOF or
// context cancellation.
func (a *app) RunInteractive(ctx context.Context) error {
	session, err := a.sessions.resolveForRun(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("sage session %s (workspace tools enabled). Ctrl-D to exit.\n", session.ID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return errCancelled
		}

		if err := a.compactor.maybeCompact(ctx, session.ID); err != nil {
			slog.Warn("autocompact skipped", "error", err)
		}

		msg := &models.Message{SessionID: session.ID, Role: models.RoleUser, Content: line}
		chunks, err := a.runtime.Process(ctx, session, msg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		response, err := drainChunks(chunks, os.Stdout, os.Stderr)
		a.usage.record(ctx, session, line, response)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		if summary := a.usage.summaryLine(); summary != "" {
			fmt.Fprintln(os.Stderr, summary)
		}
	}
}

func drainChunks(chunks <-chan *agent.ResponseChunk, out, errOut *os.File) (string, error) {
	var runErr error
	var response strings.Builder
	for chunk := range chunks {
		if chunk.Text != "" {
			fmt.Fprint(out, chunk.Text)
			response.WriteString(chunk.Text)
		}
		if chunk.ToolEvent != nil {
			fmt.Fprintf(errOut, "[tool] %s %s\n", chunk.ToolEvent.ToolName, chunk.ToolEvent.Stage)
		}
		if chunk.Error != nil {
			runErr = chunk.Error
		}
	}
	fmt.Fprintln(out)
	return response.String(), runErr
}
