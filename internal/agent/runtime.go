package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	agentctx "github.com/sagehq/sage/internal/agent/context"
	"github.com/sagehq/sage/internal/sessions"
	"github.com/sagehq/sage/pkg/models"
)

// maxConcurrentJobs limits the number of concurrent async tool jobs spawned
// from a Runtime-driven conversation.
const maxConcurrentJobs = 50

// Runtime is the lower-level building block underneath AgenticLoop: a tool
// registry, session store, and message builder shared by every request for
// a given provider. AgenticLoop/AgenticRuntime (see loop.go) drive the actual
// per-turn streaming loop; Runtime exists so that registry lookups, session
// locking, and history-to-CompletionMessage conversion can be benchmarked
// and reused independently of a specific loop run.
type Runtime struct {
	// provider is the LLM backend (Anthropic, OpenAI, etc.)
	provider LLMProvider

	// tools holds registered tools available for LLM function calling.
	tools *ToolRegistry

	// sessions stores conversation history for continuity.
	sessions sessions.Store

	// branchStore persists branch-aware histories when enabled.
	branchStore sessions.BranchStore

	// toolEvents optionally persists tool calls/results for audit and replay.
	toolEvents ToolEventStore

	// opts configures runtime behavior (tool loop, approvals, async jobs).
	opts RuntimeOptions

	// defaultModel is used when requests omit a model.
	defaultModel string

	// defaultSystem is used when requests omit a system prompt.
	defaultSystem string

	// maxIterations limits the agentic loop iterations (default 5).
	maxIterations int

	// maxWallTime limits the total run duration (0 = no limit).
	maxWallTime time.Duration

	// toolExec configures tool execution behavior (timeouts, concurrency).
	toolExec ExecutorConfig

	// packOpts configures context packing behavior.
	packOpts *agentctx.PackOptions

	// contextPruning configures in-memory tool result pruning.
	contextPruningMu sync.RWMutex
	contextPruning   *agentctx.ContextPruningSettings
	cacheTouch       sync.Map

	// sessionLocks ensures only one writer per session at a time.
	sessionLocksMu sync.Mutex
	sessionLocks   map[string]*sessionLock

	// summarizeConfig configures conversation summarization.
	summarizeConfig *agentctx.SummarizationConfig

	// plugins holds registered plugins for event hooks.
	plugins *PluginRegistry

	// jobSem limits concurrent async job goroutines.
	jobSem chan struct{}
}

// NewRuntime creates a new agent runtime with the given provider and session
// store. The runtime starts with an empty tool registry; use RegisterTool to
// add tools after creation.
func NewRuntime(provider LLMProvider, store sessions.Store) *Runtime {
	return NewRuntimeWithOptions(provider, store, DefaultRuntimeOptions())
}

// NewRuntimeWithOptions creates a runtime with custom options.
func NewRuntimeWithOptions(provider LLMProvider, store sessions.Store, opts RuntimeOptions) *Runtime {
	opts = mergeRuntimeOptions(DefaultRuntimeOptions(), opts)
	runtime := &Runtime{
		provider:     provider,
		tools:        NewToolRegistry(),
		sessions:     store,
		opts:         opts,
		plugins:      NewPluginRegistry(),
		jobSem:       make(chan struct{}, maxConcurrentJobs),
		sessionLocks: make(map[string]*sessionLock),
	}
	if opts.MaxIterations > 0 {
		runtime.maxIterations = opts.MaxIterations
	}
	if opts.ToolParallelism > 0 || opts.ToolTimeout > 0 || opts.ToolMaxAttempts > 0 {
		runtime.toolExec = ExecutorConfig{
			MaxConcurrency: opts.ToolParallelism,
			DefaultTimeout: opts.ToolTimeout,
			DefaultRetries: opts.ToolMaxAttempts,
		}
	}
	return runtime
}

// SetOptions updates runtime behavior options.
func (r *Runtime) SetOptions(opts RuntimeOptions) {
	r.opts = mergeRuntimeOptions(r.opts, opts)
	if r.opts.MaxIterations > 0 {
		r.maxIterations = r.opts.MaxIterations
	}
	if r.opts.ToolParallelism > 0 || r.opts.ToolTimeout > 0 || r.opts.ToolMaxAttempts > 0 {
		r.toolExec = ExecutorConfig{
			MaxConcurrency: r.opts.ToolParallelism,
			DefaultTimeout: r.opts.ToolTimeout,
			DefaultRetries: r.opts.ToolMaxAttempts,
		}
	}
}

// SetDefaultModel configures the fallback model used when requests omit one.
func (r *Runtime) SetDefaultModel(model string) {
	r.defaultModel = model
}

// SetSystemPrompt configures the fallback system prompt used when requests omit one.
func (r *Runtime) SetSystemPrompt(system string) {
	r.defaultSystem = system
}

// SetToolEventStore configures optional tool event persistence for audit and replay.
func (r *Runtime) SetToolEventStore(store ToolEventStore) {
	r.toolEvents = store
}

// SetBranchStore enables branch-aware history persistence.
func (r *Runtime) SetBranchStore(store sessions.BranchStore) {
	r.branchStore = store
}

// SetMaxIterations configures the maximum agentic loop iterations (default 5).
func (r *Runtime) SetMaxIterations(max int) {
	r.maxIterations = max
	if max > 0 {
		r.opts.MaxIterations = max
	}
}

// SetMaxWallTime configures the maximum total run duration. A value of 0
// (the default) means no limit.
func (r *Runtime) SetMaxWallTime(d time.Duration) {
	r.maxWallTime = d
}

// SetToolExecConfig configures tool execution behavior (timeouts, concurrency).
func (r *Runtime) SetToolExecConfig(config ExecutorConfig) {
	r.toolExec = config
	if config.MaxConcurrency > 0 {
		r.opts.ToolParallelism = config.MaxConcurrency
	}
	if config.DefaultTimeout > 0 {
		r.opts.ToolTimeout = config.DefaultTimeout
	}
	if config.DefaultRetries > 0 {
		r.opts.ToolMaxAttempts = config.DefaultRetries
	}
	if config.RetryBackoff > 0 {
		r.opts.ToolRetryBackoff = config.RetryBackoff
	}
}

// SetPackOptions configures context packing behavior.
func (r *Runtime) SetPackOptions(opts *agentctx.PackOptions) {
	r.packOpts = opts
}

// SetContextPruning configures in-memory tool result pruning.
func (r *Runtime) SetContextPruning(settings *agentctx.ContextPruningSettings) {
	r.contextPruningMu.Lock()
	defer r.contextPruningMu.Unlock()
	if settings == nil {
		r.contextPruning = nil
		r.cacheTouch = sync.Map{}
		return
	}
	clone := *settings
	clone.Tools.Allow = append([]string(nil), settings.Tools.Allow...)
	clone.Tools.Deny = append([]string(nil), settings.Tools.Deny...)
	r.contextPruning = &clone
}

// SetSummarizationConfig configures conversation summarization.
func (r *Runtime) SetSummarizationConfig(config *agentctx.SummarizationConfig) {
	r.summarizeConfig = config
}

func (r *Runtime) contextPruningSettings() *agentctx.ContextPruningSettings {
	r.contextPruningMu.RLock()
	defer r.contextPruningMu.RUnlock()
	return r.contextPruning
}

func (r *Runtime) cacheTouchAt(sessionID string) (time.Time, bool) {
	if sessionID == "" {
		return time.Time{}, false
	}
	if value, ok := r.cacheTouch.Load(sessionID); ok {
		if ts, ok := value.(time.Time); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func (r *Runtime) setCacheTouchAt(sessionID string, ts time.Time) {
	if sessionID == "" {
		return
	}
	r.cacheTouch.Store(sessionID, ts)
}

func cacheTouchFromSession(session *models.Session) (time.Time, bool) {
	if session == nil || session.Metadata == nil {
		return time.Time{}, false
	}
	raw, ok := session.Metadata[contextPruningCacheTouchKey]
	if !ok || raw == nil {
		return time.Time{}, false
	}
	switch value := raw.(type) {
	case time.Time:
		if value.IsZero() {
			return time.Time{}, false
		}
		return value, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, value)
		}
		if err != nil || parsed.IsZero() {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func (r *Runtime) persistCacheTouch(ctx context.Context, session *models.Session, ts time.Time) {
	if session == nil || r.sessions == nil {
		return
	}
	if session.Metadata == nil {
		session.Metadata = map[string]any{}
	}
	session.Metadata[contextPruningCacheTouchKey] = ts.Format(time.RFC3339Nano)
	if err := r.sessions.Update(ctx, session); err != nil && r.opts.Logger != nil {
		r.opts.Logger.Debug("failed to persist context pruning cache timestamp", "error", err, "session_id", session.ID)
	}
}

// Use registers a plugin to receive agent events during processing. Plugins
// are called in registration order for each event.
func (r *Runtime) Use(p Plugin) {
	r.plugins.Use(p)
}

// RegisterTool adds a tool to the runtime, making it available for LLM
// function calling. Registering a tool with an existing name overwrites it.
func (r *Runtime) RegisterTool(tool Tool) {
	r.tools.Register(tool)
}

// UnregisterTool removes a tool from the runtime by name.
func (r *Runtime) UnregisterTool(name string) {
	r.tools.Unregister(name)
}

// buildCompletionMessages converts stored message history into the
// CompletionMessage slice an LLMProvider expects, preserving tool calls,
// tool results, and attachments.
func (r *Runtime) buildCompletionMessages(history []*models.Message) ([]CompletionMessage, error) {
	out := make([]CompletionMessage, 0, len(history))

	for _, m := range history {
		if m == nil {
			continue
		}
		if m.Role == "" {
			return nil, fmt.Errorf("history message missing role (id=%s)", m.ID)
		}

		cm := CompletionMessage{Role: string(m.Role)}
		if m.Content != "" {
			cm.Content = m.Content
		}
		if len(m.Attachments) > 0 {
			cm.Attachments = m.Attachments
		}
		if len(m.ToolCalls) > 0 {
			cm.ToolCalls = m.ToolCalls
		}
		if len(m.ToolResults) > 0 {
			cm.ToolResults = m.ToolResults
		}
		out = append(out, cm)
	}

	return out, nil
}
