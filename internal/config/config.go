// Package config defines the typed configuration surface for the agent
// runtime: provider credentials, rate limits, sandbox policy, and tool
// execution defaults. Parsing the full on-disk file format (includes,
// layered overrides, skill/template config) is an external concern; this
// package owns the struct, its defaults, and the documented environment
// variable overlay.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root typed configuration for a sage run.
type Config struct {
	DefaultProvider string                    `yaml:"default_provider"`
	DefaultModel    string                    `yaml:"default_model"`
	MaxSteps        int                       `yaml:"max_steps"`
	WorkingDir      string                    `yaml:"working_dir"`
	DebugAPI        bool                      `yaml:"debug_api"`
	AutocompactPct  float64                   `yaml:"autocompact_pct"`
	Fallbacks       []string                  `yaml:"fallbacks"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	Tools           ToolsConfig               `yaml:"tools"`
	Logging         LoggingConfig             `yaml:"logging"`
}

// ProviderConfig holds per-provider LLM client settings. APIKey is normally
// left empty in the file and supplied via the provider's environment
// variable (e.g. ANTHROPIC_API_KEY) so credentials never need to be
// committed.
type ProviderConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	RateLimit    RateLimitSpec `yaml:"rate_limit"`
}

// RateLimitSpec configures one provider's token-bucket rate limiter.
type RateLimitSpec struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// ToolsConfig groups sandbox and execution settings for the tool system.
type ToolsConfig struct {
	Sandbox   SandboxConfig       `yaml:"sandbox"`
	Execution ToolExecutionConfig `yaml:"execution"`
}

// ToolExecutionConfig controls the Tool Executor (C7): scheduling,
// approval defaults, and async handoff.
type ToolExecutionConfig struct {
	MaxParallel     int           `yaml:"max_parallel"`
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
	RequireApproval []string      `yaml:"require_approval"`
	ElevatedTools   []string      `yaml:"elevated_tools"`
	AsyncTools      []string      `yaml:"async_tools"`
}

// SandboxConfig controls the Sandbox Policy (C6): which agents are
// sandboxed, the isolation scope, and the resource/path/command limits
// applied to every tool execution.
type SandboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode"`  // "off" | "all" | "non-main"
	Scope   string `yaml:"scope"` // "agent" | "session" | "shared"

	Strictness string `yaml:"strictness"` // "permissive" | "normal" | "restricted" | "strict"

	AllowedWriteRoots []string `yaml:"allowed_write_roots"`
	DeniedPaths       []string `yaml:"denied_paths"`
	TmpWritePrefix    string   `yaml:"tmp_write_prefix"`

	NetworkAllowlist []string `yaml:"network_allowlist"`

	Limits ResourceLimits `yaml:"limits"`
}

// ResourceLimits bounds a single tool execution's resource consumption.
type ResourceLimits struct {
	CPUSeconds     int           `yaml:"cpu_seconds"`
	MemoryBytes    int64         `yaml:"memory_bytes"`
	MaxOutputBytes int64         `yaml:"max_output_bytes"`
	MaxFileBytes   int64         `yaml:"max_file_bytes"`
	Timeout        time.Duration `yaml:"timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "json" | "text"
}

// Environment variable names consumed by the core, per the external
// interfaces section of the specification.
const (
	EnvDefaultProvider = "SAGE_DEFAULT_PROVIDER"
	EnvMaxSteps        = "SAGE_MAX_STEPS"
	EnvDebugAPI        = "SAGE_DEBUG_API"
	EnvAutocompactPct  = "SAGE_AUTOCOMPACT_PCT"
)

// Default returns a Config populated with the documented defaults: no
// provider selected, an unbounded step budget left to the caller, and the
// per-provider rate limits from the external interfaces section.
func Default() *Config {
	return &Config{
		MaxSteps:       0,
		AutocompactPct: 0.8,
		Providers:      DefaultProviderRateLimits(),
		Tools: ToolsConfig{
			Execution: ToolExecutionConfig{
				MaxParallel:    4,
				DefaultTimeout: 120 * time.Second,
			},
			Sandbox: SandboxConfig{
				Mode:       "off",
				Scope:      "agent",
				Strictness: "normal",
				Limits: ResourceLimits{
					MaxOutputBytes: 1 << 20, // 1 MiB
					Timeout:        120 * time.Second,
				},
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// DefaultProviderRateLimits returns the default requests-per-minute/burst
// pair for each known provider.
func DefaultProviderRateLimits() map[string]ProviderConfig {
	defaults := map[string][2]int{
		"openai":    {60, 20},
		"anthropic": {60, 10},
		"google":    {60, 15},
		"azure":     {60, 20},
		"ollama":    {120, 30},
		"glm":       {60, 15},
	}
	out := make(map[string]ProviderConfig, len(defaults))
	for name, rl := range defaults {
		out[name] = ProviderConfig{RateLimit: RateLimitSpec{RequestsPerMinute: rl[0], Burst: rl[1]}}
	}
	return out
}

// defaultOtherRateLimit is used for providers not named explicitly in §6
// (openrouter, doubao, and any future addition).
const (
	defaultOtherRPM   = 60
	defaultOtherBurst = 10
)

// RateLimitFor returns the configured rate limit for a provider, falling
// back to the "others: 60/10" default from the specification when the
// provider has no explicit entry.
func (c *Config) RateLimitFor(provider string) RateLimitSpec {
	if c != nil {
		if p, ok := c.Providers[provider]; ok && p.RateLimit.RequestsPerMinute > 0 {
			return p.RateLimit
		}
	}
	return RateLimitSpec{RequestsPerMinute: defaultOtherRPM, Burst: defaultOtherBurst}
}

// OverlayEnv applies the documented SAGE_* and <PROVIDER>_API_KEY
// environment variables on top of an already-loaded Config, with the
// environment taking precedence (matching CLI conventions where flags and
// env override file config).
func (c *Config) OverlayEnv() {
	if c == nil {
		return
	}
	if v, ok := os.LookupEnv(EnvDefaultProvider); ok && strings.TrimSpace(v) != "" {
		c.DefaultProvider = v
	}
	if v, ok := os.LookupEnv(EnvMaxSteps); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxSteps = n
		}
	}
	if v, ok := os.LookupEnv(EnvDebugAPI); ok {
		c.DebugAPI = isTruthy(v)
	}
	if v, ok := os.LookupEnv(EnvAutocompactPct); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f < 1 {
			c.AutocompactPct = f
		}
	}
	for name := range c.Providers {
		envName := strings.ToUpper(name) + "_API_KEY"
		if v, ok := os.LookupEnv(envName); ok && v != "" {
			p := c.Providers[name]
			p.APIKey = v
			c.Providers[name] = p
		}
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
