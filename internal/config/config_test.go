package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultRateLimits(t *testing.T) {
	cfg := Default()
	cases := map[string][2]int{
		"openai":    {60, 20},
		"anthropic": {60, 10},
		"google":    {60, 15},
		"azure":     {60, 20},
		"ollama":    {120, 30},
		"glm":       {60, 15},
	}
	for provider, want := range cases {
		got := cfg.RateLimitFor(provider)
		if got.RequestsPerMinute != want[0] || got.Burst != want[1] {
			t.Errorf("%s: got %+v, want rpm=%d burst=%d", provider, got, want[0], want[1])
		}
	}
}

func TestRateLimitForUnknownProviderFallsBackToOthersDefault(t *testing.T) {
	cfg := Default()
	got := cfg.RateLimitFor("openrouter")
	if got.RequestsPerMinute != defaultOtherRPM || got.Burst != defaultOtherBurst {
		t.Fatalf("expected fallback default, got %+v", got)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "default_provider: anthropic\nbogus_field: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	path := writeConfig(t, "default_provider: anthropic\nmax_steps: 25\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultProvider != "anthropic" || cfg.MaxSteps != 25 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestOverlayEnvTakesPrecedenceOverFile(t *testing.T) {
	path := writeConfig(t, "default_provider: anthropic\nmax_steps: 25\n")
	t.Setenv(EnvDefaultProvider, "openai")
	t.Setenv(EnvMaxSteps, "5")
	t.Setenv(EnvDebugAPI, "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultProvider != "openai" {
		t.Fatalf("expected env override for provider, got %q", cfg.DefaultProvider)
	}
	if cfg.MaxSteps != 5 {
		t.Fatalf("expected env override for max steps, got %d", cfg.MaxSteps)
	}
	if !cfg.DebugAPI {
		t.Fatal("expected debug API flag to be set from env")
	}
}

func TestOverlayEnvSetsProviderAPIKey(t *testing.T) {
	cfg := Default()
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")
	cfg.OverlayEnv()
	if cfg.Providers["anthropic"].APIKey != "sk-test-123" {
		t.Fatalf("expected API key to be set from env, got %+v", cfg.Providers["anthropic"])
	}
}
