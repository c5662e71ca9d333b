package main

import (
	"context"
	"fmt"

	"github.com/sagehq/sage/internal/agent"
	"github.com/sagehq/sage/internal/agent/providers"
	"github.com/sagehq/sage/internal/config"
	sagemodels "github.com/sagehq/sage/internal/models"
	"github.com/sagehq/sage/internal/ratelimit"
)

// fallbackProvider tries a primary provider/model, then the configured
// fallbacks in order, on any error classified as retryable-elsewhere (rate
// limit, server error, timeout, auth, billing, unavailable).
type fallbackProvider struct {
	primary   agent.LLMProvider
	fallbackC *sagemodels.FallbackConfig
	built     map[string]agent.LLMProvider
}

// newFallbackProvider constructs the primary provider plus every provider
// named in cfg.Fallbacks ("provider/model" or "provider"), reusing the same
// rate-limit wrapping applied to the primary.
func newFallbackProvider(cfg *config.Config, primaryName string, primary agent.LLMProvider) (agent.LLMProvider, error) {
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	built := map[string]agent.LLMProvider{primaryName: primary}
	for _, ref := range cfg.Fallbacks {
		candidate := sagemodels.ParseModelRef(ref, primaryName)
		if candidate == nil {
			continue
		}
		if _, ok := built[candidate.Provider]; ok {
			continue
		}
		providerCfg := cfg.Providers[candidate.Provider]
		p, err := providers.New(candidate.Provider, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("construct fallback provider %q: %w", candidate.Provider, err)
		}
		rl := cfg.RateLimitFor(candidate.Provider)
		built[candidate.Provider] = wrapWithRateLimit(p, ratelimit.Config{
			RequestsPerSecond: float64(rl.RequestsPerMinute) / 60,
			BurstSize:         rl.Burst,
			Enabled:           true,
		})
	}

	return &fallbackProvider{
		primary: primary,
		fallbackC: &sagemodels.FallbackConfig{
			PrimaryProvider: primaryName,
			PrimaryModel:    cfg.Providers[primaryName].DefaultModel,
			Fallbacks:       cfg.Fallbacks,
		},
		built: built,
	}, nil
}

func (f *fallbackProvider) Name() string          { return f.primary.Name() }
func (f *fallbackProvider) Models() []agent.Model { return f.primary.Models() }
func (f *fallbackProvider) SupportsTools() bool   { return f.primary.SupportsTools() }

func (f *fallbackProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	run := func(ctx context.Context, providerName, model string) (<-chan *agent.CompletionChunk, error) {
		p, ok := f.built[providerName]
		if !ok {
			return nil, fmt.Errorf("fallback: provider %q was never constructed", providerName)
		}
		callReq := *req
		if model != "" {
			callReq.Model = model
		}
		return p.Complete(ctx, &callReq)
	}

	result, err := sagemodels.RunWithModelFallback(ctx, f.fallbackC, run, func(provider, model string, err error, attempt, total int) {
		_ = attempt
		_ = total
		_ = provider
		_ = model
		_ = err
	})
	if err != nil {
		return nil, err
	}
	return result.Result, nil
}
