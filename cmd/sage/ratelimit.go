package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sagehq/sage/internal/agent"
	"github.com/sagehq/sage/internal/ratelimit"
)

// rateLimitedProvider wraps an agent.LLMProvider with a token-bucket limiter
// keyed on the provider name, so a single noisy session can't blow through
// the provider's own rate limit and start drawing 429s.
type rateLimitedProvider struct {
	agent.LLMProvider
	limiter *ratelimit.Limiter
	key     string
}

func wrapWithRateLimit(p agent.LLMProvider, spec ratelimit.Config) agent.LLMProvider {
	if !spec.Enabled {
		return p
	}
	return &rateLimitedProvider{
		LLMProvider: p,
		limiter:     ratelimit.NewLimiter(spec),
		key:         p.Name(),
	}
}

func (p *rateLimitedProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if !p.limiter.Allow(p.key) {
		wait := p.limiter.WaitTime(p.key)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if !p.limiter.Allow(p.key) {
			return nil, fmt.Errorf("%s: rate limit exceeded, retry after %s", p.key, wait)
		}
	}
	return p.LLMProvider.Complete(ctx, req)
}
