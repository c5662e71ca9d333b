package providers

import (
	"fmt"

	"github.com/sagehq/sage/internal/agent"
	"github.com/sagehq/sage/internal/config"
)

// New constructs the agent.LLMProvider for the named provider, applying the
// matching ProviderConfig (API key, base URL override, default model). This
// is the single place that maps a config provider name to a concrete
// adapter; callers (the CLI, tests) should go through it rather than
// constructing providers directly so a new provider only needs registering
// here once.
func New(name string, cfg config.ProviderConfig) (agent.LLMProvider, error) {
	switch name {
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("providers: openai: API key is required")
		}
		return NewOpenAIProvider(cfg.APIKey), nil
	case "google":
		return NewGoogleProvider(GoogleConfig{APIKey: cfg.APIKey})
	case "azure":
		return NewAzureOpenAIProvider(AzureOpenAIConfig{
			Endpoint:     cfg.BaseURL,
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.DefaultModel,
		})
	case "bedrock":
		return NewBedrockProvider(BedrockConfig{
			DefaultModel: cfg.DefaultModel,
		})
	case "ollama":
		return NewOllamaProvider(OllamaConfig{
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
		}), nil
	case "openrouter":
		return NewOpenRouterProvider(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.DefaultModel,
		})
	case "glm":
		return NewGLMProvider(GLMConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
		})
	case "doubao":
		return NewDoubaoProvider(DoubaoConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
		})
	case "copilot-proxy":
		return NewCopilotProxyProvider(CopilotProxyConfig{
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, fmt.Errorf("providers: unknown provider %q", name)
	}
}
