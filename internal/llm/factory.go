package llm

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/workmate/internal/auth"
)

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "anthropic", "openai", "ollama". Hosted providers
// without a key fail with an error wrapping ErrMissingAPIKey.
func NewProvider(providerType string, model string, opts ...Option) (Provider, error) {
	switch providerType {
	case "anthropic":
		apiKey := auth.GetAPIKey("anthropic")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set: %w", ErrMissingAPIKey)
		}
		return NewAnthropicProvider(apiKey, model, opts...), nil

	case "openai":
		apiKey := auth.GetAPIKey("openai")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set: %w", ErrMissingAPIKey)
		}
		return NewOpenAIProvider(apiKey, model, opts...), nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model, opts...), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
