package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/ziadkadry99/workmate/internal/llm"
)

// DirectStrategy calls the provider API from this process.
type DirectStrategy struct {
	provider llm.Provider
}

// NewDirectStrategy wraps provider. A nil provider means no API key was
// configured; every Send then fails with ErrAuthentication.
func NewDirectStrategy(provider llm.Provider) *DirectStrategy {
	return &DirectStrategy{provider: provider}
}

func (d *DirectStrategy) Name() string { return "direct" }

func (d *DirectStrategy) Available(ctx context.Context) bool { return true }

func (d *DirectStrategy) Send(ctx context.Context, r Request) (string, error) {
	if d.provider == nil {
		return "", fmt.Errorf("%w: no API key configured", ErrAuthentication)
	}
	resp, err := d.provider.Complete(ctx, llm.CompletionRequest{
		Model:     r.Model,
		Messages:  r.Messages,
		MaxTokens: r.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) || errors.Is(err, llm.ErrUnauthorized) {
			return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrNetwork, d.provider.Name(), err)
	}
	return resp.Content, nil
}
