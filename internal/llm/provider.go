package llm

import (
	"context"
	"errors"
)

var (
	// ErrMissingAPIKey is returned when a hosted provider is requested without a key.
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrUnauthorized is returned when the provider rejects the configured key.
	ErrUnauthorized = errors.New("provider rejected API key")
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
