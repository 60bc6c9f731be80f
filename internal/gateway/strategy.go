package gateway

import (
	"context"

	"github.com/ziadkadry99/workmate/internal/llm"
)

// Request is the payload every strategy forwards. It mirrors the provider's
// messages API shape.
type Request struct {
	Model     string        `json:"model,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []llm.Message `json:"messages"`
}

// Strategy is one transport to the language model.
type Strategy interface {
	Name() string
	// Available reports whether the transport is worth trying right now.
	Available(ctx context.Context) bool
	// Send returns the assistant reply text. Errors wrap ErrNetwork or
	// ErrAuthentication.
	Send(ctx context.Context, req Request) (string, error)
}
