// Package gateway sends assembled chat context to the language model through
// an ordered chain of transports, first success wins.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ziadkadry99/workmate/internal/config"
	"github.com/ziadkadry99/workmate/internal/llm"
	"github.com/ziadkadry99/workmate/internal/logger"
)

// Options are request parameters applied to every send.
type Options struct {
	Model     string
	MaxTokens int
	// Fallback turns chain exhaustion into FallbackMessage instead of an error.
	Fallback bool
}

// Reply is the outcome of a send.
type Reply struct {
	Content string `json:"content"`
	// Strategy names the transport that answered; empty for fallback text.
	Strategy string `json:"strategy,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Gateway iterates its strategies in order.
type Gateway struct {
	strategies []Strategy
	opts       Options
	log        *logger.Logger
}

// NewGateway builds a gateway over an explicit strategy chain.
func NewGateway(strategies []Strategy, opts Options, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{strategies: strategies, opts: opts, log: log.With("service", "Gateway")}
}

// New builds the chain for cfg.Platform. Web clients go proxy then function
// and fall back to instructional text; native clients call the provider
// directly and surface failures as errors. provider may be nil when no API
// key is configured.
func New(cfg config.GatewayConfig, model string, maxTokens int, provider llm.Provider, log *logger.Logger) (*Gateway, error) {
	opts := Options{Model: model, MaxTokens: maxTokens}
	client := &http.Client{Timeout: DefaultSendTimeout}

	var chain []Strategy
	switch cfg.Platform {
	case config.PlatformWeb:
		if cfg.ProxyURL != "" {
			chain = append(chain, NewProxyStrategy(cfg.ProxyURL, cfg.HealthTimeout, client))
		}
		if cfg.FunctionURL != "" {
			chain = append(chain, NewFunctionStrategy(cfg.FunctionURL, cfg.FunctionKey, client))
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("%w: web platform needs proxy_url or function_url", ErrConfiguration)
		}
		opts.Fallback = true
	case config.PlatformNative, "":
		chain = append(chain, NewDirectStrategy(provider))
	default:
		return nil, fmt.Errorf("%w: unknown platform %q", ErrConfiguration, cfg.Platform)
	}

	return NewGateway(chain, opts, log), nil
}

// Strategies returns the chain's strategy names in order.
func (g *Gateway) Strategies() []string {
	names := make([]string, len(g.strategies))
	for i, s := range g.strategies {
		names[i] = s.Name()
	}
	return names
}

// Send returns the assistant reply text for messages.
func (g *Gateway) Send(ctx context.Context, messages []llm.Message) (string, error) {
	reply, err := g.Exchange(ctx, messages)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// Exchange is Send with the transport outcome attached.
func (g *Gateway) Exchange(ctx context.Context, messages []llm.Message) (*Reply, error) {
	req := Request{Model: g.opts.Model, MaxTokens: g.opts.MaxTokens, Messages: messages}

	var lastErr error
	for _, s := range g.strategies {
		if !s.Available(ctx) {
			g.log.Debug("strategy unavailable", "strategy", s.Name())
			continue
		}
		content, err := s.Send(ctx, req)
		if err == nil {
			return &Reply{Content: content, Strategy: s.Name()}, nil
		}
		g.log.Warn("strategy failed", "strategy", s.Name(), "error", err)
		lastErr = fmt.Errorf("%s: %w", s.Name(), err)

		if ctx.Err() != nil {
			break
		}
	}

	if g.opts.Fallback {
		g.log.Info("all strategies exhausted, returning fallback text")
		return &Reply{Content: FallbackMessage(lastUserContent(messages)), Fallback: true}, nil
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: no strategy available", ErrNetwork)
	}
	if !errors.Is(lastErr, ErrNetwork) && !errors.Is(lastErr, ErrAuthentication) {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, lastErr)
	}
	return nil, lastErr
}

func lastUserContent(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

const questionPreviewRunes = 100

// FallbackMessage is the reply shown when no backend is reachable from a
// browser client. It quotes the start of the question and lists setup steps.
func FallbackMessage(question string) string {
	q := strings.TrimSpace(question)
	if r := []rune(q); len(r) > questionPreviewRunes {
		q = string(r[:questionPreviewRunes]) + "..."
	}

	var sb strings.Builder
	sb.WriteString("I can't reach the AI assistant from the browser right now")
	if q != "" {
		fmt.Fprintf(&sb, ", so I couldn't answer: \"%s\"", q)
	}
	sb.WriteString(".\n\nTo enable chat in the web app:\n")
	sb.WriteString("1. Start the local proxy with `workmate proxy` (it listens on port 3001 by default).\n")
	sb.WriteString("2. Or set gateway.function_url to a hosted chat function.\n")
	sb.WriteString("3. Make sure ANTHROPIC_API_KEY (or your provider's key) is set where the proxy or function runs.\n")
	sb.WriteString("\nThe native app can call the provider directly without either.")
	return sb.String()
}
