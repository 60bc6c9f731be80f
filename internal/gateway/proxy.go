package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultHealthTimeout bounds the proxy health check.
	DefaultHealthTimeout = 2 * time.Second
	// DefaultSendTimeout bounds a whole proxy or function request.
	DefaultSendTimeout = 5 * time.Minute
)

// ProxyStrategy talks to a local proxy that forwards to the provider.
type ProxyStrategy struct {
	baseURL       string
	healthTimeout time.Duration
	client        *http.Client
}

// NewProxyStrategy creates a strategy for the proxy at baseURL.
func NewProxyStrategy(baseURL string, healthTimeout time.Duration, client *http.Client) *ProxyStrategy {
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultSendTimeout}
	}
	return &ProxyStrategy{
		baseURL:       strings.TrimRight(baseURL, "/"),
		healthTimeout: healthTimeout,
		client:        client,
	}
}

func (p *ProxyStrategy) Name() string { return "proxy" }

// Available probes GET /health with a hard timeout.
func (p *ProxyStrategy) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// proxyResponse is the provider-shaped body the proxy returns.
type proxyResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *ProxyStrategy) Send(ctx context.Context, r Request) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshalling proxy request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating proxy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: proxy: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading proxy response: %v", ErrNetwork, err)
	}

	var pr proxyResponse
	jsonErr := json.Unmarshal(data, &pr)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if jsonErr == nil && pr.Error != nil {
			msg = pr.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("%w: proxy: %s", ErrAuthentication, msg)
		}
		return "", fmt.Errorf("%w: proxy returned %d: %s", ErrNetwork, resp.StatusCode, msg)
	}
	if jsonErr != nil {
		return "", fmt.Errorf("%w: decoding proxy response: %v", ErrNetwork, jsonErr)
	}

	var sb strings.Builder
	for _, c := range pr.Content {
		if c.Type == "" || c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String(), nil
}
