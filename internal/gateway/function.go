package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// FunctionStrategy invokes a hosted chat function.
type FunctionStrategy struct {
	url    string
	key    string
	client *http.Client
}

// NewFunctionStrategy creates a strategy for the function at url. key is sent
// as a bearer token when set.
func NewFunctionStrategy(url, key string, client *http.Client) *FunctionStrategy {
	if client == nil {
		client = &http.Client{Timeout: DefaultSendTimeout}
	}
	return &FunctionStrategy{url: url, key: key, client: client}
}

func (f *FunctionStrategy) Name() string { return "function" }

func (f *FunctionStrategy) Available(ctx context.Context) bool { return f.url != "" }

type functionResponse struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

func (f *FunctionStrategy) Send(ctx context.Context, r Request) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshalling function request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating function request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.key != "" {
		req.Header.Set("Authorization", "Bearer "+f.key)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: function: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading function response: %v", ErrNetwork, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: function returned %d", ErrAuthentication, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: function returned %d: %s", ErrNetwork, resp.StatusCode, string(data))
	}

	var fr functionResponse
	if err := json.Unmarshal(data, &fr); err != nil {
		return "", fmt.Errorf("%w: decoding function response: %v", ErrNetwork, err)
	}
	if !fr.Success {
		return "", fmt.Errorf("%w: function reported failure: %s", ErrNetwork, fr.Error)
	}
	return fr.Content, nil
}
