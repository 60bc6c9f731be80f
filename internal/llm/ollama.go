package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Ollama truncates prompts to num_ctx without reporting it, so every request
// asks for a window that fits the assembled context plus the reply.
const (
	ollamaMinContext = 4096
	ollamaMaxContext = 131072
)

// OllamaProvider talks to a local Ollama server.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider creates a provider for the server at baseURL.
func NewOllamaProvider(baseURL string, model string, opts ...Option) *OllamaProvider {
	o := applyOptions(baseURL, opts)
	return &OllamaProvider{
		baseURL: strings.TrimRight(o.baseURL, "/"),
		model:   model,
		client:  o.client,
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	// DoneReason is "stop" or "length".
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// contextWindow returns a num_ctx large enough for the prompt and reply.
func contextWindow(messages []Message, maxTokens int) int {
	need := EstimateMessagesTokens(messages) + maxTokens
	n := ollamaMinContext
	for n < need && n < ollamaMaxContext {
		n *= 2
	}
	return n
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body := ollamaRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Options:  map[string]any{"num_ctx": contextWindow(req.Messages, req.MaxTokens)},
	}
	if body.Model == "" {
		body.Model = p.model
	}
	if req.MaxTokens > 0 {
		body.Options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Options["temperature"] = req.Temperature
	}
	if req.JSONMode {
		body.Format = "json"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama at %s unreachable (is `ollama serve` running?): %w", p.baseURL, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ollama response: %w", err)
	}

	var out ollamaResponse
	decodeErr := json.Unmarshal(raw, &out)
	if httpResp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, fmt.Errorf("ollama returned %d: %s", httpResp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", decodeErr)
	}

	return &CompletionResponse{
		Content:      out.Message.Content,
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		Model:        out.Model,
		FinishReason: out.DoneReason,
	}, nil
}
