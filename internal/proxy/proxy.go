// Package proxy is the local relay browser clients use to reach the LLM
// provider without exposing a key or tripping cross-origin checks.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/workmate/internal/gateway"
	"github.com/ziadkadry99/workmate/internal/llm"
	"github.com/ziadkadry99/workmate/internal/logger"
)

// DefaultMaxTokens caps a reply when the caller does not.
const DefaultMaxTokens = 4096

// Server forwards chat requests to a provider.
type Server struct {
	provider   llm.Provider
	model      string
	log        *logger.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a proxy for provider. provider may be nil, in which case every
// chat request is rejected as unauthorized.
func New(provider llm.Provider, model string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		provider: provider,
		model:    model,
		log:      log.With("service", "Proxy"),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	return r
}

// Handler returns the proxy's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type chatResponse struct {
	Content []contentBlock `json:"content"`
	Model   string         `json:"model"`
	Usage   usage          `json:"usage"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "configured": s.provider != nil}
	if s.provider != nil {
		status["provider"] = s.provider.Name()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		writeError(w, http.StatusUnauthorized, "provider API key is not configured")
		return
	}

	var req gateway.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}
	model := req.Model
	if model == "" {
		model = s.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	start := time.Now()
	resp, err := s.provider.Complete(r.Context(), llm.CompletionRequest{
		Model:     model,
		Messages:  req.Messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		s.log.Warn("provider call failed", "provider", s.provider.Name(), "model", model, "error", err)
		if errors.Is(err, llm.ErrMissingAPIKey) || errors.Is(err, llm.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.log.Info("proxied chat",
		"model", resp.Model,
		"usage_in", resp.InputTokens,
		"usage_out", resp.OutputTokens,
		"cost_usd", llm.EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens),
		"duration", time.Since(start),
	)
	writeJSON(w, http.StatusOK, chatResponse{
		Content: []contentBlock{{Type: "text", Text: resp.Content}},
		Model:   resp.Model,
		Usage:   usage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens},
	})
}

// Start listens on port until Shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	s.log.Info("proxy listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var body errorBody
	body.Error.Message = msg
	writeJSON(w, status, body)
}
