package preload

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/workmate/internal/auth"
)

type trackRequest struct {
	Route     string `json:"route"`
	ProjectID string `json:"project_id"`
}

// RegisterRoutes mounts the usage tracking endpoints.
func RegisterRoutes(r chi.Router, p *Preloader) {
	r.Route("/api/usage", func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/track", handleTrack(p))
		r.Get("/trace", handleTrace(p))
	})
}

func handleTrack(p *Preloader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Route = strings.TrimSpace(req.Route)
		if req.Route == "" {
			writeError(w, http.StatusBadRequest, "route is required")
			return
		}
		p.TrackInBackground(r.Context(), auth.UserID(r.Context()), req.Route, req.ProjectID)
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleTrace(p *Preloader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tr, _ := p.Trace(auth.UserID(r.Context()))
		writeJSON(w, http.StatusOK, tr)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
