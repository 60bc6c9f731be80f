package workspace

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/workmate/internal/auth"
)

// RegisterRoutes mounts the projects, tasks, profile and dashboard routes.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", handleListProjects(svc))
			r.Post("/", handleCreateProject(svc))
			r.Get("/{id}", handleGetProject(svc))
			r.Patch("/{id}", handleUpdateProject(svc))
			r.Delete("/{id}", handleDeleteProject(svc))
			r.Get("/{id}/tasks", handleListTasks(svc))
			r.Post("/{id}/tasks", handleCreateTask(svc))
		})
		r.Patch("/api/tasks/{id}", handleUpdateTask(svc))
		r.Delete("/api/tasks/{id}", handleDeleteTask(svc))
		r.Get("/api/profile", handleGetProfile(svc))
		r.Put("/api/profile", handleSaveProfile(svc))
		r.Get("/api/dashboard/stats", handleStats(svc))
	})
}

func handleListProjects(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := svc.Projects(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	}
}

func handleCreateProject(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p Project
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := svc.CreateProject(r.Context(), auth.UserID(r.Context()), p)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleGetProject(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Project(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleUpdateProject(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u ProjectUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		p, err := svc.UpdateProject(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), u)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeleteProject(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteProject(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListTasks(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks, err := svc.Tasks(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func handleCreateTask(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t Task
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := svc.CreateTask(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), t)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleUpdateTask(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u TaskUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		t, err := svc.UpdateTask(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), u)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func handleDeleteTask(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteTask(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetProfile(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Profile(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleSaveProfile(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		saved, err := svc.SaveProfile(r.Context(), auth.UserID(r.Context()), p)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleStats(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.DashboardStats(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
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
