// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	custom_errors "github.com/kylediaz/github-chat/internal/errors"
	"github.com/kylediaz/github-chat/internal/model"
	"github.com/kylediaz/github-chat/internal/syncer"
)

// StatusService is the aggregator surface the API exposes.
type StatusService interface {
	Status(ctx context.Context, id syncer.RepoIdentifier, force bool) (*model.RepoStatus, error)
	Snapshot(ctx context.Context, id syncer.RepoIdentifier) (*model.IndexSnapshot, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	svc    StatusService
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(svc StatusService, logger *slog.Logger) http.Handler {
	h := &Handler{
		svc:    svc,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/repos/{owner}/{name}/status", h.getStatus)
		r.Get("/repos/{owner}/{name}/snapshot", h.getSnapshot)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus reports everything known about a repository, triggering the
// refreshes the answer shows to be due.
// GET /v1/repos/{owner}/{name}/status?force=true
func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, err := syncer.NewRepoIdentifier(chi.URLParam(r, "owner"), chi.URLParam(r, "name"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		force, err = strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'force' parameter. Must be a boolean.")
			return
		}
	}

	status, err := h.svc.Status(r.Context(), id, force)
	if err != nil {
		h.logger.Error("Failed to compute repository status", "owner", id.Owner, "repo", id.Name, "error", err)
		respondWithError(w, http.StatusBadGateway, "Failed to refresh repository")
		return
	}

	// A confirmed-missing repository is still a well-formed answer; the
	// status code just tells the UI not to keep polling.
	if status.Availability == model.AvailabilityNotFound {
		respondWithJSON(w, http.StatusNotFound, status)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// getSnapshot returns the collection name and ref of the most recent fully
// indexed snapshot, for aiming retrieval.
// GET /v1/repos/{owner}/{name}/snapshot
func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := syncer.NewRepoIdentifier(chi.URLParam(r, "owner"), chi.URLParam(r, "name"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.svc.Snapshot(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, custom_errors.ErrIncompleteSync):
			respondWithError(w, http.StatusConflict, "Repository is not fully indexed yet")
		case errors.Is(err, custom_errors.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Repository not found")
		default:
			h.logger.Error("Failed to load index snapshot", "owner", id.Owner, "repo", id.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, snap)
}
