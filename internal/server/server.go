// Package server is the reference backend: a sqlite-backed project store
// exposed over REST plus a one-way SSE push stream mirroring every write.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/push"
)

// Server wires the store, the push broker and the HTTP handlers together.
type Server struct {
	store  *Store
	broker *Broker
	logger *slog.Logger
}

// New creates a Server over the given store.
func New(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		store:  store,
		broker: NewBroker(logger),
		logger: logger,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stream", s.handleStream)

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Post("/bulk", s.handleBulk)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Patch("/", s.handleUpdate)
			r.Put("/", s.handleUpdate)
			r.Delete("/", s.handleDelete)
			r.Post("/recover", s.handleRecover)
			r.Get("/milestones", s.handleMilestones)
			r.Get("/team", s.handleTeam)
			r.Get("/events", s.handleEvents)
		})
	})
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.logger.Error("encoding response", "error", err)
		}
	}
}

// writeError maps domain errors onto the `{"detail": ...}` body contract.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Project not found"})
	case errors.Is(err, project.ErrNotRecoverable):
		s.writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Project not recoverable"})
	case errors.Is(err, project.ErrVersionMismatch):
		s.writeJSON(w, http.StatusPreconditionFailed, map[string]any{"detail": err.Error()})
	case errors.Is(err, project.ErrInvalidInput):
		// Validation failures carry the list-shaped detail body.
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"msg": err.Error()}},
		})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "internal error"})
	}
}

func projectID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, project.ErrNotFound
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.broker.Count(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := project.ParseListKey(r.URL.RawQuery)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", project.ErrInvalidInput, err))
		return
	}
	result, err := s.store.ListProjects(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.store.GetProject(r.Context(), id, r.URL.Query().Get("include_deleted") == "true")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft project.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed body", project.ErrInvalidInput))
		return
	}
	p, err := s.store.CreateProject(r.Context(), draft)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
	s.broker.Publish(push.Message{Type: push.TypeProjectCreated, ID: p.ID})
	s.publishLatestEvent(r.Context(), p.ID)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed body", project.ErrInvalidInput))
		return
	}

	var expected *int64
	if etag := r.Header.Get("If-Match"); etag != "" {
		v, err := strconv.ParseInt(etag, 10, 64)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: malformed If-Match", project.ErrInvalidInput))
			return
		}
		expected = &v
	}

	p, changed, err := s.store.UpdateProject(r.Context(), id, patch, expected)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(p.Version, 10))
	s.writeJSON(w, http.StatusOK, p)

	if len(changed) == 0 {
		return
	}
	fields := map[string]any{"version": p.Version, "last_updated": p.LastUpdated.Format(time.RFC3339)}
	for _, f := range changed {
		switch f {
		case "title":
			fields["title"] = p.Title
		case "description":
			fields["description"] = p.Description
		case "owner":
			fields["owner"] = p.Owner
		case "status":
			fields["status"] = string(p.Status)
		case "health":
			fields["health"] = string(p.Health)
		case "progress":
			fields["progress"] = p.Progress
		case "tags":
			fields["tags"] = p.Tags
		}
	}
	s.broker.Publish(push.Message{Type: push.TypeProjectUpdated, ID: id, Changed: changed, Patch: fields})
	s.publishLatestEvent(r.Context(), id)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.SoftDeleteProject(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	s.broker.Publish(push.Message{Type: push.TypeProjectDeleted, ID: id})
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.store.RecoverProject(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
	s.broker.Publish(push.Message{Type: push.TypeProjectRecovered, ID: id})
	s.publishLatestEvent(r.Context(), id)
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req project.BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed body", project.ErrInvalidInput))
		return
	}
	resp, patches, err := s.store.BulkUpdate(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
	for id, patch := range patches {
		s.broker.Publish(push.Message{Type: push.TypeProjectUpdated, ID: id, Patch: patch})
	}
}

func (s *Server) handleMilestones(w http.ResponseWriter, r *http.Request) {
	s.handleSubresource(w, r, func(ctx context.Context, id int64) (any, error) {
		return s.store.Milestones(ctx, id)
	})
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	s.handleSubresource(w, r, func(ctx context.Context, id int64) (any, error) {
		return s.store.Team(ctx, id)
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.handleSubresource(w, r, func(ctx context.Context, id int64) (any, error) {
		return s.store.Events(ctx, id)
	})
}

func (s *Server) handleSubresource(w http.ResponseWriter, r *http.Request, load func(context.Context, int64) (any, error)) {
	id, err := projectID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Subresources of soft-deleted projects remain readable.
	if _, err := s.store.GetProject(r.Context(), id, true); err != nil {
		s.writeError(w, err)
		return
	}
	body, err := load(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

// handleStream serves the SSE push feed. Each payload goes out as one
// `data:` frame; a comment line is sent first so proxies flush headers.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	msgs, cancel := s.broker.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-msgs:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// publishLatestEvent broadcasts the newest timeline entry written by the
// preceding mutation.
func (s *Server) publishLatestEvent(ctx context.Context, projectID int64) {
	e, err := s.store.LatestEvent(ctx, projectID)
	if err != nil {
		return
	}
	s.broker.Publish(push.Message{Type: push.TypeEventCreated, ProjectID: projectID, Event: &e})
}
