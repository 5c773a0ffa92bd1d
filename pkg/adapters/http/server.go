// Package http exposes simulation sessions over a small JSON API. State lives
// in the session manager; the handlers are stateless per request.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lattice-run/lattice/internal/loader"
	"github.com/lattice-run/lattice/internal/logging"
	"github.com/lattice-run/lattice/pkg/domain"
	"github.com/lattice-run/lattice/pkg/session"
)

// Server handles the session API.
type Server struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for the session API.
func NewHandler(sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.create)
		r.Get("/", s.list)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.get)
			r.Delete("/", s.delete)
			r.Post("/step", s.step)
			r.Post("/reset", s.reset)
			r.Get("/events", s.events)
		})
	})
	return r
}

// stepResponse is the JSON shape for anything that advances a session.
type stepResponse struct {
	ID     string               `json:"id,omitempty"`
	Record *domain.StepRecord   `json:"record,omitempty"`
	Status domain.SessionStatus `json:"status,omitempty"`
	Error  string               `json:"error,omitempty"`
}

type stepRequest struct {
	Event   string         `json:"event,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// create starts a new session from a model description. The body is decoded
// as a generic map first so loosely typed editor output survives the trip.
func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	def, err := loader.Decode(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, record, err := s.sessions.Create(r.Context(), def)
	if err != nil && !domain.IsHalting(err) {
		var structural *domain.StructuralError
		if errors.As(err, &structural) {
			writeJSON(w, http.StatusUnprocessableEntity, stepResponse{Error: err.Error()})
			return
		}
		s.logger.Error("session create failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := stepResponse{ID: id, Record: record, Status: domain.StatusRunning}
	if err != nil {
		// Entry actions halted the fresh session; it still exists for
		// inspection, so report the halt rather than failing the request.
		resp.Status = domain.StatusHalted
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.logger.Error("session list failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) step(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req stepRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	var event *domain.Event
	if req.Event != "" {
		event = &domain.Event{Name: req.Event, Payload: req.Payload}
	}

	record, err := s.sessions.Step(r.Context(), id, event)
	if err != nil && record == nil {
		s.writeError(w, err)
		return
	}

	resp := stepResponse{ID: id, Record: record, Status: domain.StatusRunning}
	if err != nil {
		resp.Status = domain.StatusHalted
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := s.sessions.Reset(r.Context(), id)
	if err != nil && record == nil {
		s.writeError(w, err)
		return
	}

	resp := stepResponse{ID: id, Record: record, Status: domain.StatusRunning}
	if err != nil {
		resp.Status = domain.StatusHalted
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	events, err := s.sessions.PossibleEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"events": events})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNotRunning), errors.Is(err, domain.ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("request failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
