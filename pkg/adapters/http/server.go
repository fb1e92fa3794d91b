package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controller is the slice of the SDK the debug server drives.
type Controller interface {
	State() domain.State
	Load(ctx context.Context, experienceID string, published bool) error
	ShowStep(ctx context.Context, ref domain.StepReference) error
	Dismiss(ctx context.Context) error
}

// StateView is the JSON shape of a machine state.
type StateView struct {
	State          string `json:"state"`
	ExperienceID   string `json:"experienceId,omitempty"`
	ExperienceName string `json:"experienceName,omitempty"`
	InstanceID     string `json:"instanceId,omitempty"`
	StepIndex      string `json:"stepIndex,omitempty"`
	StepCount      int    `json:"stepCount,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ViewOf maps a result to its JSON view.
func ViewOf(r domain.Result) StateView {
	if r.Failed() {
		v := StateView{State: "error", Error: r.Err.Error()}
		if exp := r.Experience(); exp != nil {
			v.ExperienceID, v.ExperienceName, v.InstanceID = exp.ID.String(), exp.Name, exp.InstanceID.String()
		}
		return v
	}
	s := r.State
	v := StateView{State: s.Name()}
	if s.Experience != nil {
		v.ExperienceID = s.Experience.ID.String()
		v.ExperienceName = s.Experience.Name
		v.InstanceID = s.Experience.InstanceID.String()
		v.StepCount = s.Experience.StepCount()
	}
	if s.HasStep() {
		v.StepIndex = s.StepIndex.String()
	}
	return v
}

// Server exposes a controller over HTTP for local debugging.
type Server struct {
	controller Controller
	streams    *StreamManager
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithGatherer serves /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server for controller.
func NewServer(controller Controller, opts ...Option) *Server {
	s := &Server{
		controller: controller,
		streams:    NewStreamManager(),
		gatherer:   prometheus.DefaultGatherer,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams.logger = s.logger
	return s
}

// Evaluate broadcasts every result to /events subscribers. It lets the
// server be registered as a persistent state observer.
func (s *Server) Evaluate(r domain.Result) bool {
	data, err := json.Marshal(ViewOf(r))
	if err != nil {
		s.logger.Error("failed to encode state view", "err", err)
		return false
	}
	s.streams.Broadcast(string(data))
	return false
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.getHealth)
	r.Get("/state", s.getState)
	r.Get("/events", s.subscribeEvents)
	r.Post("/experiences/{id}", s.showExperience)
	r.Post("/experiences/{id}/steps/{ref}", s.showStep)
	r.Delete("/experience", s.dismiss)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ViewOf(domain.Success(s.controller.State())))
}

// showExperience loads an experience. ?preview=true loads the draft.
func (s *Server) showExperience(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	preview, _ := strconv.ParseBool(r.URL.Query().Get("preview"))

	if err := s.controller.Load(r.Context(), id, !preview); err != nil {
		s.writeError(w, "show experience", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, ViewOf(domain.Success(s.controller.State())))
}

// showStep navigates the active experience. The id must match it.
func (s *Server) showStep(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ref, err := domain.ParseStepReference(chi.URLParam(r, "ref"))
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid step reference: %v", err), http.StatusBadRequest)
		return
	}

	current := s.controller.State()
	if current.Experience == nil || current.Experience.ID.String() != id {
		http.Error(w, "Experience is not active", http.StatusConflict)
		return
	}

	if err := s.controller.ShowStep(r.Context(), ref); err != nil {
		s.writeError(w, "show step", err)
		return
	}
	s.writeJSON(w, http.StatusOK, ViewOf(domain.Success(s.controller.State())))
}

func (s *Server) dismiss(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Dismiss(r.Context()); err != nil {
		s.writeError(w, "dismiss", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusOf(err error) int {
	var expErr *domain.ExperienceError
	switch {
	case errors.Is(err, domain.ErrExperienceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidExperience):
		return http.StatusUnprocessableEntity
	case errors.As(err, &expErr):
		switch expErr.Kind {
		case domain.ErrorNoTransition, domain.ErrorExperienceAlreadyActive:
			return http.StatusConflict
		default:
			return http.StatusUnprocessableEntity
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
