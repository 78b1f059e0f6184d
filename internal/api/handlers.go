// Package api exposes HTTP handlers for the garden streak service.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/logging"
	"github.com/scottdixon-github/App-Garden/internal/persistence"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithStreamHandler mounts the websocket endpoint that streams snapshots.
func WithStreamHandler(fn http.HandlerFunc) Option {
	return func(h *Handler) {
		h.stream = fn
	}
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	service *domain.Service
	garden  *domain.GardenService
	stream  http.HandlerFunc
	logger  *zap.Logger
}

// NewHandler builds a Handler. garden may be nil when only the session API is served.
func NewHandler(service *domain.Service, garden *domain.GardenService, opts ...Option) *Handler {
	h := &Handler{service: service, garden: garden, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.recordSession)
		r.Get("/", h.listSessions)
		r.Get("/{id}", h.getSession)
		r.Patch("/{id}", h.updateSession)
		r.Delete("/{id}", h.deleteSession)
	})

	r.Route("/v1/streak", func(r chi.Router) {
		r.Get("/", h.streak)
		r.Post("/evaluate", h.evaluate)
		if h.stream != nil {
			r.Get("/ws", h.stream)
		}
	})

	if h.garden != nil {
		h.gardenRoutes(r)
	}
	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// fail maps err to a response and logs server errors.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context(), h.logger).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}

func (h *Handler) recordSession(w http.ResponseWriter, r *http.Request) {
	var req RecordSessionRequest
	if !bind(w, r, &req) {
		return
	}

	session, snap, err := h.service.RecordSession(r.Context(), domain.RecordSessionInput{
		Title:    req.Title,
		Duration: req.Duration,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordSessionResponse{Session: session.Raw(), Snapshot: snap})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	sessions, next, err := h.service.ListSessions(r.Context(), cursor, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items := make([]domain.RawSession, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, s.Raw())
	}
	writeJSON(w, http.StatusOK, ListSessionsResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Raw())
}

func (h *Handler) updateSession(w http.ResponseWriter, r *http.Request) {
	var req UpdateSessionRequest
	if !bind(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	current, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	input := domain.UpdateSessionInput{ID: id, Title: current.Title, Duration: current.Duration}
	if req.Title != nil {
		input.Title = *req.Title
	}
	if req.Duration != nil {
		input.Duration = *req.Duration
	}

	session, err := h.service.UpdateSession(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Raw())
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) streak(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// evaluate runs the streak engine over caller supplied records without touching storage.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !bind(w, r, &req) {
		return
	}

	now := h.service.Now()
	if req.Now != nil {
		now = *req.Now
	}

	snap, err := domain.ComputeSnapshotFromRaw(req.Records, now)
	if err != nil {
		var invalid *domain.InvalidRecordError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusUnprocessableEntity, InvalidRecordResponse{
				Type:     "invalid_record",
				Detail:   invalid.Error(),
				RecordID: invalid.ID,
			})
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RecordSessionRequest is the payload for POST /v1/sessions.
type RecordSessionRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Duration string `json:"duration" validate:"max=50"`
}

// RecordSessionResponse returns the stored session with the recomputed snapshot.
type RecordSessionResponse struct {
	Session  domain.RawSession `json:"session"`
	Snapshot domain.Snapshot   `json:"snapshot"`
}

// UpdateSessionRequest is the payload for PATCH /v1/sessions/{id}; omitted fields are kept.
type UpdateSessionRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Duration *string `json:"duration" validate:"omitempty,max=50"`
}

// ListSessionsResponse packages list results.
type ListSessionsResponse struct {
	Items      []domain.RawSession `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// EvaluateRequest is the payload for POST /v1/streak/evaluate. Now defaults to the
// server clock; its UTC offset decides where calendar days are cut.
type EvaluateRequest struct {
	Records []domain.RawSession `json:"records" validate:"max=10000"`
	Now     *time.Time          `json:"now"`
}

// InvalidRecordResponse is returned with 422 when a record cannot be parsed.
type InvalidRecordResponse struct {
	Type     string `json:"type"`
	Detail   string `json:"detail"`
	RecordID string `json:"record_id"`
}
