package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vetclinic/internal/person/models"
	"vetclinic/internal/platform/metrics"
	"vetclinic/internal/platform/middleware"
	dErrors "vetclinic/pkg/domain-errors"
	"vetclinic/pkg/platform/httputil"
)

// BasePath is where the person resource is mounted.
const BasePath = "/api/person"

const defaultRequestTimeout = 30 * time.Second

// Service defines the interface for person registry operations.
type Service interface {
	Create(ctx context.Context, id *int64, name string) (*models.Person, error)
	Get(ctx context.Context, id int64) (*models.Person, error)
	Update(ctx context.Context, id int64, name string) (*models.Person, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q models.ListQuery) ([]models.Person, error)
	Health(ctx context.Context) (int, error)
}

// Handler serves the person resource.
type Handler struct {
	logger         *slog.Logger
	person         Service
	metrics        *metrics.Metrics
	requestTimeout time.Duration
}

type Option func(*Handler)

// WithRequestTimeout bounds each request on the person routes.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.requestTimeout = d
		}
	}
}

// New creates a person Handler. metrics may be nil.
func New(person Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:         logger,
		person:         person,
		metrics:        metrics,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the person routes with their middleware chain. Recovery sits
// inside Logger so a panic is logged with its request id and status.
func (h *Handler) Register(r chi.Router) {
	personRouter := chi.NewRouter()
	personRouter.Use(middleware.RequestID)
	personRouter.Use(middleware.ClientMetadata)
	personRouter.Use(middleware.RequestTime)
	personRouter.Use(middleware.Logger(h.logger))
	personRouter.Use(middleware.Recovery(h.logger))
	personRouter.Use(middleware.Timeout(h.requestTimeout))
	personRouter.Use(middleware.ContentTypeJSON)
	personRouter.Use(middleware.LatencyMiddleware(h.metrics))
	personRouter.Post("/", h.handleCreate)
	personRouter.Get("/", h.handleList)
	personRouter.Get("/{id}", h.handleGet)
	personRouter.Put("/{id}", h.handleUpdate)
	personRouter.Delete("/{id}", h.handleDelete)

	r.Mount(BasePath, personRouter)
}

// HandleHealth reports 200 when the store answers and 503 otherwise.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := h.person.Health(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", People: &n})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePersonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	person, err := h.person.Create(ctx, req.ID, req.Name)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	w.Header().Set("Location", BasePath+"/"+strconv.FormatInt(person.ID, 10))
	httputil.WriteJSON(w, http.StatusCreated, person.ID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	person, err := h.person.Get(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPersonResponse(person))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var req UpdatePersonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := req.Validate(id); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	person, err := h.person.Update(ctx, id, req.Name)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person.ID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.person.Delete(ctx, id); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	q, err := models.ParseListQuery(query.Get("size"), query.Get("sort"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	people, err := h.person.List(ctx, q)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPersonResponses(people))
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if de, ok := dErrors.As(err); !ok || de.Code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "person request failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.DebugContext(ctx, "person request rejected",
			"request_id", middleware.GetRequestID(ctx),
			"code", de.Code,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
