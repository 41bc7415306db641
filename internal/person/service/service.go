package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"vetclinic/internal/audit"
	"vetclinic/internal/person/metrics"
	"vetclinic/internal/person/models"
	dErrors "vetclinic/pkg/domain-errors"
	"vetclinic/pkg/platform/sentinel"
	"vetclinic/pkg/requestcontext"
)

// Store is the persistence port. Implementations return sentinel errors.
type Store interface {
	Create(ctx context.Context, draft models.Draft) (*models.Person, error)
	FindByID(ctx context.Context, id int64) (*models.Person, error)
	Update(ctx context.Context, id int64, mutate func(*models.Person) error) (*models.Person, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q models.ListQuery) ([]models.Person, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the person registry use cases and translates store facts into
// coded domain errors.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a person. A nil id asks the store to allocate one.
func (s *Service) Create(ctx context.Context, id *int64, name string) (person *models.Person, err error) {
	ctx, finish := s.begin(ctx, metrics.OpCreate)
	defer func() { finish(err) }()

	draft, err := models.NewDraft(id, name)
	if err != nil {
		return nil, err
	}
	if draft.HasExplicitID() {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("person.id", *draft.ID))
	}

	person, err = s.store.Create(ctx, draft)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, conflict(draft, "already exists")
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, conflict(draft, "was deleted and cannot be reused")
		case errors.Is(err, sentinel.ErrUnavailable):
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "no person ids left to allocate")
		}
		return nil, storeFailure(err, "failed to create person")
	}

	s.metrics.IncrementCreated()
	s.emit(ctx, audit.ActionPersonCreated, person)
	return person, nil
}

// Get fetches one person.
func (s *Service) Get(ctx context.Context, id int64) (person *models.Person, err error) {
	ctx, finish := s.begin(ctx, metrics.OpGet)
	defer func() { finish(err) }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("person.id", id))

	person, err = s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, storeFailure(err, "failed to load person")
	}
	return person, nil
}

// Update renames a person. The id is never changed.
func (s *Service) Update(ctx context.Context, id int64, name string) (person *models.Person, err error) {
	ctx, finish := s.begin(ctx, metrics.OpUpdate)
	defer func() { finish(err) }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("person.id", id))

	normalized, err := models.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	person, err = s.store.Update(ctx, id, func(p *models.Person) error {
		return p.Rename(normalized)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, storeFailure(err, "failed to update person")
	}

	s.emit(ctx, audit.ActionPersonUpdated, person)
	return person, nil
}

// Delete removes a person. Deleting an id that holds no person is a conflict,
// not a not-found.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, finish := s.begin(ctx, metrics.OpDelete)
	defer func() { finish(err) }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("person.id", id))

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("no person with id %d to delete", id))
		}
		return storeFailure(err, "failed to delete person")
	}

	s.metrics.IncrementDeleted()
	s.emit(ctx, audit.ActionPersonDeleted, &models.Person{ID: id})
	return nil
}

// List returns people ordered and truncated per q. The result is never nil.
func (s *Service) List(ctx context.Context, q models.ListQuery) (people []models.Person, err error) {
	ctx, finish := s.begin(ctx, metrics.OpList)
	defer func() { finish(err) }()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("list.limit", q.Limit()),
		attribute.String("list.sort", string(q.Sort)),
	)

	people, err = s.store.List(ctx, q)
	if err != nil {
		return nil, storeFailure(err, "failed to list people")
	}
	if people == nil {
		people = []models.Person{}
	}
	return people, nil
}

// Health pings the store and refreshes the population gauge.
func (s *Service) Health(ctx context.Context) (int, error) {
	if err := s.store.Ping(ctx); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "person store unreachable")
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "person store unreachable")
	}
	s.metrics.SetPopulation(n)
	return n, nil
}

// begin starts a span and returns a func that records the outcome.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "person."+op)
	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			result = string(dErrors.CodeInternal)
			if de, ok := dErrors.As(err); ok {
				result = string(de.Code)
			}
			span.SetStatus(codes.Error, err.Error())
			if result == string(dErrors.CodeInternal) {
				span.RecordError(err)
				s.logger.ErrorContext(ctx, "person operation failed",
					"operation", op,
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
			}
		}
		span.End()
		s.metrics.Observe(op, start, result)
	}
}

// emit publishes an audit event. Failures are logged and never surface.
func (s *Service) emit(ctx context.Context, action audit.Action, p *models.Person) {
	s.logger.InfoContext(ctx, string(action),
		"person_id", p.ID,
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit",
	)
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{Action: action, PersonID: p.ID, Name: p.Name})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event",
			"action", action,
			"person_id", p.ID,
			"error", err,
		)
	}
}

// storeFailure codes an unexpected store error. A store call cut off by the
// request deadline is a timeout, everything else is internal.
func storeFailure(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "person store did not answer in time")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

func notFound(id int64) error {
	return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("person with id %d not found", id))
}

func conflict(draft models.Draft, reason string) error {
	if !draft.HasExplicitID() {
		return dErrors.New(dErrors.CodeConflict, "person "+reason)
	}
	return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("person with id %d %s", *draft.ID, reason))
}
