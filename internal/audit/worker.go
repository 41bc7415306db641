package audit

import (
	"context"
	"log/slog"
	"time"
)

const defaultAppendTimeout = 5 * time.Second

// Worker drains a Publisher into a Sink. Sink failures are logged and the
// event is dropped; the worker itself never stops on them.
type Worker struct {
	sink          Sink
	inbox         <-chan Event
	breaker       *CircuitBreaker
	logger        *slog.Logger
	metrics       *Metrics
	appendTimeout time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithWorkerMetrics(m *Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) WorkerOption {
	return func(w *Worker) {
		w.breaker = cb
	}
}

func NewWorker(sink Sink, inbox <-chan Event, opts ...WorkerOption) *Worker {
	w := &Worker{
		sink:          sink,
		inbox:         inbox,
		breaker:       NewCircuitBreaker(5, 30*time.Second),
		logger:        slog.Default(),
		appendTimeout: defaultAppendTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes until the inbox is closed. Cancelling ctx does not abandon
// queued events; each append gets its own timeout detached from ctx.
func (w *Worker) Run(ctx context.Context) error {
	base := context.WithoutCancel(ctx)
	for event := range w.inbox {
		w.handle(base, event)
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, event Event) {
	if !w.breaker.Allow() {
		w.metrics.incDropped(dropReasonCircuitOpen)
		return
	}

	appendCtx, cancel := context.WithTimeout(ctx, w.appendTimeout)
	defer cancel()
	if err := w.sink.Append(appendCtx, event); err != nil {
		w.breaker.RecordFailure()
		w.metrics.incDropped(dropReasonSinkFailure)
		w.logger.WarnContext(ctx, "audit sink append failed",
			"event_id", event.ID,
			"action", event.Action,
			"person_id", event.PersonID,
			"circuit_open", w.breaker.IsOpen(),
			"error", err,
		)
		return
	}
	w.breaker.RecordSuccess()
	w.metrics.incPersisted()
}
