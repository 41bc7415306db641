package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"vetclinic/pkg/requestcontext"
)

// ErrQueueFull is returned by Emit when the event was dropped.
var ErrQueueFull = errors.New("audit queue full")

// ErrPublisherClosed is returned by Emit after Close.
var ErrPublisherClosed = errors.New("audit publisher closed")

// Publisher queues events for the Worker. Emit never blocks: when the queue
// is full the event is dropped and counted.
type Publisher struct {
	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// NewPublisher creates a publisher with a queue of bufferSize events.
func NewPublisher(bufferSize int, opts ...Option) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	p := &Publisher{queue: make(chan Event, bufferSize)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit stamps the event with an id, time and request metadata from ctx, then
// enqueues it.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- event:
		p.metrics.incEmitted()
		return nil
	default:
		p.metrics.incDropped(dropReasonQueueFull)
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit queue full, dropping event",
				"action", event.Action,
				"person_id", event.PersonID,
			)
		}
		return ErrQueueFull
	}
}

// Events is the channel the Worker drains. It is closed by Close.
func (p *Publisher) Events() <-chan Event {
	return p.queue
}

// Close stops accepting events. Queued events stay readable.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.queue)
}
