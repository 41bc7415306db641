package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"vetclinic/internal/audit"
	"vetclinic/internal/person"
	"vetclinic/internal/person/handler"
	personmetrics "vetclinic/internal/person/metrics"
	"vetclinic/internal/person/service"
	"vetclinic/internal/platform/config"
	"vetclinic/internal/platform/httpserver"
	"vetclinic/internal/platform/kafka"
	"vetclinic/internal/platform/logger"
	"vetclinic/internal/platform/metrics"
	"vetclinic/internal/platform/postgres"
	redisclient "vetclinic/internal/platform/redis"
	"vetclinic/internal/platform/tracing"
)

const (
	auditBreakerThreshold = 5
	auditBreakerCooldown  = 30 * time.Second
	auditTopicPartitions  = 1
	auditTopicReplicas    = 1
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.NewProvider(cfg.Tracing, os.Stdout)
	if err != nil {
		return err
	}

	backends, closeBackends, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackends()

	registry, err := person.NewStore(ctx, cfg.Person, backends)
	if err != nil {
		return err
	}
	if err := person.Seed(ctx, registry, cfg.Person, log); err != nil {
		return err
	}

	sink, closeSink, err := buildAuditSink(ctx, cfg.Audit, log)
	if err != nil {
		return err
	}
	defer closeSink()

	auditMetrics := audit.NewMetrics()
	publisher := audit.NewPublisher(cfg.Audit.BufferSize,
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
	)
	worker := audit.NewWorker(sink, publisher.Events(),
		audit.WithWorkerLogger(log),
		audit.WithWorkerMetrics(auditMetrics),
		audit.WithCircuitBreaker(audit.NewCircuitBreaker(auditBreakerThreshold, auditBreakerCooldown)),
	)

	svc := person.NewService(registry,
		service.WithLogger(log),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(personmetrics.New()),
		service.WithTracer(tracer.Tracer()),
	)
	h := person.NewHandler(svc, log, metrics.New(), handler.WithRequestTimeout(cfg.Server.RequestTimeout))

	srv := httpserver.New(cfg.Server.Addr, newRouter(h), cfg.Server.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting vetclinic", "addr", cfg.Server.Addr, "store", cfg.Person.Store, "id_policy", cfg.Person.IDPolicy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// the worker drains what is queued once the publisher closes
		publisher.Close()
		if tErr := tracer.Shutdown(shutdownCtx); tErr != nil {
			log.Warn("tracer shutdown failed", "error", tErr)
		}
		return err
	})
	return g.Wait()
}

func newRouter(h *person.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())
	h.Register(r)
	return r
}

func openBackends(ctx context.Context, cfg *config.Config) (person.Backends, func(), error) {
	var (
		db     *sql.DB
		client *redis.Client
		err    error
	)
	closeAll := func() {
		if db != nil {
			_ = db.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}

	switch cfg.Person.Store {
	case config.StorePostgres:
		db, err = postgres.New(ctx, cfg.Postgres)
	case config.StoreRedis:
		client, err = redisclient.New(ctx, cfg.Redis)
	}
	if err != nil {
		return person.Backends{}, closeAll, err
	}
	return person.Backends{DB: db, Redis: client}, closeAll, nil
}

// buildAuditSink returns a Kafka sink when brokers are configured and an
// in-memory store otherwise.
func buildAuditSink(ctx context.Context, cfg config.AuditConfig, log *slog.Logger) (audit.Sink, func(), error) {
	if len(cfg.Brokers) == 0 {
		log.Info("audit events kept in memory")
		return audit.NewInMemoryStore(), func() {}, nil
	}

	producer, err := kafka.NewProducer(cfg.Brokers)
	if err != nil {
		return nil, nil, err
	}
	if err := producer.EnsureTopic(ctx, cfg.Topic, auditTopicPartitions, auditTopicReplicas); err != nil {
		producer.Close()
		return nil, nil, err
	}
	log.Info("audit events published to kafka", "topic", cfg.Topic, "brokers", cfg.Brokers)
	return audit.NewKafkaSink(producer, cfg.Topic), producer.Close, nil
}
