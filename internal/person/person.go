package person

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"vetclinic/internal/person/handler"
	"vetclinic/internal/person/models"
	"vetclinic/internal/person/service"
	"vetclinic/internal/person/store"
	"vetclinic/internal/platform/config"
	"vetclinic/internal/platform/metrics"
)

// Service exposes person registry operations.
type Service = service.Service

// Handler wires HTTP endpoints to the person service.
type Handler = handler.Handler

// Backends holds the connections a configured store may need. Unused ones stay nil.
type Backends struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Registry is the storage surface the service and seeding share.
type Registry interface {
	service.Store
	store.Seeder
}

// NewStore selects the backing store named in cfg.Store.
func NewStore(ctx context.Context, cfg config.PersonConfig, backends Backends) (Registry, error) {
	policy := cfg.IDPolicy
	if policy == "" {
		policy = models.IDPolicyReuse
	}

	switch cfg.Store {
	case "", config.StoreMemory:
		return store.NewInMemory(policy), nil
	case config.StorePostgres:
		if backends.DB == nil {
			return nil, fmt.Errorf("person store %q requires a database connection", cfg.Store)
		}
		pg := store.NewPostgres(backends.DB, policy)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	case config.StoreRedis:
		if backends.Redis == nil {
			return nil, fmt.Errorf("person store %q requires a redis client", cfg.Store)
		}
		return store.NewRedis(backends.Redis, policy), nil
	default:
		return nil, fmt.Errorf("unknown person store %q", cfg.Store)
	}
}

// Seed loads fixtures from cfg.SeedFile when one is configured.
func Seed(ctx context.Context, registry Registry, cfg config.PersonConfig, logger *slog.Logger) error {
	if cfg.SeedFile == "" {
		return nil
	}
	n, err := store.SeedFromFile(ctx, registry, cfg.SeedFile)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "person fixtures loaded", "count", n, "file", cfg.SeedFile)
	return nil
}

// NewService constructs the person service.
func NewService(registry service.Store, opts ...service.Option) *Service {
	return service.New(registry, opts...)
}

// NewHandler constructs the HTTP handler for /api/person routes.
func NewHandler(s *Service, logger *slog.Logger, m *metrics.Metrics, opts ...handler.Option) *Handler {
	return handler.New(s, logger, m, opts...)
}
