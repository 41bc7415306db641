package person_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetclinic/internal/person"
	"vetclinic/internal/person/models"
	"vetclinic/internal/person/store"
	"vetclinic/internal/platform/config"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory by default", func(t *testing.T) {
		registry, err := person.NewStore(ctx, config.PersonConfig{}, person.Backends{})
		require.NoError(t, err)
		assert.IsType(t, &store.InMemory{}, registry)
	})

	t.Run("postgres without a connection", func(t *testing.T) {
		_, err := person.NewStore(ctx, config.PersonConfig{Store: config.StorePostgres}, person.Backends{})
		require.Error(t, err)
	})

	t.Run("redis without a client", func(t *testing.T) {
		_, err := person.NewStore(ctx, config.PersonConfig{Store: config.StoreRedis}, person.Backends{})
		require.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := person.NewStore(ctx, config.PersonConfig{Store: "cassandra"}, person.Backends{})
		require.ErrorContains(t, err, "cassandra")
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := person.NewStore(ctx, config.PersonConfig{IDPolicy: models.IDPolicyRetire}, person.Backends{})
	require.NoError(t, err)

	t.Run("no file configured", func(t *testing.T) {
		require.NoError(t, person.Seed(ctx, registry, config.PersonConfig{}, logger))
		n, err := registry.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("fixtures from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "people.yaml")
		require.NoError(t, os.WriteFile(path, []byte("people:\n  - id: 2\n    name: Michael\n  - id: 5\n    name: John\n"), 0o600))

		require.NoError(t, person.Seed(ctx, registry, config.PersonConfig{SeedFile: path}, logger))

		got, err := registry.FindByID(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, "John", got.Name)
	})

	t.Run("shipped fixtures", func(t *testing.T) {
		fresh, err := person.NewStore(ctx, config.PersonConfig{}, person.Backends{})
		require.NoError(t, err)

		cfg := config.PersonConfig{SeedFile: filepath.Join("..", "..", "fixtures", "people.yaml")}
		require.NoError(t, person.Seed(ctx, fresh, cfg, logger))

		michael, err := fresh.FindByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "Michael", michael.Name)
		_, err = fresh.FindByID(ctx, 5)
		require.NoError(t, err)
	})
}
