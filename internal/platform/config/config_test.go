package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetclinic/internal/person/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, StoreMemory, cfg.Person.Store)
	assert.Equal(t, models.IDPolicyReuse, cfg.Person.IDPolicy)
	assert.Equal(t, "person-audit", cfg.Audit.Topic)
	assert.Equal(t, 256, cfg.Audit.BufferSize)
	assert.Empty(t, cfg.Audit.Brokers)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VETCLINIC_ADDR", ":9090")
	t.Setenv("PERSON_STORE", "Postgres")
	t.Setenv("PERSON_ID_POLICY", "retire")
	t.Setenv("DATABASE_URL", "postgres://localhost/vetclinic")
	t.Setenv("AUDIT_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("HTTP_REQUEST_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, StorePostgres, cfg.Person.Store)
	assert.Equal(t, models.IDPolicyRetire, cfg.Person.IDPolicy)
	assert.Equal(t, "postgres://localhost/vetclinic", cfg.Postgres.URL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vetclinic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("PERSON_STORE: redis\nREDIS_URL: redis://localhost:6379/0\nLOG_LEVEL: debug\n"), 0o600))
	t.Setenv("VETCLINIC_CONFIG", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Person.Store)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "warn", cfg.LogLevel, "environment wins over file")
}

func TestLoadRejectsInvalidCombinations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown store", map[string]string{"PERSON_STORE": "mongo"}, `unknown PERSON_STORE "mongo"`},
		{"unknown policy", map[string]string{"PERSON_ID_POLICY": "sometimes"}, "sometimes"},
		{"postgres without url", map[string]string{"PERSON_STORE": "postgres"}, "requires DATABASE_URL"},
		{"redis without url", map[string]string{"PERSON_STORE": "redis"}, "requires REDIS_URL"},
		{"empty audit buffer", map[string]string{"AUDIT_BUFFER_SIZE": "0"}, "AUDIT_BUFFER_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("VETCLINIC_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
