package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"vetclinic/internal/person/models"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Person   PersonConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Audit    AuditConfig
	Tracing  TracingConfig
	LogLevel string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// PersonConfig selects the registry backend and id policy.
type PersonConfig struct {
	Store    string
	IDPolicy models.IDPolicy
	SeedFile string
}

// PostgresConfig holds connection pool settings for database/sql.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// RedisConfig holds go-redis client settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig configures the audit queue and its sink. Empty Brokers keeps
// audit events in memory.
type AuditConfig struct {
	Brokers    []string
	Topic      string
	BufferSize int
}

// TracingConfig toggles the stdout span exporter.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("VETCLINIC_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	v.SetDefault("PERSON_STORE", StoreMemory)
	v.SetDefault("PERSON_ID_POLICY", string(models.IDPolicyReuse))
	v.SetDefault("PERSON_SEED_FILE", "")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	v.SetDefault("DB_CONNECT_TIMEOUT", 5*time.Second)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)

	v.SetDefault("AUDIT_KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "person-audit")
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "vetclinic")
}

// Load reads configuration from the environment, overlaid on an optional YAML
// file named by VETCLINIC_CONFIG.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := v.GetString("VETCLINIC_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	policy, err := models.ParseIDPolicy(v.GetString("PERSON_ID_POLICY"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: Server{
			Addr:            v.GetString("VETCLINIC_ADDR"),
			RequestTimeout:  v.GetDuration("HTTP_REQUEST_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Person: PersonConfig{
			Store:    strings.ToLower(strings.TrimSpace(v.GetString("PERSON_STORE"))),
			IDPolicy: policy,
			SeedFile: v.GetString("PERSON_SEED_FILE"),
		},
		Postgres: PostgresConfig{
			URL:             v.GetString("DATABASE_URL"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnectTimeout:  v.GetDuration("DB_CONNECT_TIMEOUT"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("REDIS_URL"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Audit: AuditConfig{
			Brokers:    splitList(v.GetString("AUDIT_KAFKA_BROKERS")),
			Topic:      v.GetString("AUDIT_KAFKA_TOPIC"),
			BufferSize: v.GetInt("AUDIT_BUFFER_SIZE"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("TRACING_ENABLED"),
			ServiceName: v.GetString("TRACING_SERVICE_NAME"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Person.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("PERSON_STORE=postgres requires DATABASE_URL"))
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("PERSON_STORE=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PERSON_STORE %q", c.Person.Store))
	}
	if c.Audit.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_BUFFER_SIZE must be positive, got %d", c.Audit.BufferSize))
	}
	if len(c.Audit.Brokers) > 0 && c.Audit.Topic == "" {
		errs = append(errs, errors.New("AUDIT_KAFKA_TOPIC is required when brokers are set"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_REQUEST_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
