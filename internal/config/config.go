// Package config loads the server and CLI configuration: an optional YAML
// file, then environment overrides, then validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// Ledger store kinds.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "STOCKLEDGER_CONFIG"

// Config is the complete process configuration.
type Config struct {
	Env         string            `yaml:"env"` // development | production
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Broadcast   BroadcastConfig   `yaml:"broadcast"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Log         logger.Config     `yaml:"log"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// WriteTimeout bounds one websocket event write; the server itself sets
	// no write deadline so event streams can stay open.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr is the listen address.
func (c HTTPConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// DatabaseConfig selects and configures the ledger store.
type DatabaseConfig struct {
	// Store is "postgres" or "memory". Empty picks postgres when a DSN is set.
	Store            string        `yaml:"store"`
	AutoMigrate      bool          `yaml:"auto_migrate"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	StatsInterval    time.Duration `yaml:"stats_interval"`

	postgres.PoolConfig `yaml:",inline"`
}

// BroadcastConfig configures the event hub.
type BroadcastConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// LedgerConfig configures the engine.
type LedgerConfig struct {
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// IdempotencyConfig configures X-Idempotency-Key handling.
type IdempotencyConfig struct {
	Enabled         bool          `yaml:"enabled"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			WriteTimeout:    10 * time.Second,
		},
		Database: DatabaseConfig{
			StatementTimeout: 15 * time.Second,
			StatsInterval:    time.Minute,
			PoolConfig:       postgres.DefaultPoolConfig(""),
		},
		Broadcast: BroadcastConfig{BufferSize: 64},
		Ledger:    LedgerConfig{OperationTimeout: 30 * time.Second},
		Log:       logger.Config{Level: "info", Service: "stockledger"},
		Idempotency: IdempotencyConfig{
			TTL:             24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
	}
}

// Load reads path (or $STOCKLEDGER_CONFIG when path is empty) over the
// defaults, applies environment overrides and validates the result.
// A missing path means defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	// An empty file leaves the defaults in place.
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("APP_ENV", &c.Env)
	integer("APP_PORT", &c.HTTP.Port)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_ENCODING", &c.Log.Encoding)
	str("DATABASE_URL", &c.Database.DSN)
	str("LEDGER_STORE", &c.Database.Store)
	boolean("AUTO_MIGRATE", &c.Database.AutoMigrate)
	integer("BROADCAST_BUFFER", &c.Broadcast.BufferSize)
	duration("LEDGER_OPERATION_TIMEOUT", &c.Ledger.OperationTimeout)
	boolean("IDEMPOTENCY_ENABLED", &c.Idempotency.Enabled)
	duration("IDEMPOTENCY_TTL", &c.Idempotency.TTL)

	if _, ok := lookup("LOG_DEVELOPMENT"); !ok {
		c.Log.Development = c.IsDevelopment()
	} else {
		boolean("LOG_DEVELOPMENT", &c.Log.Development)
	}

	return errors.Join(errs...)
}

func (c *Config) resolve() {
	c.Database.Store = strings.ToLower(strings.TrimSpace(c.Database.Store))
	if c.Database.Store == "" {
		if c.Database.DSN != "" {
			c.Database.Store = StorePostgres
		} else {
			c.Database.Store = StoreMemory
		}
	}
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development"
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.WriteTimeout <= 0 {
		errs = append(errs, errors.New("http.write_timeout must be positive"))
	}
	switch c.Database.Store {
	case StorePostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn (or DATABASE_URL) is required for the postgres store"))
		}
		if c.Database.MaxConns < 1 {
			errs = append(errs, errors.New("database.max_conns must be at least 1"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("database.store %q: want postgres or memory", c.Database.Store))
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.encoding %q: want json or console", c.Log.Encoding))
	}
	if c.Broadcast.BufferSize < 1 {
		errs = append(errs, errors.New("broadcast.buffer_size must be at least 1"))
	}
	if c.Ledger.OperationTimeout <= 0 {
		errs = append(errs, errors.New("ledger.operation_timeout must be positive"))
	}
	if c.Idempotency.Enabled && c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("idempotency.ttl must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
