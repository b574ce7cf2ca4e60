// Package config loads and validates csvlink configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// matching engine, output sinks, and the optional Redis, Kafka and PostgreSQL
// integrations.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
)

// Conflict policies for secondary rows that resolve to an already matched
// primary row.
const (
	ConflictLast = "last"
	ConflictBest = "best"
)

// Output sinks.
const (
	SinkCSV      = "csv"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Matching MatchingConfig `yaml:"matching"`
	Output   OutputConfig   `yaml:"output"`
	Sources  []SourceConfig `yaml:"sources"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MatchingConfig holds the BM25 constants and the match gate. K1 and B are
// fixed once the primary index is configured.
type MatchingConfig struct {
	K1         float64 `yaml:"k1"`
	B          float64 `yaml:"b"`
	MinScore   float64 `yaml:"minScore"`
	MinOverlap int     `yaml:"minOverlap"`
	Workers    int     `yaml:"workers"`
	BatchSize  int     `yaml:"batchSize"`
	Conflict   string  `yaml:"conflict"`
}

// OutputConfig selects where the merged rows are written.
type OutputConfig struct {
	Path        string `yaml:"path"`
	Sink        string `yaml:"sink"`
	Table       string `yaml:"table"`
	AbsentValue string `yaml:"absentValue"`
}

// Output files used when output.path is not set.
const (
	DefaultCSVPath    = "combined.csv"
	DefaultSQLitePath = "combined.db"
)

// FilePath returns the configured output file, or the default for the sink.
func (o OutputConfig) FilePath() string {
	switch {
	case o.Path != "":
		return o.Path
	case o.Sink == SinkSQLite:
		return DefaultSQLitePath
	default:
		return DefaultCSVPath
	}
}

// SourceConfig names one input file and, optionally, its selected fields.
// The first source is the primary dataset.
type SourceConfig struct {
	Path   string        `yaml:"path"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig is a selected column with its weight. A zero weight means 1.
type FieldConfig struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus scrape server and the textfile dump
// written when the run finishes.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     int    `yaml:"port"`
	Textfile string `yaml:"textfile"`
}

// RedisConfig holds Redis connection and match-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds the broker list and topic for link events.
type KafkaConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	BatchSize int      `yaml:"batchSize"`
}

// PostgresConfig holds PostgreSQL connection parameters for the postgres sink.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Callers apply their own overrides and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config matching the behaviour of a plain
// `csvlink a.csv b.csv` invocation.
func Default() *Config {
	return &Config{
		Matching: MatchingConfig{
			K1:         1.2,
			B:          0.75,
			MinScore:   0,
			MinOverlap: 1,
			Workers:    4,
			BatchSize:  256,
			Conflict:   ConflictLast,
		},
		Output: OutputConfig{
			Sink:  SinkCSV,
			Table: "combined",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers:   []string{"localhost:9092"},
			Topic:     "record-links",
			BatchSize: 100,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "csvlink",
			User:            "csvlink",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// Validate rejects settings the matching engine cannot run with.
func (c *Config) Validate() error {
	m := c.Matching
	switch {
	case m.K1 <= 0:
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "matching.k1 must be positive, got %v", m.K1)
	case m.B < 0 || m.B > 1:
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "matching.b must be within [0, 1], got %v", m.B)
	case m.MinScore < 0:
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "matching.minScore must not be negative, got %v", m.MinScore)
	case m.MinOverlap < 1:
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "matching.minOverlap must be at least 1, got %d", m.MinOverlap)
	case m.Workers < 1:
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "matching.workers must be at least 1, got %d", m.Workers)
	case m.BatchSize < 1:
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "matching.batchSize must be at least 1, got %d", m.BatchSize)
	}
	if m.Conflict != ConflictLast && m.Conflict != ConflictBest {
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "matching.conflict must be %q or %q, got %q", ConflictLast, ConflictBest, m.Conflict)
	}
	switch c.Output.Sink {
	case SinkCSV, SinkSQLite, SinkPostgres:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "unknown output.sink %q", c.Output.Sink)
	}
	if c.Output.Sink != SinkCSV && c.Output.Table == "" {
		return apperrors.New(apperrors.ErrInvalidInput, 0, "output.table is required for database sinks")
	}
	for i, src := range c.Sources {
		if src.Path == "" {
			return apperrors.Newf(apperrors.ErrInvalidInput, 0, "sources[%d].path is empty", i)
		}
		for _, f := range src.Fields {
			if f.Weight < 0 {
				return apperrors.Newf(apperrors.ErrInvalidInput, 0, "sources[%d] field %q has negative weight", i, f.Name)
			}
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, 0, "kafka.brokers is empty")
	}
	return nil
}

// applyEnvOverrides reads CSVLINK_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CSVLINK_MATCHING_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.K1 = f
		}
	}
	if v := os.Getenv("CSVLINK_MATCHING_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.B = f
		}
	}
	if v := os.Getenv("CSVLINK_MATCHING_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.MinScore = f
		}
	}
	if v := os.Getenv("CSVLINK_MATCHING_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Matching.Workers = n
		}
	}
	if v := os.Getenv("CSVLINK_OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("CSVLINK_OUTPUT_SINK"); v != "" {
		cfg.Output.Sink = v
	}
	if v := os.Getenv("CSVLINK_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CSVLINK_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CSVLINK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("CSVLINK_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CSVLINK_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("CSVLINK_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CSVLINK_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CSVLINK_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CSVLINK_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CSVLINK_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
}
