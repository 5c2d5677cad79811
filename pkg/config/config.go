// Package config loads the exporter configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tunogya/etna/pkg/feature"
	"github.com/tunogya/etna/pkg/pipeline"
	"github.com/tunogya/etna/pkg/sink"
	"github.com/tunogya/etna/pkg/store"
	"github.com/tunogya/etna/pkg/store/milvus"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Backend kinds
const (
	BackendDuckDB     = "duckdb"
	BackendClickHouse = "clickhouse"
	BackendMilvus     = "milvus"
	BackendMemory     = "memory"
)

// Source kinds
const (
	SourceCSV  = "csv"
	SourceNATS = "nats"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ETNA_"

// Config is the full exporter configuration
type Config struct {
	Features    Features    `yaml:"features"`
	Session     Session     `yaml:"session"`
	Persistence Persistence `yaml:"persistence"`
	Source      Source      `yaml:"source"`
	Log         Log         `yaml:"log"`
	Metrics     Metrics     `yaml:"metrics"`
}

// Features configures the feature engine
type Features struct {
	RequiredBars int  `yaml:"requiredBars"`
	PrintRows    bool `yaml:"printRows"`
}

// Session restricts processing to a time-of-day window
type Session struct {
	Enabled bool   `yaml:"enabled"`
	Start   string `yaml:"start"` // HHMMSS
	End     string `yaml:"end"`   // HHMMSS
}

// Persistence selects the storage backend and its flush and commit cadence
type Persistence struct {
	Enabled                bool          `yaml:"enablePersistence"`
	Backend                string        `yaml:"backend"`
	Path                   string        `yaml:"path"` // duckdb file
	DSN                    string        `yaml:"dsn"`  // clickhouse
	Milvus                 milvus.Config `yaml:"milvus"`
	TableName              string        `yaml:"tableName"`
	UseCompactFloat        bool          `yaml:"useCompactFloat"`
	FlushSize              int           `yaml:"flushSize"`
	FlushIntervalSeconds   int           `yaml:"flushIntervalSeconds"`
	FlushCheckSampling     bool          `yaml:"flushCheckSampling"`
	CommitEveryRows        int64         `yaml:"commitEveryRows"`
	MaxTxDurationSeconds   int           `yaml:"maxTxDurationSeconds"`
	IdleTailCommitSeconds  int           `yaml:"idleTailCommitSeconds"`
	CheckpointEveryCommits int           `yaml:"checkpointEveryCommits"`
}

// Source selects where bars come from
type Source struct {
	Kind        string `yaml:"kind"`
	CSVPath     string `yaml:"csvPath"`
	Location    string `yaml:"location"` // time zone for epoch timestamps
	NATSURL     string `yaml:"natsURL"`
	Stream      string `yaml:"stream"`
	Consumer    string `yaml:"consumer"`
	FastPeriod  int    `yaml:"fastPeriod"`
	SlowPeriod  int    `yaml:"slowPeriod"`
	IdleSeconds int    `yaml:"idleSeconds"`
}

// Log configures the process logger
type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Metrics configures the Prometheus endpoint
type Metrics struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Features: Features{RequiredBars: 20},
		Session:  Session{Start: "090000", End: "155500"},
		Persistence: Persistence{
			Enabled:                true,
			Backend:                BackendDuckDB,
			Path:                   "data/features.duckdb",
			Milvus:                 milvus.DefaultConfig(),
			TableName:              store.DefaultTable,
			UseCompactFloat:        true,
			FlushSize:              50000,
			FlushIntervalSeconds:   60,
			CommitEveryRows:        10000,
			MaxTxDurationSeconds:   30,
			IdleTailCommitSeconds:  15,
			CheckpointEveryCommits: 10,
		},
		Source: Source{
			Kind:        SourceCSV,
			CSVPath:     "data/bars.csv",
			Location:    "UTC",
			NATSURL:     "nats://localhost:4222",
			Stream:      "etna",
			Consumer:    "feature-exporter",
			FastPeriod:  9,
			SlowPeriod:  21,
			IdleSeconds: 5,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path (if not empty) over the defaults, applies environment
// overrides and validates the result
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Features.RequiredBars = getIntOrDefault("REQUIRED_BARS", cfg.Features.RequiredBars)
	cfg.Features.PrintRows = getBoolOrDefault("PRINT_ROWS", cfg.Features.PrintRows)

	cfg.Session.Enabled = getBoolOrDefault("SESSION_ENABLED", cfg.Session.Enabled)
	cfg.Session.Start = getEnvOrDefault("SESSION_START", cfg.Session.Start)
	cfg.Session.End = getEnvOrDefault("SESSION_END", cfg.Session.End)

	p := &cfg.Persistence
	p.Enabled = getBoolOrDefault("ENABLE_PERSISTENCE", p.Enabled)
	p.Backend = getEnvOrDefault("BACKEND", p.Backend)
	p.Path = getEnvOrDefault("DUCKDB_PATH", p.Path)
	p.DSN = getEnvOrDefault("CLICKHOUSE_DSN", p.DSN)
	p.Milvus.Address = getEnvOrDefault("MILVUS_ADDRESS", p.Milvus.Address)
	p.Milvus.Username = getEnvOrDefault("MILVUS_USERNAME", p.Milvus.Username)
	p.Milvus.Password = getEnvOrDefault("MILVUS_PASSWORD", p.Milvus.Password)
	p.TableName = getEnvOrDefault("TABLE_NAME", p.TableName)
	p.UseCompactFloat = getBoolOrDefault("USE_COMPACT_FLOAT", p.UseCompactFloat)
	p.FlushSize = getIntOrDefault("FLUSH_SIZE", p.FlushSize)
	p.FlushIntervalSeconds = getIntOrDefault("FLUSH_INTERVAL_SECONDS", p.FlushIntervalSeconds)
	p.FlushCheckSampling = getBoolOrDefault("FLUSH_CHECK_SAMPLING", p.FlushCheckSampling)
	p.CommitEveryRows = int64(getIntOrDefault("COMMIT_EVERY_ROWS", int(p.CommitEveryRows)))
	p.MaxTxDurationSeconds = getIntOrDefault("MAX_TX_DURATION_SECONDS", p.MaxTxDurationSeconds)
	p.IdleTailCommitSeconds = getIntOrDefault("IDLE_TAIL_COMMIT_SECONDS", p.IdleTailCommitSeconds)
	p.CheckpointEveryCommits = getIntOrDefault("CHECKPOINT_EVERY_COMMITS", p.CheckpointEveryCommits)

	s := &cfg.Source
	s.Kind = getEnvOrDefault("SOURCE", s.Kind)
	s.CSVPath = getEnvOrDefault("CSV_PATH", s.CSVPath)
	s.NATSURL = getEnvOrDefault("NATS_URL", s.NATSURL)

	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = getBoolOrDefault("LOG_PRETTY", cfg.Log.Pretty)
	cfg.Metrics.Addr = getEnvOrDefault("METRICS_ADDR", cfg.Metrics.Addr)
}

// Validate checks every section and joins all problems
func (c Config) Validate() error {
	var problems []string

	if c.Features.RequiredBars < 1 {
		problems = append(problems, "features.requiredBars must be at least 1")
	}

	if c.Session.Enabled {
		if _, err := pipeline.NewSessionFilter(c.Session.Start, c.Session.End); err != nil {
			problems = append(problems, fmt.Sprintf("session: %v", err))
		}
	}

	p := c.Persistence
	if p.Enabled {
		switch p.Backend {
		case BackendDuckDB:
			if p.Path == "" {
				problems = append(problems, "persistence.path is required for duckdb")
			}
		case BackendClickHouse:
			if p.DSN == "" {
				problems = append(problems, "persistence.dsn is required for clickhouse")
			}
		case BackendMilvus:
			if p.Milvus.Address == "" {
				problems = append(problems, "persistence.milvus.address is required for milvus")
			}
		case BackendMemory:
		default:
			problems = append(problems, fmt.Sprintf("unknown persistence.backend %q", p.Backend))
		}
		if p.TableName == "" {
			problems = append(problems, "persistence.tableName is required")
		}
		if p.FlushSize < 1 {
			problems = append(problems, "persistence.flushSize must be at least 1")
		}
		if p.FlushIntervalSeconds < 0 || p.CommitEveryRows < 0 || p.MaxTxDurationSeconds < 0 ||
			p.IdleTailCommitSeconds < 0 || p.CheckpointEveryCommits < 0 {
			problems = append(problems, "persistence intervals and thresholds must not be negative")
		}
	}

	switch c.Source.Kind {
	case SourceCSV:
		if c.Source.CSVPath == "" {
			problems = append(problems, "source.csvPath is required for csv")
		}
		if _, err := time.LoadLocation(c.Source.Location); err != nil {
			problems = append(problems, fmt.Sprintf("source.location: %v", err))
		}
	case SourceNATS:
		if c.Source.NATSURL == "" {
			problems = append(problems, "source.natsURL is required for nats")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown source.kind %q", c.Source.Kind))
	}
	if c.Source.FastPeriod < 1 || c.Source.SlowPeriod < 1 {
		problems = append(problems, "source average periods must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// FeatureConfig returns the engine configuration
func (c Config) FeatureConfig() feature.Config {
	return feature.Config{RequiredBars: c.Features.RequiredBars, Tolerance: feature.DefaultTolerance}
}

// SessionFilter returns the session filter, disabled unless configured
func (c Config) SessionFilter() (pipeline.SessionFilter, error) {
	if !c.Session.Enabled {
		return pipeline.SessionFilter{}, nil
	}
	return pipeline.NewSessionFilter(c.Session.Start, c.Session.End)
}

// WriterConfig returns the writer configuration
func (c Config) WriterConfig() store.WriterConfig {
	p := c.Persistence
	return store.WriterConfig{
		Table:                  p.TableName,
		CompactFloat:           p.UseCompactFloat,
		CommitEveryRows:        p.CommitEveryRows,
		MaxTxDuration:          seconds(p.MaxTxDurationSeconds),
		IdleTailCommit:         seconds(p.IdleTailCommitSeconds),
		CheckpointEveryCommits: p.CheckpointEveryCommits,
	}
}

// ControllerConfig returns the flush controller configuration
func (c Config) ControllerConfig() sink.ControllerConfig {
	p := c.Persistence
	return sink.ControllerConfig{
		FlushSize:          p.FlushSize,
		FlushInterval:      seconds(p.FlushIntervalSeconds),
		FlushCheckSampling: p.FlushCheckSampling,
	}
}

// IdleInterval is how often the exporter polls the sink on a quiet stream
func (c Config) IdleInterval() time.Duration {
	if c.Source.IdleSeconds < 1 {
		return time.Second
	}
	return seconds(c.Source.IdleSeconds)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
