// Package config defines the molsearch configuration structures and their
// validation.  Loading lives in loader.go, defaults in defaults.go.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SearchConfig tunes the screening/verification pipeline.
type SearchConfig struct {
	// Workers is the default worker count per query.
	Workers int `mapstructure:"workers"`
	// BufferThreshold is the result count that opens the readiness gate.
	BufferThreshold int `mapstructure:"buffer_threshold"`
	// MaxResults is the default soft cap; 0 means unlimited.
	MaxResults int `mapstructure:"max_results"`
	// MatchTimeout bounds one candidate verification; 0 means unbounded.
	MatchTimeout time.Duration `mapstructure:"match_timeout"`
	// GraphCacheSize is the number of decoded graphs kept across queries.
	GraphCacheSize int `mapstructure:"graph_cache_size"`
}

// FingerprintConfig configures the path fingerprint generator.
type FingerprintConfig struct {
	Bits          int `mapstructure:"bits"`
	MaxPathLength int `mapstructure:"max_path_length"`
}

// CodebookConfig configures the screening ensemble.
type CodebookConfig struct {
	Count              int    `mapstructure:"count"`
	Seed               int64  `mapstructure:"seed"`
	RecountParallelism int    `mapstructure:"recount_parallelism"`
	Repository         string `mapstructure:"repository"` // memory | redis | minio
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // memory | bleve | opensearch
	Path    string `mapstructure:"path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// MinIOConfig holds S3-compatible object storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	ObjectKey string `mapstructure:"object_key"`
}

// OpenSearchConfig holds OpenSearch cluster connection parameters.
type OpenSearchConfig struct {
	Addresses          []string      `mapstructure:"addresses"`
	User               string        `mapstructure:"user"`
	Password           string        `mapstructure:"password"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Index              string        `mapstructure:"index"`
	ScrollSize         int           `mapstructure:"scroll_size"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds index-event producer/consumer parameters.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// MetricsConfig controls the prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         logging.LogConfig `mapstructure:"log"`
	Search      SearchConfig      `mapstructure:"search"`
	Fingerprint FingerprintConfig `mapstructure:"fingerprint"`
	Codebook    CodebookConfig    `mapstructure:"codebook"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	OpenSearch  OpenSearchConfig  `mapstructure:"opensearch"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// Validate performs semantic validation of a fully populated Config and
// returns the first problem found.  Backend sections are only checked when
// selected.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}

	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Search.Workers < 1 {
		return fmt.Errorf("config: search.workers must be >= 1, got %d", c.Search.Workers)
	}
	if c.Search.BufferThreshold < 1 {
		return fmt.Errorf("config: search.buffer_threshold must be >= 1, got %d", c.Search.BufferThreshold)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("config: search.max_results must be >= 0, got %d", c.Search.MaxResults)
	}
	if c.Search.MatchTimeout < 0 {
		return fmt.Errorf("config: search.match_timeout must be >= 0")
	}

	if c.Fingerprint.Bits < 8 || c.Fingerprint.Bits%8 != 0 {
		return fmt.Errorf("config: fingerprint.bits must be a positive multiple of 8 and >= 8, got %d", c.Fingerprint.Bits)
	}
	if c.Fingerprint.MaxPathLength < 1 {
		return fmt.Errorf("config: fingerprint.max_path_length must be >= 1, got %d", c.Fingerprint.MaxPathLength)
	}

	if c.Codebook.Count < 1 {
		return fmt.Errorf("config: codebook.count must be >= 1, got %d", c.Codebook.Count)
	}
	if c.Codebook.RecountParallelism < 1 {
		return fmt.Errorf("config: codebook.recount_parallelism must be >= 1, got %d", c.Codebook.RecountParallelism)
	}
	switch c.Codebook.Repository {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when codebook.repository is redis")
		}
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required when codebook.repository is minio")
		}
	default:
		return fmt.Errorf("config: codebook.repository %q is invalid; expected memory|redis|minio", c.Codebook.Repository)
	}

	switch c.Store.Backend {
	case "memory":
	case "bleve":
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the bleve backend")
		}
	case "opensearch":
		if len(c.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("config: opensearch.addresses is required for the opensearch backend")
		}
		if c.OpenSearch.Index == "" {
			return fmt.Errorf("config: opensearch.index is required for the opensearch backend")
		}
	default:
		return fmt.Errorf("config: store.backend %q is invalid; expected memory|bleve|opensearch", c.Store.Backend)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	return nil
}
