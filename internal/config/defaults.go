package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodySize     = 4 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultSearchWorkers   = 4
	DefaultBufferThreshold = 10000
	DefaultGraphCacheSize  = 4096

	DefaultFingerprintBits = 1024
	DefaultMaxPathLength   = 7

	DefaultCodebookCount      = 256
	DefaultRecountParallelism = 8
	DefaultCodebookRepository = "memory"
	DefaultStoreBackend       = "memory"
	DefaultRedisAddr          = "localhost:6379"
	DefaultRedisKeyPrefix     = "molsearch:"
	DefaultMinIOEndpoint      = "localhost:9000"
	DefaultMinIOObjectKey     = "codebooks/ensemble.json"
	DefaultOpenSearchIndex    = "molsearch-documents"
	DefaultOpenSearchScroll   = 1000
	DefaultKafkaBroker        = "localhost:9092"
	DefaultKafkaTopic         = "molsearch.index-events"
	DefaultKafkaGroupID       = "molsearch-indexer"
	DefaultMetricsNamespace   = "molsearch"
	DefaultMetricsPath        = "/metrics"
)

// registerDefaults seeds v with every known key so that AutomaticEnv can
// resolve MOLSEARCH_* overrides even when no config file names the key.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.read_timeout", DefaultReadTimeout)
	v.SetDefault("server.write_timeout", DefaultWriteTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("server.max_body_size", DefaultMaxBodySize)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("search.workers", DefaultSearchWorkers)
	v.SetDefault("search.buffer_threshold", DefaultBufferThreshold)
	v.SetDefault("search.max_results", 0)
	v.SetDefault("search.match_timeout", time.Duration(0))
	v.SetDefault("search.graph_cache_size", DefaultGraphCacheSize)

	v.SetDefault("fingerprint.bits", DefaultFingerprintBits)
	v.SetDefault("fingerprint.max_path_length", DefaultMaxPathLength)

	v.SetDefault("codebook.count", DefaultCodebookCount)
	v.SetDefault("codebook.seed", 0)
	v.SetDefault("codebook.recount_parallelism", DefaultRecountParallelism)
	v.SetDefault("codebook.repository", DefaultCodebookRepository)

	v.SetDefault("store.backend", DefaultStoreBackend)
	v.SetDefault("store.path", "")

	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", DefaultRedisKeyPrefix)

	v.SetDefault("minio.endpoint", DefaultMinIOEndpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.object_key", DefaultMinIOObjectKey)

	v.SetDefault("opensearch.addresses", []string{})
	v.SetDefault("opensearch.user", "")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.index", DefaultOpenSearchIndex)
	v.SetDefault("opensearch.scroll_size", DefaultOpenSearchScroll)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{DefaultKafkaBroker})
	v.SetDefault("kafka.topic", DefaultKafkaTopic)
	v.SetDefault("kafka.group_id", DefaultKafkaGroupID)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
	v.SetDefault("metrics.path", DefaultMetricsPath)
}

// ApplyDefaults fills zero-value fields of cfg.  Explicit values always win.
// Booleans are left alone since false is indistinguishable from unset.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Search.Workers == 0 {
		cfg.Search.Workers = DefaultSearchWorkers
	}
	if cfg.Search.BufferThreshold == 0 {
		cfg.Search.BufferThreshold = DefaultBufferThreshold
	}
	if cfg.Search.GraphCacheSize == 0 {
		cfg.Search.GraphCacheSize = DefaultGraphCacheSize
	}

	if cfg.Fingerprint.Bits == 0 {
		cfg.Fingerprint.Bits = DefaultFingerprintBits
	}
	if cfg.Fingerprint.MaxPathLength == 0 {
		cfg.Fingerprint.MaxPathLength = DefaultMaxPathLength
	}

	if cfg.Codebook.Count == 0 {
		cfg.Codebook.Count = DefaultCodebookCount
	}
	if cfg.Codebook.RecountParallelism == 0 {
		cfg.Codebook.RecountParallelism = DefaultRecountParallelism
	}
	if cfg.Codebook.Repository == "" {
		cfg.Codebook.Repository = DefaultCodebookRepository
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.ObjectKey == "" {
		cfg.MinIO.ObjectKey = DefaultMinIOObjectKey
	}

	if cfg.OpenSearch.Index == "" {
		cfg.OpenSearch.Index = DefaultOpenSearchIndex
	}
	if cfg.OpenSearch.ScrollSize == 0 {
		cfg.OpenSearch.ScrollSize = DefaultOpenSearchScroll
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
