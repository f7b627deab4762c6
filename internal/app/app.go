// Package app assembles a running molsearch instance from configuration:
// document store, codebook repository, indexer, search engine, metrics and
// the optional Kafka index-event consumer.  Both binaries in cmd/ build on
// it.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/turtacn/molsearch/internal/application/indexing"
	"github.com/turtacn/molsearch/internal/application/search"
	"github.com/turtacn/molsearch/internal/config"
	"github.com/turtacn/molsearch/internal/domain/codebook"
	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/database/redis"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molsearch/internal/infrastructure/search/opensearch"
	"github.com/turtacn/molsearch/internal/infrastructure/storage/minio"
	"github.com/turtacn/molsearch/internal/infrastructure/store/blevestore"
	"github.com/turtacn/molsearch/internal/infrastructure/store/memstore"
	"github.com/turtacn/molsearch/internal/interfaces/http/handlers"
)

// Version is stamped at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

// App owns every long-lived component.  Close releases them in reverse
// order of construction.
type App struct {
	Config   *config.Config
	Logger   logging.Logger
	Store    document.Store
	Repo     codebook.Repository
	Indexer  *indexing.Indexer
	Engine   *search.Engine
	Metrics  *prometheus.SearchMetrics
	Checkers []handlers.HealthChecker

	collector prometheus.MetricsCollector
	closers   []func() error
}

// Option customises New.
type Option func(*options)

type options struct {
	store document.Store
	repo  codebook.Repository
}

// WithStore replaces the configured document store.  The caller keeps
// ownership of s.
func WithStore(s document.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRepository replaces the configured codebook repository.
func WithRepository(r codebook.Repository) Option {
	return func(o *options) { o.repo = r }
}

// New builds and opens an App.  On error everything built so far is
// closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	if err := a.initMetrics(); err != nil {
		return nil, err
	}

	if o.store != nil {
		a.Store = o.store
	} else if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	a.Checkers = append(a.Checkers, handlers.CheckerFunc("store", func(ctx context.Context) error {
		_, err := a.Store.Count(ctx)
		return err
	}))

	if o.repo != nil {
		a.Repo = o.repo
	} else if err := a.initRepository(); err != nil {
		return nil, err
	}

	gen, err := molecule.NewPathGenerator(cfg.Fingerprint.Bits, cfg.Fingerprint.MaxPathLength)
	if err != nil {
		return nil, fmt.Errorf("fingerprint generator: %w", err)
	}

	a.Indexer = indexing.NewIndexer(a.Store, a.Repo, gen, indexing.ConfigFrom(cfg.Codebook), logger, a.Metrics)
	if err := a.Indexer.Open(ctx); err != nil {
		return nil, fmt.Errorf("open indexer: %w", err)
	}
	a.closers = append(a.closers, a.Indexer.Close)

	a.Engine = search.NewEngine(a.Store, a.Indexer, gen, search.ConfigFrom(cfg.Search), logger, a.Metrics)
	a.Indexer.SetCache(a.Engine.Graphs())

	logger.Info("molsearch initialised",
		logging.String("version", Version),
		logging.String("store", cfg.Store.Backend),
		logging.String("codebook_repository", cfg.Codebook.Repository),
		logging.Int("codebooks", len(a.Indexer.Records())),
		logging.Int("fingerprint_bits", cfg.Fingerprint.Bits))
	ok = true
	return a, nil
}

func (a *App) initMetrics() error {
	if !a.Config.Metrics.Enabled {
		a.Metrics = prometheus.NewNopSearchMetrics()
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            a.Config.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.collector = collector
	a.Metrics = prometheus.NewSearchMetrics(collector)
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Store.Backend {
	case "bleve":
		s, err := blevestore.Open(cfg.Store.Path, a.Logger)
		if err != nil {
			return fmt.Errorf("bleve store: %w", err)
		}
		a.Store = s
		a.closers = append(a.closers, s.Close)
	case "opensearch":
		client, err := opensearch.NewClient(opensearch.ClientConfig{
			Addresses:          cfg.OpenSearch.Addresses,
			Username:           cfg.OpenSearch.User,
			Password:           cfg.OpenSearch.Password,
			InsecureSkipVerify: cfg.OpenSearch.InsecureSkipVerify,
			RequestTimeout:     cfg.OpenSearch.Timeout,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("opensearch client: %w", err)
		}
		s, err := opensearch.NewStore(ctx, client, opensearch.StoreConfig{
			Index:      cfg.OpenSearch.Index,
			ScrollSize: cfg.OpenSearch.ScrollSize,
		}, a.Logger)
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("opensearch store: %w", err)
		}
		a.Checkers = append(a.Checkers, handlers.CheckerFunc("opensearch", client.Ping))
		a.Store = s
		a.closers = append(a.closers, s.Close)
	default:
		s := memstore.New(a.Logger)
		a.Store = s
		a.closers = append(a.closers, s.Close)
	}
	return nil
}

func (a *App) initRepository() error {
	cfg := a.Config
	switch cfg.Codebook.Repository {
	case "redis":
		client, err := redis.NewClient(cfg.Redis, a.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Checkers = append(a.Checkers, handlers.CheckerFunc("redis", client.Ping))
		a.Repo = redis.NewCodebookRepository(client, a.Logger)
	case "minio":
		client, err := minio.NewMinIOClient(cfg.MinIO, a.Logger)
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Checkers = append(a.Checkers, handlers.CheckerFunc("minio", client.HealthCheck))
		a.Repo = minio.NewCodebookRepository(client, a.Logger)
	default:
		a.Repo = codebook.NewMemoryRepository()
	}
	return nil
}

// MetricsHandler serves the prometheus registry, or nil when metrics are
// disabled.
func (a *App) MetricsHandler() http.Handler {
	if a.collector == nil {
		return nil
	}
	return a.collector.Handler()
}

// Close waits for background indexing and releases every backend.  The
// first error is returned; later ones are logged.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			if first == nil {
				first = err
			} else {
				a.Logger.Warn("close failed", logging.Err(err))
			}
		}
	}
	a.closers = nil
	return first
}
