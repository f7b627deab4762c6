// Package search runs substructure and similarity queries over a document
// store.  A query narrows the store to candidate ids, verifies them on a
// pool of workers and streams the survivors best first.
package search

import (
	"context"
	"math"
	"time"

	"github.com/turtacn/molsearch/internal/config"
	"github.com/turtacn/molsearch/internal/domain/codebook"
	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/domain/match"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molsearch/pkg/errors"
)

// Searcher is the query surface used by the HTTP and CLI layers.
type Searcher interface {
	Substructure(ctx context.Context, query molecule.Graph, maxResults, workers int) (*Stream, error)
	Similarity(ctx context.Context, query molecule.Graph, threshold float64, maxResults, workers int) (*Stream, error)
}

// Screener chooses the codebook that narrows a substructure query.
type Screener interface {
	Select(fp *molecule.Fingerprint) (codebook.Selection, bool)
}

// Config tunes the engine.
type Config struct {
	Workers         int
	BufferThreshold int
	MaxResults      int
	MatchTimeout    time.Duration
	GraphCacheSize  int
	NodeMatcher     molecule.NodeMatcher
	EdgeMatcher     molecule.EdgeMatcher
}

// ConfigFrom maps the search section of the application config.
func ConfigFrom(c config.SearchConfig) Config {
	return Config{
		Workers:         c.Workers,
		BufferThreshold: c.BufferThreshold,
		MaxResults:      c.MaxResults,
		MatchTimeout:    c.MatchTimeout,
		GraphCacheSize:  c.GraphCacheSize,
	}
}

// Engine executes queries.  It holds no per-query state and is safe for
// concurrent use.
type Engine struct {
	store    document.Store
	screener Screener
	gen      molecule.Generator
	cfg      Config
	graphs   *GraphCache
	opts     []match.Option
	logger   logging.Logger
	metrics  *prometheus.SearchMetrics
}

var _ Searcher = (*Engine)(nil)

// NewEngine builds an engine.  A nil screener makes every substructure
// query a full scan.
func NewEngine(store document.Store, screener Screener, gen molecule.Generator, cfg Config,
	logger logging.Logger, metrics *prometheus.SearchMetrics) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopSearchMetrics()
	}
	var opts []match.Option
	if cfg.NodeMatcher != nil {
		opts = append(opts, match.WithNodeMatcher(cfg.NodeMatcher))
	}
	if cfg.EdgeMatcher != nil {
		opts = append(opts, match.WithEdgeMatcher(cfg.EdgeMatcher))
	}
	return &Engine{
		store:    store,
		screener: screener,
		gen:      gen,
		cfg:      cfg,
		graphs:   NewGraphCache(cfg.GraphCacheSize, metrics),
		opts:     opts,
		logger:   logger.Named("search"),
		metrics:  metrics,
	}
}

// Graphs exposes the decoded-graph cache so writers can invalidate it.
func (e *Engine) Graphs() *GraphCache { return e.graphs }

// Defaults returns the configured worker count and result cap.
func (e *Engine) Defaults() (workers, maxResults int) {
	return e.cfg.Workers, e.cfg.MaxResults
}

func validateCommon(query molecule.Graph, maxResults, workers int) error {
	if query == nil {
		return errors.New(errors.CodeInvalidParam, "query graph is nil")
	}
	if workers < 1 {
		return errors.Newf(errors.CodeInvalidParam, "worker count must be at least 1, got %d", workers)
	}
	if maxResults < 0 {
		return errors.Newf(errors.CodeInvalidParam, "max results must not be negative, got %d", maxResults)
	}
	return nil
}

// Substructure streams every stored molecule containing query.  Results
// carry the atom mapping of the first embedding found.  maxResults 0 means
// no cap.
func (e *Engine) Substructure(ctx context.Context, query molecule.Graph, maxResults, workers int) (*Stream, error) {
	if err := validateCommon(query, maxResults, workers); err != nil {
		return nil, err
	}
	kind := prometheus.KindSubstructure
	fp, err := e.gen.Generate(query)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSubstructureFailed, "fingerprint query")
	}

	var pred document.Predicate
	if e.screener != nil {
		if sel, ok := e.screener.Select(fp); ok {
			pred.AnyTerms = sel.Terms()
			e.metrics.CodebookSelectivity.WithLabelValues(kind).Observe(float64(sel.Estimate))
			e.logger.Debug("codebook selected",
				logging.String("codebook", sel.Codebook.ID()),
				logging.Int("code", int(sel.Code)),
				logging.Int64("estimate", sel.Estimate))
		}
	}
	candidates, err := e.candidates(ctx, pred)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSubstructureFailed, "query store")
	}

	v := &substructureVerifier{query: query, fp: fp, opts: e.opts, timeout: e.cfg.MatchTimeout}
	return e.start(ctx, kind, candidates, v, maxResults, workers), nil
}

// Similarity streams every stored molecule whose fingerprint Tanimoto
// similarity to query is at least threshold, most similar first.
func (e *Engine) Similarity(ctx context.Context, query molecule.Graph, threshold float64, maxResults, workers int) (*Stream, error) {
	if err := validateCommon(query, maxResults, workers); err != nil {
		return nil, err
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, errors.Newf(errors.CodeInvalidThreshold, "threshold must be within [0, 1], got %g", threshold)
	}
	fp, err := e.gen.Generate(query)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSimilarityFailed, "fingerprint query")
	}
	candidates, err := e.candidates(ctx, document.Predicate{})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSimilarityFailed, "query store")
	}
	v := &similarityVerifier{query: fp, threshold: threshold}
	return e.start(ctx, prometheus.KindSimilarity, candidates, v, maxResults, workers), nil
}

func (e *Engine) candidates(ctx context.Context, pred document.Predicate) ([]*Payload, error) {
	ids, err := e.store.Query(ctx, pred)
	if err != nil {
		return nil, err
	}
	src := &source{store: e.store, graphs: e.graphs, nbits: e.gen.Size()}
	out := make([]*Payload, len(ids))
	for i, id := range ids {
		out[i] = newPayload(id, src)
	}
	return out, nil
}

func (e *Engine) start(ctx context.Context, kind string, candidates []*Payload, v verifier, maxResults, workers int) *Stream {
	e.metrics.QueriesTotal.WithLabelValues(kind).Inc()
	e.logger.Debug("query started",
		logging.String("kind", kind),
		logging.Int("candidates", len(candidates)),
		logging.Int("workers", workers),
		logging.Int("max", maxResults))
	return startPipeline(ctx, pipelineConfig{
		kind:            kind,
		workers:         workers,
		max:             maxResults,
		bufferThreshold: e.cfg.BufferThreshold,
	}, candidates, v, e.logger, e.metrics)
}
