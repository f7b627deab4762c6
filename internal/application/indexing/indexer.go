// Package indexing keeps the document store and the codebook ensemble in
// step: every write updates both, and Commit persists the codebook counts.
package indexing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/turtacn/molsearch/internal/config"
	"github.com/turtacn/molsearch/internal/domain/codebook"
	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molsearch/pkg/errors"
)

// ErrNotOpen is returned by writes issued before Open.
var ErrNotOpen = errors.New(errors.CodeUnavailable, "indexer is not open")

// Invalidator drops cached state for a document id.
type Invalidator interface {
	Invalidate(id string)
}

// Config tunes the codebook lifecycle.
type Config struct {
	CodebookCount      int
	Seed               int64
	RecountParallelism int
}

// ConfigFrom maps the codebook section of the application config.
func ConfigFrom(c config.CodebookConfig) Config {
	return Config{
		CodebookCount:      c.Count,
		Seed:               c.Seed,
		RecountParallelism: c.RecountParallelism,
	}
}

// Indexer applies document writes.  Writes are serialised; queries may
// run concurrently through Select.
type Indexer struct {
	store   document.Store
	repo    codebook.Repository
	gen     molecule.Generator
	cfg     Config
	logger  logging.Logger
	metrics *prometheus.SearchMetrics

	mu       sync.RWMutex
	ensemble *codebook.Ensemble
	cache    Invalidator

	writeMu sync.Mutex
	// pending holds the fingerprint each uncommitted write leaves behind,
	// nil for a removal.  Guarded by writeMu.
	pending map[string]*molecule.Fingerprint
	bg      sync.WaitGroup
}

// NewIndexer wires an indexer.  Call Open before any write.
func NewIndexer(store document.Store, repo codebook.Repository, gen molecule.Generator, cfg Config,
	logger logging.Logger, metrics *prometheus.SearchMetrics) *Indexer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopSearchMetrics()
	}
	if cfg.CodebookCount < 1 {
		cfg.CodebookCount = config.DefaultCodebookCount
	}
	if cfg.RecountParallelism < 1 {
		cfg.RecountParallelism = 1
	}
	return &Indexer{
		store:   store,
		repo:    repo,
		gen:     gen,
		cfg:     cfg,
		logger:  logger.Named("indexer"),
		metrics: metrics,
		pending: make(map[string]*molecule.Fingerprint),
	}
}

// SetCache registers the decoded-graph cache to invalidate on writes.
func (ix *Indexer) SetCache(c Invalidator) {
	ix.mu.Lock()
	ix.cache = c
	ix.mu.Unlock()
}

// Open loads the persisted codebooks.  Without any, a fresh ensemble is
// created and, if the store already holds documents, recounted from it.
func (ix *Indexer) Open(ctx context.Context) error {
	records, err := ix.repo.Load(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "load codebooks")
	}
	if len(records) > 0 {
		ens, err := codebook.LoadEnsemble(records, ix.cfg.CodebookCount, ix.gen.Size())
		if err != nil {
			return err
		}
		ix.setEnsemble(ens)
		ix.logger.Info("codebooks loaded", logging.Int("count", len(records)))
		return nil
	}

	seed := ix.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ens, err := codebook.NewEnsemble(ix.cfg.CodebookCount, ix.gen.Size(), rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	ix.setEnsemble(ens)

	n, err := ix.store.Count(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "count documents")
	}
	ix.logger.Info("codebooks created", logging.Int("count", ix.cfg.CodebookCount), logging.Int("documents", n))
	if n > 0 {
		return ix.Recount(ctx)
	}
	return nil
}

func (ix *Indexer) setEnsemble(e *codebook.Ensemble) {
	ix.mu.Lock()
	ix.ensemble = e
	ix.mu.Unlock()
}

// Ensemble returns the current ensemble, or nil before Open.
func (ix *Indexer) Ensemble() *codebook.Ensemble {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ensemble
}

func (ix *Indexer) open() (*codebook.Ensemble, error) {
	e := ix.Ensemble()
	if e == nil {
		return nil, ErrNotOpen
	}
	return e, nil
}

func (ix *Indexer) invalidate(id string) {
	ix.mu.RLock()
	c := ix.cache
	ix.mu.RUnlock()
	if c != nil {
		c.Invalidate(id)
	}
}

// Select picks the screening codebook for a query fingerprint.  Before
// Open it reports no selection, which makes queries scan everything.
func (ix *Indexer) Select(fp *molecule.Fingerprint) (codebook.Selection, bool) {
	e := ix.Ensemble()
	if e == nil {
		return codebook.Selection{}, false
	}
	return e.Select(fp)
}

// Records snapshots the codebooks.
func (ix *Indexer) Records() []codebook.Record {
	e := ix.Ensemble()
	if e == nil {
		return nil
	}
	return e.Records()
}

// Add stores graph under id.  Adding an id that already exists, committed
// or pending, replaces it and moves its codebook counts.
func (ix *Indexer) Add(ctx context.Context, id, name string, graph molecule.Graph, fields map[string]string) error {
	if id == "" {
		return errors.New(errors.CodeInvalidParam, "document id is empty")
	}
	if graph == nil {
		return errors.New(errors.CodeInvalidParam, "graph is nil")
	}
	ens, err := ix.open()
	if err != nil {
		return err
	}
	fp, err := ix.gen.Generate(graph)
	if err != nil {
		return err
	}
	data, err := molecule.EncodeGraph(graph)
	if err != nil {
		return err
	}
	terms, err := ens.Terms(fp)
	if err != nil {
		return err
	}
	rec := &document.Record{
		ID:          id,
		Name:        name,
		Size:        graph.NodeCount(),
		Graph:       data,
		Fingerprint: fp.Bytes(),
		Terms:       terms,
		Fields:      fields,
	}

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	old, err := ix.currentFingerprint(ctx, id)
	if err != nil && !document.IsNotFound(err) {
		return err
	}
	if err := ix.store.Add(ctx, rec); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "add document")
	}
	if old != nil {
		if err := ens.OnRemove(old); err != nil {
			return err
		}
	}
	if err := ens.OnAdd(fp); err != nil {
		return err
	}
	ix.pending[id] = fp
	ix.invalidate(id)
	ix.metrics.DocumentsIndexed.WithLabelValues().Inc()
	ix.logger.Debug("document added", logging.String("id", id), logging.Bool("update", old != nil))
	return nil
}

// currentFingerprint resolves the fingerprint id carries once pending
// writes commit.  Callers hold writeMu.
func (ix *Indexer) currentFingerprint(ctx context.Context, id string) (*molecule.Fingerprint, error) {
	if fp, ok := ix.pending[id]; ok {
		if fp == nil {
			return nil, document.NotFound(id)
		}
		return fp, nil
	}
	return ix.storedFingerprint(ctx, id)
}

func (ix *Indexer) storedFingerprint(ctx context.Context, id string) (*molecule.Fingerprint, error) {
	rec, err := ix.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return molecule.FingerprintFromBytes(rec.Fingerprint, ix.gen.Size())
}

// Remove deletes id and decrements its codebook counts.
func (ix *Indexer) Remove(ctx context.Context, id string) error {
	ens, err := ix.open()
	if err != nil {
		return err
	}
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	fp, err := ix.currentFingerprint(ctx, id)
	if err != nil {
		return err
	}
	if err := ix.store.Remove(ctx, id); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "remove document")
	}
	if err := ens.OnRemove(fp); err != nil {
		return err
	}
	ix.pending[id] = nil
	ix.invalidate(id)
	ix.metrics.DocumentsRemoved.WithLabelValues("single").Inc()
	return nil
}

// BulkRemove deletes ids without per-document count tracking, commits the
// store and recounts the codebooks in the background.  Recount failures
// are logged only.
func (ix *Indexer) BulkRemove(ctx context.Context, ids []string) error {
	if _, err := ix.open(); err != nil {
		return err
	}
	ix.writeMu.Lock()
	for _, id := range ids {
		if err := ix.store.Remove(ctx, id); err != nil {
			ix.writeMu.Unlock()
			return errors.Wrap(err, errors.CodeStoreError, "remove document").WithDetail("id=" + id)
		}
		ix.invalidate(id)
	}
	err := ix.store.Commit(ctx)
	if err == nil {
		ix.clearPending()
	}
	ix.writeMu.Unlock()
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "commit bulk removal")
	}
	ix.metrics.DocumentsRemoved.WithLabelValues("bulk").Add(float64(len(ids)))

	ix.bg.Add(1)
	go func() {
		defer ix.bg.Done()
		rctx := context.WithoutCancel(ctx)
		if err := ix.Recount(rctx); err != nil {
			ix.logger.Error("background recount failed", logging.Int("removed", len(ids)), logging.Err(err))
		}
	}()
	return nil
}

// Commit makes pending writes visible and persists the codebooks.
func (ix *Indexer) Commit(ctx context.Context) error {
	ens, err := ix.open()
	if err != nil {
		return err
	}
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if err := ix.store.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "commit store")
	}
	ix.clearPending()
	if err := ix.repo.Save(ctx, ens.Records()); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "save codebooks")
	}
	return nil
}

func (ix *Indexer) clearPending() {
	ix.pending = make(map[string]*molecule.Fingerprint)
}

// Recount re-derives every codebook count from the committed store and
// re-applies pending writes on top.  Writes wait for it to finish.
func (ix *Indexer) Recount(ctx context.Context) error {
	ens, err := ix.open()
	if err != nil {
		return err
	}
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	start := time.Now()
	err = ens.Recount(ctx, ix.store, ix.cfg.RecountParallelism)
	if err == nil {
		err = ix.reapplyPending(ctx, ens)
	}
	elapsed := time.Since(start)
	ix.metrics.RecordRecount(elapsed, err)
	if err != nil {
		return err
	}
	ix.logger.Info("codebooks recounted", logging.Duration("elapsed", elapsed))
	return nil
}

func (ix *Indexer) reapplyPending(ctx context.Context, ens *codebook.Ensemble) error {
	for id, fp := range ix.pending {
		committed, err := ix.storedFingerprint(ctx, id)
		switch {
		case err == nil:
			if err := ens.OnRemove(committed); err != nil {
				return err
			}
		case !document.IsNotFound(err):
			return err
		}
		if fp != nil {
			if err := ens.OnAdd(fp); err != nil {
				return err
			}
		}
	}
	return nil
}

// Wait blocks until background recounts have finished.
func (ix *Indexer) Wait() { ix.bg.Wait() }

// Close waits for background work.  The store is owned by the caller.
func (ix *Indexer) Close() error {
	ix.Wait()
	return nil
}
