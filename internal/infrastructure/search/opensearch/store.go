package opensearch

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

const fieldTerms = "terms"

// StoreConfig configures the OpenSearch-backed document store.
type StoreConfig struct {
	Index      string
	ScrollSize int
	BatchSize  int
}

// Store implements document.Store on one OpenSearch index.  Writes are
// buffered and sent as a refreshing bulk request on Commit.
type Store struct {
	client   *Client
	indexer  *Indexer
	searcher *Searcher
	index    string
	logger   logging.Logger

	mu      sync.Mutex
	pending []BulkOp
}

// NewStore wires a store over client and makes sure the index exists.
func NewStore(ctx context.Context, client *Client, cfg StoreConfig, logger logging.Logger) (*Store, error) {
	if cfg.Index == "" {
		return nil, ErrInvalidConfig.WithDetail("index name is empty")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Store{
		client:   client,
		indexer:  NewIndexer(client, IndexerConfig{BulkBatchSize: cfg.BatchSize, RefreshPolicy: "true"}, logger),
		searcher: NewSearcher(client, SearcherConfig{ScrollSize: cfg.ScrollSize}, logger),
		index:    cfg.Index,
		logger:   logger,
	}
	if err := s.indexer.EnsureIndex(ctx, cfg.Index); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Add(_ context.Context, rec *document.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending = append(s.pending, BulkOp{Action: BulkIndex, ID: rec.ID, Doc: rec.Clone()})
	s.mu.Unlock()
	return nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	if id == "" {
		return errors.New(errors.CodeInvalidParam, "document id is empty")
	}
	s.mu.Lock()
	s.pending = append(s.pending, BulkOp{Action: BulkDelete, ID: id})
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*document.Record, error) {
	var rec document.Record
	found, err := s.searcher.Get(ctx, s.index, id, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, document.NotFound(id)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}

func (s *Store) Query(ctx context.Context, p document.Predicate) ([]string, error) {
	q := MatchAll()
	if !p.All() {
		q = TermsQuery(fieldTerms, p.AnyTerms)
	}
	ids, err := s.searcher.ScrollIDs(ctx, s.index, q)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) CountTerm(ctx context.Context, term string) (int, error) {
	n, err := s.searcher.Count(ctx, s.index, TermQuery(fieldTerms, term))
	return int(n), err
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.searcher.Count(ctx, s.index, MatchAll())
	return int(n), err
}

// Commit sends the buffered writes.  A transport failure keeps them
// buffered; rejected items are reported and dropped.
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	res, err := s.indexer.Bulk(ctx, s.index, s.pending)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		first := res.Errors[0]
		s.logger.Error("bulk commit had failures",
			logging.Int("failed", res.Failed),
			logging.String("first_id", first.DocID),
			logging.String("reason", first.Reason))
		s.pending = nil
		return errors.Newf(errors.CodeStoreError, "%d of %d writes failed", res.Failed, res.Failed+res.Succeeded).
			WithDetail(first.DocID + ": " + first.Reason)
	}
	s.pending = nil
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ document.Store = (*Store)(nil)
