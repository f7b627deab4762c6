// Package blevestore is an embedded, persistent document store on bleve.
// Codebook terms are indexed with the keyword analyzer; the full record is
// kept as a stored, unindexed JSON payload.
package blevestore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

const (
	fieldTerms   = "terms"
	fieldName    = "name"
	fieldPayload = "payload"
)

type indexedDoc struct {
	Terms   []string `json:"terms"`
	Name    string   `json:"name"`
	Payload string   `json:"payload"`
}

// Store wraps a bleve index.  Writes accumulate in a batch applied by
// Commit.
type Store struct {
	index  bleve.Index
	logger logging.Logger

	mu    sync.Mutex
	batch *bleve.Batch
	ops   int
}

// BuildMapping returns the index mapping used by the store.
func BuildMapping() mapping.IndexMapping {
	terms := bleve.NewTextFieldMapping()
	terms.Analyzer = keyword.Name
	terms.Store = false
	terms.IncludeInAll = false

	name := bleve.NewTextFieldMapping()
	name.Analyzer = keyword.Name
	name.Store = false
	name.IncludeInAll = false

	payload := bleve.NewTextFieldMapping()
	payload.Index = false
	payload.Store = true
	payload.IncludeInAll = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(fieldTerms, terms)
	doc.AddFieldMappingsAt(fieldName, name)
	doc.AddFieldMappingsAt(fieldPayload, payload)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = keyword.Name
	return im
}

// Open opens the index at path, creating it when missing.  An empty path
// yields a memory-only index.
func Open(path string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("blevestore")

	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(BuildMapping())
	default:
		idx, err = bleve.Open(path)
		if stderrors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			logger.Info("creating bleve index", logging.String("path", path))
			idx, err = bleve.New(path, BuildMapping())
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "open bleve index")
	}
	return New(idx, logger), nil
}

// New wraps an already opened index.
func New(idx bleve.Index, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{index: idx, logger: logger, batch: idx.NewBatch()}
}

func (s *Store) Add(_ context.Context, rec *document.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "encode record")
	}
	doc := indexedDoc{Terms: rec.Terms, Name: rec.Name, Payload: string(payload)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.batch.Index(rec.ID, doc); err != nil {
		return errors.Wrapf(err, errors.CodeStoreError, "stage document %s", rec.ID)
	}
	s.ops++
	return nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	if id == "" {
		return errors.New(errors.CodeInvalidParam, "document id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch.Delete(id)
	s.ops++
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*document.Record, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = []string{fieldPayload}
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeStoreError, "get document %s", id)
	}
	if len(res.Hits) == 0 {
		return nil, document.NotFound(id)
	}
	raw, ok := res.Hits[0].Fields[fieldPayload].(string)
	if !ok {
		return nil, errors.Newf(errors.CodeStoreError, "document %s has no payload", id)
	}
	var rec document.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, errors.Wrapf(err, errors.CodeSerialization, "decode document %s", id)
	}
	return &rec, nil
}

func (s *Store) predicateQuery(p document.Predicate) query.Query {
	if p.All() {
		return bleve.NewMatchAllQuery()
	}
	qs := make([]query.Query, len(p.AnyTerms))
	for i, t := range p.AnyTerms {
		tq := bleve.NewTermQuery(t)
		tq.SetField(fieldTerms)
		qs[i] = tq
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func (s *Store) Query(ctx context.Context, p document.Predicate) ([]string, error) {
	total, err := s.index.DocCount()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "count documents")
	}
	if total == 0 {
		return []string{}, nil
	}
	req := bleve.NewSearchRequestOptions(s.predicateQuery(p), int(total), 0, false)
	req.SortBy([]string{"_id"})
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "query documents")
	}
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) CountTerm(ctx context.Context, term string) (int, error) {
	tq := bleve.NewTermQuery(term)
	tq.SetField(fieldTerms)
	req := bleve.NewSearchRequestOptions(tq, 0, 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, errors.Wrapf(err, errors.CodeStoreError, "count term %s", term)
	}
	return int(res.Total), nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	n, err := s.index.DocCount()
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeStoreError, "count documents")
	}
	return int(n), nil
}

// Commit applies the staged batch.
func (s *Store) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ops == 0 {
		return nil
	}
	if err := s.index.Batch(s.batch); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "commit batch")
	}
	s.logger.Debug("batch committed", logging.Int("operations", s.ops))
	s.batch = s.index.NewBatch()
	s.ops = 0
	return nil
}

func (s *Store) Close() error {
	if err := s.index.Close(); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "close bleve index")
	}
	return nil
}

var _ document.Store = (*Store)(nil)
