// Package memstore is an in-process document store.  Term postings are
// roaring bitmaps over dense document numbers.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

type opKind int

const (
	opAdd opKind = iota
	opRemove
)

type pendingOp struct {
	kind opKind
	id   string
	rec  *document.Record
}

// Store keeps committed documents and postings in memory.  Writes are
// buffered until Commit.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]*document.Record
	nums     map[string]uint32
	ids      []string
	free     []uint32
	live     *roaring.Bitmap
	postings map[string]*roaring.Bitmap

	pendingMu sync.Mutex
	pending   []pendingOp

	closed bool
	logger logging.Logger
}

// New creates an empty store.
func New(logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		docs:     make(map[string]*document.Record),
		nums:     make(map[string]uint32),
		live:     roaring.New(),
		postings: make(map[string]*roaring.Bitmap),
		logger:   logger.Named("memstore"),
	}
}

func (s *Store) checkOpen() error {
	if s.closed {
		return errors.New(errors.CodeUnavailable, "store is closed")
	}
	return nil
}

func (s *Store) Add(_ context.Context, rec *document.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.RLock()
	err := s.checkOpen()
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	s.pendingMu.Lock()
	s.pending = append(s.pending, pendingOp{kind: opAdd, id: rec.ID, rec: rec.Clone()})
	s.pendingMu.Unlock()
	return nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	if id == "" {
		return errors.New(errors.CodeInvalidParam, "document id is empty")
	}
	s.mu.RLock()
	err := s.checkOpen()
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	s.pendingMu.Lock()
	s.pending = append(s.pending, pendingOp{kind: opRemove, id: id})
	s.pendingMu.Unlock()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*document.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rec, ok := s.docs[id]
	if !ok {
		return nil, document.NotFound(id)
	}
	return rec.Clone(), nil
}

func (s *Store) Query(_ context.Context, p document.Predicate) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var hits *roaring.Bitmap
	if p.All() {
		hits = s.live
	} else {
		bms := make([]*roaring.Bitmap, 0, len(p.AnyTerms))
		for _, t := range p.AnyTerms {
			if bm, ok := s.postings[t]; ok {
				bms = append(bms, bm)
			}
		}
		hits = roaring.FastOr(bms...)
	}

	out := make([]string, 0, hits.GetCardinality())
	it := hits.Iterator()
	for it.HasNext() {
		out = append(out, s.ids[it.Next()])
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) CountTerm(_ context.Context, term string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	bm, ok := s.postings[term]
	if !ok {
		return 0, nil
	}
	return int(bm.GetCardinality()), nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return int(s.live.GetCardinality()), nil
}

// Commit applies buffered writes in submission order.
func (s *Store) Commit(_ context.Context) error {
	s.pendingMu.Lock()
	ops := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	added, removed := 0, 0
	for _, op := range ops {
		switch op.kind {
		case opAdd:
			s.unindex(op.id)
			s.index(op.rec)
			added++
		case opRemove:
			if s.unindex(op.id) {
				removed++
			}
		}
	}
	if len(ops) > 0 {
		s.logger.Debug("commit applied",
			logging.Int("added", added),
			logging.Int("removed", removed),
			logging.Int("documents", len(s.docs)))
	}
	return nil
}

func (s *Store) index(rec *document.Record) {
	var num uint32
	if n := len(s.free); n > 0 {
		num = s.free[n-1]
		s.free = s.free[:n-1]
		s.ids[num] = rec.ID
	} else {
		num = uint32(len(s.ids))
		s.ids = append(s.ids, rec.ID)
	}
	s.nums[rec.ID] = num
	s.docs[rec.ID] = rec
	s.live.Add(num)
	for _, t := range rec.Terms {
		bm, ok := s.postings[t]
		if !ok {
			bm = roaring.New()
			s.postings[t] = bm
		}
		bm.Add(num)
	}
}

func (s *Store) unindex(id string) bool {
	rec, ok := s.docs[id]
	if !ok {
		return false
	}
	num := s.nums[id]
	for _, t := range rec.Terms {
		if bm, ok := s.postings[t]; ok {
			bm.Remove(num)
			if bm.IsEmpty() {
				delete(s.postings, t)
			}
		}
	}
	s.live.Remove(num)
	delete(s.docs, id)
	delete(s.nums, id)
	s.ids[num] = ""
	s.free = append(s.free, num)
	return true
}

// Pending returns the number of uncommitted writes.
func (s *Store) Pending() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ document.Store = (*Store)(nil)
