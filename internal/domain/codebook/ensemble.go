package codebook

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/pkg/errors"
)

// TermCounter counts stored documents carrying a term.
type TermCounter interface {
	CountTerm(ctx context.Context, term string) (int, error)
}

// Selection is the codebook chosen to screen one query.
type Selection struct {
	Codebook *Codebook
	Code     uint8
	Estimate int64
}

// Codes returns the equivalence class of the query code.
func (s Selection) Codes() []uint8 { return Equivalence(s.Code) }

// Terms returns the store terms to be combined with OR semantics.
func (s Selection) Terms() []string {
	eqv := s.Codes()
	out := make([]string, len(eqv))
	for i, c := range eqv {
		out[i] = s.Codebook.Term(c)
	}
	return out
}

// Ensemble is a fixed-size set of independent codebooks.
type Ensemble struct {
	books []*Codebook
	nbits int
}

// NewEnsemble creates size fresh codebooks over nbits-long fingerprints.
func NewEnsemble(size, nbits int, rnd *rand.Rand) (*Ensemble, error) {
	if size < 1 {
		return nil, errors.Newf(errors.CodeCodebookInvalid, "ensemble size must be positive, got %d", size)
	}
	e := &Ensemble{books: make([]*Codebook, size), nbits: nbits}
	for i := range e.books {
		cb, err := New("", nbits, rnd)
		if err != nil {
			return nil, err
		}
		e.books[i] = cb
	}
	return e, nil
}

// LoadEnsemble restores an ensemble.  The record count must equal size.
func LoadEnsemble(records []Record, size, nbits int) (*Ensemble, error) {
	if len(records) != size {
		return nil, errors.Newf(errors.CodeCodebookMismatch, "found %d codebooks, configured %d", len(records), size)
	}
	e := &Ensemble{books: make([]*Codebook, size), nbits: nbits}
	ids := make(map[string]struct{}, size)
	for i, rec := range records {
		if _, dup := ids[rec.ID]; dup {
			return nil, errors.Newf(errors.CodeCodebookInvalid, "duplicate codebook id %s", rec.ID)
		}
		ids[rec.ID] = struct{}{}
		cb, err := FromRecord(rec, nbits)
		if err != nil {
			return nil, err
		}
		e.books[i] = cb
	}
	return e, nil
}

// Size returns the number of codebooks.
func (e *Ensemble) Size() int { return len(e.books) }

// Bits returns the fingerprint length the ensemble was built for.
func (e *Ensemble) Bits() int { return e.nbits }

// Codebooks returns the codebooks in iteration order.
func (e *Ensemble) Codebooks() []*Codebook {
	return append([]*Codebook(nil), e.books...)
}

func (e *Ensemble) checkLen(fp *molecule.Fingerprint) error {
	if fp == nil {
		return errors.New(errors.CodeInvalidFingerprint, "fingerprint is nil")
	}
	if fp.Len() != e.nbits {
		return errors.Newf(errors.CodeInvalidFingerprint, "fingerprint has %d bits, ensemble expects %d", fp.Len(), e.nbits)
	}
	return nil
}

// Select picks the codebook with the smallest candidate estimate for fp,
// skipping codebooks where fp projects to code 0.  The first minimum wins.
// It returns false when no codebook carries information.
func (e *Ensemble) Select(fp *molecule.Fingerprint) (Selection, bool) {
	var best Selection
	found := false
	for _, cb := range e.books {
		code := cb.Encode(fp)
		if code == 0 {
			continue
		}
		est := cb.Estimate(code)
		if !found || est < best.Estimate {
			best = Selection{Codebook: cb, Code: code, Estimate: est}
			found = true
		}
	}
	return best, found
}

// Terms returns a document's own term under every codebook.
func (e *Ensemble) Terms(fp *molecule.Fingerprint) ([]string, error) {
	if err := e.checkLen(fp); err != nil {
		return nil, err
	}
	out := make([]string, len(e.books))
	for i, cb := range e.books {
		out[i] = cb.Term(cb.Encode(fp))
	}
	return out, nil
}

// OnAdd increments every codebook for a newly stored document.
func (e *Ensemble) OnAdd(fp *molecule.Fingerprint) error {
	if err := e.checkLen(fp); err != nil {
		return err
	}
	for _, cb := range e.books {
		cb.Incr(cb.Encode(fp))
	}
	return nil
}

// OnRemove decrements every codebook for a removed document.
func (e *Ensemble) OnRemove(fp *molecule.Fingerprint) error {
	if err := e.checkLen(fp); err != nil {
		return err
	}
	for _, cb := range e.books {
		cb.Decr(cb.Encode(fp))
	}
	return nil
}

// Records snapshots every codebook.
func (e *Ensemble) Records() []Record {
	out := make([]Record, len(e.books))
	for i, cb := range e.books {
		out[i] = cb.Record()
	}
	return out
}

// Recount re-derives every non-zero count by querying counter, with at most
// parallelism codebooks in flight.  A codebook's counts are swapped in only
// once all of its terms were counted.
func (e *Ensemble) Recount(ctx context.Context, counter TermCounter, parallelism int) error {
	if counter == nil {
		return errors.New(errors.CodeInvalidParam, "term counter is required")
	}
	if parallelism < 1 {
		parallelism = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, cb := range e.books {
		cb := cb
		g.Go(func() error {
			var counts [Codes]int64
			for c := 1; c < Codes; c++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				n, err := counter.CountTerm(ctx, cb.Term(uint8(c)))
				if err != nil {
					return errors.Wrapf(err, errors.CodeStoreError, "recount codebook %s", cb.ID())
				}
				counts[c] = int64(n)
			}
			cb.replaceCounts(&counts)
			return nil
		})
	}
	return g.Wait()
}
