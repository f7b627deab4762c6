// Package document defines the contract between the search core and the
// document stores that hold indexed molecules.
package document

import (
	"context"

	"github.com/turtacn/molsearch/pkg/errors"
)

// Record is one stored molecule.  Graph is the encoded molecular graph,
// Fingerprint the byte view of its fingerprint and Terms its codebook terms.
type Record struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Size        int               `json:"size"`
	Graph       []byte            `json:"graph"`
	Fingerprint []byte            `json:"fingerprint"`
	Terms       []string          `json:"terms,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Graph = append([]byte(nil), r.Graph...)
	c.Fingerprint = append([]byte(nil), r.Fingerprint...)
	c.Terms = append([]string(nil), r.Terms...)
	if r.Fields != nil {
		c.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			c.Fields[k] = v
		}
	}
	return &c
}

// Validate checks the fields every store relies on.
func (r *Record) Validate() error {
	if r == nil {
		return errors.New(errors.CodeInvalidParam, "record is nil")
	}
	if r.ID == "" {
		return errors.New(errors.CodeInvalidParam, "record id is empty")
	}
	if len(r.Graph) == 0 {
		return errors.Newf(errors.CodeInvalidParam, "record %s has no graph", r.ID)
	}
	return nil
}

// HasTerm reports whether the record carries term.
func (r *Record) HasTerm(term string) bool {
	for _, t := range r.Terms {
		if t == term {
			return true
		}
	}
	return false
}

// Predicate selects documents carrying any of AnyTerms.  An empty predicate
// matches every document.
type Predicate struct {
	AnyTerms []string
}

// All reports whether the predicate is a full scan.
func (p Predicate) All() bool { return len(p.AnyTerms) == 0 }

// Matches evaluates the predicate against a record.
func (p Predicate) Matches(r *Record) bool {
	if p.All() {
		return true
	}
	for _, t := range p.AnyTerms {
		if r.HasTerm(t) {
			return true
		}
	}
	return false
}

// Store is a document store.  Add, Remove and their effect on Query,
// CountTerm and Count become visible after Commit; Get sees committed
// documents only.
type Store interface {
	Add(ctx context.Context, rec *Record) error
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Record, error)
	// Query returns matching ids in ascending order.
	Query(ctx context.Context, p Predicate) ([]string, error)
	CountTerm(ctx context.Context, term string) (int, error)
	Count(ctx context.Context) (int, error)
	Commit(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New(errors.CodeDocumentNotFound, "document not found")

// NotFound builds a not-found error naming id.
func NotFound(id string) error {
	return errors.New(errors.CodeDocumentNotFound, "document not found").WithDetail("id=" + id)
}

// IsNotFound reports whether err is a document-not-found error.
func IsNotFound(err error) bool {
	return errors.IsCode(err, errors.CodeDocumentNotFound)
}
