package search

import (
	"context"
	"sync"

	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/domain/molecule"
)

// source loads and decodes candidates for one query.
type source struct {
	store  document.Store
	graphs *GraphCache
	nbits  int
}

// Payload is one candidate document.  Its record, graph and fingerprint
// are loaded on first use and memoised.
type Payload struct {
	ID string

	src    *source
	poison bool

	recOnce sync.Once
	rec     *document.Record
	recErr  error

	graphOnce sync.Once
	graph     *molecule.MolGraph
	graphErr  error

	fpOnce sync.Once
	fp     *molecule.Fingerprint
	fpErr  error
}

// PoisonPayload ends a worker's input.  It is never decoded.
var PoisonPayload = &Payload{poison: true}

func newPayload(id string, src *source) *Payload {
	return &Payload{ID: id, src: src}
}

func (p *Payload) IsPoison() bool { return p.poison }

// Record fetches the stored record.
func (p *Payload) Record(ctx context.Context) (*document.Record, error) {
	p.recOnce.Do(func() {
		p.rec, p.recErr = p.src.store.Get(ctx, p.ID)
	})
	return p.rec, p.recErr
}

// Graph decodes the stored molecular graph.
func (p *Payload) Graph(ctx context.Context) (*molecule.MolGraph, error) {
	p.graphOnce.Do(func() {
		rec, err := p.Record(ctx)
		if err != nil {
			p.graphErr = err
			return
		}
		p.graph, p.graphErr = p.src.graphs.Get(p.ID, rec.Graph)
	})
	return p.graph, p.graphErr
}

// Fingerprint restores the stored fingerprint.
func (p *Payload) Fingerprint(ctx context.Context) (*molecule.Fingerprint, error) {
	p.fpOnce.Do(func() {
		rec, err := p.Record(ctx)
		if err != nil {
			p.fpErr = err
			return
		}
		p.fp, p.fpErr = molecule.FingerprintFromBytes(rec.Fingerprint, p.src.nbits)
	})
	return p.fp, p.fpErr
}
