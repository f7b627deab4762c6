package search

import (
	"context"
	"strings"
	"sync"

	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/domain/molecule"
)

// Result is a candidate that passed verification.  Mapping, when present,
// maps query atom i to target atom Mapping[i]-1; 0 means unmapped.
type Result struct {
	ID         string
	Record     *document.Record
	Similarity *float64
	Mapping    []int

	poison  bool
	payload *Payload

	annOnce sync.Once
	ann     *AnnotatedGraph
	annErr  error
}

// PoisonResult ends a stream.  It sorts after every other result.
var PoisonResult = &Result{poison: true}

func (r *Result) IsPoison() bool { return r.poison }

// AnnotatedAtom is an atom flagged when it is part of the matched embedding.
type AnnotatedAtom struct {
	molecule.Atom
	Matched bool `json:"matched,omitempty"`
}

// AnnotatedGraph is a result graph with matched atoms marked.
type AnnotatedGraph struct {
	Atoms []AnnotatedAtom    `json:"atoms"`
	Bonds []molecule.Bond    `json:"bonds"`
	Graph *molecule.MolGraph `json:"-"`
}

// MatchedAtoms returns the indices of matched atoms in ascending order.
func (a *AnnotatedGraph) MatchedAtoms() []int {
	var out []int
	for i, at := range a.Atoms {
		if at.Matched {
			out = append(out, i)
		}
	}
	return out
}

// Annotated decodes the result graph and flags the atoms covered by
// Mapping.  The graph is decoded at most once.
func (r *Result) Annotated(ctx context.Context) (*AnnotatedGraph, error) {
	r.annOnce.Do(func() {
		var g *molecule.MolGraph
		if r.payload != nil {
			g, r.annErr = r.payload.Graph(ctx)
		} else {
			g, r.annErr = molecule.DecodeGraph(r.Record.Graph)
		}
		if r.annErr != nil {
			return
		}
		ann := &AnnotatedGraph{
			Atoms: make([]AnnotatedAtom, g.NodeCount()),
			Bonds: g.Bonds(),
			Graph: g,
		}
		for i := range ann.Atoms {
			ann.Atoms[i].Atom = g.Atom(i)
		}
		for _, t := range r.Mapping {
			if t > 0 && t <= len(ann.Atoms) {
				ann.Atoms[t-1].Matched = true
			}
		}
		r.ann = ann
	})
	return r.ann, r.annErr
}

func (r *Result) size() int {
	if r.Record == nil {
		return 0
	}
	return r.Record.Size
}

// Compare orders results best first: descending similarity with missing
// similarities last, then ascending record size, then ascending id.
// PoisonResult is greater than everything else.
func Compare(a, b *Result) int {
	switch {
	case a.poison && b.poison:
		return 0
	case a.poison:
		return 1
	case b.poison:
		return -1
	}
	switch {
	case a.Similarity != nil && b.Similarity != nil:
		if *a.Similarity > *b.Similarity {
			return -1
		}
		if *a.Similarity < *b.Similarity {
			return 1
		}
	case a.Similarity != nil:
		return -1
	case b.Similarity != nil:
		return 1
	}
	if sa, sb := a.size(), b.size(); sa != sb {
		if sa < sb {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}
