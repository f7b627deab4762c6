// Package molecule models molecular graphs and their fingerprints.  Graphs
// are read-only once built; fingerprints are immutable fixed-length bit
// vectors produced by a Generator.
package molecule

import (
	"sort"

	"github.com/turtacn/molsearch/pkg/errors"
)

// BondOrder is the order of a bond.  BondAny is a query wildcard.
type BondOrder int

const (
	BondAny BondOrder = iota
	BondSingle
	BondDouble
	BondTriple
	BondAromatic
)

func (o BondOrder) String() string {
	switch o {
	case BondAny:
		return "any"
	case BondSingle:
		return "single"
	case BondDouble:
		return "double"
	case BondTriple:
		return "triple"
	case BondAromatic:
		return "aromatic"
	default:
		return "unknown"
	}
}

// IsValid reports whether o is one of the defined orders.
func (o BondOrder) IsValid() bool {
	return o >= BondAny && o <= BondAromatic
}

// Atom is a graph node.
type Atom struct {
	Element  string `json:"element"`
	Charge   int    `json:"charge,omitempty"`
	Aromatic bool   `json:"aromatic,omitempty"`
}

// Bond is an undirected graph edge between atom indices From and To.
type Bond struct {
	From  int       `json:"from"`
	To    int       `json:"to"`
	Order BondOrder `json:"order"`
}

// Graph is the read-only view the matcher and the fingerprint generator
// consume.  Node indices are dense in [0, NodeCount()).
type Graph interface {
	NodeCount() int
	EdgeCount() int
	// Neighbors returns adjacent node indices in ascending order.  Callers
	// must not modify the returned slice.
	Neighbors(i int) []int
	// EdgeBetween returns the bond joining i and j, if any.
	EdgeBetween(i, j int) (Bond, bool)
	Atom(i int) Atom
}

type edgeKey struct{ lo, hi int }

func keyOf(i, j int) edgeKey {
	if i > j {
		i, j = j, i
	}
	return edgeKey{lo: i, hi: j}
}

// MolGraph is the concrete Graph implementation.
type MolGraph struct {
	atoms []Atom
	bonds []Bond
	adj   [][]int
	edges map[edgeKey]int
}

// NewMolGraph validates atoms and bonds and builds the adjacency index.
// Out-of-range endpoints, self loops, duplicate bonds, empty elements and
// unknown bond orders are rejected with CodeInvalidGraph.
func NewMolGraph(atoms []Atom, bonds []Bond) (*MolGraph, error) {
	g := &MolGraph{
		atoms: make([]Atom, len(atoms)),
		bonds: make([]Bond, 0, len(bonds)),
		adj:   make([][]int, len(atoms)),
		edges: make(map[edgeKey]int, len(bonds)),
	}
	for i, a := range atoms {
		if a.Element == "" {
			return nil, errors.Newf(errors.CodeInvalidGraph, "atom %d has no element", i)
		}
		g.atoms[i] = a
	}
	for i, b := range bonds {
		if b.From < 0 || b.From >= len(atoms) || b.To < 0 || b.To >= len(atoms) {
			return nil, errors.Newf(errors.CodeInvalidGraph, "bond %d endpoint out of range (%d-%d, %d atoms)", i, b.From, b.To, len(atoms))
		}
		if b.From == b.To {
			return nil, errors.Newf(errors.CodeInvalidGraph, "bond %d is a self loop on atom %d", i, b.From)
		}
		if !b.Order.IsValid() {
			return nil, errors.Newf(errors.CodeInvalidGraph, "bond %d has unknown order %d", i, b.Order)
		}
		k := keyOf(b.From, b.To)
		if _, dup := g.edges[k]; dup {
			return nil, errors.Newf(errors.CodeInvalidGraph, "duplicate bond between atoms %d and %d", b.From, b.To)
		}
		g.edges[k] = len(g.bonds)
		g.bonds = append(g.bonds, b)
		g.adj[b.From] = append(g.adj[b.From], b.To)
		g.adj[b.To] = append(g.adj[b.To], b.From)
	}
	for _, nb := range g.adj {
		sort.Ints(nb)
	}
	return g, nil
}

// MustMolGraph is NewMolGraph that panics; intended for fixtures.
func MustMolGraph(atoms []Atom, bonds []Bond) *MolGraph {
	g, err := NewMolGraph(atoms, bonds)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *MolGraph) NodeCount() int { return len(g.atoms) }

func (g *MolGraph) EdgeCount() int { return len(g.bonds) }

func (g *MolGraph) Neighbors(i int) []int { return g.adj[i] }

func (g *MolGraph) Atom(i int) Atom { return g.atoms[i] }

func (g *MolGraph) EdgeBetween(i, j int) (Bond, bool) {
	idx, ok := g.edges[keyOf(i, j)]
	if !ok {
		return Bond{}, false
	}
	return g.bonds[idx], true
}

// Atoms returns a copy of the atom list.
func (g *MolGraph) Atoms() []Atom {
	out := make([]Atom, len(g.atoms))
	copy(out, g.atoms)
	return out
}

// Bonds returns a copy of the bond list in insertion order.
func (g *MolGraph) Bonds() []Bond {
	out := make([]Bond, len(g.bonds))
	copy(out, g.bonds)
	return out
}

// NodeMatcher decides whether query atom q may map onto target atom t.
type NodeMatcher func(q, t Atom) bool

// EdgeMatcher decides whether query bond q may map onto target bond t.
type EdgeMatcher func(q, t Bond) bool

// ElementAromaticity is the default node comparator.
func ElementAromaticity(q, t Atom) bool {
	return q.Element == t.Element && q.Aromatic == t.Aromatic
}

// ElementChargeAromaticity additionally requires equal formal charge.
func ElementChargeAromaticity(q, t Atom) bool {
	return ElementAromaticity(q, t) && q.Charge == t.Charge
}

// BondOrderOrWildcard is the default edge comparator.
func BondOrderOrWildcard(q, t Bond) bool {
	return q.Order == BondAny || t.Order == BondAny || q.Order == t.Order
}
