package molecule

import (
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"

	"github.com/turtacn/molsearch/pkg/errors"
)

// Generator derives a fixed-length fingerprint from a graph.  The same
// Generator must be used for stored documents and queries.
type Generator interface {
	Generate(g Graph) (*Fingerprint, error)
	Size() int
}

// PathGenerator hashes every simple path of up to MaxPathLength atoms onto
// Bits positions.  Path labels use element and aromaticity only, so any
// embedding accepted by ElementAromaticity (or a stricter comparator) maps
// query paths onto target paths with identical labels, keeping the query
// fingerprint a subset of the target's.
type PathGenerator struct {
	Bits          int
	MaxPathLength int
}

// NewPathGenerator validates the parameters.
func NewPathGenerator(bits, maxPathLength int) (*PathGenerator, error) {
	if bits <= 0 {
		return nil, errors.Newf(errors.CodeInvalidFingerprint, "fingerprint bits must be positive, got %d", bits)
	}
	if maxPathLength < 1 {
		return nil, errors.Newf(errors.CodeInvalidFingerprint, "max path length must be >= 1, got %d", maxPathLength)
	}
	return &PathGenerator{Bits: bits, MaxPathLength: maxPathLength}, nil
}

func (p *PathGenerator) Size() int { return p.Bits }

func atomLabel(a Atom) string {
	if a.Aromatic {
		return strings.ToLower(a.Element)
	}
	return a.Element
}

// Generate enumerates paths by depth-first search from every atom.
func (p *PathGenerator) Generate(g Graph) (*Fingerprint, error) {
	if g == nil || g.NodeCount() == 0 {
		return nil, errors.New(errors.CodeInvalidGraph, "cannot fingerprint an empty graph")
	}
	n := g.NodeCount()
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		labels[i] = atomLabel(g.Atom(i))
	}

	bs := bitset.New(uint(p.Bits))
	onPath := make([]bool, n)
	path := make([]int, 0, p.MaxPathLength)

	var walk func(v int)
	walk = func(v int) {
		path = append(path, v)
		onPath[v] = true
		bs.Set(uint(p.pathHash(path, labels) % uint64(p.Bits)))
		if len(path) < p.MaxPathLength {
			for _, w := range g.Neighbors(v) {
				if !onPath[w] {
					walk(w)
				}
			}
		}
		onPath[v] = false
		path = path[:len(path)-1]
	}
	for v := 0; v < n; v++ {
		walk(v)
	}
	return newFingerprint(bs, p.Bits), nil
}

// pathHash hashes the lexicographically smaller of the forward and reverse
// label sequences so a path hashes the same from either end.
func (p *PathGenerator) pathHash(path []int, labels []string) uint64 {
	var fwd, rev strings.Builder
	for i := range path {
		fwd.WriteString(labels[path[i]])
		fwd.WriteByte('-')
		rev.WriteString(labels[path[len(path)-1-i]])
		rev.WriteByte('-')
	}
	f, r := fwd.String(), rev.String()
	if r < f {
		f = r
	}
	return xxhash.Sum64String(f)
}
