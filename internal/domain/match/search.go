package match

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/pkg/errors"
)

// Visitor receives each complete mapping (query index -> target index+1).
// Returning false stops the search.
type Visitor interface {
	Visit(mapping []int) bool
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(mapping []int) bool

func (f VisitorFunc) Visit(mapping []int) bool { return f(mapping) }

// FirstMatch stops at the first mapping.
type FirstMatch struct {
	Mapping []int
}

func (f *FirstMatch) Visit(mapping []int) bool {
	f.Mapping = mapping
	return false
}

// Found reports whether a mapping was recorded.
func (f *FirstMatch) Found() bool { return f.Mapping != nil }

// AllMatches collects every mapping, up to Limit when Limit > 0.
type AllMatches struct {
	Limit    int
	Mappings [][]int
}

func (a *AllMatches) Visit(mapping []int) bool {
	a.Mappings = append(a.Mappings, mapping)
	return a.Limit <= 0 || len(a.Mappings) < a.Limit
}

// UniqueMatches collects mappings with distinct induced target node sets.
type UniqueMatches struct {
	Limit    int
	Mappings [][]int
	seen     map[string]struct{}
}

func (u *UniqueMatches) Visit(mapping []int) bool {
	if u.seen == nil {
		u.seen = make(map[string]struct{})
	}
	targets := make([]int, 0, len(mapping))
	for _, t := range mapping {
		if t > 0 {
			targets = append(targets, t)
		}
	}
	sort.Ints(targets)
	var sb strings.Builder
	for _, t := range targets {
		sb.WriteString(strconv.Itoa(t))
		sb.WriteByte(',')
	}
	key := sb.String()
	if _, dup := u.seen[key]; !dup {
		u.seen[key] = struct{}{}
		u.Mappings = append(u.Mappings, mapping)
	}
	return u.Limit <= 0 || len(u.Mappings) < u.Limit
}

// Search runs a depth-first search from s, reporting goal states to v.
// The parent state is never mutated: each descent works on a clone.  It
// returns whether any goal was reached.  Cancellation or deadline of ctx
// aborts the search with CodeMatchAborted.
func Search(ctx context.Context, s *State, v Visitor) (bool, error) {
	_, found, err := search(ctx, s, v)
	if err != nil {
		return found, errors.Wrap(err, errors.CodeMatchAborted, "structure match aborted")
	}
	return found, nil
}

func search(ctx context.Context, s *State, v Visitor) (stop, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return true, false, err
	}
	if s.IsGoal() {
		return !v.Visit(s.Mapping()), true, nil
	}
	if s.IsDead() {
		return false, false, nil
	}

	prev := NoPair
	for {
		p, ok := s.Next(prev)
		if !ok {
			break
		}
		prev = p
		if !s.IsFeasible(p) {
			continue
		}
		child := s.Clone()
		child.Add(p)
		childStop, childFound, err := search(ctx, child, v)
		found = found || childFound
		if err != nil || childStop {
			return true, found, err
		}
	}
	return false, found, nil
}

// IsSubgraph reports whether query embeds into target.
func IsSubgraph(ctx context.Context, query, target molecule.Graph, opts ...Option) (bool, error) {
	_, ok, err := FindEmbedding(ctx, query, target, opts...)
	return ok, err
}

// FindEmbedding returns the first subgraph embedding of query in target.
func FindEmbedding(ctx context.Context, query, target molecule.Graph, opts ...Option) ([]int, bool, error) {
	var first FirstMatch
	found, err := Search(ctx, NewSubgraphIsomorphism(query, target, opts...), &first)
	if err != nil {
		return nil, false, err
	}
	return first.Mapping, found, nil
}

// IsIsomorphic reports whether a and b are isomorphic.
func IsIsomorphic(ctx context.Context, a, b molecule.Graph, opts ...Option) (bool, error) {
	var first FirstMatch
	return Search(ctx, NewIsomorphism(a, b, opts...), &first)
}

// Automorphisms enumerates every automorphism of g, identity included.
// The enumeration is exponential in the worst case; bound it through ctx.
func Automorphisms(ctx context.Context, g molecule.Graph) ([][]int, error) {
	var all AllMatches
	if _, err := Search(ctx, NewAutomorphism(g), &all); err != nil {
		return nil, err
	}
	return all.Mappings, nil
}
