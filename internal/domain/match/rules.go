package match

import (
	"github.com/turtacn/molsearch/internal/domain/molecule"
)

// Rules are the pluggable predicates that distinguish the match variants.
type Rules struct {
	// Node reports whether query node q may map to target node t.
	Node func(q, t int) bool
	// Edge reports whether query edge (q1,q2) is compatible with target
	// edge (t1,t2).  Both edges are known to exist.
	Edge func(q1, q2, t1, t2 int) bool
	Goal func(s *State) bool
	Dead func(s *State) bool
	// Strict requires edge consistency and terminal counts in both
	// directions (isomorphism and automorphism).
	Strict bool
}

type options struct {
	node molecule.NodeMatcher
	edge molecule.EdgeMatcher
}

// Option customises the comparators of a match state.
type Option func(*options)

// WithNodeMatcher replaces the default element+aromaticity comparator.
func WithNodeMatcher(m molecule.NodeMatcher) Option {
	return func(o *options) {
		if m != nil {
			o.node = m
		}
	}
}

// WithEdgeMatcher replaces the default bond-order-or-wildcard comparator.
func WithEdgeMatcher(m molecule.EdgeMatcher) Option {
	return func(o *options) {
		if m != nil {
			o.edge = m
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{node: molecule.ElementAromaticity, edge: molecule.BondOrderOrWildcard}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func comparatorRules(query, target molecule.Graph, o options) *Rules {
	return &Rules{
		Node: func(q, t int) bool {
			return o.node(query.Atom(q), target.Atom(t))
		},
		Edge: func(q1, q2, t1, t2 int) bool {
			qb, _ := query.EdgeBetween(q1, q2)
			tb, _ := target.EdgeBetween(t1, t2)
			return o.edge(qb, tb)
		},
	}
}

// NewIsomorphism builds a state that succeeds when query and target are
// isomorphic.
func NewIsomorphism(query, target molecule.Graph, opts ...Option) *State {
	r := comparatorRules(query, target, buildOptions(opts))
	r.Strict = true
	r.Goal = func(s *State) bool {
		return s.corelen == len(s.qcore) && len(s.qcore) == len(s.tcore)
	}
	r.Dead = func(s *State) bool {
		return len(s.qcore) != len(s.tcore) ||
			s.query.EdgeCount() != s.target.EdgeCount() ||
			s.qmapLen != s.tmapLen
	}
	return newState(query, target, r)
}

// NewSubgraphIsomorphism builds a state that succeeds when every query node
// is mapped into the target with all query edges present.  Extra target
// edges between mapped nodes are allowed.
func NewSubgraphIsomorphism(query, target molecule.Graph, opts ...Option) *State {
	r := comparatorRules(query, target, buildOptions(opts))
	r.Goal = func(s *State) bool {
		return s.corelen == len(s.qcore)
	}
	r.Dead = func(s *State) bool {
		return len(s.qcore) > len(s.tcore) ||
			s.query.EdgeCount() > s.target.EdgeCount() ||
			s.qmapLen > s.tmapLen
	}
	return newState(query, target, r)
}

// NewAutomorphism builds a state mapping g onto itself.  Nodes are
// compatible when they share a Partition class; all edges are compatible.
func NewAutomorphism(g molecule.Graph) *State {
	classes := Partition(g)
	r := &Rules{
		Node:   func(q, t int) bool { return classes[q] == classes[t] },
		Edge:   func(_, _, _, _ int) bool { return true },
		Strict: true,
		Goal: func(s *State) bool {
			return s.corelen == len(s.qcore)
		},
		Dead: func(s *State) bool {
			return s.qmapLen != s.tmapLen
		},
	}
	return newState(g, g, r)
}

// NewState builds a state with caller-supplied rules.
func NewState(query, target molecule.Graph, rules Rules) *State {
	return newState(query, target, &rules)
}
