// Package match implements VF2-style graph matching: a cloneable,
// backtrackable state over partial node mappings plus a depth-first search
// driver.  Isomorphism, subgraph isomorphism and automorphism share the
// State type and differ only in their Rules.
package match

import (
	"github.com/turtacn/molsearch/internal/domain/molecule"
)

// Empty marks an unset core slot or pair member.
const Empty = -1

// Pair is a candidate extension of the mapping.
type Pair struct {
	Query  int
	Target int
}

// NoPair starts a Next enumeration.
var NoPair = Pair{Query: Empty, Target: Empty}

// State is a partial mapping between a query and a target graph.
//
// qmap/tmap hold the core length at which a node entered the mapping or
// became adjacent to it (0 = neither).  A node with a non-zero stamp and an
// Empty core slot is in the terminal set.
type State struct {
	query  molecule.Graph
	target molecule.Graph
	rules  *Rules

	qcore []int
	tcore []int
	qmap  []int
	tmap  []int

	corelen     int
	origCoreLen int
	lastAdded   int

	// number of non-zero qmap/tmap entries (core plus terminal)
	qmapLen int
	tmapLen int
}

func newState(query, target molecule.Graph, rules *Rules) *State {
	qlen, tlen := query.NodeCount(), target.NodeCount()
	s := &State{
		query:     query,
		target:    target,
		rules:     rules,
		qcore:     make([]int, qlen),
		tcore:     make([]int, tlen),
		qmap:      make([]int, qlen),
		tmap:      make([]int, tlen),
		lastAdded: Empty,
	}
	for i := range s.qcore {
		s.qcore[i] = Empty
	}
	for i := range s.tcore {
		s.tcore[i] = Empty
	}
	return s
}

// Query returns the query graph.
func (s *State) Query() molecule.Graph { return s.query }

// Target returns the target graph.
func (s *State) Target() molecule.Graph { return s.target }

// CoreLen returns the number of mapped pairs.
func (s *State) CoreLen() int { return s.corelen }

// QueryLen and TargetLen return the node counts.
func (s *State) QueryLen() int  { return len(s.qcore) }
func (s *State) TargetLen() int { return len(s.tcore) }

// QueryCore returns a copy of the query-side core (target index or Empty).
func (s *State) QueryCore() []int { return append([]int(nil), s.qcore...) }

// TargetCore returns a copy of the target-side core (query index or Empty).
func (s *State) TargetCore() []int { return append([]int(nil), s.tcore...) }

// Clone returns an independent copy.  The clone's backtrack baseline is its
// current core length.
func (s *State) Clone() *State {
	c := *s
	c.qcore = append([]int(nil), s.qcore...)
	c.tcore = append([]int(nil), s.tcore...)
	c.qmap = append([]int(nil), s.qmap...)
	c.tmap = append([]int(nil), s.tmap...)
	c.origCoreLen = s.corelen
	c.lastAdded = Empty
	return &c
}

func (s *State) terminalSetsNonEmpty() bool {
	return s.qmapLen > s.corelen && s.tmapLen > s.corelen
}

// Next returns the candidate following prev (NoPair to start).  All
// candidates of one level share the first eligible query node; when both
// terminal sets are non-empty only terminal nodes are eligible.
func (s *State) Next(prev Pair) (Pair, bool) {
	useTerminal := s.terminalSetsNonEmpty()

	q, t := prev.Query, prev.Target+1
	if prev.Query == Empty {
		q, t = 0, 0
		for q < len(s.qcore) && (s.qcore[q] != Empty || (useTerminal && s.qmap[q] == 0)) {
			q++
		}
	}
	if q < 0 || q >= len(s.qcore) {
		return NoPair, false
	}
	for ; t < len(s.tcore); t++ {
		if s.tcore[t] == Empty && (!useTerminal || s.tmap[t] != 0) {
			return Pair{Query: q, Target: t}, true
		}
	}
	return NoPair, false
}

// IsFeasible checks node compatibility, consistency of edges to already
// mapped neighbours and the terminal-set counting look-ahead.
func (s *State) IsFeasible(p Pair) bool {
	q, t := p.Query, p.Target
	if s.qcore[q] != Empty || s.tcore[t] != Empty {
		return false
	}
	if !s.rules.Node(q, t) {
		return false
	}

	qTerm, tTerm := 0, 0
	for _, qn := range s.query.Neighbors(q) {
		if tn := s.qcore[qn]; tn != Empty {
			if _, ok := s.target.EdgeBetween(t, tn); !ok {
				return false
			}
			if !s.rules.Edge(q, qn, t, tn) {
				return false
			}
		} else if s.qmap[qn] != 0 {
			qTerm++
		}
	}
	for _, tn := range s.target.Neighbors(t) {
		if qn := s.tcore[tn]; qn != Empty {
			if s.rules.Strict {
				if _, ok := s.query.EdgeBetween(q, qn); !ok {
					return false
				}
			}
		} else if s.tmap[tn] != 0 {
			tTerm++
		}
	}

	if s.rules.Strict {
		return qTerm == tTerm
	}
	return qTerm <= tTerm
}

// Add commits p and stamps p's endpoints and their unstamped neighbours
// with the new core length.
func (s *State) Add(p Pair) {
	q, t := p.Query, p.Target
	s.origCoreLen = s.corelen
	s.qcore[q] = t
	s.tcore[t] = q
	s.corelen++
	s.lastAdded = q

	gen := s.corelen
	if s.qmap[q] == 0 {
		s.qmap[q] = gen
		s.qmapLen++
	}
	for _, qn := range s.query.Neighbors(q) {
		if s.qmap[qn] == 0 {
			s.qmap[qn] = gen
			s.qmapLen++
		}
	}
	if s.tmap[t] == 0 {
		s.tmap[t] = gen
		s.tmapLen++
	}
	for _, tn := range s.target.Neighbors(t) {
		if s.tmap[tn] == 0 {
			s.tmap[tn] = gen
			s.tmapLen++
		}
	}
}

// Backtrack undoes the most recent Add.  Calling it without a preceding Add
// is a no-op.
func (s *State) Backtrack() {
	if s.lastAdded == Empty || s.corelen <= s.origCoreLen {
		return
	}
	q := s.lastAdded
	t := s.qcore[q]
	gen := s.corelen

	if s.qmap[q] == gen {
		s.qmap[q] = 0
		s.qmapLen--
	}
	for _, qn := range s.query.Neighbors(q) {
		if s.qmap[qn] == gen {
			s.qmap[qn] = 0
			s.qmapLen--
		}
	}
	if s.tmap[t] == gen {
		s.tmap[t] = 0
		s.tmapLen--
	}
	for _, tn := range s.target.Neighbors(t) {
		if s.tmap[tn] == gen {
			s.tmap[tn] = 0
			s.tmapLen--
		}
	}

	s.qcore[q] = Empty
	s.tcore[t] = Empty
	s.corelen = s.origCoreLen
	s.lastAdded = Empty
}

// IsGoal reports whether the mapping is complete for this variant.
func (s *State) IsGoal() bool { return s.rules.Goal(s) }

// IsDead reports whether no extension of this state can reach a goal.
func (s *State) IsDead() bool { return s.rules.Dead(s) }

// Mapping returns, per query node, the matched target index plus one
// (0 = unmapped).
func (s *State) Mapping() []int {
	out := make([]int, len(s.qcore))
	for i, t := range s.qcore {
		if t != Empty {
			out[i] = t + 1
		}
	}
	return out
}
