package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/pkg/errors"
)

func ring(n int, element string, aromatic bool, order molecule.BondOrder) *molecule.MolGraph {
	atoms := make([]molecule.Atom, n)
	bonds := make([]molecule.Bond, n)
	for i := range atoms {
		atoms[i] = molecule.Atom{Element: element, Aromatic: aromatic}
		bonds[i] = molecule.Bond{From: i, To: (i + 1) % n, Order: order}
	}
	return molecule.MustMolGraph(atoms, bonds)
}

func benzene() *molecule.MolGraph {
	return ring(6, "C", true, molecule.BondAromatic)
}

// phenol is benzene with an oxygen pendant on atom 0.
func phenol() *molecule.MolGraph {
	b := benzene()
	atoms := append(b.Atoms(), molecule.Atom{Element: "O"})
	bonds := append(b.Bonds(), molecule.Bond{From: 0, To: 6, Order: molecule.BondSingle})
	return molecule.MustMolGraph(atoms, bonds)
}

type snapshot struct {
	qcore, tcore, qmap, tmap []int
	corelen                  int
}

func snap(s *State) snapshot {
	return snapshot{
		qcore:   append([]int(nil), s.qcore...),
		tcore:   append([]int(nil), s.tcore...),
		qmap:    append([]int(nil), s.qmap...),
		tmap:    append([]int(nil), s.tmap...),
		corelen: s.corelen,
	}
}

func firstFeasible(s *State) (Pair, bool) {
	prev := NoPair
	for {
		p, ok := s.Next(prev)
		if !ok {
			return NoPair, false
		}
		if s.IsFeasible(p) {
			return p, true
		}
		prev = p
	}
}

func TestState_BacktrackIsLossless(t *testing.T) {
	s := NewSubgraphIsomorphism(benzene(), phenol())

	for depth := 0; depth < 6; depth++ {
		p, ok := firstFeasible(s)
		require.True(t, ok, "depth %d", depth)

		before := snap(s)
		s.Add(p)
		assert.Equal(t, before.corelen+1, s.CoreLen())
		s.Backtrack()
		assert.Equal(t, before, snap(s), "depth %d", depth)

		// descend for the next round
		s.Add(p)
		s = s.Clone()
	}
	assert.True(t, s.IsGoal())
}

func TestState_BacktrackWithoutAddIsNoop(t *testing.T) {
	s := NewSubgraphIsomorphism(benzene(), phenol())
	before := snap(s)
	s.Backtrack()
	assert.Equal(t, before, snap(s))

	c := s.Clone()
	c.Add(Pair{Query: 0, Target: 0})
	assert.Equal(t, before, snap(s), "clone must not alias the parent")
}

func TestState_NextRestrictsToTerminalSets(t *testing.T) {
	s := NewSubgraphIsomorphism(benzene(), phenol())

	p, ok := s.Next(NoPair)
	require.True(t, ok)
	assert.Equal(t, Pair{Query: 0, Target: 0}, p)

	s.Add(p)
	var targets []int
	for prev := NoPair; ; {
		next, ok := s.Next(prev)
		if !ok {
			break
		}
		assert.Equal(t, 1, next.Query)
		targets = append(targets, next.Target)
		prev = next
	}
	assert.Equal(t, []int{1, 5, 6}, targets)
}

func TestSubgraph_RingInRingWithPendant(t *testing.T) {
	ctx := context.Background()

	mapping, found, err := FindEmbedding(ctx, benzene(), phenol())
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, mapping, 6)
	seen := map[int]bool{}
	for _, m := range mapping {
		assert.GreaterOrEqual(t, m, 1)
		assert.LessOrEqual(t, m, 6, "oxygen must never be mapped")
		seen[m] = true
	}
	assert.Len(t, seen, 6)

	found, err = IsSubgraph(ctx, phenol(), benzene())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSubgraph_GoalOnlyForGenuineSubgraph(t *testing.T) {
	ctx := context.Background()

	cyclohexane := ring(6, "C", false, molecule.BondSingle)
	found, err := IsSubgraph(ctx, cyclohexane, phenol())
	require.NoError(t, err)
	assert.False(t, found, "aliphatic ring must not match aromatic ring")

	found, err = IsSubgraph(ctx, ring(5, "C", true, molecule.BondAromatic), phenol())
	require.NoError(t, err)
	assert.False(t, found)

	chain := molecule.MustMolGraph(
		[]molecule.Atom{{Element: "C", Aromatic: true}, {Element: "C", Aromatic: true}, {Element: "O"}},
		[]molecule.Bond{{From: 0, To: 1, Order: molecule.BondAromatic}, {From: 0, To: 2, Order: molecule.BondSingle}},
	)
	found, err = IsSubgraph(ctx, chain, phenol())
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSubgraph_EdgeMatcher(t *testing.T) {
	ctx := context.Background()
	atoms := []molecule.Atom{{Element: "C"}, {Element: "O"}}
	carbonyl := molecule.MustMolGraph(atoms, []molecule.Bond{{From: 0, To: 1, Order: molecule.BondDouble}})
	hydroxyl := molecule.MustMolGraph(atoms, []molecule.Bond{{From: 0, To: 1, Order: molecule.BondSingle}})
	wildcard := molecule.MustMolGraph(atoms, []molecule.Bond{{From: 0, To: 1, Order: molecule.BondAny}})

	found, err := IsSubgraph(ctx, carbonyl, hydroxyl)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = IsSubgraph(ctx, wildcard, hydroxyl)
	require.NoError(t, err)
	assert.True(t, found)

	anyBond := WithEdgeMatcher(func(_, _ molecule.Bond) bool { return true })
	found, err = IsSubgraph(ctx, carbonyl, hydroxyl, anyBond)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSubgraph_NodeMatcherCharge(t *testing.T) {
	ctx := context.Background()
	neutral := molecule.MustMolGraph([]molecule.Atom{{Element: "N"}}, nil)
	charged := molecule.MustMolGraph([]molecule.Atom{{Element: "N", Charge: 1}}, nil)

	found, err := IsSubgraph(ctx, neutral, charged)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = IsSubgraph(ctx, neutral, charged, WithNodeMatcher(molecule.ElementChargeAromaticity))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIsomorphism(t *testing.T) {
	ctx := context.Background()

	ok, err := IsIsomorphic(ctx, benzene(), benzene())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsIsomorphic(ctx, benzene(), phenol())
	require.NoError(t, err)
	assert.False(t, ok)

	// same atoms, rotated numbering
	p := phenol()
	rotated := molecule.MustMolGraph(
		[]molecule.Atom{{Element: "O"}, {Element: "C", Aromatic: true}, {Element: "C", Aromatic: true}, {Element: "C", Aromatic: true}, {Element: "C", Aromatic: true}, {Element: "C", Aromatic: true}, {Element: "C", Aromatic: true}},
		[]molecule.Bond{
			{From: 0, To: 3, Order: molecule.BondSingle},
			{From: 1, To: 2, Order: molecule.BondAromatic},
			{From: 2, To: 3, Order: molecule.BondAromatic},
			{From: 3, To: 4, Order: molecule.BondAromatic},
			{From: 4, To: 5, Order: molecule.BondAromatic},
			{From: 5, To: 6, Order: molecule.BondAromatic},
			{From: 6, To: 1, Order: molecule.BondAromatic},
		},
	)
	ok, err = IsIsomorphic(ctx, p, rotated)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVisitors_AllAndUnique(t *testing.T) {
	ctx := context.Background()

	var all AllMatches
	found, err := Search(ctx, NewSubgraphIsomorphism(benzene(), phenol()), &all)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, all.Mappings, 12)

	var unique UniqueMatches
	_, err = Search(ctx, NewSubgraphIsomorphism(benzene(), phenol()), &unique)
	require.NoError(t, err)
	assert.Len(t, unique.Mappings, 1)

	limited := AllMatches{Limit: 3}
	_, err = Search(ctx, NewSubgraphIsomorphism(benzene(), phenol()), &limited)
	require.NoError(t, err)
	assert.Len(t, limited.Mappings, 3)
}

func TestAutomorphisms(t *testing.T) {
	ctx := context.Background()

	autos, err := Automorphisms(ctx, benzene())
	require.NoError(t, err)
	assert.Len(t, autos, 12)

	autos, err = Automorphisms(ctx, phenol())
	require.NoError(t, err)
	assert.Len(t, autos, 2)
	assert.Contains(t, autos, []int{1, 2, 3, 4, 5, 6, 7})
	assert.Contains(t, autos, []int{1, 6, 5, 4, 3, 2, 7})
}

func TestPartition(t *testing.T) {
	classes := Partition(phenol())
	assert.Equal(t, classes[1], classes[5])
	assert.Equal(t, classes[2], classes[4])
	assert.NotEqual(t, classes[0], classes[3])
	assert.NotEqual(t, classes[1], classes[2])
	assert.NotEqual(t, classes[6], classes[0])

	uniform := Partition(benzene())
	for _, c := range uniform {
		assert.Equal(t, uniform[0], c)
	}
}

func TestSearch_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Search(ctx, NewSubgraphIsomorphism(benzene(), phenol()), &FirstMatch{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMatchAborted))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_DeadlineBoundsEnumeration(t *testing.T) {
	// an expired deadline aborts before the first node is expanded
	big := ring(60, "C", false, molecule.BondSingle)
	small := ring(12, "C", false, molecule.BondSingle)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := Search(ctx, NewSubgraphIsomorphism(small, big), &AllMatches{})
	assert.True(t, errors.IsCode(err, errors.CodeMatchAborted))
}

func TestVisitorFunc(t *testing.T) {
	calls := 0
	v := VisitorFunc(func(m []int) bool {
		calls++
		return calls < 2
	})
	found, err := Search(context.Background(), NewSubgraphIsomorphism(benzene(), phenol()), v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, calls)
}
