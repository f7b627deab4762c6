package search

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/domain/molecule"
)

func sim(v float64) *float64 { return &v }

func TestCompare_DescendingSimilarityNilLast(t *testing.T) {
	rs := []*Result{
		{ID: "a", Similarity: sim(0.9)},
		{ID: "b", Similarity: sim(0.95)},
		{ID: "c", Similarity: sim(0.4)},
		{ID: "d"},
	}
	slices.SortFunc(rs, Compare)

	var got []string
	for _, r := range rs {
		got = append(got, r.ID)
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, got)
}

func TestCompare_TieBreaks(t *testing.T) {
	small := &Result{ID: "z", Record: &document.Record{Size: 3}, Similarity: sim(0.5)}
	large := &Result{ID: "a", Record: &document.Record{Size: 5}, Similarity: sim(0.5)}
	assert.Equal(t, -1, Compare(small, large))
	assert.Equal(t, 1, Compare(large, small))

	x := &Result{ID: "x", Record: &document.Record{Size: 4}}
	y := &Result{ID: "y", Record: &document.Record{Size: 4}}
	assert.Equal(t, -1, Compare(x, y))
	assert.Equal(t, 0, Compare(x, x))
}

func TestCompare_NilSimilaritiesAreEqual(t *testing.T) {
	a := &Result{ID: "a", Record: &document.Record{Size: 9}}
	b := &Result{ID: "b", Record: &document.Record{Size: 2}}
	// size decides once similarity ties
	assert.Equal(t, 1, Compare(a, b))
}

func TestCompare_PoisonIsMaximum(t *testing.T) {
	best := &Result{ID: "a", Similarity: sim(1)}
	worst := &Result{ID: "zzz"}
	assert.Equal(t, 1, Compare(PoisonResult, best))
	assert.Equal(t, 1, Compare(PoisonResult, worst))
	assert.Equal(t, -1, Compare(worst, PoisonResult))
	assert.Equal(t, 0, Compare(PoisonResult, PoisonResult))
}

func TestResult_Annotated(t *testing.T) {
	g := substitutedRing()
	data, err := molecule.EncodeGraph(g)
	require.NoError(t, err)

	r := &Result{
		ID:      "b",
		Record:  &document.Record{ID: "b", Size: g.NodeCount(), Graph: data},
		Mapping: []int{1, 2, 3, 4, 5, 6},
	}
	ann, err := r.Annotated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, ann.MatchedAtoms())
	assert.False(t, ann.Atoms[6].Matched)
	assert.Equal(t, "O", ann.Atoms[6].Element)
	assert.Len(t, ann.Bonds, 7)

	again, err := r.Annotated(context.Background())
	require.NoError(t, err)
	assert.Same(t, ann, again)
}

func TestResult_AnnotatedDecodeFailure(t *testing.T) {
	r := &Result{ID: "x", Record: &document.Record{ID: "x", Graph: []byte("not a graph")}}
	_, err := r.Annotated(context.Background())
	assert.Error(t, err)
}
