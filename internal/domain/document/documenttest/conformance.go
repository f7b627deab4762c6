// Package documenttest holds the behavioural checks every document.Store
// implementation must pass.
package documenttest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molsearch/internal/domain/document"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) document.Store

// Record builds a minimal valid record.
func Record(id string, size int, terms ...string) *document.Record {
	return &document.Record{
		ID:          id,
		Name:        "mol-" + id,
		Size:        size,
		Graph:       []byte("graph-" + id),
		Fingerprint: []byte{0x01, 0x02},
		Terms:       terms,
	}
}

// Run executes the conformance checks against stores produced by f.
func Run(t *testing.T, f Factory) {
	t.Run("CommitVisibility", func(t *testing.T) { testCommitVisibility(t, f(t)) })
	t.Run("QueryTerms", func(t *testing.T) { testQueryTerms(t, f(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, f(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, f(t)) })
	t.Run("Validation", func(t *testing.T) { testValidation(t, f(t)) })
}

func testCommitVisibility(t *testing.T, s document.Store) {
	ctx := context.Background()
	defer s.Close()

	require.NoError(t, s.Add(ctx, Record("a", 6, "cb:01")))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "uncommitted add must be invisible")
	_, err = s.Get(ctx, "a")
	assert.True(t, document.IsNotFound(err))

	require.NoError(t, s.Commit(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "mol-a", got.Name)
	assert.Equal(t, 6, got.Size)
	assert.Equal(t, []byte("graph-a"), got.Graph)
	assert.Equal(t, []byte{0x01, 0x02}, got.Fingerprint)
	assert.ElementsMatch(t, []string{"cb:01"}, got.Terms)
}

func testQueryTerms(t *testing.T, s document.Store) {
	ctx := context.Background()
	defer s.Close()

	for i, terms := range [][]string{
		{"x:01", "y:00"},
		{"x:03", "y:02"},
		{"x:02", "y:02"},
		{"x:01", "y:ff"},
	} {
		require.NoError(t, s.Add(ctx, Record(fmt.Sprintf("d%d", i), i+1, terms...)))
	}
	require.NoError(t, s.Commit(ctx))

	ids, err := s.Query(ctx, document.Predicate{AnyTerms: []string{"x:01", "x:03"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d0", "d1", "d3"}, ids)

	ids, err = s.Query(ctx, document.Predicate{AnyTerms: []string{"y:02"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, ids)

	ids, err = s.Query(ctx, document.Predicate{AnyTerms: []string{"z:01"}})
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = s.Query(ctx, document.Predicate{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d0", "d1", "d2", "d3"}, ids)

	c, err := s.CountTerm(ctx, "x:01")
	require.NoError(t, err)
	assert.Equal(t, 2, c)
	c, err = s.CountTerm(ctx, "nope:01")
	require.NoError(t, err)
	assert.Equal(t, 0, c)
}

func testUpdate(t *testing.T, s document.Store) {
	ctx := context.Background()
	defer s.Close()

	require.NoError(t, s.Add(ctx, Record("a", 1, "t:01")))
	require.NoError(t, s.Commit(ctx))
	require.NoError(t, s.Add(ctx, Record("a", 2, "t:02")))
	require.NoError(t, s.Commit(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, err := s.CountTerm(ctx, "t:01")
	require.NoError(t, err)
	assert.Equal(t, 0, c, "postings of the replaced record must be dropped")
	c, err = s.CountTerm(ctx, "t:02")
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Size)
}

func testRemove(t *testing.T, s document.Store) {
	ctx := context.Background()
	defer s.Close()

	require.NoError(t, s.Add(ctx, Record("a", 1, "t:01")))
	require.NoError(t, s.Add(ctx, Record("b", 1, "t:01")))
	require.NoError(t, s.Commit(ctx))

	require.NoError(t, s.Remove(ctx, "a"))
	require.NoError(t, s.Remove(ctx, "missing"))
	c, err := s.CountTerm(ctx, "t:01")
	require.NoError(t, err)
	assert.Equal(t, 2, c, "uncommitted remove must be invisible")

	require.NoError(t, s.Commit(ctx))
	c, err = s.CountTerm(ctx, "t:01")
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	ids, err := s.Query(ctx, document.Predicate{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	_, err = s.Get(ctx, "a")
	assert.True(t, document.IsNotFound(err))

	// slot reuse must not resurrect old postings
	require.NoError(t, s.Add(ctx, Record("c", 1, "t:09")))
	require.NoError(t, s.Commit(ctx))
	ids, err = s.Query(ctx, document.Predicate{AnyTerms: []string{"t:01"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func testValidation(t *testing.T, s document.Store) {
	ctx := context.Background()
	defer s.Close()

	assert.Error(t, s.Add(ctx, nil))
	assert.Error(t, s.Add(ctx, &document.Record{ID: "x"}))
	assert.Error(t, s.Add(ctx, &document.Record{Graph: []byte("g")}))
	assert.Error(t, s.Remove(ctx, ""))
}
