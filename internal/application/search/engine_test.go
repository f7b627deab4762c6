package search

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/molsearch/internal/domain/codebook"
	"github.com/turtacn/molsearch/internal/domain/document"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/store/memstore"
	"github.com/turtacn/molsearch/pkg/errors"
)

type mockScreener struct {
	mock.Mock
}

func (m *mockScreener) Select(fp *molecule.Fingerprint) (codebook.Selection, bool) {
	args := m.Called(fp)
	return args.Get(0).(codebook.Selection), args.Bool(1)
}

type EngineTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memstore.Store
	ensemble *codebook.Ensemble
	gen      *molecule.PathGenerator
	engine   *Engine
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New(nil)

	var err error
	s.gen, err = molecule.NewPathGenerator(1024, 6)
	s.Require().NoError(err)
	s.ensemble, err = codebook.NewEnsemble(8, 1024, rand.New(rand.NewSource(7)))
	s.Require().NoError(err)

	s.index("A", ring())
	s.index("B", substitutedRing())
	s.Require().NoError(s.store.Commit(s.ctx))

	s.engine = NewEngine(s.store, s.ensemble, s.gen, Config{GraphCacheSize: 16}, nil, nil)
}

func (s *EngineTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *EngineTestSuite) index(id string, g *molecule.MolGraph) {
	fp, err := s.gen.Generate(g)
	s.Require().NoError(err)
	data, err := molecule.EncodeGraph(g)
	s.Require().NoError(err)
	terms, err := s.ensemble.Terms(fp)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Add(s.ctx, &document.Record{
		ID:          id,
		Name:        id,
		Size:        g.NodeCount(),
		Graph:       data,
		Fingerprint: fp.Bytes(),
		Terms:       terms,
	}))
	s.Require().NoError(s.ensemble.OnAdd(fp))
}

func (s *EngineTestSuite) TestSubstructure_RingMatchesBoth() {
	stream, err := s.engine.Substructure(s.ctx, ring(), 0, 2)
	s.Require().NoError(err)
	rs := Collect(stream)

	s.Require().Len(rs, 2)
	s.Equal("A", rs[0].ID)
	s.Equal("B", rs[1].ID)
	for _, r := range rs {
		s.Nil(r.Similarity)
		s.Len(r.Mapping, 6)
		s.NotContains(r.Mapping, 0)
	}

	ann, err := rs[1].Annotated(s.ctx)
	s.Require().NoError(err)
	s.Len(ann.MatchedAtoms(), 6)
	s.False(ann.Atoms[6].Matched)
}

func (s *EngineTestSuite) TestSubstructure_SubstitutedMatchesOnlyItself() {
	stream, err := s.engine.Substructure(s.ctx, substitutedRing(), 0, 1)
	s.Require().NoError(err)
	rs := Collect(stream)
	s.Require().Len(rs, 1)
	s.Equal("B", rs[0].ID)
}

func (s *EngineTestSuite) TestSimilarity_ExactThreshold() {
	stream, err := s.engine.Similarity(s.ctx, ring(), 1.0, 0, 2)
	s.Require().NoError(err)
	rs := Collect(stream)
	s.Require().Len(rs, 1)
	s.Equal("A", rs[0].ID)
	s.Require().NotNil(rs[0].Similarity)
	s.InDelta(1.0, *rs[0].Similarity, 1e-9)
}

func (s *EngineTestSuite) TestSimilarity_RankedDescending() {
	stream, err := s.engine.Similarity(s.ctx, ring(), 0, 0, 3)
	s.Require().NoError(err)
	rs := Collect(stream)
	s.Require().Len(rs, 2)
	s.Equal("A", rs[0].ID)
	s.Equal("B", rs[1].ID)
	s.Greater(*rs[0].Similarity, *rs[1].Similarity)
}

func (s *EngineTestSuite) TestMaxResultsCapsStream() {
	stream, err := s.engine.Similarity(s.ctx, ring(), 0, 1, 1)
	s.Require().NoError(err)
	s.Len(Collect(stream), 1)
}

func (s *EngineTestSuite) TestValidation() {
	_, err := s.engine.Substructure(s.ctx, nil, 0, 1)
	s.True(errors.IsCode(err, errors.CodeInvalidParam))

	_, err = s.engine.Substructure(s.ctx, ring(), 0, 0)
	s.True(errors.IsCode(err, errors.CodeInvalidParam))

	_, err = s.engine.Similarity(s.ctx, ring(), 1.5, 0, 1)
	s.True(errors.IsCode(err, errors.CodeInvalidThreshold))

	_, err = s.engine.Similarity(s.ctx, ring(), -0.1, 0, 1)
	s.True(errors.IsCode(err, errors.CodeInvalidThreshold))

	_, err = s.engine.Similarity(s.ctx, ring(), math.NaN(), 0, 1)
	s.True(errors.IsCode(err, errors.CodeInvalidThreshold))

	_, err = s.engine.Similarity(s.ctx, ring(), 0.5, -1, 1)
	s.True(errors.IsCode(err, errors.CodeInvalidParam))
}

func (s *EngineTestSuite) TestScreenerWithoutSelectionScansEverything() {
	screener := new(mockScreener)
	screener.On("Select", mock.Anything).Return(codebook.Selection{}, false).Once()
	engine := NewEngine(s.store, screener, s.gen, Config{}, nil, nil)

	stream, err := engine.Substructure(s.ctx, ring(), 0, 2)
	s.Require().NoError(err)
	s.Len(Collect(stream), 2)
	screener.AssertExpectations(s.T())
}

func (s *EngineTestSuite) TestGraphCacheReusedAcrossQueries() {
	for i := 0; i < 2; i++ {
		stream, err := s.engine.Substructure(s.ctx, ring(), 0, 1)
		s.Require().NoError(err)
		s.Len(Collect(stream), 2)
	}
	s.Equal(2, s.engine.Graphs().Len())

	s.engine.Graphs().Invalidate("A")
	s.Equal(1, s.engine.Graphs().Len())
}

func (s *EngineTestSuite) TestCorruptRecordIsSkipped() {
	// an all-ones fingerprint passes the containment pre-check
	full := make([]byte, 128)
	for i := range full {
		full[i] = 0xff
	}
	s.Require().NoError(s.store.Add(s.ctx, &document.Record{ID: "C", Size: 3, Graph: []byte("garbage"), Fingerprint: full}))
	s.Require().NoError(s.store.Commit(s.ctx))

	stream, err := NewEngine(s.store, nil, s.gen, Config{}, nil, nil).Substructure(s.ctx, ring(), 0, 2)
	s.Require().NoError(err)
	rs := Collect(stream)
	s.Equal([]string{"A", "B"}, ids(rs))
}

func TestGraphCache_ChecksumMismatchRedecodes(t *testing.T) {
	c := NewGraphCache(4, nil)
	a, err := molecule.EncodeGraph(ring())
	require.NoError(t, err)
	b, err := molecule.EncodeGraph(substitutedRing())
	require.NoError(t, err)

	g1, err := c.Get("x", a)
	require.NoError(t, err)
	g2, err := c.Get("x", a)
	require.NoError(t, err)
	require.Same(t, g1, g2)

	g3, err := c.Get("x", b)
	require.NoError(t, err)
	require.Equal(t, 7, g3.NodeCount())

	var disabled *GraphCache
	g4, err := disabled.Get("x", a)
	require.NoError(t, err)
	require.Equal(t, 6, g4.NodeCount())
}
