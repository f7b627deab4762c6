package molecule

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molsearch/pkg/errors"
)

func TestNewMolGraph_Valid(t *testing.T) {
	g := phenol()

	assert.Equal(t, 7, g.NodeCount())
	assert.Equal(t, 7, g.EdgeCount())
	assert.Equal(t, []int{1, 5, 6}, g.Neighbors(0))
	assert.Equal(t, "O", g.Atom(6).Element)

	b, ok := g.EdgeBetween(6, 0)
	require.True(t, ok)
	assert.Equal(t, BondSingle, b.Order)

	_, ok = g.EdgeBetween(1, 4)
	assert.False(t, ok)
}

func TestNewMolGraph_Rejects(t *testing.T) {
	c := Atom{Element: "C"}
	cases := []struct {
		name  string
		atoms []Atom
		bonds []Bond
	}{
		{"out of range", []Atom{c, c}, []Bond{{From: 0, To: 2, Order: BondSingle}}},
		{"negative endpoint", []Atom{c, c}, []Bond{{From: -1, To: 1, Order: BondSingle}}},
		{"self loop", []Atom{c, c}, []Bond{{From: 1, To: 1, Order: BondSingle}}},
		{"duplicate", []Atom{c, c}, []Bond{{From: 0, To: 1, Order: BondSingle}, {From: 1, To: 0, Order: BondDouble}}},
		{"bad order", []Atom{c, c}, []Bond{{From: 0, To: 1, Order: BondOrder(9)}}},
		{"empty element", []Atom{c, {}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMolGraph(tc.atoms, tc.bonds)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeInvalidGraph))
		})
	}
}

func TestComparators(t *testing.T) {
	c := Atom{Element: "C"}
	cAr := Atom{Element: "C", Aromatic: true}
	cPlus := Atom{Element: "C", Charge: 1}

	assert.True(t, ElementAromaticity(c, cPlus))
	assert.False(t, ElementAromaticity(c, cAr))
	assert.False(t, ElementChargeAromaticity(c, cPlus))
	assert.True(t, ElementChargeAromaticity(c, c))

	assert.True(t, BondOrderOrWildcard(Bond{Order: BondAny}, Bond{Order: BondDouble}))
	assert.True(t, BondOrderOrWildcard(Bond{Order: BondDouble}, Bond{Order: BondAny}))
	assert.True(t, BondOrderOrWildcard(Bond{Order: BondSingle}, Bond{Order: BondSingle}))
	assert.False(t, BondOrderOrWildcard(Bond{Order: BondSingle}, Bond{Order: BondDouble}))
}

func TestBondOrder_String(t *testing.T) {
	assert.Equal(t, "aromatic", BondAromatic.String())
	assert.Equal(t, "unknown", BondOrder(42).String())
}

func TestGraphCodec_RoundTrip(t *testing.T) {
	g := phenol()
	data, err := EncodeGraph(g)
	require.NoError(t, err)

	back, err := DecodeGraph(data)
	require.NoError(t, err)
	assert.Equal(t, g.Atoms(), back.Atoms())
	assert.Equal(t, g.NodeCount(), back.NodeCount())
	assert.Equal(t, g.EdgeCount(), back.EdgeCount())
	for i := 0; i < g.NodeCount(); i++ {
		assert.Equal(t, g.Neighbors(i), back.Neighbors(i))
	}
}

func TestDecodeGraph_Corrupt(t *testing.T) {
	_, err := DecodeGraph([]byte("not zstd at all"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeGraphDecodeFailed))
}

func TestParseGraphJSON(t *testing.T) {
	in := `{"name":"ethanol","atoms":[{"element":"C"},{"element":"C"},{"element":"O"}],
	        "bonds":[{"from":0,"to":1,"order":1},{"from":1,"to":2,"order":1}]}`
	doc, err := ParseGraphJSON(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "ethanol", doc.Name)

	g, err := doc.Graph()
	require.NoError(t, err)
	assert.Equal(t, 3, g.NodeCount())
}

func TestParseGraphJSON_Invalid(t *testing.T) {
	_, err := ParseGraphJSON(strings.NewReader(`{"atoms":[]}`))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidGraph))

	_, err = ParseGraphJSON(strings.NewReader(`{"atoms":`))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidGraph))
}

func TestParseGraphJSONList(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`[{"id":"a","atoms":[{"element":"C"}],"bonds":[]},{"id":"b","atoms":[{"element":"N"}]}]`)
	docs, err := ParseGraphJSONList(&buf)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[1].ID)

	docs, err = ParseGraphJSONList(strings.NewReader(`{"id":"single","atoms":[{"element":"S"}]}`))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "single", docs[0].ID)
}
