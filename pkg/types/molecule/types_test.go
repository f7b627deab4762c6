package molecule

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ethanol() *Molecule {
	return &Molecule{
		ID:    "ethanol",
		Atoms: []Atom{{Element: "C"}, {Element: "C"}, {Element: "O"}},
		Bonds: []Bond{{From: 0, To: 1, Order: OrderSingle}, {From: 1, To: 2, Order: OrderSingle}},
	}
}

func TestMolecule_Validate(t *testing.T) {
	assert.NoError(t, ethanol().Validate())

	var nilMol *Molecule
	assert.Error(t, nilMol.Validate())
	assert.Error(t, (&Molecule{}).Validate())

	tests := []struct {
		name string
		bond Bond
	}{
		{"from out of range", Bond{From: -1, To: 1, Order: OrderSingle}},
		{"to out of range", Bond{From: 0, To: 3, Order: OrderSingle}},
		{"self loop", Bond{From: 1, To: 1, Order: OrderSingle}},
		{"unknown order", Bond{From: 0, To: 2, Order: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ethanol()
			m.Bonds = append(m.Bonds, tt.bond)
			assert.Error(t, m.Validate())
		})
	}
}

func TestSearchRequest_Validate(t *testing.T) {
	half, over, nan := 0.5, 1.5, math.NaN()
	neg := -1

	assert.NoError(t, (&SearchRequest{Query: ethanol()}).Validate(false))
	assert.Error(t, (&SearchRequest{Query: ethanol()}).Validate(true))
	assert.NoError(t, (&SearchRequest{Query: ethanol(), Threshold: &half}).Validate(true))
	assert.Error(t, (&SearchRequest{Query: ethanol(), Threshold: &over}).Validate(true))
	assert.Error(t, (&SearchRequest{Query: ethanol(), Threshold: &nan}).Validate(true))
	assert.Error(t, (&SearchRequest{Query: ethanol(), MaxResults: &neg}).Validate(false))
	assert.Error(t, (&SearchRequest{Query: ethanol(), Workers: -2}).Validate(false))
	assert.Error(t, (&SearchRequest{}).Validate(false))
}

func TestSearchRequest_OmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(SearchRequest{Query: ethanol()})
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "query")
	assert.NotContains(t, raw, "threshold")
	assert.NotContains(t, raw, "max_results")

	zero := 0
	data, err = json.Marshal(SearchRequest{Query: ethanol(), MaxResults: &zero})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"max_results":0`)
}
