package testutil

import "github.com/turtacn/molsearch/internal/domain/molecule"

// Benzene is an aromatic six-ring of carbons.
func Benzene(id string) molecule.GraphDocument {
	doc := molecule.GraphDocument{ID: id, Name: "benzene"}
	for i := 0; i < 6; i++ {
		doc.Atoms = append(doc.Atoms, molecule.Atom{Element: "C", Aromatic: true})
		doc.Bonds = append(doc.Bonds, molecule.Bond{From: i, To: (i + 1) % 6, Order: molecule.BondAromatic})
	}
	return doc
}

// Phenol is benzene with a hydroxyl on atom 0; the oxygen is atom 6.
func Phenol(id string) molecule.GraphDocument {
	doc := Benzene(id)
	doc.Name = "phenol"
	doc.Atoms = append(doc.Atoms, molecule.Atom{Element: "O"})
	doc.Bonds = append(doc.Bonds, molecule.Bond{From: 0, To: 6, Order: molecule.BondSingle})
	return doc
}

// Ethanol is C-C-O.
func Ethanol(id string) molecule.GraphDocument {
	return molecule.GraphDocument{
		ID:   id,
		Name: "ethanol",
		Atoms: []molecule.Atom{
			{Element: "C"}, {Element: "C"}, {Element: "O"},
		},
		Bonds: []molecule.Bond{
			{From: 0, To: 1, Order: molecule.BondSingle},
			{From: 1, To: 2, Order: molecule.BondSingle},
		},
	}
}

// MustGraph converts doc or panics.
func MustGraph(doc molecule.GraphDocument) molecule.Graph {
	g, err := doc.Graph()
	if err != nil {
		panic(err)
	}
	return g
}
