package search

import "github.com/turtacn/molsearch/internal/domain/molecule"

// ring returns an aromatic six-membered carbon ring.
func ring() *molecule.MolGraph {
	atoms := make([]molecule.Atom, 6)
	bonds := make([]molecule.Bond, 6)
	for i := range atoms {
		atoms[i] = molecule.Atom{Element: "C", Aromatic: true}
		bonds[i] = molecule.Bond{From: i, To: (i + 1) % 6, Order: molecule.BondAromatic}
	}
	return molecule.MustMolGraph(atoms, bonds)
}

// substitutedRing is ring with a hydroxyl oxygen on atom 0.
func substitutedRing() *molecule.MolGraph {
	r := ring()
	atoms := append(r.Atoms(), molecule.Atom{Element: "O"})
	bonds := append(r.Bonds(), molecule.Bond{From: 0, To: 6, Order: molecule.BondSingle})
	return molecule.MustMolGraph(atoms, bonds)
}
