package molecule

// benzene returns an aromatic six-membered carbon ring.
func benzene() *MolGraph {
	atoms := make([]Atom, 6)
	bonds := make([]Bond, 6)
	for i := range atoms {
		atoms[i] = Atom{Element: "C", Aromatic: true}
		bonds[i] = Bond{From: i, To: (i + 1) % 6, Order: BondAromatic}
	}
	return MustMolGraph(atoms, bonds)
}

// phenol returns benzene with a hydroxyl oxygen on atom 0.
func phenol() *MolGraph {
	b := benzene()
	atoms := append(b.Atoms(), Atom{Element: "O"})
	bonds := append(b.Bonds(), Bond{From: 0, To: 6, Order: BondSingle})
	return MustMolGraph(atoms, bonds)
}
