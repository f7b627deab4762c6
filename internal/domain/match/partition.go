package match

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/molsearch/internal/domain/molecule"
)

// Partition assigns every node a graph-invariant class.  Nodes in different
// classes can never be swapped by an automorphism.  Classes start from
// element, charge, aromaticity and degree and are refined by the multiset
// of neighbour classes until the class count stops growing.
func Partition(g molecule.Graph) []int {
	n := g.NodeCount()
	sigs := make([]string, n)
	for i := 0; i < n; i++ {
		a := g.Atom(i)
		sigs[i] = fmt.Sprintf("%s/%d/%t/%d", a.Element, a.Charge, a.Aromatic, len(g.Neighbors(i)))
	}
	classes, count := rank(sigs)

	nb := make([]int, 0, 8)
	for {
		for i := 0; i < n; i++ {
			nb = nb[:0]
			for _, j := range g.Neighbors(i) {
				nb = append(nb, classes[j])
			}
			sort.Ints(nb)
			var sb strings.Builder
			sb.WriteString(strconv.Itoa(classes[i]))
			sb.WriteByte(':')
			for _, c := range nb {
				sb.WriteString(strconv.Itoa(c))
				sb.WriteByte(',')
			}
			sigs[i] = sb.String()
		}
		next, nextCount := rank(sigs)
		if nextCount == count {
			return classes
		}
		classes, count = next, nextCount
	}
}

// rank maps each signature to its index among the sorted distinct
// signatures.
func rank(sigs []string) ([]int, int) {
	distinct := make([]string, len(sigs))
	copy(distinct, sigs)
	sort.Strings(distinct)
	ids := make(map[string]int, len(distinct))
	for _, s := range distinct {
		if _, ok := ids[s]; !ok {
			ids[s] = len(ids)
		}
	}
	out := make([]int, len(sigs))
	for i, s := range sigs {
		out[i] = ids[s]
	}
	return out, len(ids)
}
