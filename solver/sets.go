package solver

import "golang.org/x/tools/container/intsets"

// SetLattice is the powerset lattice of non-negative integers, ordered by
// inclusion. Points-to sets are elements of this lattice.
type SetLattice struct{}

var _ Lattice[*intsets.Sparse] = SetLattice{}

func (SetLattice) Bottom() *intsets.Sparse         { return new(intsets.Sparse) }
func (SetLattice) IsBottom(x *intsets.Sparse) bool { return x.IsEmpty() }
func (SetLattice) Leq(a, b *intsets.Sparse) bool   { return a.SubsetOf(b) }

func (SetLattice) Join(dst **intsets.Sparse, src *intsets.Sparse) (*intsets.Sparse, bool) {
	added := new(intsets.Sparse)
	if *dst == src {
		return added, false
	}

	added.Difference(src, *dst)
	if added.IsEmpty() {
		return added, false
	}

	(*dst).UnionWith(added)
	return added, true
}

func (SetLattice) Clone(x *intsets.Sparse) *intsets.Sparse {
	c := new(intsets.Sparse)
	c.Copy(x)
	return c
}

// SetOf returns a set containing xs.
func SetOf(xs ...int) *intsets.Sparse {
	s := new(intsets.Sparse)
	for _, x := range xs {
		s.Insert(x)
	}
	return s
}

// FilterSet returns the elements of s satisfying keep.
func FilterSet(s *intsets.Sparse, keep func(int) bool) *intsets.Sparse {
	res := new(intsets.Sparse)
	var space [64]int
	for _, x := range s.AppendTo(space[:0]) {
		if keep(x) {
			res.Insert(x)
		}
	}
	return res
}
