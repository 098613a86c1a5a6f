package pta

import (
	"sort"
	"time"

	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/solver"
	"github.com/benbjohnson/immutable"
	"github.com/spakin/disjoint"
	"golang.org/x/tools/container/intsets"
)

type Stats struct {
	solver.Stats
	Contexts     int
	PointerKeys  int
	InstanceKeys int
	Duration     time.Duration
}

// Result is the outcome of an analysis. When Complete is false the analysis
// was canceled and the result is an unsound under-approximation, useful for
// diagnostics only.
type Result struct {
	CallGraph *CallGraph
	Warnings  []Warning
	Complete  bool
	Stats     Stats

	arena  *domain.Arena
	solver *solver.Solver[*intsets.Sparse]
}

func (b *builder) result(complete bool) *Result {
	return &Result{
		CallGraph: b.cg,
		Warnings:  b.warnings,
		Complete:  complete,
		Stats: Stats{
			Stats:        b.solver.Stats(),
			Contexts:     b.arena.NumContexts(),
			PointerKeys:  b.arena.NumPointerKeys(),
			InstanceKeys: b.arena.NumInstanceKeys(),
		},
		arena:  b.arena,
		solver: b.solver,
	}
}

// Arena gives access to the interned domain elements referred to by the
// identifiers in the result.
func (r *Result) Arena() *domain.Arena { return r.arena }

func (r *Result) set(id domain.PointerKeyID) *intsets.Sparse {
	return r.solver.Facts(solver.Node(id))
}

// PointsTo returns the objects that pk may point to, in increasing order.
func (r *Result) PointsTo(pk domain.PointerKey) []domain.InstanceKeyID {
	id, found := r.arena.LookupPointer(pk)
	if !found {
		return nil
	}
	return toIDs(r.set(id))
}

// PointsToVar returns the objects that v may point to in any context of m.
func (r *Result) PointsToVar(m ir.Method, v ir.Var) []domain.InstanceKeyID {
	var union intsets.Sparse
	for _, n := range r.arena.NodesOf(m) {
		if id, found := r.arena.LookupPointer(domain.LocalKey(n, v)); found {
			union.UnionWith(r.set(id))
		}
	}
	return toIDs(&union)
}

// Origin returns the allocation sites of the objects represented by ik.
func (r *Result) Origin(ik domain.InstanceKeyID) []*ir.New { return r.arena.Origins(ik) }

func (r *Result) InstanceKey(ik domain.InstanceKeyID) domain.InstanceKey {
	return r.arena.InstanceKey(ik)
}

// MayAlias reports whether a and b may point to a common object.
func (r *Result) MayAlias(a, b domain.PointerKey) bool {
	ia, fa := r.arena.LookupPointer(a)
	ib, fb := r.arena.LookupPointer(b)
	return fa && fb && r.set(ia).Intersects(r.set(ib))
}

// Snapshot returns a persistent copy of all non-empty points-to sets.
func (r *Result) Snapshot() *immutable.Map[domain.PointerKeyID, []domain.InstanceKeyID] {
	mb := immutable.NewMapBuilder[domain.PointerKeyID, []domain.InstanceKeyID](domain.PointerKeyHasher)
	for id := 0; id < r.arena.NumPointerKeys(); id++ {
		if s := r.set(domain.PointerKeyID(id)); !s.IsEmpty() {
			mb.Set(domain.PointerKeyID(id), toIDs(s))
		}
	}
	return mb.Map()
}

// AliasClasses partitions the pointer keys with non-empty points-to sets
// into classes: keys in different classes never point to a common object.
// Classes are ordered by their smallest member.
func (r *Result) AliasClasses() [][]domain.PointerKeyID {
	elems := make(map[domain.PointerKeyID]*disjoint.Element)
	owner := make(map[domain.InstanceKeyID]*disjoint.Element)

	for id := 0; id < r.arena.NumPointerKeys(); id++ {
		pk := domain.PointerKeyID(id)
		s := r.set(pk)
		if s.IsEmpty() {
			continue
		}

		el := disjoint.NewElement()
		elems[pk] = el
		for _, o := range toIDs(s) {
			if other, found := owner[o]; found {
				disjoint.Union(el, other)
			} else {
				owner[o] = el
			}
		}
	}

	groups := make(map[*disjoint.Element][]domain.PointerKeyID)
	for pk, el := range elems {
		rep := el.Find()
		groups[rep] = append(groups[rep], pk)
	}

	res := make([][]domain.PointerKeyID, 0, len(groups))
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return g[i] < g[j] })
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i][0] < res[j][0] })
	return res
}

func toIDs(s *intsets.Sparse) []domain.InstanceKeyID {
	res := make([]domain.InstanceKeyID, 0, s.Len())
	var space [64]int
	for _, x := range s.AppendTo(space[:0]) {
		res = append(res, domain.InstanceKeyID(x))
	}
	return res
}
