package ssair

import (
	"fmt"
	"sort"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/internal/maps"
	islices "github.com/BarrensZeppelin/pta/internal/slices"
	"github.com/BarrensZeppelin/pta/ir"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// Pointer is the points-to set of an SSA value, merged over all contexts of
// its function.
type Pointer struct {
	p   *Program
	res *pta.Result
	obj map[domain.InstanceKeyID]struct{}
}

// Pointer returns the points-to set of v in res. v must be of pointer-like
// type and belong to a function analysed by res.
func (p *Program) Pointer(res *pta.Result, v ssa.Value) Pointer {
	if !PointerLike(v.Type()) {
		panic(fmt.Errorf("%v (%T) is not pointer-like", v, v))
	}

	ptr := Pointer{p: p, res: res}
	fn := v.Parent()
	if fn == nil {
		return ptr
	}

	p.mu.Lock()
	p.body(fn)
	x, found := p.vars[fn][v]
	p.mu.Unlock()

	if found {
		ptr.obj = maps.FromKeys(res.PointsToVar(fn, x))
	}
	return ptr
}

func (ptr Pointer) Empty() bool { return len(ptr.obj) == 0 }

// PointsTo returns the labels of the objects pointed to, ordered by their
// string representation.
func (ptr Pointer) PointsTo() []Label {
	ptr.p.mu.Lock()
	defer ptr.p.mu.Unlock()

	seen := make(map[*ir.New]bool)
	var labels []Label
	for _, ik := range maps.Keys(ptr.obj) {
		for _, site := range ptr.res.Origin(ik) {
			if lbl, found := ptr.p.labels[site]; found && !seen[site] {
				seen[site] = true
				labels = append(labels, lbl)
			}
		}
	}
	sort.Slice(labels, func(i, j int) bool { return LabelString(labels[i]) < LabelString(labels[j]) })
	return labels
}

// Strings returns the string representations of the labels pointed to.
func (ptr Pointer) Strings() []string {
	return islices.Map(ptr.PointsTo(), LabelString)
}

// MayAlias reports whether the points-to sets of ptr and o intersect.
func (ptr Pointer) MayAlias(o Pointer) bool {
	for ik := range ptr.obj {
		if _, found := o.obj[ik]; found {
			return true
		}
	}
	return false
}

// CallGraph converts the call graph of res to a context-insensitive
// callgraph.Graph rooted at the synthetic root function.
func (p *Program) CallGraph(res *pta.Result) *callgraph.Graph {
	p.mu.Lock()
	defer p.mu.Unlock()

	cg := callgraph.New(p.root)

	type edge struct {
		caller, callee *ssa.Function
		site           ssa.CallInstruction
	}
	seen := make(map[edge]bool)
	for _, n := range res.CallGraph.Nodes() {
		caller, ok := res.CallGraph.Method(n).(*ssa.Function)
		if !ok {
			continue
		}
		cg.CreateNode(caller)

		for _, e := range res.CallGraph.Out(n) {
			callee, ok := res.CallGraph.Method(e.Callee).(*ssa.Function)
			if !ok {
				continue
			}
			k := edge{caller, callee, p.sites[e.Site]}
			if !seen[k] {
				seen[k] = true
				callgraph.AddEdge(cg.CreateNode(caller), k.site, cg.CreateNode(callee))
			}
		}
	}
	return cg
}
