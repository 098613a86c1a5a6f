package domain

import (
	"fmt"
	"strings"

	"github.com/BarrensZeppelin/pta/ir"
)

type ctxEntry struct {
	parent Context
	elem   Elem
	depth  int
}

type ctxKey struct {
	parent Context
	elem   Elem
}

type nodeKey struct {
	method ir.Method
	ctx    Context
}

// Arena interns all abstract domain elements of one analysis run. The
// universe only grows: nothing interned is ever removed.
type Arena struct {
	contexts  []ctxEntry
	ctxIndex  map[ctxKey]Context
	nodes     []nodeKey
	nodeIndex map[nodeKey]NodeID
	byMethod  map[ir.Method][]NodeID

	pointers     []PointerKey
	pointerIndex map[PointerKey]PointerKeyID

	instances     []InstanceKey
	instanceIndex map[InstanceKey]InstanceKeyID
	origins       [][]*ir.New
}

func NewArena() *Arena {
	return &Arena{
		// Slot 0 is Everywhere.
		contexts:      []ctxEntry{{}},
		ctxIndex:      make(map[ctxKey]Context),
		nodeIndex:     make(map[nodeKey]NodeID),
		byMethod:      make(map[ir.Method][]NodeID),
		pointerIndex:  make(map[PointerKey]PointerKeyID),
		instanceIndex: make(map[InstanceKey]InstanceKeyID),
	}
}

// Cons returns the context with e prepended to c.
func (a *Arena) Cons(e Elem, c Context) Context {
	key := ctxKey{c, e}
	if id, found := a.ctxIndex[key]; found {
		return id
	}
	id := Context(len(a.contexts))
	a.contexts = append(a.contexts, ctxEntry{parent: c, elem: e, depth: a.contexts[c].depth + 1})
	a.ctxIndex[key] = id
	return id
}

// MakeContext interns the context consisting of elems, most recent first.
func (a *Arena) MakeContext(elems ...Elem) Context {
	c := Everywhere
	for i := len(elems) - 1; i >= 0; i-- {
		c = a.Cons(elems[i], c)
	}
	return c
}

// Elements returns the elements of c, most recent first.
func (a *Arena) Elements(c Context) []Elem {
	res := make([]Elem, 0, a.contexts[c].depth)
	for ; c != Everywhere; c = a.contexts[c].parent {
		res = append(res, a.contexts[c].elem)
	}
	return res
}

// Depth returns the number of elements in c.
func (a *Arena) Depth(c Context) int { return a.contexts[c].depth }

// Truncate keeps the k most recent elements of c.
func (a *Arena) Truncate(c Context, k int) Context {
	if k <= 0 {
		return Everywhere
	}
	if a.Depth(c) <= k {
		return c
	}
	return a.MakeContext(a.Elements(c)[:k]...)
}

// Push prepends e to c and keeps at most k elements.
func (a *Arena) Push(e Elem, c Context, k int) Context {
	if k <= 0 {
		return Everywhere
	}
	return a.Cons(e, a.Truncate(c, k-1))
}

func (a *Arena) ContextString(c Context) string {
	if c == Everywhere {
		return "[]"
	}
	var parts []string
	for _, e := range a.Elements(c) {
		parts = append(parts, e.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Node interns the call graph node (m, c) and reports whether it was created
// by this call.
func (a *Arena) Node(m ir.Method, c Context) (NodeID, bool) {
	key := nodeKey{m, c}
	if id, found := a.nodeIndex[key]; found {
		return id, false
	}
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, key)
	a.nodeIndex[key] = id
	a.byMethod[m] = append(a.byMethod[m], id)
	return id, true
}

// LookupNode returns the node for (m, c) without creating it.
func (a *Arena) LookupNode(m ir.Method, c Context) (NodeID, bool) {
	id, found := a.nodeIndex[nodeKey{m, c}]
	return id, found
}

func (a *Arena) NodeMethod(n NodeID) ir.Method            { return a.nodes[n].method }
func (a *Arena) NodeContext(n NodeID) Context             { return a.nodes[n].ctx }
func (a *Arena) NumNodes() int                            { return len(a.nodes) }
func (a *Arena) NodesOf(m ir.Method) []NodeID             { return a.byMethod[m] }
func (a *Arena) NumContexts() int                         { return len(a.contexts) }
func (a *Arena) NumPointerKeys() int                      { return len(a.pointers) }
func (a *Arena) NumInstanceKeys() int                     { return len(a.instances) }
func (a *Arena) PointerKey(id PointerKeyID) PointerKey    { return a.pointers[id] }
func (a *Arena) InstanceKey(id InstanceKeyID) InstanceKey { return a.instances[id] }

func (a *Arena) NodeString(n NodeID) string {
	return fmt.Sprintf("%v %s", a.nodes[n].method, a.ContextString(a.nodes[n].ctx))
}

// Pointer interns pk.
func (a *Arena) Pointer(pk PointerKey) PointerKeyID {
	if id, found := a.pointerIndex[pk]; found {
		return id
	}
	id := PointerKeyID(len(a.pointers))
	a.pointers = append(a.pointers, pk)
	a.pointerIndex[pk] = id
	return id
}

// LookupPointer returns the identifier of pk if it has been interned.
func (a *Arena) LookupPointer(pk PointerKey) (PointerKeyID, bool) {
	id, found := a.pointerIndex[pk]
	return id, found
}

// Instance interns ik.
func (a *Arena) Instance(ik InstanceKey) InstanceKeyID {
	if id, found := a.instanceIndex[ik]; found {
		return id
	}
	id := InstanceKeyID(len(a.instances))
	a.instances = append(a.instances, ik)
	a.instanceIndex[ik] = id
	a.origins = append(a.origins, nil)
	if ik.Site != nil {
		a.origins[id] = []*ir.New{ik.Site}
	}
	return id
}

// AddOrigin records that objects allocated at site are represented by id.
func (a *Arena) AddOrigin(id InstanceKeyID, site *ir.New) {
	for _, s := range a.origins[id] {
		if s == site {
			return
		}
	}
	a.origins[id] = append(a.origins[id], site)
}

// Origins returns the allocation sites represented by id. Unknown objects
// have no origin.
func (a *Arena) Origins(id InstanceKeyID) []*ir.New { return a.origins[id] }

func (a *Arena) InstanceString(id InstanceKeyID) string {
	ik := a.instances[id]
	switch ik.Kind {
	case Site:
		if ik.Context == Everywhere {
			return ik.Site.String()
		}
		return fmt.Sprintf("%v in %s", ik.Site, a.ContextString(ik.Context))
	case MergedSite:
		return fmt.Sprintf("%v (merged)", ik.Site)
	default:
		return fmt.Sprintf("%v %v", ik.Kind, ik.Type)
	}
}

func (a *Arena) PointerString(id PointerKeyID) string {
	pk := a.pointers[id]
	switch pk.Kind {
	case Local:
		return fmt.Sprintf("%v in %s", pk.Var, a.NodeString(pk.Node))
	case Return, Exception:
		return fmt.Sprintf("%v of %s", pk.Kind, a.NodeString(pk.Node))
	case InstanceField:
		return fmt.Sprintf("(%s).%v", a.InstanceString(pk.Instance), pk.Field)
	case StaticField:
		return fmt.Sprintf("static %v", pk.Field)
	default:
		return fmt.Sprintf("(%s)[*]", a.InstanceString(pk.Instance))
	}
}
