package pta

import (
	"fmt"

	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/solver"
	"golang.org/x/tools/container/intsets"
)

// typeFilter only lets through objects whose type is assignable to typ.
type typeFilter struct {
	b   *builder
	typ ir.Type
}

func (f typeFilter) Apply(s *intsets.Sparse) *intsets.Sparse {
	return solver.FilterSet(s, func(x int) bool {
		return f.b.prog.Assignable(f.b.arena.InstanceKey(domain.InstanceKeyID(x)).Type, f.typ)
	})
}

func (b *builder) filter(typ ir.Type) solver.Transfer[*intsets.Sparse] {
	if typ == nil {
		return nil
	}
	return typeFilter{b, typ}
}

func forEach(s *intsets.Sparse, f func(domain.InstanceKeyID) error) error {
	var buf [32]int
	for _, x := range s.AppendTo(buf[:0]) {
		if err := f(domain.InstanceKeyID(x)); err != nil {
			return err
		}
	}
	return nil
}

// expand translates the body of the method of n into constraints.
func (b *builder) expand(n domain.NodeID) error {
	m := b.arena.NodeMethod(n)
	if b.isExcluded(m) {
		b.log.Debugf("Excluded %s", b.arena.NodeString(n))
		return nil
	}

	body := b.prog.Body(m)
	if body == nil {
		b.missingBody(m)
		return nil
	}

	b.log.Debugf("Expanding %s", b.arena.NodeString(n))
	for _, insn := range body.Instrs {
		if err := b.constrain(n, insn); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) constrain(n domain.NodeID, insn ir.Instruction) error {
	switch i := insn.(type) {
	case *ir.New:
		ik := b.heap.InstanceKey(b.arena, i, b.arena.NodeContext(n))
		return b.addFacts(b.local(n, i.Dst), ik)

	case *ir.Copy:
		return b.solver.AddEdge(b.local(n, i.Src), b.local(n, i.Dst), nil)

	case *ir.Cast:
		return b.solver.AddEdge(b.local(n, i.Src), b.local(n, i.Dst), b.filter(i.Type))

	case *ir.Load:
		dst := b.local(n, i.Dst)
		b.onObjects(b.local(n, i.Base), func(o domain.InstanceKeyID) error {
			return b.solver.AddEdge(b.pointer(domain.FieldKey(o, i.Field)), dst, nil)
		})

	case *ir.Store:
		src := b.local(n, i.Src)
		b.onObjects(b.local(n, i.Base), func(o domain.InstanceKeyID) error {
			return b.solver.AddEdge(src, b.pointer(domain.FieldKey(o, i.Field)), nil)
		})

	case *ir.ArrayLoad:
		dst := b.local(n, i.Dst)
		b.onObjects(b.local(n, i.Array), func(o domain.InstanceKeyID) error {
			return b.solver.AddEdge(b.pointer(domain.ArrayKey(o)), dst, nil)
		})

	case *ir.ArrayStore:
		src := b.local(n, i.Src)
		b.onObjects(b.local(n, i.Array), func(o domain.InstanceKeyID) error {
			return b.solver.AddEdge(src, b.pointer(domain.ArrayKey(o)), nil)
		})

	case *ir.StaticLoad:
		return b.solver.AddEdge(b.pointer(domain.StaticKey(i.Field)), b.local(n, i.Dst), nil)

	case *ir.StaticStore:
		return b.solver.AddEdge(b.local(n, i.Src), b.pointer(domain.StaticKey(i.Field)), nil)

	case *ir.Return:
		if i.Value != ir.NoVar {
			return b.solver.AddEdge(b.local(n, i.Value), b.pointer(domain.ReturnKey(n)), nil)
		}

	case *ir.Throw:
		return b.solver.AddEdge(b.local(n, i.Value), b.pointer(domain.ExceptionKey(n)), nil)

	case *ir.Catch:
		return b.solver.AddEdge(b.pointer(domain.ExceptionKey(n)), b.local(n, i.Dst), b.filter(i.Type))

	case *ir.Call:
		return b.call(n, i)

	default:
		return fmt.Errorf("unhandled instruction %T: %v", insn, insn)
	}
	return nil
}

// onObjects runs f for every object that flows into the pointer key p.
func (b *builder) onObjects(p solver.Node, f func(domain.InstanceKeyID) error) {
	b.solver.OnChange(p, func(_ solver.Node, delta *intsets.Sparse) error {
		return forEach(delta, f)
	})
}

func (b *builder) call(n domain.NodeID, site *ir.Call) error {
	b.cg.addSite(n, site)

	switch {
	case site.Kind == ir.Static || site.Receiver == ir.NoVar && !site.Kind.Dispatched():
		return b.invoke(n, site, site.Method, domain.NoInstance)

	case site.Kind == ir.Special:
		// The target is fixed, but every receiver object may give rise to a
		// different callee context.
		b.onObjects(b.local(n, site.Receiver), func(o domain.InstanceKeyID) error {
			return b.invoke(n, site, site.Method, o)
		})

	case site.Receiver == ir.NoVar:
		return b.dispatch(n, site, domain.NoInstance)

	default:
		b.onObjects(b.local(n, site.Receiver), func(o domain.InstanceKeyID) error {
			return b.dispatch(n, site, o)
		})
	}
	return nil
}

// dispatch resolves a dispatched call for a receiver object. Calls the
// hierarchy cannot resolve are handed to the model.
func (b *builder) dispatch(n domain.NodeID, site *ir.Call, recv domain.InstanceKeyID) error {
	var typ ir.Type
	if recv != domain.NoInstance {
		typ = b.arena.InstanceKey(recv).Type
	}

	var targets []ir.Method
	if typ != nil {
		if m, ok := b.prog.Resolve(typ, site.Method); ok {
			targets = []ir.Method{m}
		}
	}
	if len(targets) == 0 && b.model != nil {
		targets = b.model.Targets(site, typ)
	}

	if len(targets) == 0 {
		b.unresolved(n, site, typ)
		return nil
	}

	for _, target := range targets {
		if err := b.invoke(n, site, target, recv); err != nil {
			return err
		}
	}
	return nil
}
