// Package ssair adapts programs in SSA form (golang.org/x/tools/go/ssa) to
// the interfaces of package ir, so that they can be analysed by package pta.
//
// Memory is modelled with cells: every allocation produces one abstract cell
// for the allocated variable, and nested cells for the fields of structs and
// the elements of arrays, which are reachable from their parent through
// address pseudo-fields. Values of pointer type point to cells, interface
// values point to boxes holding the dynamic value, and function values point
// to closure objects from which free variables are loaded.
package ssair

import (
	"fmt"
	"go/types"
	"sort"
	"sync"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/ir"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"
)

// closureType is the type of closure objects of a function.
type closureType struct{ fn *ssa.Function }

func (c *closureType) String() string { return "closure " + c.fn.String() }

// Program implements ir.Program for an SSA program. Its methods are safe for
// concurrent use.
type Program struct {
	prog *ssa.Program
	root *ssa.Function

	mu       sync.Mutex
	mains    []*ssa.Package
	types    typeutil.Map
	closures map[*ssa.Function]*closureType
	bodies   map[*ssa.Function]*ir.Body
	vars     map[*ssa.Function]map[ssa.Value]ir.Var
	labels   map[*ir.New]Label
	sites    map[*ir.Call]ssa.CallInstruction

	// Pseudo-fields.
	contents, boxed, payload, keys, values *ir.Field
	panicked                               *ir.Field
	fieldAddrs                             map[*types.Var]*ir.Field
	freeVars                               map[*ssa.FreeVar]*ir.Field
	globals                                map[*ssa.Global]*ir.Field
	tuple                                  []*ir.Field
}

var _ ir.Program = (*Program)(nil)

func NewProgram(prog *ssa.Program) *Program {
	p := &Program{
		prog:       prog,
		root:       prog.NewFunction("<root>", new(types.Signature), "root of callgraph"),
		closures:   make(map[*ssa.Function]*closureType),
		bodies:     make(map[*ssa.Function]*ir.Body),
		vars:       make(map[*ssa.Function]map[ssa.Value]ir.Var),
		labels:     make(map[*ir.New]Label),
		sites:      make(map[*ir.Call]ssa.CallInstruction),
		contents:   &ir.Field{Name: "*"},
		boxed:      &ir.Field{Name: "boxed"},
		payload:    &ir.Field{Name: "payload"},
		keys:       &ir.Field{Name: "keys"},
		values:     &ir.Field{Name: "values"},
		panicked:   &ir.Field{Name: "panic", Static: true},
		fieldAddrs: make(map[*types.Var]*ir.Field),
		freeVars:   make(map[*ssa.FreeVar]*ir.Field),
		globals:    make(map[*ssa.Global]*ir.Field),
	}
	p.types.SetHasher(typeutil.MakeHasher())
	return p
}

// Root is the synthetic function that allocates all globals and calls the
// init and main functions of the packages given to EntryPoints.
func (p *Program) Root() *ssa.Function { return p.root }

// EntryPoints returns the entry points for analysing the given main
// packages. When methodsAsRoots is set, all methods of runtime types are
// entry points too, with unknown receivers.
func (p *Program) EntryPoints(mains []*ssa.Package, methodsAsRoots bool) []pta.EntryPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mains = mains
	delete(p.bodies, p.root)

	eps := []pta.EntryPoint{{Method: p.root}}
	if methodsAsRoots {
		for _, T := range p.prog.RuntimeTypes() {
			mset := p.prog.MethodSets.MethodSet(T)
			for i, n := 0, mset.Len(); i < n; i++ {
				if m := p.prog.MethodValue(mset.At(i)); m != nil {
					eps = append(eps, pta.EntryPoint{
						Method: m,
						Args:   [][]ir.Type{{p.canon(T)}},
					})
				}
			}
		}
	}
	return eps
}

// canon returns the canonical representative of t. Identical types have the
// same representative. Callers must hold p.mu or be the only user of p.
func (p *Program) canon(t types.Type) types.Type {
	if c, ok := p.types.At(t).(types.Type); ok {
		return c
	}
	p.types.Set(t, t)
	return t
}

func (p *Program) closure(fn *ssa.Function) *closureType {
	c, found := p.closures[fn]
	if !found {
		c = &closureType{fn}
		p.closures[fn] = c
	}
	return c
}

func (p *Program) fieldAddr(v *types.Var) *ir.Field {
	f, found := p.fieldAddrs[v]
	if !found {
		f = &ir.Field{Name: "&" + v.Name()}
		p.fieldAddrs[v] = f
	}
	return f
}

func (p *Program) freeVar(fv *ssa.FreeVar) *ir.Field {
	f, found := p.freeVars[fv]
	if !found {
		f = &ir.Field{Name: fv.Parent().Name() + "." + fv.Name()}
		p.freeVars[fv] = f
	}
	return f
}

func (p *Program) global(g *ssa.Global) *ir.Field {
	f, found := p.globals[g]
	if !found {
		f = &ir.Field{Name: g.String(), Static: true}
		p.globals[g] = f
	}
	return f
}

func (p *Program) tupleField(i int) *ir.Field {
	for len(p.tuple) <= i {
		p.tuple = append(p.tuple, &ir.Field{Name: fmt.Sprintf("#%d", len(p.tuple))})
	}
	return p.tuple[i]
}

// Body translates fn to IR. Functions without blocks (external functions)
// have no body.
func (p *Program) Body(m ir.Method) *ir.Body {
	fn, ok := m.(*ssa.Function)
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.body(fn)
}

func (p *Program) body(fn *ssa.Function) *ir.Body {
	if b, found := p.bodies[fn]; found {
		return b
	}

	var b *ir.Body
	switch {
	case fn == p.root:
		b = p.rootBody()
	case len(fn.Blocks) > 0:
		b = p.translate(fn)
	}
	p.bodies[fn] = b
	return b
}

func (p *Program) rootBody() *ir.Body {
	fb := p.newFnBuilder(p.root)

	var globals []*ssa.Global
	for _, pkg := range p.prog.AllPackages() {
		for _, mem := range pkg.Members {
			if g, ok := mem.(*ssa.Global); ok && hasPointers(deref(g.Type())) {
				globals = append(globals, g)
			}
		}
	}
	sort.Slice(globals, func(i, j int) bool { return globals[i].String() < globals[j].String() })

	for _, g := range globals {
		cell := fb.fresh()
		fb.allocCell(cell, AllocationSite{g})
		fb.emit(&ir.StaticStore{Field: p.global(g), Src: cell})
	}

	for _, pkg := range p.mains {
		for _, name := range [...]string{"init", "main"} {
			if fn := pkg.Func(name); fn != nil {
				fb.emit(&ir.Call{
					Kind:      ir.Static,
					Method:    fn,
					Receiver:  ir.NoVar,
					Result:    ir.NoVar,
					Exception: ir.NoVar,
					Label:     fn.String(),
				})
			}
		}
	}
	return fb.body
}

// Resolve selects the method invoked on a receiver object. Interface boxes
// dispatch through the method set of their dynamic type, closure objects
// dispatch to their function.
func (p *Program) Resolve(recv ir.Type, declared ir.Method) (ir.Method, bool) {
	switch r := recv.(type) {
	case *closureType:
		return r.fn, true

	case types.Type:
		method, ok := declared.(*types.Func)
		if !ok {
			return nil, false
		}

		sel := p.prog.MethodSets.MethodSet(r).Lookup(method.Pkg(), method.Name())
		// Check that the selected method (selected on name only) has the
		// correct type.
		if sel == nil || !types.Identical(sel.Type(), method.Type()) {
			return nil, false
		}

		// Make sure that the receiver actually implements the expected interface.
		if itf, ok := method.Type().(*types.Signature).Recv().Type().Underlying().(*types.Interface); ok &&
			!types.Implements(r, itf) {
			return nil, false
		}

		if fn := p.prog.MethodValue(sel); fn != nil {
			return fn, true
		}
	}
	return nil, false
}

func (p *Program) Assignable(t, to ir.Type) bool {
	if to == nil || t == to {
		return true
	}

	target, ok := to.(types.Type)
	if !ok {
		return false
	}

	switch t := t.(type) {
	case *closureType:
		return types.AssignableTo(t.fn.Signature, target)
	case types.Type:
		return types.AssignableTo(t, target)
	default:
		return false
	}
}

var errorType = types.Universe.Lookup("error").Type().Underlying().(*types.Interface)

func (p *Program) Category(t ir.Type) ir.Category {
	typ, ok := t.(types.Type)
	if !ok {
		return ir.Ordinary
	} else if _, ok := typ.(*types.Tuple); ok {
		return ir.Ordinary
	}

	if named, ok := typ.(*types.Named); ok && named.Obj().Pkg() != nil {
		switch named.Obj().Pkg().Path() + "." + named.Obj().Name() {
		case "strings.Builder", "bytes.Buffer":
			return ir.String
		}
	}

	switch {
	case isBasic(typ):
		return ir.PrimitiveHolder
	case types.Implements(typ, errorType) || types.Implements(types.NewPointer(typ), errorType):
		return ir.Throwable
	}
	return ir.Ordinary
}
