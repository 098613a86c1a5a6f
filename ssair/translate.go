package ssair

import (
	"fmt"
	"go/token"
	"go/types"

	"github.com/BarrensZeppelin/pta/ir"
	"golang.org/x/tools/go/ssa"
)

// fnBuilder translates the body of a single function.
type fnBuilder struct {
	p    *Program
	fn   *ssa.Function
	body *ir.Body
	next ir.Var

	vars    map[ssa.Value]ir.Var
	funcs   map[*ssa.Function]ir.Var
	globals map[*ssa.Global]ir.Var

	loops map[*ssa.BasicBlock]bool
	// Set while translating a block that lies on a cycle.
	many bool
}

func (p *Program) newFnBuilder(fn *ssa.Function) *fnBuilder {
	fb := &fnBuilder{
		p:       p,
		fn:      fn,
		body:    &ir.Body{This: ir.NoVar},
		vars:    make(map[ssa.Value]ir.Var),
		funcs:   make(map[*ssa.Function]ir.Var),
		globals: make(map[*ssa.Global]ir.Var),
	}
	p.vars[fn] = fb.vars
	return fb
}

func (p *Program) translate(fn *ssa.Function) *ir.Body {
	fb := p.newFnBuilder(fn)
	fb.loops = loopBlocks(fn)

	for _, param := range fn.Params {
		fb.body.Params = append(fb.body.Params, fb.def(param))
	}

	switch {
	case fn.Signature.Recv() != nil:
		// Methods reached through interface dispatch receive the box.
		// Static calls pass the receiver as the first argument.
		fb.body.This = fb.fresh()
		fb.load(fb.value(fn.Params[0]), fb.body.This, p.boxed)
	case len(fn.FreeVars) > 0:
		fb.body.This = fb.fresh()
		for _, fv := range fn.FreeVars {
			fb.load(fb.value(fv), fb.body.This, p.freeVar(fv))
		}
	}

	for _, block := range fn.Blocks {
		fb.many = fb.loops[block]
		for _, instr := range block.Instrs {
			fb.instr(instr)
		}
	}
	return fb.body
}

func (fb *fnBuilder) fresh() ir.Var {
	v := fb.next
	fb.next++
	return v
}

func (fb *fnBuilder) emit(instr ir.Instruction) {
	fb.body.Instrs = append(fb.body.Instrs, instr)
}

// def returns the variable that holds the value of v.
func (fb *fnBuilder) def(v ssa.Value) ir.Var {
	if x, found := fb.vars[v]; found {
		return x
	}
	x := fb.fresh()
	fb.vars[v] = x
	return x
}

// value returns a variable holding the value of operand v, or ir.NoVar if v
// cannot hold pointers.
func (fb *fnBuilder) value(v ssa.Value) ir.Var {
	switch v := v.(type) {
	case *ssa.Const, *ssa.Builtin:
		return ir.NoVar

	case *ssa.Function:
		if x, found := fb.funcs[v]; found {
			return x
		}
		x := fb.fresh()
		fb.newObject(x, fb.p.closure(v), AllocationSite{v})
		fb.funcs[v] = x
		return x

	case *ssa.Global:
		if !hasPointers(deref(v.Type())) {
			return ir.NoVar
		} else if x, found := fb.globals[v]; found {
			return x
		}
		x := fb.fresh()
		fb.emit(&ir.StaticLoad{Dst: x, Field: fb.p.global(v)})
		fb.globals[v] = x
		return x
	}

	if !hasPointers(v.Type()) {
		return ir.NoVar
	}
	return fb.def(v)
}

func (fb *fnBuilder) newObject(dst ir.Var, typ ir.Type, lbl Label) {
	n := &ir.New{Dst: dst, Type: typ, Many: fb.many, Label: LabelString(lbl)}
	fb.emit(n)
	fb.p.labels[n] = lbl
}

// allocCell allocates the cell denoted by lbl together with the cells
// nested in it.
func (fb *fnBuilder) allocCell(dst ir.Var, lbl Label) {
	var elem types.Type
	switch t := lbl.Type().Underlying().(type) {
	case *types.Pointer:
		elem = t.Elem()
	case *types.Slice:
		// The cell is the backing array.
		fb.newObject(dst, fb.p.canon(lbl.Type()), lbl)
		if hasPointers(t.Elem()) {
			sub := fb.fresh()
			fb.allocCell(sub, ElementPointer{lbl})
			fb.arrayStore(dst, sub)
		}
		return
	default:
		fb.newObject(dst, fb.p.canon(lbl.Type()), lbl)
		return
	}

	fb.newObject(dst, fb.p.canon(elem), lbl)
	switch u := elem.Underlying().(type) {
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if f := u.Field(i); hasPointers(f.Type()) {
				sub := fb.fresh()
				fb.allocCell(sub, FieldPointer{lbl, i})
				fb.store(dst, fb.p.fieldAddr(f), sub)
			}
		}
	case *types.Array:
		if hasPointers(u.Elem()) {
			sub := fb.fresh()
			fb.allocCell(sub, ElementPointer{lbl})
			fb.arrayStore(dst, sub)
		}
	}
}

// tuple allocates a tuple object at site holding elems.
func (fb *fnBuilder) tuple(dst ir.Var, site ssa.Value, elems ...ir.Var) {
	fb.newObject(dst, fb.p.canon(site.Type()), AllocationSite{site})
	for i, e := range elems {
		fb.store(dst, fb.p.tupleField(i), e)
	}
}

func (fb *fnBuilder) copy(dst, src ir.Var) {
	if dst != ir.NoVar && src != ir.NoVar {
		fb.emit(&ir.Copy{Dst: dst, Src: src})
	}
}

func (fb *fnBuilder) load(dst, base ir.Var, f *ir.Field) {
	if dst != ir.NoVar && base != ir.NoVar {
		fb.emit(&ir.Load{Dst: dst, Base: base, Field: f})
	}
}

func (fb *fnBuilder) store(base ir.Var, f *ir.Field, src ir.Var) {
	if base != ir.NoVar && src != ir.NoVar {
		fb.emit(&ir.Store{Base: base, Field: f, Src: src})
	}
}

func (fb *fnBuilder) arrayLoad(dst, array ir.Var) {
	if dst != ir.NoVar && array != ir.NoVar {
		fb.emit(&ir.ArrayLoad{Dst: dst, Array: array})
	}
}

func (fb *fnBuilder) arrayStore(array, src ir.Var) {
	if array != ir.NoVar && src != ir.NoVar {
		fb.emit(&ir.ArrayStore{Array: array, Src: src})
	}
}

// loadValue reads a value of type t from the cells that cell points to.
// Aggregates are represented by the cell itself.
func (fb *fnBuilder) loadValue(dst, cell ir.Var, t types.Type) {
	if aggregate(t) {
		fb.copy(dst, cell)
	} else {
		fb.load(dst, cell, fb.p.contents)
	}
}

func (fb *fnBuilder) storeValue(cell, val ir.Var, t types.Type) {
	if aggregate(t) {
		fb.copyCell(cell, val, t)
	} else {
		fb.store(cell, fb.p.contents, val)
	}
}

// copyCell copies the contents of the cells of type t that src points to
// into the cells that dst points to, field by field.
func (fb *fnBuilder) copyCell(dst, src ir.Var, t types.Type) {
	if dst == ir.NoVar || src == ir.NoVar || !hasPointers(t) {
		return
	}

	switch u := t.Underlying().(type) {
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if f := u.Field(i); hasPointers(f.Type()) {
				from, to := fb.fresh(), fb.fresh()
				fb.load(from, src, fb.p.fieldAddr(f))
				fb.load(to, dst, fb.p.fieldAddr(f))
				fb.copyCell(to, from, f.Type())
			}
		}
	case *types.Array:
		from, to := fb.fresh(), fb.fresh()
		fb.arrayLoad(from, src)
		fb.arrayLoad(to, dst)
		fb.copyCell(to, from, u.Elem())
	default:
		x := fb.fresh()
		fb.load(x, src, fb.p.contents)
		fb.store(dst, fb.p.contents, x)
	}
}

func (fb *fnBuilder) copyElements(dst, src ir.Var, elem types.Type) {
	if dst == ir.NoVar || src == ir.NoVar || !hasPointers(elem) {
		return
	}
	from, to := fb.fresh(), fb.fresh()
	fb.arrayLoad(from, src)
	fb.arrayLoad(to, dst)
	fb.copyCell(to, from, elem)
}

func (fb *fnBuilder) instr(instr ssa.Instruction) {
	p := fb.p
	switch instr := instr.(type) {
	case ssa.CallInstruction:
		fb.call(instr)
		return

	case *ssa.Store:
		fb.storeValue(fb.value(instr.Addr), fb.value(instr.Val), instr.Val.Type())
		return

	case *ssa.Send:
		fb.store(fb.value(instr.Chan), p.payload, fb.value(instr.X))
		return

	case *ssa.MapUpdate:
		m := fb.value(instr.Map)
		fb.store(m, p.keys, fb.value(instr.Key))
		fb.store(m, p.values, fb.value(instr.Value))
		return

	case *ssa.Panic:
		if x := fb.value(instr.X); x != ir.NoVar {
			fb.emit(&ir.StaticStore{Field: p.panicked, Src: x})
		}
		return

	case *ssa.Return:
		switch len(instr.Results) {
		case 0:
		case 1:
			if x := fb.value(instr.Results[0]); x != ir.NoVar {
				fb.emit(&ir.Return{Value: x})
			}
		default:
			res := fb.fresh()
			fb.newObject(res, p.canon(fb.fn.Signature.Results()), AllocationSite{fb.fn})
			for i, r := range instr.Results {
				fb.store(res, p.tupleField(i), fb.value(r))
			}
			fb.emit(&ir.Return{Value: res})
		}
		return

	case *ssa.Select:
		// Sends happen regardless of whether the result holds pointers.
		res := fb.value(instr)
		if res != ir.NoVar {
			fb.newObject(res, p.canon(instr.Type()), AllocationSite{instr})
		}
		i := 2
		for _, st := range instr.States {
			ch := fb.value(st.Chan)
			if st.Dir == types.RecvOnly {
				x := fb.fresh()
				fb.load(x, ch, p.payload)
				fb.store(res, p.tupleField(i), x)
				i++
			} else {
				fb.store(ch, p.payload, fb.value(st.Send))
			}
		}
		return
	}

	v, ok := instr.(ssa.Value)
	if !ok || !hasPointers(v.Type()) {
		return
	}

	dst := fb.def(v)
	switch v := v.(type) {
	case *ssa.Alloc:
		fb.allocCell(dst, AllocationSite{v})

	case *ssa.MakeSlice:
		fb.allocCell(dst, AllocationSite{v})

	case *ssa.MakeMap:
		fb.newObject(dst, p.canon(v.Type()), AllocationSite{v})

	case *ssa.MakeChan:
		fb.newObject(dst, p.canon(v.Type()), AllocationSite{v})

	case *ssa.MakeInterface:
		fb.newObject(dst, p.canon(v.X.Type()), AllocationSite{v})
		fb.store(dst, p.boxed, fb.value(v.X))

	case *ssa.MakeClosure:
		fn := v.Fn.(*ssa.Function)
		fb.newObject(dst, p.closure(fn), AllocationSite{v})
		for i, b := range v.Bindings {
			fb.store(dst, p.freeVar(fn.FreeVars[i]), fb.value(b))
		}

	case *ssa.UnOp:
		switch v.Op {
		case token.MUL:
			fb.loadValue(dst, fb.value(v.X), v.Type())
		case token.ARROW:
			if v.CommaOk {
				x := fb.fresh()
				fb.load(x, fb.value(v.X), p.payload)
				fb.tuple(dst, v, x)
			} else {
				fb.load(dst, fb.value(v.X), p.payload)
			}
		}

	case *ssa.FieldAddr:
		st := deref(v.X.Type()).Underlying().(*types.Struct)
		fb.load(dst, fb.value(v.X), p.fieldAddr(st.Field(v.Field)))

	case *ssa.Field:
		st := v.X.Type().Underlying().(*types.Struct)
		cell := fb.fresh()
		fb.load(cell, fb.value(v.X), p.fieldAddr(st.Field(v.Field)))
		fb.loadValue(dst, cell, v.Type())

	case *ssa.IndexAddr:
		fb.arrayLoad(dst, fb.value(v.X))

	case *ssa.Index:
		cell := fb.fresh()
		fb.arrayLoad(cell, fb.value(v.X))
		fb.loadValue(dst, cell, v.Type())

	case *ssa.Lookup:
		if _, ok := v.X.Type().Underlying().(*types.Map); !ok {
			break
		}
		if v.CommaOk {
			x := fb.fresh()
			fb.load(x, fb.value(v.X), p.values)
			fb.tuple(dst, v, x)
		} else {
			fb.load(dst, fb.value(v.X), p.values)
		}

	case *ssa.Next:
		if v.IsString {
			break
		}
		m := fb.value(v.Iter.(*ssa.Range).X)
		k, x := fb.fresh(), fb.fresh()
		fb.load(k, m, p.keys)
		fb.load(x, m, p.values)
		fb.tuple(dst, v, ir.NoVar, k, x)

	case *ssa.Extract:
		fb.load(dst, fb.value(v.Tuple), p.tupleField(v.Index))

	case *ssa.TypeAssert:
		boxes := fb.fresh()
		if x := fb.value(v.X); x != ir.NoVar {
			fb.emit(&ir.Cast{Dst: boxes, Src: x, Type: p.canon(v.AssertedType)})
		}

		res := dst
		if v.CommaOk {
			res = fb.fresh()
		}
		if isInterface(v.AssertedType) {
			fb.copy(res, boxes)
		} else if hasPointers(v.AssertedType) {
			fb.load(res, boxes, p.boxed)
		}
		if v.CommaOk {
			fb.tuple(dst, v, res)
		}

	case *ssa.Phi:
		for _, e := range v.Edges {
			fb.copy(dst, fb.value(e))
		}

	case *ssa.Convert:
		switch t := v.X.Type().Underlying().(type) {
		case *types.Basic:
			switch {
			case t.Kind() == types.UnsafePointer:
				// The pointee of an unsafe conversion is unknown.
				fb.allocCell(dst, AllocationSite{v})
				fb.copy(dst, fb.value(v.X))
			case t.Info()&types.IsString != 0:
				fb.allocCell(dst, AllocationSite{v})
			}
		default:
			fb.copy(dst, fb.value(v.X))
		}

	case *ssa.ChangeType:
		fb.copy(dst, fb.value(v.X))
	case *ssa.ChangeInterface:
		fb.copy(dst, fb.value(v.X))
	case *ssa.MultiConvert:
		fb.copy(dst, fb.value(v.X))
	case *ssa.SliceToArrayPointer:
		fb.copy(dst, fb.value(v.X))
	case *ssa.Slice:
		fb.copy(dst, fb.value(v.X))
	case *ssa.Range:
		// Iterators are resolved by Next.

	default:
		// BinOp and other instructions produce no pointers.
	}
}

func siteLabel(instr ssa.CallInstruction) string {
	if v := instr.Value(); v != nil {
		return fmt.Sprintf("%s = %s", v.Name(), v)
	}
	return instr.String()
}

func (fb *fnBuilder) call(instr ssa.CallInstruction) {
	p := fb.p
	common := instr.Common()

	res := ir.NoVar
	if v := instr.Value(); v != nil && hasPointers(v.Type()) {
		res = fb.def(v)
	}
	args := make([]ir.Var, len(common.Args))
	for i, a := range common.Args {
		args[i] = fb.value(a)
	}

	if b, ok := common.Value.(*ssa.Builtin); ok {
		fb.builtin(b, instr, args, res)
		return
	}

	call := &ir.Call{
		Receiver:  ir.NoVar,
		Args:      args,
		Result:    res,
		Exception: ir.NoVar,
		Label:     siteLabel(instr),
	}
	fn, static := common.Value.(*ssa.Function)
	switch {
	case common.IsInvoke():
		call.Kind = ir.Interface
		call.Method = common.Method
		call.Receiver = fb.value(common.Value)
		// The receiver parameter is bound by the callee from its box.
		call.Args = append([]ir.Var{ir.NoVar}, args...)
	case static && fb.model(fn, instr, args):
		return
	case static:
		call.Kind = ir.Static
		call.Method = fn
	default:
		call.Kind = ir.Dynamic
		call.Method = common.Signature()
		call.Receiver = fb.value(common.Value)
	}

	if call.Kind.Dispatched() && call.Receiver == ir.NoVar {
		// Calls through nil values have no callees.
		return
	}
	fb.emit(call)
	p.sites[call] = instr
}

// callValue calls the function value f with args.
func (fb *fnBuilder) callValue(f ir.Var, sig *types.Signature, instr ssa.CallInstruction, args ...ir.Var) {
	if f == ir.NoVar {
		return
	}
	call := &ir.Call{
		Kind:      ir.Dynamic,
		Method:    sig,
		Receiver:  f,
		Args:      args,
		Result:    ir.NoVar,
		Exception: ir.NoVar,
		Label:     siteLabel(instr),
	}
	fb.emit(call)
	fb.p.sites[call] = instr
}

// model translates calls to runtime hooks that invoke function values
// passed to them. It reports whether fn was handled.
func (fb *fnBuilder) model(fn *ssa.Function, instr ssa.CallInstruction, args []ir.Var) bool {
	p := fb.p
	params := fn.Signature.Params()
	switch fn.String() {
	case "internal/godebug.setUpdate", "sync.runtime_registerPoolCleanup":
		sig := params.At(0).Type().Underlying().(*types.Signature)
		fb.callValue(args[0], sig, instr)

	case "runtime.SetFinalizer":
		obj, fin := fb.fresh(), fb.fresh()
		fb.load(obj, args[0], p.boxed)
		fb.load(fin, args[1], p.boxed)
		fb.callValue(fin, fn.Signature, instr, obj)

	case "time.startTimer":
		st := deref(params.At(0).Type()).Underlying().(*types.Struct)
		field := func(name string) ir.Var {
			cell, x := fb.fresh(), fb.fresh()
			fb.load(cell, args[0], p.fieldAddr(st.Field(FieldIndex(st, name))))
			fb.load(x, cell, p.contents)
			return x
		}
		f := field("f")
		sig := st.Field(FieldIndex(st, "f")).Type().Underlying().(*types.Signature)
		fb.callValue(f, sig, instr, field("arg"), ir.NoVar)

	default:
		return false
	}
	return true
}

func (fb *fnBuilder) builtin(b *ssa.Builtin, instr ssa.CallInstruction, args []ir.Var, res ir.Var) {
	p := fb.p
	common := instr.Common()
	switch b.Name() {
	case "append":
		if res == ir.NoVar {
			return
		}
		fb.allocCell(res, AllocationSite{instr.Value()})
		fb.copy(res, args[0])
		elem := common.Args[0].Type().Underlying().(*types.Slice).Elem()
		fb.copyElements(res, args[1], elem)

	case "copy":
		if s, ok := common.Args[0].Type().Underlying().(*types.Slice); ok {
			fb.copyElements(args[0], args[1], s.Elem())
		}

	case "recover":
		if res != ir.NoVar {
			fb.emit(&ir.StaticLoad{Dst: res, Field: p.panicked})
		}

	case "ssa:wrapnilchk":
		fb.copy(res, args[0])
	}
}
