// Package ir defines the contracts between the points-to analysis and the
// collaborators that describe the analysed program: an intermediate
// representation of method bodies, a class hierarchy that answers dispatch and
// subtyping queries, and an optional model of dynamic/reflective calls.
package ir

import (
	"fmt"
	"strings"
)

// Type is an opaque type handle. Two handles denote the same type iff they
// are equal according to ==.
type Type interface {
	String() string
}

// Method is an opaque method handle compared with ==.
type Method interface {
	String() string
}

// Var is a local value slot of a method body.
type Var int

// NoVar marks an absent operand, e.g. the result of a call whose value is
// unused.
const NoVar Var = -1

func (v Var) String() string {
	if v == NoVar {
		return "_"
	}
	return fmt.Sprintf("v%d", int(v))
}

// Field denotes an instance or static field. Fields are compared by pointer
// identity.
type Field struct {
	Name   string
	Static bool
}

func (f *Field) String() string { return f.Name }

// Category classifies types that are common sources of state blow-up.
type Category int

const (
	Ordinary Category = iota
	// String covers character/string buffers.
	String
	// PrimitiveHolder covers boxed primitive values.
	PrimitiveHolder
	// Throwable covers exception objects.
	Throwable
)

var categoryNames = [...]string{"ordinary", "string", "primitive-holder", "throwable"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Provider gives access to method bodies. Body must return the same value for
// the same method for the duration of an analysis run, and nil for methods
// without an IR (abstract, native or otherwise opaque methods).
type Provider interface {
	Body(m Method) *Body
}

// Hierarchy answers type queries.
type Hierarchy interface {
	// Resolve returns the method selected by dynamic dispatch when declared is
	// invoked on a receiver of type recv.
	Resolve(recv Type, declared Method) (Method, bool)
	// Assignable reports whether a value of type t may be stored in a location
	// of type to. A nil `to` accepts everything.
	Assignable(t, to Type) bool
	// Category classifies t for the heap abstraction.
	Category(t Type) Category
}

// Program bundles the collaborators required by the analysis.
type Program interface {
	Provider
	Hierarchy
}

// Model supplies synthetic targets for calls that cannot be resolved through
// the hierarchy, such as reflective invocations. recv is nil for calls
// without receiver information.
type Model interface {
	Targets(site *Call, recv Type) []Method
}

// Body is the IR of a single method.
type Body struct {
	// This is the receiver slot or NoVar for methods without one.
	This   Var
	Params []Var
	Instrs []Instruction
}

func (b *Body) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "this=%v params=%v\n", b.This, b.Params)
	for _, insn := range b.Instrs {
		fmt.Fprintf(&sb, "\t%v\n", insn)
	}
	return sb.String()
}

// Instruction is one of the instruction types below.
type Instruction interface {
	fmt.Stringer
	instr()
}

type instrTag struct{}

func (instrTag) instr() {}

// New allocates an object of Type. The *New pointer identifies the allocation
// site.
type New struct {
	instrTag
	Dst  Var
	Type Type
	// Many is set by front ends for sites that are expected to produce an
	// unbounded number of objects (e.g. allocations in loops).
	Many bool
	// Label is an optional human readable description of the site.
	Label string
}

func (i *New) String() string {
	if i.Label != "" {
		return fmt.Sprintf("%v = new %v (%s)", i.Dst, i.Type, i.Label)
	}
	return fmt.Sprintf("%v = new %v", i.Dst, i.Type)
}

// Copy is an assignment between locals.
type Copy struct {
	instrTag
	Dst, Src Var
}

func (i *Copy) String() string { return fmt.Sprintf("%v = %v", i.Dst, i.Src) }

// Cast is an assignment that only lets through objects assignable to Type.
type Cast struct {
	instrTag
	Dst, Src Var
	Type     Type
}

func (i *Cast) String() string { return fmt.Sprintf("%v = (%v) %v", i.Dst, i.Type, i.Src) }

// Load reads an instance field: Dst = Base.Field.
type Load struct {
	instrTag
	Dst, Base Var
	Field     *Field
}

func (i *Load) String() string { return fmt.Sprintf("%v = %v.%v", i.Dst, i.Base, i.Field) }

// Store writes an instance field: Base.Field = Src.
type Store struct {
	instrTag
	Base  Var
	Field *Field
	Src   Var
}

func (i *Store) String() string { return fmt.Sprintf("%v.%v = %v", i.Base, i.Field, i.Src) }

// ArrayLoad reads an element of an array: Dst = Array[*].
type ArrayLoad struct {
	instrTag
	Dst, Array Var
}

func (i *ArrayLoad) String() string { return fmt.Sprintf("%v = %v[*]", i.Dst, i.Array) }

// ArrayStore writes an element of an array: Array[*] = Src.
type ArrayStore struct {
	instrTag
	Array, Src Var
}

func (i *ArrayStore) String() string { return fmt.Sprintf("%v[*] = %v", i.Array, i.Src) }

// StaticLoad reads a static field.
type StaticLoad struct {
	instrTag
	Dst   Var
	Field *Field
}

func (i *StaticLoad) String() string { return fmt.Sprintf("%v = static %v", i.Dst, i.Field) }

// StaticStore writes a static field.
type StaticStore struct {
	instrTag
	Field *Field
	Src   Var
}

func (i *StaticStore) String() string { return fmt.Sprintf("static %v = %v", i.Field, i.Src) }

// CallKind determines how the targets of a call are resolved.
type CallKind int

const (
	// Static calls have a fixed target and no receiver.
	Static CallKind = iota
	// Special calls have a fixed target and a receiver (constructors, super
	// calls, statically dispatched methods).
	Special
	// Virtual calls dispatch on the receiver's class.
	Virtual
	// Interface calls dispatch on the receiver's class through an interface
	// method.
	Interface
	// Dynamic calls dispatch on the receiver object itself, e.g. calls of
	// closures or reflective invocations.
	Dynamic
)

var callKindNames = [...]string{"static", "special", "virtual", "interface", "dynamic"}

func (k CallKind) String() string {
	if int(k) < len(callKindNames) {
		return callKindNames[k]
	}
	return fmt.Sprintf("CallKind(%d)", int(k))
}

// Dispatched reports whether targets depend on the receiver's objects.
func (k CallKind) Dispatched() bool {
	return k == Virtual || k == Interface || k == Dynamic
}

// Call is a call site. The *Call pointer identifies the site.
type Call struct {
	instrTag
	Kind CallKind
	// Method is the target of static and special calls and the declared
	// method for dispatched calls.
	Method   Method
	Receiver Var
	Args     []Var
	Result   Var
	// Exception receives exceptions propagating out of the callee. When it is
	// NoVar they propagate to the caller's exceptional exit.
	Exception Var
	Label     string
}

func (i *Call) String() string {
	var sb strings.Builder
	if i.Result != NoVar {
		fmt.Fprintf(&sb, "%v = ", i.Result)
	}
	fmt.Fprintf(&sb, "%v ", i.Kind)
	if i.Receiver != NoVar {
		fmt.Fprintf(&sb, "%v.", i.Receiver)
	}
	fmt.Fprintf(&sb, "%v%v", i.Method, i.Args)
	if i.Label != "" {
		fmt.Fprintf(&sb, " (%s)", i.Label)
	}
	return sb.String()
}

// Return returns Value from the method.
type Return struct {
	instrTag
	Value Var
}

func (i *Return) String() string { return fmt.Sprintf("return %v", i.Value) }

// Throw raises Value as an exception.
type Throw struct {
	instrTag
	Value Var
}

func (i *Throw) String() string { return fmt.Sprintf("throw %v", i.Value) }

// Catch binds Dst to exceptions raised in the method that are assignable to
// Type (nil catches everything).
type Catch struct {
	instrTag
	Dst  Var
	Type Type
}

func (i *Catch) String() string { return fmt.Sprintf("%v = catch %v", i.Dst, i.Type) }
