// Package domain contains the abstract domain of the points-to analysis:
// pointer keys (abstract storage locations), instance keys (abstract objects),
// contexts, and call graph node identities. All of them are interned in an
// Arena and referred to by small integer identifiers, which keeps equality and
// hashing cheap and avoids cyclic ownership between nodes, contexts and
// objects.
package domain

import (
	"fmt"

	"github.com/BarrensZeppelin/pta/ir"
)

type (
	PointerKeyID  int32
	InstanceKeyID int32
	NodeID        int32
	// Context is an interned sequence of context elements. The zero value is
	// the empty context.
	Context int32
)

// Everywhere is the empty context shared by all context-insensitive nodes.
const Everywhere Context = 0

// NoInstance is used where an instance key is optional (e.g. the receiver of
// a static call). It never denotes an object.
const NoInstance InstanceKeyID = -1

type PointerKind uint8

const (
	Local PointerKind = iota
	Return
	Exception
	InstanceField
	StaticField
	ArrayContents
)

var pointerKindNames = [...]string{"local", "return", "exception", "field", "static", "array"}

func (k PointerKind) String() string { return pointerKindNames[k] }

// PointerKey is an abstract storage location. Only the fields relevant for
// the kind are set; the struct is compared structurally.
type PointerKey struct {
	Kind     PointerKind
	Node     NodeID        // Local, Return, Exception
	Var      ir.Var        // Local
	Instance InstanceKeyID // InstanceField, ArrayContents
	Field    *ir.Field     // InstanceField, StaticField
}

func LocalKey(n NodeID, v ir.Var) PointerKey {
	return PointerKey{Kind: Local, Node: n, Var: v, Instance: NoInstance}
}

func ReturnKey(n NodeID) PointerKey {
	return PointerKey{Kind: Return, Node: n, Instance: NoInstance}
}

func ExceptionKey(n NodeID) PointerKey {
	return PointerKey{Kind: Exception, Node: n, Instance: NoInstance}
}

func FieldKey(o InstanceKeyID, f *ir.Field) PointerKey {
	return PointerKey{Kind: InstanceField, Instance: o, Field: f}
}

func StaticKey(f *ir.Field) PointerKey {
	return PointerKey{Kind: StaticField, Field: f, Instance: NoInstance}
}

func ArrayKey(o InstanceKeyID) PointerKey {
	return PointerKey{Kind: ArrayContents, Instance: o}
}

type InstanceKind uint8

const (
	// Site is one object per (allocation site, heap context).
	Site InstanceKind = iota
	// MergedSite is one object per allocation site, regardless of context.
	MergedSite
	// MergedType is one object per type, regardless of site.
	MergedType
	// Unknown stands for objects created outside the analysed code, e.g.
	// arguments of entry points.
	Unknown
)

var instanceKindNames = [...]string{"site", "merged-site", "merged-type", "unknown"}

func (k InstanceKind) String() string { return instanceKindNames[k] }

// InstanceKey is an abstract object.
type InstanceKey struct {
	Kind    InstanceKind
	Site    *ir.New // Site, MergedSite
	Context Context // Site
	Type    ir.Type
}

// SiteKey returns the instance key for an object allocated at site in heap
// context ctx.
func SiteKey(site *ir.New, ctx Context) InstanceKey {
	return InstanceKey{Kind: Site, Site: site, Context: ctx, Type: site.Type}
}

func MergedSiteKey(site *ir.New) InstanceKey {
	return InstanceKey{Kind: MergedSite, Site: site, Type: site.Type}
}

func MergedTypeKey(t ir.Type) InstanceKey {
	return InstanceKey{Kind: MergedType, Type: t}
}

func UnknownKey(t ir.Type) InstanceKey {
	return InstanceKey{Kind: Unknown, Type: t}
}

// Elem is a context element: either a call site or an allocation site.
type Elem struct {
	Call  *ir.Call
	Alloc *ir.New
}

func CallElem(c *ir.Call) Elem { return Elem{Call: c} }
func AllocElem(n *ir.New) Elem { return Elem{Alloc: n} }

func (e Elem) String() string {
	switch {
	case e.Call != nil:
		return fmt.Sprintf("@[%v]", e.Call)
	case e.Alloc != nil:
		return fmt.Sprintf("#[%v]", e.Alloc)
	default:
		return "?"
	}
}
