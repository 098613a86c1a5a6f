package ssair

import (
	"fmt"
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// Label denotes an abstract object.
// A label is either an [AllocationSite], representing the cell allocated at
// a given value, or a [FieldPointer] & [ElementPointer], representing a
// nested cell of another cell (field of a struct or element of slice/array,
// respectively). Boxes, closures and containers are labelled with the
// allocation site of the value that created them.
type Label interface {
	// Allocation site of the object denoted by the label.
	Site() ssa.Value
	// Access path from the allocation site to the object. Field names are
	// resolved from ssa indices.
	Path() string
	// Returns the type of a pointer pointing to the object denoted by the
	// label. (Label).Type().Underlying() == (*types.Pointer) except for
	// allocation sites for slices (where the returned type is (*types.Slice))
	// and for objects that are not cells.
	Type() types.Type
}

type AllocationSite struct{ site ssa.Value }

func (a AllocationSite) Site() ssa.Value  { return a.site }
func (a AllocationSite) Path() string     { return "" }
func (a AllocationSite) Type() types.Type { return a.site.Type() }

type FieldPointer struct {
	base  Label
	Field int
}

func (fp FieldPointer) Site() ssa.Value { return fp.base.Site() }
func (fp FieldPointer) Path() string {
	return fmt.Sprintf("%s.%s", fp.base.Path(), fp.structType().Field(fp.Field).Name())
}
func (fp FieldPointer) Type() types.Type {
	return types.NewPointer(fp.structType().Field(fp.Field).Type())
}

func (fp FieldPointer) structType() *types.Struct {
	return fp.base.Type().Underlying().(*types.Pointer).Elem().Underlying().(*types.Struct)
}

type ElementPointer struct{ base Label }

func (ep ElementPointer) Site() ssa.Value { return ep.base.Site() }
func (ep ElementPointer) Path() string    { return ep.base.Path() + "[*]" }
func (ep ElementPointer) Type() types.Type {
	switch bt := ep.base.Type().Underlying().(type) {
	case *types.Pointer:
		return types.NewPointer(bt.Elem().Underlying().(*types.Array).Elem())
	case *types.Slice:
		return types.NewPointer(bt.Elem())
	default:
		panic(fmt.Errorf("underlying type of ElementPointer should be slice or pointer, was: %T", bt))
	}
}

// LabelString renders l as the name of its allocation site, qualified by the
// enclosing function, followed by its access path.
func LabelString(l Label) string {
	site := l.Site()
	if fn := site.Parent(); fn != nil && site != fn {
		return fmt.Sprintf("%s:%s%s", fn, site.Name(), l.Path())
	}
	return site.String() + l.Path()
}
