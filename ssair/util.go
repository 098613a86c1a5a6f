package ssair

import (
	"fmt"
	"go/types"

	"github.com/BarrensZeppelin/pta/internal/queue"
	"golang.org/x/tools/go/ssa"
)

// PointerLike reports whether values of type t are represented by the
// objects they point to.
func PointerLike(t types.Type) bool {
	switch t := t.(type) {
	case *types.Pointer,
		*types.Map,
		*types.Chan,
		*types.Slice,
		*types.Interface,
		*types.Signature:
		return true
	case *types.Named:
		return PointerLike(t.Underlying())
	case *types.Basic:
		return t.Kind() == types.UnsafePointer
	default:
		return false
	}
}

func FieldIndex(t *types.Struct, fieldName string) int {
	for i := 0; i < t.NumFields(); i++ {
		if t.Field(i).Name() == fieldName {
			return i
		}
	}

	panic(fmt.Errorf("No field on %v named %s", t, fieldName))
}

// hasPointers reports whether values of type t may contain pointers.
func hasPointers(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		return u.Kind() == types.UnsafePointer
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if hasPointers(u.Field(i).Type()) {
				return true
			}
		}
		return false
	case *types.Array:
		return hasPointers(u.Elem())
	case *types.Tuple:
		for i := 0; i < u.Len(); i++ {
			if hasPointers(u.At(i).Type()) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// aggregate reports whether values of type t are held in cells, such that
// registers of type t point to a cell instead of holding the value.
func aggregate(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Struct, *types.Array:
		return true
	}
	return false
}

func isBasic(t types.Type) bool {
	_, ok := t.(*types.Basic)
	return ok
}

func isInterface(t types.Type) bool {
	_, ok := t.Underlying().(*types.Interface)
	return ok
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

// loopBlocks returns the blocks of fn that lie on a cycle of the control
// flow graph.
func loopBlocks(fn *ssa.Function) map[*ssa.BasicBlock]bool {
	res := make(map[*ssa.BasicBlock]bool)
	for _, b := range fn.Blocks {
		seen := make(map[*ssa.BasicBlock]bool)
		var stack queue.Stack[*ssa.BasicBlock]
		for _, s := range b.Succs {
			stack.Push(s)
		}
		for !stack.Empty() {
			x := stack.Pop()
			if x == b {
				res[b] = true
				break
			} else if seen[x] {
				continue
			}
			seen[x] = true
			for _, s := range x.Succs {
				stack.Push(s)
			}
		}
	}
	return res
}
