// Package contexts contains the context-sensitivity policies of the analysis.
package contexts

import (
	"fmt"

	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/ir"
)

// Selector computes callee contexts. Select must be a pure function of its
// arguments: the builder relies on it to recognise call graph nodes it has
// already created.
type Selector interface {
	// Initial is the context of entry points.
	Initial(a *domain.Arena) domain.Context
	// Select returns the context in which target is analysed when called from
	// site in caller context. recv is domain.NoInstance for calls without a
	// receiver object.
	Select(a *domain.Arena, caller domain.Context, site *ir.Call, target ir.Method, recv domain.InstanceKeyID) domain.Context
	// NeedsReceiver reports whether contexts are built from the allocation
	// sites of receiver objects.
	NeedsReceiver() bool
	fmt.Stringer
}

type insensitive struct{}

// Insensitive analyses every method once.
var Insensitive Selector = insensitive{}

func (insensitive) Initial(*domain.Arena) domain.Context { return domain.Everywhere }
func (insensitive) NeedsReceiver() bool                  { return false }
func (insensitive) String() string                       { return "insensitive" }

func (insensitive) Select(*domain.Arena, domain.Context, *ir.Call, ir.Method, domain.InstanceKeyID) domain.Context {
	return domain.Everywhere
}

// CallSite distinguishes methods by the K most recent call sites.
type CallSite struct{ K int }

func (CallSite) Initial(*domain.Arena) domain.Context { return domain.Everywhere }
func (CallSite) NeedsReceiver() bool                  { return false }
func (s CallSite) String() string                     { return fmt.Sprintf("%d-call-site", s.K) }

func (s CallSite) Select(a *domain.Arena, caller domain.Context, site *ir.Call, _ ir.Method, _ domain.InstanceKeyID) domain.Context {
	return a.Push(domain.CallElem(site), caller, s.K)
}

// Object distinguishes methods by the allocation site of the receiver
// followed by the receiver's heap context, truncated to K elements. Calls
// without a receiver stay in the caller's context.
type Object struct{ K int }

func (Object) Initial(*domain.Arena) domain.Context { return domain.Everywhere }
func (Object) NeedsReceiver() bool                  { return true }
func (s Object) String() string                     { return fmt.Sprintf("%d-object", s.K) }

func (s Object) Select(a *domain.Arena, caller domain.Context, _ *ir.Call, _ ir.Method, recv domain.InstanceKeyID) domain.Context {
	if recv == domain.NoInstance {
		return caller
	}

	ik := a.InstanceKey(recv)
	switch ik.Kind {
	case domain.Site:
		return a.Push(domain.AllocElem(ik.Site), ik.Context, s.K)
	case domain.MergedSite:
		return a.Push(domain.AllocElem(ik.Site), domain.Everywhere, s.K)
	default:
		return domain.Everywhere
	}
}

// Parse returns the selector with the given configuration name.
func Parse(name string, k int) (Selector, error) {
	switch name {
	case "", "insensitive":
		return Insensitive, nil
	case "call-site":
		if k < 1 {
			return nil, fmt.Errorf("call-site sensitivity requires depth >= 1, got %d", k)
		}
		return CallSite{k}, nil
	case "object":
		if k < 1 {
			return nil, fmt.Errorf("object sensitivity requires depth >= 1, got %d", k)
		}
		return Object{k}, nil
	default:
		return nil, fmt.Errorf("unknown context policy %q", name)
	}
}
