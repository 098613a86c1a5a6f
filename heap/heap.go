// Package heap maps allocation events to instance keys.
package heap

import (
	"fmt"
	"strings"

	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/ir"
)

// Policy chooses the instance key for an object allocated at site while
// analysing a method in context ctx. Policies must be deterministic for the
// duration of a run.
type Policy interface {
	InstanceKey(a *domain.Arena, site *ir.New, ctx domain.Context) domain.InstanceKeyID
}

// Flags select merging ("smushing") of instance keys.
type Flags uint8

const (
	// SmushMany merges all contexts of sites that produce many objects.
	SmushMany Flags = 1 << iota
	// SmushStrings merges string buffers per type.
	SmushStrings
	// SmushPrimitiveHolders merges boxed primitives per type.
	SmushPrimitiveHolders
	// SmushThrowables merges exception objects per type.
	SmushThrowables
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{SmushMany, "many"},
	{SmushStrings, "strings"},
	{SmushPrimitiveHolders, "primitive-holders"},
	{SmushThrowables, "throwables"},
}

// ParseFlags parses flag names as used in configuration files.
func ParseFlags(names []string) (Flags, error) {
	var res Flags
NAMES:
	for _, name := range names {
		for _, fn := range flagNames {
			if fn.name == name {
				res |= fn.flag
				continue NAMES
			}
		}
		return 0, fmt.Errorf("unknown smush flag %q", name)
	}
	return res, nil
}

func (f Flags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "allocation-site"
	}
	return strings.Join(parts, "|")
}

// ByType reports whether f merges some objects per type.
func (f Flags) ByType() bool {
	return f&(SmushStrings|SmushPrimitiveHolders|SmushThrowables) != 0
}

func (f Flags) merges(c ir.Category) bool {
	switch c {
	case ir.String:
		return f&SmushStrings != 0
	case ir.PrimitiveHolder:
		return f&SmushPrimitiveHolders != 0
	case ir.Throwable:
		return f&SmushThrowables != 0
	default:
		return false
	}
}

// ManyPredicate decides whether a site produces an unbounded number of
// objects.
type ManyPredicate func(site *ir.New) bool

// ManyHint trusts the front end's New.Many hint.
func ManyHint(site *ir.New) bool { return site.Many }

// Abstraction is the standard allocation-site policy with optional merging.
type Abstraction struct {
	flags Flags
	depth int
	many  ManyPredicate
	hier  ir.Hierarchy
}

var _ Policy = (*Abstraction)(nil)

// New returns a policy that distinguishes objects by allocation site and the
// depth most recent elements of the allocating context. A nil many predicate
// defaults to ManyHint.
func New(flags Flags, depth int, hier ir.Hierarchy, many ManyPredicate) *Abstraction {
	if many == nil {
		many = ManyHint
	}
	return &Abstraction{flags, depth, many, hier}
}

func (p *Abstraction) Flags() Flags { return p.flags }

func (p *Abstraction) InstanceKey(a *domain.Arena, site *ir.New, ctx domain.Context) domain.InstanceKeyID {
	if p.flags.ByType() && p.flags.merges(p.hier.Category(site.Type)) {
		id := a.Instance(domain.MergedTypeKey(site.Type))
		a.AddOrigin(id, site)
		return id
	}

	if p.flags&SmushMany != 0 && p.many(site) {
		return a.Instance(domain.MergedSiteKey(site))
	}

	return a.Instance(domain.SiteKey(site, a.Truncate(ctx, p.depth)))
}
