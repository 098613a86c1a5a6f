package contexts

import (
	"testing"

	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurity(t *testing.T) {
	a := domain.NewArena()
	s1, s2 := &ir.Call{}, &ir.Call{}
	alloc := &ir.New{}
	recv := a.Instance(domain.SiteKey(alloc, a.MakeContext(domain.CallElem(s2))))
	caller := a.MakeContext(domain.CallElem(s2))

	for _, sel := range []Selector{Insensitive, CallSite{1}, CallSite{2}, Object{1}, Object{2}} {
		t.Run(sel.String(), func(t *testing.T) {
			for _, r := range []domain.InstanceKeyID{domain.NoInstance, recv} {
				x := sel.Select(a, caller, s1, nil, r)
				y := sel.Select(a, caller, s1, nil, r)
				assert.Equal(t, x, y)
			}
		})
	}
}

func TestCallSite(t *testing.T) {
	a := domain.NewArena()
	s1, s2, s3 := &ir.Call{}, &ir.Call{}, &ir.Call{}
	sel := CallSite{2}

	c := sel.Select(a, sel.Initial(a), s1, nil, domain.NoInstance)
	c = sel.Select(a, c, s2, nil, domain.NoInstance)
	c = sel.Select(a, c, s3, nil, domain.NoInstance)
	assert.Equal(t, []domain.Elem{domain.CallElem(s3), domain.CallElem(s2)}, a.Elements(c),
		"only the two most recent call sites are kept")
}

func TestObject(t *testing.T) {
	a := domain.NewArena()
	outer, inner := &ir.New{}, &ir.New{}
	o := a.Instance(domain.SiteKey(outer, domain.Everywhere))
	// inner object allocated in a method analysed for receiver o.
	ctxO := Object{2}.Select(a, domain.Everywhere, nil, nil, o)
	i := a.Instance(domain.SiteKey(inner, ctxO))

	got := Object{2}.Select(a, domain.Everywhere, nil, nil, i)
	assert.Equal(t, []domain.Elem{domain.AllocElem(inner), domain.AllocElem(outer)}, a.Elements(got))

	got = Object{1}.Select(a, domain.Everywhere, nil, nil, i)
	assert.Equal(t, []domain.Elem{domain.AllocElem(inner)}, a.Elements(got))

	caller := a.MakeContext(domain.AllocElem(outer))
	assert.Equal(t, caller, Object{1}.Select(a, caller, nil, nil, domain.NoInstance),
		"static calls keep the caller's context")

	unknown := a.Instance(domain.UnknownKey(nil))
	assert.Equal(t, domain.Everywhere, Object{1}.Select(a, caller, nil, nil, unknown))
}

func TestParse(t *testing.T) {
	sel, err := Parse("object", 2)
	require.NoError(t, err)
	assert.Equal(t, Object{2}, sel)
	assert.True(t, sel.NeedsReceiver())

	sel, err = Parse("", 0)
	require.NoError(t, err)
	assert.Equal(t, Insensitive, sel)

	_, err = Parse("call-site", 0)
	assert.Error(t, err)
	_, err = Parse("type", 1)
	assert.Error(t, err)
}
