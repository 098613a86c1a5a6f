package domain

import (
	"testing"

	"github.com/BarrensZeppelin/pta/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContexts(t *testing.T) {
	a := NewArena()
	c1, c2, c3 := &ir.Call{}, &ir.Call{}, &ir.Call{}

	x := a.MakeContext(CallElem(c1), CallElem(c2))
	require.Equal(t, x, a.MakeContext(CallElem(c1), CallElem(c2)),
		"contexts should be interned")
	assert.NotEqual(t, x, a.MakeContext(CallElem(c2), CallElem(c1)))
	assert.Equal(t, 2, a.Depth(x))
	assert.Equal(t, []Elem{CallElem(c1), CallElem(c2)}, a.Elements(x))

	t.Run("Truncate", func(t *testing.T) {
		assert.Equal(t, a.MakeContext(CallElem(c1)), a.Truncate(x, 1))
		assert.Equal(t, x, a.Truncate(x, 5))
		assert.Equal(t, Everywhere, a.Truncate(x, 0))
	})

	t.Run("Push", func(t *testing.T) {
		y := a.Push(CallElem(c3), x, 2)
		assert.Equal(t, a.MakeContext(CallElem(c3), CallElem(c1)), y)
		assert.Equal(t, Everywhere, a.Push(CallElem(c3), x, 0))
	})
}

func TestNodes(t *testing.T) {
	tbl := ir.NewTable()
	cls := tbl.Class("A", nil)
	m := tbl.Abstract(cls, "m")

	a := NewArena()
	ctx := a.MakeContext(AllocElem(&ir.New{}))

	n1, created := a.Node(m, Everywhere)
	require.True(t, created)
	n2, created := a.Node(m, ctx)
	require.True(t, created)
	assert.NotEqual(t, n1, n2, "same method in different contexts are different nodes")

	again, created := a.Node(m, ctx)
	assert.False(t, created)
	assert.Equal(t, n2, again)
	assert.Equal(t, []NodeID{n1, n2}, a.NodesOf(m))
	assert.Equal(t, ctx, a.NodeContext(n2))
}

func TestKeys(t *testing.T) {
	a := NewArena()
	site := &ir.New{Type: &ir.Class{Name: "A"}}
	o := a.Instance(SiteKey(site, Everywhere))
	assert.Equal(t, o, a.Instance(SiteKey(site, Everywhere)))
	assert.Equal(t, []*ir.New{site}, a.Origins(o))

	f := &ir.Field{Name: "f"}
	pk := a.Pointer(FieldKey(o, f))
	assert.Equal(t, pk, a.Pointer(FieldKey(o, f)))
	assert.NotEqual(t, pk, a.Pointer(ArrayKey(o)))

	_, found := a.LookupPointer(StaticKey(f))
	assert.False(t, found)

	merged := a.Instance(MergedTypeKey(site.Type))
	assert.Empty(t, a.Origins(merged))
	a.AddOrigin(merged, site)
	a.AddOrigin(merged, site)
	assert.Equal(t, []*ir.New{site}, a.Origins(merged))
}
