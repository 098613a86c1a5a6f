package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableResolve(t *testing.T) {
	tbl := NewTable()
	runnable := tbl.Interface("Runnable")
	run := tbl.Abstract(runnable, "run")

	base := tbl.Class("Base", nil, runnable)
	tbl.Define(base, "run", false, 0).Return(NoVar)
	sub := tbl.Class("Sub", base)
	tbl.Define(sub, "run", true, 0)
	leaf := tbl.Class("Leaf", sub)
	leafRun := tbl.Define(leaf, "run", false, 0).Method()

	m, ok := tbl.Resolve(base, run)
	require.True(t, ok)
	assert.Equal(t, "Base.run", m.(*MethodDecl).String())

	m, ok = tbl.Resolve(sub, run)
	require.True(t, ok)
	assert.Equal(t, base.Declared("run"), m, "static methods are skipped")

	m, ok = tbl.Resolve(leaf, run)
	require.True(t, ok)
	assert.Equal(t, leafRun, m)

	_, ok = tbl.Resolve(runnable, run)
	assert.False(t, ok, "interfaces have no implementation")

	other := tbl.Class("Other", nil)
	_, ok = tbl.Resolve(other, run)
	assert.False(t, ok)

	tbl.Define(other, "run", false, 0)
	_, ok = tbl.Resolve(other, run)
	assert.False(t, ok, "unrelated classes do not implement run")
	_, ok = tbl.Resolve(leaf, other.Declared("run"))
	assert.False(t, ok, "Leaf does not extend Other")

	assert.Nil(t, tbl.Body(run))
	assert.NotNil(t, tbl.Body(leafRun))
}

func TestTableAssignable(t *testing.T) {
	tbl := NewTable()
	i := tbl.Interface("I")
	j := tbl.Interface("J", i)
	a := tbl.Class("A", nil, j)
	b := tbl.Class("B", a)
	c := tbl.Class("C", nil)

	assert.True(t, tbl.Assignable(b, a))
	assert.True(t, tbl.Assignable(b, i))
	assert.True(t, tbl.Assignable(c, nil))
	assert.True(t, tbl.Assignable(c, c))
	assert.False(t, tbl.Assignable(a, b))
	assert.False(t, tbl.Assignable(c, i))
}

func TestTableCategory(t *testing.T) {
	tbl := NewTable()
	obj := tbl.Class("Object", nil)
	exc := tbl.Class("Exception", obj)
	exc.Category = Throwable
	ioExc := tbl.Class("IOException", exc)
	sb := tbl.Class("StringBuilder", obj)
	sb.Category = String

	assert.Equal(t, Ordinary, tbl.Category(obj))
	assert.Equal(t, Throwable, tbl.Category(ioExc))
	assert.Equal(t, String, tbl.Category(sb))
	assert.Equal(t, Ordinary, tbl.Category(nil))
}

func TestTableFields(t *testing.T) {
	tbl := NewTable()
	assert.Same(t, tbl.Field("A.f"), tbl.Field("A.f"))
	assert.NotSame(t, tbl.Field("A.f"), tbl.StaticField("A.f"))
	assert.True(t, tbl.StaticField("A.f").Static)
	assert.Nil(t, tbl.Lookup("A"))
}

func TestBodyBuilder(t *testing.T) {
	tbl := NewTable()
	a := tbl.Class("A", nil)
	f := tbl.Field("A.f")

	b := tbl.Define(a, "m", false, 2)
	assert.Equal(t, Var(0), b.This())
	assert.Equal(t, Var(2), b.Param(1))

	x := b.New(a, "x")
	b.Store(x, f, b.Param(0))
	y := b.Load(x, f)
	call := b.Call(Static, b.Method(), y, x)
	b.Return(call.Result)

	body := b.Body()
	require.Len(t, body.Instrs, 5)
	assert.Equal(t, NoVar, call.Receiver, "static calls have no receiver")
	assert.NotEqual(t, x, y)
}
