package heap

import (
	"testing"

	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"strings", "many"})
	require.NoError(t, err)
	assert.Equal(t, SmushMany|SmushStrings, f)
	assert.Equal(t, "many|strings", f.String())
	assert.True(t, f.ByType())
	assert.False(t, SmushMany.ByType())
	assert.Equal(t, "allocation-site", Flags(0).String())

	_, err = ParseFlags([]string{"everything"})
	assert.Error(t, err)
}

func TestAbstraction(t *testing.T) {
	tbl := ir.NewTable()
	obj := tbl.Class("Object", nil)
	str := tbl.Class("String", obj)
	str.Category = ir.String
	exc := tbl.Class("Exception", obj)
	exc.Category = ir.Throwable
	ioExc := tbl.Class("IOException", exc)

	a := domain.NewArena()
	c1 := a.MakeContext(domain.CallElem(&ir.Call{}))
	c2 := a.MakeContext(domain.CallElem(&ir.Call{}))

	s1 := &ir.New{Type: str}
	s2 := &ir.New{Type: str}
	o1 := &ir.New{Type: obj}
	loop := &ir.New{Type: obj, Many: true}
	e1 := &ir.New{Type: ioExc}

	t.Run("AllocationSite", func(t *testing.T) {
		p := New(0, 1, tbl, nil)
		assert.NotEqual(t, p.InstanceKey(a, s1, c1), p.InstanceKey(a, s2, c1))
		assert.NotEqual(t, p.InstanceKey(a, o1, c1), p.InstanceKey(a, o1, c2),
			"heap context should distinguish objects")
		assert.Equal(t, p.InstanceKey(a, o1, c1), p.InstanceKey(a, o1, c1))

		insens := New(0, 0, tbl, nil)
		assert.Equal(t, insens.InstanceKey(a, o1, c1), insens.InstanceKey(a, o1, c2))
	})

	t.Run("SmushStrings", func(t *testing.T) {
		p := New(SmushStrings, 1, tbl, nil)
		k := p.InstanceKey(a, s1, c1)
		assert.Equal(t, k, p.InstanceKey(a, s2, c2))
		assert.ElementsMatch(t, []*ir.New{s1, s2}, a.Origins(k))
		assert.Equal(t, domain.MergedType, a.InstanceKey(k).Kind)

		assert.NotEqual(t, p.InstanceKey(a, o1, c1), p.InstanceKey(a, o1, c2),
			"other objects are unaffected")
	})

	t.Run("SmushThrowables", func(t *testing.T) {
		p := New(SmushThrowables, 1, tbl, nil)
		e2 := &ir.New{Type: ioExc}
		assert.Equal(t, p.InstanceKey(a, e1, c1), p.InstanceKey(a, e2, c2),
			"category is inherited from superclasses")
	})

	t.Run("SmushMany", func(t *testing.T) {
		p := New(SmushMany, 1, tbl, nil)
		k := p.InstanceKey(a, loop, c1)
		assert.Equal(t, k, p.InstanceKey(a, loop, c2))
		assert.Equal(t, []*ir.New{loop}, a.Origins(k))

		never := New(SmushMany, 1, tbl, func(*ir.New) bool { return false })
		assert.NotEqual(t, never.InstanceKey(a, loop, c1), never.InstanceKey(a, loop, c2))
	})
}
