package pta

import (
	"io"
	"testing"

	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotentRewiring(t *testing.T) {
	tbl := ir.NewTable()
	obj := tbl.Class("Object", nil)
	iface := tbl.Interface("I")
	run := tbl.Abstract(iface, "run")
	a := tbl.Class("A", obj, iface)
	b := tbl.Class("B", obj, iface)
	for _, c := range []*ir.Class{a, b} {
		m := tbl.Define(c, "run", false, 1)
		m.Return(m.Param(0))
	}

	main := tbl.Define(tbl.Class("Main", obj), "main", true, 0)
	recv := main.Fresh()
	main.Copy(recv, main.New(a, "a"))
	main.Copy(recv, main.New(b, "b"))
	site := main.Call(ir.Interface, run, recv, main.New(obj, "arg"))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := Config{
		Program:     tbl,
		EntryPoints: []EntryPoint{{Method: main.Method()}},
		Options:     Options{Context: "object", Depth: 1},
		Logger:      logger,
	}
	s, err := cfg.validate()
	require.NoError(t, err)

	bld := newBuilder(&cfg, s)
	require.NoError(t, bld.run(cfg.EntryPoints))

	caller := bld.arena.NodesOf(main.Method())[0]
	require.Len(t, bld.cg.Targets(caller, site), 2)

	edges := bld.solver.Stats().Edges
	nodes := bld.cg.NumNodes()
	out := len(bld.cg.Out(caller))
	keys := bld.arena.NumPointerKeys()

	objs := toIDs(bld.solver.Facts(bld.local(caller, site.Receiver)))
	require.Len(t, objs, 2)
	for i := 0; i < 2; i++ {
		for _, o := range objs {
			require.NoError(t, bld.dispatch(caller, site, o))
		}
	}
	require.NoError(t, bld.solver.Solve())

	assert.Equal(t, edges, bld.solver.Stats().Edges)
	assert.Equal(t, nodes, bld.cg.NumNodes())
	assert.Equal(t, out, len(bld.cg.Out(caller)))
	assert.Equal(t, keys, bld.arena.NumPointerKeys())
}

func TestInvariantChecks(t *testing.T) {
	tbl := ir.NewTable()
	main := tbl.Define(tbl.Class("Main", nil), "main", true, 0)
	cfg := Config{
		Program:     tbl,
		EntryPoints: []EntryPoint{{Method: main.Method()}},
		Options:     Options{CheckInvariants: true},
	}
	s, err := cfg.validate()
	require.NoError(t, err)

	bld := newBuilder(&cfg, s)
	require.NoError(t, bld.run(cfg.EntryPoints))

	// Simulate a node that was interned without being added to the graph.
	bld.arena.Node(main.Method(), bld.arena.MakeContext(domain.CallElem(&ir.Call{})))
	assert.Error(t, bld.checkCallGraph())
}
