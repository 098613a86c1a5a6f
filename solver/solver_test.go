package solver

import (
	"math/rand"
	"testing"

	"github.com/BarrensZeppelin/pta/monitor"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/container/intsets"
)

func elems(s *intsets.Sparse) []int { return s.AppendTo(nil) }

type evenFilter struct{}

func (evenFilter) Apply(s *intsets.Sparse) *intsets.Sparse {
	return FilterSet(s, func(x int) bool { return x%2 == 0 })
}

func TestPropagation(t *testing.T) {
	s := New[*intsets.Sparse](SetLattice{}, Options{})
	require.NoError(t, s.AddEdge(0, 1, nil))
	require.NoError(t, s.AddEdge(1, 2, nil))
	require.NoError(t, s.AddEdge(2, 0, nil))
	require.NoError(t, s.AddEdge(2, 3, evenFilter{}))
	require.NoError(t, s.AddFacts(0, SetOf(1, 2)))
	require.NoError(t, s.AddFacts(1, SetOf(4)))
	require.NoError(t, s.Solve())

	for n := Node(0); n < 3; n++ {
		assert.Equal(t, []int{1, 2, 4}, elems(s.Facts(n)))
	}
	assert.Equal(t, []int{2, 4}, elems(s.Facts(3)), "filter should drop odd elements")
}

func TestEdgeAfterFacts(t *testing.T) {
	s := New[*intsets.Sparse](SetLattice{}, Options{})
	require.NoError(t, s.AddFacts(0, SetOf(7)))
	require.NoError(t, s.Solve())

	require.NoError(t, s.AddEdge(0, 1, nil))
	require.NoError(t, s.AddEdge(0, 1, nil))
	assert.Equal(t, 1, s.Stats().Edges, "duplicate edges should be ignored")
	require.NoError(t, s.Solve())
	assert.Equal(t, []int{7}, elems(s.Facts(1)))
}

func TestGrowthCallback(t *testing.T) {
	s := New[*intsets.Sparse](SetLattice{}, Options{})

	// Every element x arriving at node 0 creates an edge 0 -> x+10 and a
	// fact x+1 at node 0, until 5 is reached.
	var seen []int
	s.OnChange(0, func(n Node, delta *intsets.Sparse) error {
		for _, x := range elems(delta) {
			seen = append(seen, x)
			if err := s.AddEdge(0, Node(x+10), nil); err != nil {
				return err
			}
			if x < 5 {
				if err := s.AddFacts(0, SetOf(x+1)); err != nil {
					return err
				}
			}
		}
		return nil
	})

	require.NoError(t, s.AddFacts(0, SetOf(0)))
	require.NoError(t, s.Solve())

	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, seen)
	for x := 0; x <= 5; x++ {
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, elems(s.Facts(Node(x+10))))
	}
}

func TestLateCallback(t *testing.T) {
	s := New[*intsets.Sparse](SetLattice{}, Options{})
	require.NoError(t, s.AddFacts(3, SetOf(1, 2)))
	require.NoError(t, s.Solve())

	var got []int
	s.OnChange(3, func(_ Node, delta *intsets.Sparse) error {
		got = append(got, elems(delta)...)
		return nil
	})
	require.NoError(t, s.Solve())
	assert.Equal(t, []int{1, 2}, got, "callback registered late should see existing facts")
}

// randomProblem builds a random graph with growth callbacks that add edges
// depending on the facts that arrive.
func randomProblem(seed int64, opts Options) *Solver[*intsets.Sparse] {
	rng := rand.New(rand.NewSource(seed))
	s := New[*intsets.Sparse](SetLattice{}, opts)
	const nodes = 40

	for i := 0; i < 60; i++ {
		var tr Transfer[*intsets.Sparse]
		if rng.Intn(4) == 0 {
			tr = evenFilter{}
		}
		_ = s.AddEdge(Node(rng.Intn(nodes)), Node(rng.Intn(nodes)), tr)
	}

	for i := 0; i < 10; i++ {
		_ = s.AddFacts(Node(rng.Intn(nodes)), SetOf(rng.Intn(30)))
	}

	for i := 0; i < 8; i++ {
		src := Node(rng.Intn(nodes))
		s.OnChange(src, func(n Node, delta *intsets.Sparse) error {
			for _, x := range elems(delta) {
				if err := s.AddEdge(n, Node(x%nodes), nil); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return s
}

func TestConfluence(t *testing.T) {
	orders := map[string]Options{
		"FIFO":     {Order: FIFO},
		"LIFO":     {Order: LIFO},
		"Priority": {Priority: func(a, b Node) bool { return a > b }},
	}

	for seed := int64(0); seed < 20; seed++ {
		results := map[string][][]int{}
		for name, opts := range orders {
			s := randomProblem(seed, opts)
			require.NoError(t, s.Solve())

			var res [][]int
			for n := 0; n < s.NumNodes(); n++ {
				res = append(res, elems(s.Facts(Node(n))))
			}
			results[name] = res
		}

		if diff := cmp.Diff(results["FIFO"], results["LIFO"]); diff != "" {
			t.Errorf("seed %d: FIFO and LIFO disagree (-fifo +lifo):\n%s", seed, diff)
		}
		if diff := cmp.Diff(results["FIFO"], results["Priority"]); diff != "" {
			t.Errorf("seed %d: FIFO and Priority disagree (-fifo +prio):\n%s", seed, diff)
		}
	}
}

func TestTermination(t *testing.T) {
	s := randomProblem(42, Options{})
	require.NoError(t, s.Solve())

	total := 0
	for n := 0; n < s.NumNodes(); n++ {
		total += s.Facts(Node(n)).Len()
	}

	st := s.Stats()
	assert.LessOrEqual(t, st.Changes, total,
		"every change adds at least one fact")
	assert.LessOrEqual(t, st.Iterations, st.Changes)
	assert.LessOrEqual(t, st.Changes, st.Nodes*30)
}

func TestMonotonicity(t *testing.T) {
	s := randomProblem(7, Options{CheckInvariants: true})

	// Record the facts of all nodes after every iteration and check that
	// they never shrink.
	prev := map[Node]*intsets.Sparse{}
	check := &checkingMonitor{check: func() {
		for n := 0; n < s.NumNodes(); n++ {
			cur := s.Facts(Node(n))
			if p, ok := prev[Node(n)]; ok {
				require.True(t, p.SubsetOf(cur), "facts of %d shrank", n)
			}
			prev[Node(n)] = SetLattice{}.Clone(cur)
		}
	}}
	s.mon = check
	require.NoError(t, s.Solve())
	assert.Greater(t, check.polls, 0)
}

type checkingMonitor struct {
	check func()
	polls int
}

func (m *checkingMonitor) IsCanceled() bool {
	m.polls++
	m.check()
	return false
}

func (m *checkingMonitor) Worked(int) {}

// shrinkLattice is a broken lattice whose join replaces the destination.
type shrinkLattice struct{ SetLattice }

func (shrinkLattice) Join(dst **intsets.Sparse, src *intsets.Sparse) (*intsets.Sparse, bool) {
	changed := !(*dst).Equals(src)
	*dst = SetLattice{}.Clone(src)
	return src, changed
}

func TestInvariantViolation(t *testing.T) {
	s := New[*intsets.Sparse](shrinkLattice{}, Options{CheckInvariants: true})
	require.NoError(t, s.AddFacts(0, SetOf(1, 2)))
	err := s.AddFacts(0, SetOf(3))

	var ierr *InvariantError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, Node(0), ierr.Node)
}

func TestCancellation(t *testing.T) {
	mon := &monitor.Counter{Limit: 3}
	s := New[*intsets.Sparse](SetLattice{}, Options{Monitor: mon})
	for n := Node(0); n < 10; n++ {
		require.NoError(t, s.AddEdge(n, n+1, nil))
	}
	require.NoError(t, s.AddFacts(0, SetOf(1)))

	err := s.Solve()
	require.ErrorIs(t, err, monitor.ErrCanceled)
	assert.Equal(t, 3, s.Stats().Iterations)
	assert.True(t, s.Facts(10).IsEmpty(), "solve should stop before reaching the fixpoint")
}
