// Package solver implements a generic worklist fixpoint solver over a
// constraint graph that may grow while it is being solved.
//
// Facts are elements of a join semilattice. Edges carry optional transfer
// functions and propagate the difference between what a node has and what it
// had when it was last processed, so transfer functions must distribute over
// joins. Growth callbacks can be attached to nodes; they receive the new facts
// of the node when it is processed and may add nodes, edges and facts, which
// is how clients such as call graph construction extend the graph on the fly.
package solver

import (
	"fmt"

	"github.com/BarrensZeppelin/pta/internal/queue"
	"github.com/BarrensZeppelin/pta/monitor"
)

type Node int32

// Lattice describes the facts stored at nodes.
type Lattice[F any] interface {
	Bottom() F
	IsBottom(x F) bool
	// Join merges src into *dst. It returns the part of src that was not
	// already in *dst and whether *dst changed.
	Join(dst *F, src F) (added F, changed bool)
	Leq(a, b F) bool
	Clone(x F) F
}

// Transfer transforms facts flowing along an edge. Implementations must be
// comparable; identical edges are only added once.
type Transfer[F any] interface {
	Apply(F) F
}

// Callback is invoked with the facts a node gained since it was last
// processed.
type Callback[F any] func(n Node, delta F) error

type Order int

const (
	FIFO Order = iota
	LIFO
)

func (o Order) String() string {
	if o == LIFO {
		return "lifo"
	}
	return "fifo"
}

type Options struct {
	Order Order
	// Priority, when set, overrides Order: the least node is processed first.
	Priority func(a, b Node) bool
	Monitor  monitor.Monitor
	// CheckInvariants verifies that every join is monotone.
	CheckInvariants bool
}

// Stats counts the work performed by a solver.
type Stats struct {
	Iterations   int
	Propagations int
	// Changes counts joins that added facts to a node.
	Changes   int
	Callbacks int
	Deferred  int
	Nodes     int
	Edges     int
}

// InvariantError reports a detected monotonicity violation. It indicates a
// defect in a lattice or transfer function.
type InvariantError struct {
	Node Node
	Msg  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation at node %d: %s", e.Node, e.Msg)
}

type worklist interface {
	Push(Node)
	Pop() Node
	Empty() bool
}

type edge[F any] struct {
	dst      Node
	transfer Transfer[F]
}

type edgeKey[F any] struct {
	src, dst Node
	transfer Transfer[F]
}

type Solver[F any] struct {
	lat  Lattice[F]
	opts Options
	mon  monitor.Monitor

	facts     []F
	delta     []F
	dirty     []bool
	out       [][]edge[F]
	callbacks [][]Callback[F]
	edges     map[edgeKey[F]]bool

	work     worklist
	deferred queue.Queue[func() error]

	stats Stats
}

func New[F any](lat Lattice[F], opts Options) *Solver[F] {
	s := &Solver[F]{
		lat:   lat,
		opts:  opts,
		mon:   opts.Monitor,
		edges: make(map[edgeKey[F]]bool),
	}
	if s.mon == nil {
		s.mon = monitor.Null
	}

	switch {
	case opts.Priority != nil:
		s.work = queue.NewPriority(opts.Priority)
	case opts.Order == LIFO:
		s.work = &queue.Stack[Node]{}
	default:
		s.work = &queue.Queue[Node]{}
	}
	return s
}

// AddNode makes n (and all nodes with smaller identifiers) known to the
// solver.
func (s *Solver[F]) AddNode(n Node) {
	for Node(len(s.facts)) <= n {
		s.facts = append(s.facts, s.lat.Bottom())
		s.delta = append(s.delta, s.lat.Bottom())
		s.dirty = append(s.dirty, false)
		s.out = append(s.out, nil)
		s.callbacks = append(s.callbacks, nil)
	}
	s.stats.Nodes = len(s.facts)
}

// Facts returns the current facts of n. The result must not be modified.
func (s *Solver[F]) Facts(n Node) F {
	if int(n) >= len(s.facts) {
		return s.lat.Bottom()
	}
	return s.facts[n]
}

func (s *Solver[F]) NumNodes() int { return len(s.facts) }
func (s *Solver[F]) Stats() Stats  { return s.stats }

// AddFacts joins f into the facts of n.
func (s *Solver[F]) AddFacts(n Node, f F) error {
	s.AddNode(n)
	return s.propagate(n, nil, f)
}

// AddEdge adds an edge from src to dst. A nil transfer is the identity. The
// current facts of src are propagated along the new edge immediately.
func (s *Solver[F]) AddEdge(src, dst Node, transfer Transfer[F]) error {
	key := edgeKey[F]{src, dst, transfer}
	if s.edges[key] {
		return nil
	}
	s.edges[key] = true
	s.stats.Edges++

	s.AddNode(src)
	s.AddNode(dst)
	s.out[src] = append(s.out[src], edge[F]{dst, transfer})

	if f := s.facts[src]; !s.lat.IsBottom(f) {
		return s.propagate(dst, transfer, s.lat.Clone(f))
	}
	return nil
}

// OnChange registers a growth callback for n. If n already has facts, the
// callback is scheduled to run once with all of them.
func (s *Solver[F]) OnChange(n Node, cb Callback[F]) {
	s.AddNode(n)
	s.callbacks[n] = append(s.callbacks[n], cb)

	if !s.lat.IsBottom(s.facts[n]) {
		s.Defer(func() error {
			return cb(n, s.lat.Clone(s.facts[n]))
		})
	}
}

// Defer schedules a task. Deferred tasks run before the next node is taken
// off the worklist.
func (s *Solver[F]) Defer(task func() error) {
	s.deferred.Push(task)
}

func (s *Solver[F]) propagate(dst Node, transfer Transfer[F], f F) error {
	if transfer != nil {
		f = transfer.Apply(f)
	}
	if s.lat.IsBottom(f) {
		return nil
	}
	s.stats.Propagations++

	var old F
	if s.opts.CheckInvariants {
		old = s.lat.Clone(s.facts[dst])
	}

	added, changed := s.lat.Join(&s.facts[dst], f)

	if s.opts.CheckInvariants && !s.lat.Leq(old, s.facts[dst]) {
		return &InvariantError{dst, fmt.Sprintf("facts shrank from %v to %v", old, s.facts[dst])}
	}

	if changed {
		s.stats.Changes++
		s.lat.Join(&s.delta[dst], added)
		if !s.dirty[dst] {
			s.dirty[dst] = true
			s.work.Push(dst)
		}
	}
	return nil
}

// Solve runs until no deferred tasks remain and no node is dirty. It stops
// early with monitor.ErrCanceled when the monitor is canceled, or with the
// first error returned by a callback or deferred task.
func (s *Solver[F]) Solve() error {
	for {
		if !s.deferred.Empty() {
			s.stats.Deferred++
			if err := s.deferred.Pop()(); err != nil {
				return err
			}
			continue
		}

		if s.work.Empty() {
			return nil
		}

		if err := monitor.Checkpoint(s.mon); err != nil {
			return err
		}
		s.mon.Worked(1)

		n := s.work.Pop()
		s.dirty[n] = false
		d := s.delta[n]
		s.delta[n] = s.lat.Bottom()
		s.stats.Iterations++

		for _, cb := range s.callbacks[n] {
			s.stats.Callbacks++
			if err := cb(n, d); err != nil {
				return err
			}
		}

		for _, e := range s.out[n] {
			if err := s.propagate(e.dst, e.transfer, d); err != nil {
				return err
			}
		}
	}
}
