package pta

import (
	"fmt"
	"regexp"

	"github.com/BarrensZeppelin/pta/contexts"
	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/heap"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/monitor"
	"github.com/BarrensZeppelin/pta/solver"
	"github.com/sirupsen/logrus"
	"golang.org/x/tools/container/intsets"
)

type wireKey struct {
	caller domain.NodeID
	site   *ir.Call
	callee domain.NodeID
}

type warnKey struct {
	site *ir.Call
	typ  ir.Type
}

// builder owns the state of one analysis run. Solver nodes are pointer key
// identifiers.
type builder struct {
	prog     ir.Program
	model    ir.Model
	log      *logrus.Logger
	mon      monitor.Monitor
	selector contexts.Selector
	heap     heap.Policy
	exclude  []*regexp.Regexp
	check    bool

	arena  *domain.Arena
	solver *solver.Solver[*intsets.Sparse]
	cg     *CallGraph

	wired    map[wireKey]bool
	warned   map[warnKey]bool
	excluded map[ir.Method]bool
	noBody   map[ir.Method]bool
	warnings []Warning
}

func newBuilder(cfg *Config, s *settings) *builder {
	mon := cfg.supervise()
	arena := domain.NewArena()

	b := &builder{
		prog:     cfg.Program,
		model:    cfg.Model,
		log:      cfg.logger(),
		mon:      mon,
		selector: s.selector,
		heap:     heap.New(s.flags, cfg.Options.HeapDepth, cfg.Program, cfg.Many),
		exclude:  s.exclude,
		check:    cfg.Options.CheckInvariants,
		arena:    arena,
		cg:       newCallGraph(arena),
		wired:    make(map[wireKey]bool),
		warned:   make(map[warnKey]bool),
		excluded: make(map[ir.Method]bool),
		noBody:   make(map[ir.Method]bool),
	}

	b.solver = solver.New[*intsets.Sparse](solver.SetLattice{}, solver.Options{
		Order:           s.order,
		Monitor:         mon,
		CheckInvariants: cfg.Options.CheckInvariants,
	})
	return b
}

func (b *builder) run(entries []EntryPoint) error {
	for _, ep := range entries {
		if err := b.seed(ep); err != nil {
			return err
		}
	}

	if err := b.solver.Solve(); err != nil {
		return err
	}

	if b.check {
		return b.checkCallGraph()
	}
	return nil
}

// seed creates the node of an entry point in the initial context and lets
// its receiver and parameters point to unknown objects of the given types.
func (b *builder) seed(ep EntryPoint) error {
	n, err := b.node(ep.Method, b.selector.Initial(b.arena))
	if err != nil {
		return err
	}
	b.cg.addRoot(n)

	body := b.prog.Body(ep.Method)
	if body == nil {
		return nil
	}

	if body.This != ir.NoVar {
		for _, t := range ep.Receiver {
			if err := b.addFacts(b.local(n, body.This), b.unknown(t)); err != nil {
				return err
			}
		}
	}

	for i, types := range ep.Args {
		if i >= len(body.Params) {
			break
		}
		for _, t := range types {
			if err := b.addFacts(b.local(n, body.Params[i]), b.unknown(t)); err != nil {
				return err
			}
		}
	}
	return nil
}

// node returns the call graph node for m in ctx. Nodes are created on demand
// and their bodies are expanded before the solver continues propagating.
func (b *builder) node(m ir.Method, ctx domain.Context) (domain.NodeID, error) {
	if n, found := b.arena.LookupNode(m, ctx); found {
		return n, nil
	}

	if err := monitor.Checkpoint(b.mon); err != nil {
		return 0, err
	}

	n, _ := b.arena.Node(m, ctx)
	b.cg.addNode(n)
	b.solver.Defer(func() error { return b.expand(n) })
	return n, nil
}

func (b *builder) isExcluded(m ir.Method) bool {
	if len(b.exclude) == 0 {
		return false
	}

	res, found := b.excluded[m]
	if !found {
		name := m.String()
		for _, re := range b.exclude {
			if re.MatchString(name) {
				res = true
				break
			}
		}
		b.excluded[m] = res
	}
	return res
}

// invoke resolves the callee node of site for target and wires it. recv is
// the receiver object the target was dispatched on, if any.
func (b *builder) invoke(caller domain.NodeID, site *ir.Call, target ir.Method, recv domain.InstanceKeyID) error {
	ctx := b.selector.Select(b.arena, b.arena.NodeContext(caller), site, target, recv)
	callee, err := b.node(target, ctx)
	if err != nil {
		return err
	}

	if recv != domain.NoInstance {
		if body := b.prog.Body(target); body != nil && body.This != ir.NoVar {
			if err := b.addFacts(b.local(callee, body.This), recv); err != nil {
				return err
			}
		}
	}

	return b.wire(caller, site, callee)
}

// wire connects actuals to formals, and the callee's return and exception
// values to the call site. Wiring the same triple again is a no-op.
func (b *builder) wire(caller domain.NodeID, site *ir.Call, callee domain.NodeID) error {
	key := wireKey{caller, site, callee}
	if b.wired[key] {
		return nil
	}
	b.wired[key] = true
	b.cg.addEdge(caller, site, callee)

	if body := b.prog.Body(b.arena.NodeMethod(callee)); body != nil {
		for i, arg := range site.Args {
			if i >= len(body.Params) {
				break
			}
			if arg == ir.NoVar {
				continue
			}
			if err := b.solver.AddEdge(b.local(caller, arg), b.local(callee, body.Params[i]), nil); err != nil {
				return err
			}
		}
	}

	if site.Result != ir.NoVar {
		if err := b.solver.AddEdge(b.pointer(domain.ReturnKey(callee)), b.local(caller, site.Result), nil); err != nil {
			return err
		}
	}

	exc := b.pointer(domain.ExceptionKey(caller))
	if site.Exception != ir.NoVar {
		exc = b.local(caller, site.Exception)
	}
	return b.solver.AddEdge(b.pointer(domain.ExceptionKey(callee)), exc, nil)
}

func (b *builder) unresolved(caller domain.NodeID, site *ir.Call, typ ir.Type) {
	key := warnKey{site, typ}
	if b.warned[key] {
		return
	}
	b.warned[key] = true

	w := Warning{
		Kind:   UnresolvableCall,
		Method: b.arena.NodeMethod(caller),
		Site:   site,
		Type:   typ,
	}
	b.warnings = append(b.warnings, w)
	b.log.Warn(w)
}

func (b *builder) missingBody(m ir.Method) {
	if b.noBody[m] {
		return
	}
	b.noBody[m] = true

	w := Warning{Kind: MissingBody, Method: m}
	b.warnings = append(b.warnings, w)
	b.log.Debug(w)
}

func (b *builder) pointer(pk domain.PointerKey) solver.Node {
	n := solver.Node(b.arena.Pointer(pk))
	b.solver.AddNode(n)
	return n
}

func (b *builder) local(n domain.NodeID, v ir.Var) solver.Node {
	return b.pointer(domain.LocalKey(n, v))
}

func (b *builder) unknown(t ir.Type) domain.InstanceKeyID {
	return b.arena.Instance(domain.UnknownKey(t))
}

func (b *builder) addFacts(n solver.Node, objs ...domain.InstanceKeyID) error {
	s := new(intsets.Sparse)
	for _, o := range objs {
		s.Insert(int(o))
	}
	return b.solver.AddFacts(n, s)
}

// checkCallGraph verifies that every interned node is part of the call
// graph.
func (b *builder) checkCallGraph() error {
	if got, want := b.cg.NumNodes(), b.arena.NumNodes(); got != want {
		return &solver.InvariantError{
			Node: -1,
			Msg:  fmt.Sprintf("call graph has %d nodes, expected %d", got, want),
		}
	}
	return nil
}
