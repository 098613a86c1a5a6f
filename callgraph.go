package pta

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/BarrensZeppelin/pta/domain"
	"github.com/BarrensZeppelin/pta/internal/queue"
	"github.com/BarrensZeppelin/pta/ir"
)

// Edge is a resolved call from a call site of Caller to Callee.
type Edge struct {
	Caller domain.NodeID
	Site   *ir.Call
	Callee domain.NodeID
}

// CallGraph is the context-sensitive call graph discovered by the analysis.
// Nodes are (method, context) pairs.
type CallGraph struct {
	arena *domain.Arena

	roots []domain.NodeID
	nodes []domain.NodeID
	sites map[domain.NodeID][]*ir.Call
	out   map[domain.NodeID][]Edge
	in    map[domain.NodeID][]Edge
}

func newCallGraph(arena *domain.Arena) *CallGraph {
	return &CallGraph{
		arena: arena,
		sites: make(map[domain.NodeID][]*ir.Call),
		out:   make(map[domain.NodeID][]Edge),
		in:    make(map[domain.NodeID][]Edge),
	}
}

func (cg *CallGraph) addRoot(n domain.NodeID) { cg.roots = append(cg.roots, n) }
func (cg *CallGraph) addNode(n domain.NodeID) { cg.nodes = append(cg.nodes, n) }

func (cg *CallGraph) addSite(n domain.NodeID, site *ir.Call) {
	cg.sites[n] = append(cg.sites[n], site)
}

func (cg *CallGraph) addEdge(caller domain.NodeID, site *ir.Call, callee domain.NodeID) {
	e := Edge{caller, site, callee}
	cg.out[caller] = append(cg.out[caller], e)
	cg.in[callee] = append(cg.in[callee], e)
}

// Roots returns the nodes of the entry points.
func (cg *CallGraph) Roots() []domain.NodeID { return cg.roots }

// Nodes returns all nodes in creation order.
func (cg *CallGraph) Nodes() []domain.NodeID { return cg.nodes }

func (cg *CallGraph) NumNodes() int                          { return len(cg.nodes) }
func (cg *CallGraph) Method(n domain.NodeID) ir.Method       { return cg.arena.NodeMethod(n) }
func (cg *CallGraph) Context(n domain.NodeID) domain.Context { return cg.arena.NodeContext(n) }
func (cg *CallGraph) String(n domain.NodeID) string          { return cg.arena.NodeString(n) }

// Sites returns the call sites of n. Excluded nodes and nodes without a body
// have none.
func (cg *CallGraph) Sites(n domain.NodeID) []*ir.Call { return cg.sites[n] }

func (cg *CallGraph) Out(n domain.NodeID) []Edge { return cg.out[n] }
func (cg *CallGraph) In(n domain.NodeID) []Edge  { return cg.in[n] }

// NodesOf returns the nodes of m, one per context it was analysed in.
func (cg *CallGraph) NodesOf(m ir.Method) []domain.NodeID { return cg.arena.NodesOf(m) }

// Targets returns the callees of site in n.
func (cg *CallGraph) Targets(n domain.NodeID, site *ir.Call) []domain.NodeID {
	var res []domain.NodeID
	for _, e := range cg.out[n] {
		if e.Site == site {
			res = append(res, e.Callee)
		}
	}
	return res
}

// Succs returns the distinct callees of n.
func (cg *CallGraph) Succs(n domain.NodeID) []domain.NodeID {
	return distinct(cg.out[n], func(e Edge) domain.NodeID { return e.Callee })
}

// Preds returns the distinct callers of n.
func (cg *CallGraph) Preds(n domain.NodeID) []domain.NodeID {
	return distinct(cg.in[n], func(e Edge) domain.NodeID { return e.Caller })
}

func distinct(edges []Edge, end func(Edge) domain.NodeID) []domain.NodeID {
	seen := make(map[domain.NodeID]bool, len(edges))
	var res []domain.NodeID
	for _, e := range edges {
		if n := end(e); !seen[n] {
			seen[n] = true
			res = append(res, n)
		}
	}
	return res
}

// Reachable returns the nodes reachable from the given nodes, or from the
// roots when none are given, in breadth-first order.
func (cg *CallGraph) Reachable(from ...domain.NodeID) []domain.NodeID {
	if len(from) == 0 {
		from = cg.roots
	}

	var q queue.Queue[domain.NodeID]
	visited := make(map[domain.NodeID]bool)
	var res []domain.NodeID
	for _, n := range from {
		if !visited[n] {
			visited[n] = true
			q.Push(n)
		}
	}

	for !q.Empty() {
		n := q.Pop()
		res = append(res, n)
		for _, e := range cg.out[n] {
			if !visited[e.Callee] {
				visited[e.Callee] = true
				q.Push(e.Callee)
			}
		}
	}
	return res
}

// Methods returns the set of methods that have at least one node.
func (cg *CallGraph) Methods() map[ir.Method]bool {
	res := make(map[ir.Method]bool, len(cg.nodes))
	for _, n := range cg.nodes {
		res[cg.arena.NodeMethod(n)] = true
	}
	return res
}

// WriteDOT writes the call graph in Graphviz format.
func (cg *CallGraph) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph callgraph {")
	fmt.Fprintln(bw, "\tnode [shape=box];")
	for _, n := range cg.nodes {
		fmt.Fprintf(bw, "\tn%d [label=%q];\n", n, cg.arena.NodeString(n))
	}
	for _, n := range cg.nodes {
		for _, e := range cg.out[n] {
			fmt.Fprintf(bw, "\tn%d -> n%d [label=%q];\n", e.Caller, e.Callee, siteLabel(e.Site))
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// Dump writes a textual rendition of the call graph that does not depend on
// the order in which nodes were discovered.
func (cg *CallGraph) Dump(w io.Writer) error {
	lines := make([]string, 0, len(cg.nodes))
	for _, n := range cg.nodes {
		var callees []string
		for _, e := range cg.out[n] {
			callees = append(callees, fmt.Sprintf("\t%s -> %s\n", siteLabel(e.Site), cg.arena.NodeString(e.Callee)))
		}
		sort.Strings(callees)

		line := cg.arena.NodeString(n) + "\n"
		for _, c := range callees {
			line += c
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

func siteLabel(site *ir.Call) string {
	if site.Label != "" {
		return site.Label
	}
	return site.String()
}
