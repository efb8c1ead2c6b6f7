// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pdg constructs a program dependence graph (PDG) from a control
// flow graph.  The PDG has the same nodes as the CFG; it adds control
// dependence edges (computed from post-dominators) and data dependence
// edges (computed from exception-sensitive reaching definitions).
//
// Control dependence is computed on the CFG with exception edges removed,
// plus three kinds of virtual edges:
//
//   - an edge from Entry to Exit, so that statements at the top level of
//     the method are control dependent on Entry (and have no control parent);
//   - an edge from each try node to each of its catch entries, so that a
//     catch clause body is control dependent on the try statement;
//   - an edge to Exit from each node that cannot otherwise reach it (e.g., a
//     throw statement, or the test of an infinite loop).
//
// Only the first two kinds of virtual edges induce control dependences.
package pdg

import (
	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/dataflow"
)

// A ControlDep records that a node executes only if the controlling node's
// outgoing edge of the given kind is taken.
type ControlDep struct {
	Node int
	Kind cfg.EdgeKind
}

// A Node is a node of the PDG, corresponding to the CFG node with the same
// ID.
type Node struct {
	ID int
	// Nodes this node is directly control dependent on
	Controllers []ControlDep
	// Nearest controller by statement depth, or -1 if the node is
	// control dependent only on Entry (or on nothing)
	ControlParent int
	// Data dependences on this node's uses, and on this node's definitions
	DataIn, DataOut []dataflow.Dep
}

// A PDG is the program dependence graph for a single method body.  A PDG is
// never modified after New returns, except that reachability sets are
// computed on demand.
type PDG struct {
	CFG      *cfg.CFG
	Reaching *dataflow.Reaching
	Live     *dataflow.Live
	Aliases  *dataflow.Aliases
	Nodes    []*Node

	ipdom     []int
	reachable []*roaring.Bitmap
}

// New constructs the program dependence graph for the given CFG.
func New(c *cfg.CFG) *PDG {
	p := &PDG{
		CFG:       c,
		Reaching:  dataflow.ReachingDefs(c),
		Live:      dataflow.LiveVars(c),
		Aliases:   dataflow.NewAliases(c),
		Nodes:     make([]*Node, c.Len()),
		reachable: make([]*roaring.Bitmap, c.Len()),
	}
	for i := range p.Nodes {
		p.Nodes[i] = &Node{ID: i, ControlParent: -1}
	}
	p.buildControl()
	p.buildData()
	return p
}

// Len returns the number of nodes in the graph.
func (p *PDG) Len() int {
	return len(p.Nodes)
}

// controlEdges returns the CFG edges that induce control dependences:
// every non-exception edge, plus the virtual Entry->Exit and try->catch
// edges.
func (p *PDG) controlEdges() []cfg.Edge {
	var edges []cfg.Edge
	for _, e := range p.CFG.Edges {
		if e.Kind != cfg.Exception && e.From != e.To {
			edges = append(edges, e)
		}
	}
	edges = append(edges, cfg.Edge{From: cfg.Entry, To: cfg.Exit, Kind: cfg.Unconditional})
	for _, t := range p.CFG.Tries() {
		for _, c := range t.Catches {
			edges = append(edges, cfg.Edge{From: t.ID, To: c, Kind: cfg.Exception})
		}
	}
	return edges
}

// postDominators computes the immediate post-dominator of every node by
// computing dominators on the reversed graph.
func (p *PDG) postDominators(edges []cfg.Edge) {
	n := p.CFG.Len()
	succs := make([][]int, n)
	preds := make([][]int, n)
	for _, e := range edges {
		succs[e.From] = append(succs[e.From], e.To)
		preds[e.To] = append(preds[e.To], e.From)
	}

	// Connect nodes that cannot reach Exit: first dead ends, then loop
	// tests, then anything else, one at a time until every node reaches Exit
	for {
		reaches := make([]bool, n)
		work := []int{cfg.Exit}
		reaches[cfg.Exit] = true
		for len(work) > 0 {
			id := work[len(work)-1]
			work = work[:len(work)-1]
			for _, pred := range preds[id] {
				if !reaches[pred] {
					reaches[pred] = true
					work = append(work, pred)
				}
			}
		}
		stuck := -1
		for id := 0; id < n; id++ {
			if reaches[id] {
				continue
			}
			if len(succs[id]) == 0 {
				stuck = id
				break
			}
			if stuck < 0 || (p.CFG.Nodes[id].Kind == cfg.NodeLoop && p.CFG.Nodes[stuck].Kind != cfg.NodeLoop) {
				stuck = id
			}
		}
		if stuck < 0 {
			break
		}
		succs[stuck] = append(succs[stuck], cfg.Exit)
		preds[cfg.Exit] = append(preds[cfg.Exit], stuck)
	}

	g := simple.NewDirectedGraph()
	for id := 0; id < n; id++ {
		g.AddNode(simple.Node(id))
	}
	for from, ss := range succs {
		for _, to := range ss {
			if from != to {
				g.SetEdge(simple.Edge{F: simple.Node(to), T: simple.Node(from)})
			}
		}
	}

	tree := flow.Dominators(simple.Node(cfg.Exit), g)
	p.ipdom = make([]int, n)
	for id := 0; id < n; id++ {
		p.ipdom[id] = -1
		if d := tree.DominatorOf(int64(id)); d != nil {
			p.ipdom[id] = int(d.ID())
		}
	}
}

// IPostDom returns the immediate post-dominator of the given node, or -1
// for Exit.
func (p *PDG) IPostDom(id int) int {
	return p.ipdom[id]
}

// PostDominates returns true iff every path from b to Exit passes through
// a (ignoring exceptional control flow).  Every node post-dominates itself.
func (p *PDG) PostDominates(a, b int) bool {
	for n := b; n >= 0; n = p.ipdom[n] {
		if n == a {
			return true
		}
	}
	return false
}

// buildControl computes control dependences.  For each edge A->B, every
// node on the post-dominator tree path from B up to (but not including)
// ipdom(A) is control dependent on A.
func (p *PDG) buildControl() {
	edges := p.controlEdges()
	p.postDominators(edges)

	seen := map[ControlDep]map[int]bool{}
	for _, e := range edges {
		if p.PostDominates(e.To, e.From) {
			continue
		}
		dep := ControlDep{Node: e.From, Kind: e.Kind}
		stop := p.ipdom[e.From]
		for runner := e.To; runner >= 0 && runner != stop; runner = p.ipdom[runner] {
			if seen[dep] == nil {
				seen[dep] = map[int]bool{}
			}
			if seen[dep][runner] {
				break
			}
			seen[dep][runner] = true
			n := p.Nodes[runner]
			n.Controllers = append(n.Controllers, dep)
		}
	}

	tree := p.CFG.Tree
	for _, n := range p.Nodes {
		best := -1
		for _, c := range n.Controllers {
			s := p.CFG.Nodes[c.Node].Stmt
			if c.Node == cfg.Entry || c.Node == n.ID || s == nil {
				continue
			}
			if best < 0 || tree.Depth(s) > tree.Depth(p.CFG.Nodes[best].Stmt) ||
				(tree.Depth(s) == tree.Depth(p.CFG.Nodes[best].Stmt) && c.Node < best) {
				best = c.Node
			}
		}
		n.ControlParent = best
	}
}

func (p *PDG) buildData() {
	for _, d := range dataflow.DefUse(p.CFG, p.Reaching, p.Aliases) {
		p.Nodes[d.Def].DataOut = append(p.Nodes[d.Def].DataOut, d)
		p.Nodes[d.Use].DataIn = append(p.Nodes[d.Use].DataIn, d)
	}
}

// IsControlDependent returns true iff the given node is directly control
// dependent on controller.
func (p *PDG) IsControlDependent(id, controller int) bool {
	for _, c := range p.Nodes[id].Controllers {
		if c.Node == controller {
			return true
		}
	}
	return false
}

// DataPreds returns the IDs of the nodes whose definitions reach uses at
// the given node, in ascending order without duplicates.
func (p *PDG) DataPreds(id int) []int {
	var result []int
	for _, d := range p.Nodes[id].DataIn {
		if len(result) == 0 || result[len(result)-1] != d.Def {
			result = append(result, d.Def)
		}
	}
	return result
}

// DataSuccs returns the IDs of the nodes using values defined at the given
// node, in ascending order without duplicates.
func (p *PDG) DataSuccs(id int) []int {
	seen := roaring.New()
	for _, d := range p.Nodes[id].DataOut {
		seen.Add(uint32(d.Use))
	}
	return toInts(seen)
}

// Reachable returns the set of nodes reachable from the given node along
// one or more CFG edges of any kind.  The node itself is included only if
// it is on a cycle.
func (p *PDG) Reachable(from int) *roaring.Bitmap {
	if r := p.reachable[from]; r != nil {
		return r
	}
	r := roaring.New()
	work := []int{from}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		for _, e := range p.CFG.OutEdges(id) {
			if !r.Contains(uint32(e.To)) {
				r.Add(uint32(e.To))
				work = append(work, e.To)
			}
		}
	}
	p.reachable[from] = r
	return r
}

// ReachableWithin returns the set of nodes reachable from the given node
// along paths that visit only nodes for which within returns true and that
// do not pass back through the starting node.
func (p *PDG) ReachableWithin(from int, within func(int) bool) *roaring.Bitmap {
	r := roaring.New()
	work := []int{from}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		for _, e := range p.CFG.OutEdges(id) {
			if e.To == from || !within(e.To) || r.Contains(uint32(e.To)) {
				continue
			}
			r.Add(uint32(e.To))
			work = append(work, e.To)
		}
	}
	return r
}

func toInts(b *roaring.Bitmap) []int {
	result := make([]int, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		result = append(result, int(it.Next()))
	}
	return result
}
