// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cfg constructs a statement-level control flow graph (CFG) for a
// method body described by the statement model in package stmt.
//
// The graph is an arena: nodes are addressed by their integer IDs (indices
// into CFG.Nodes), and edges are (from, to, kind) triples.  Every graph has
// three distinguished nodes: Entry, Exit (reached by normal completion and
// by return statements), and ExceptionalExit (reached by exceptions that
// escape the method).
//
// There is one node per simple statement.  Composite statements contribute
// designated boundary nodes: a branch node and a join node for an if
// statement, a test node for a loop, a selector node and a join node for a
// switch, a header node for a synchronized statement, and, for a try
// statement, a try node plus one entry node per catch clause, a finally
// entry node, and (for try-with-resources) a normal and an exceptional
// resource-close node.
//
// Example Usage:
//
//	prog, err := loader.LoadSource("Example.java", src)
//	if err != nil {
//		...
//	}
//	g := cfg.New(prog.Methods[0])
//	for _, id := range g.Succs(cfg.Entry) {
//		fmt.Println(g.Nodes[id])
//	}
package cfg

import (
	"bytes"
	"fmt"

	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/text"
)

// IDs of the nodes present in every CFG.
const (
	Entry           = 0
	Exit            = 1
	ExceptionalExit = 2
)

// NodeKind distinguishes the various kinds of CFG node.
type NodeKind int

const (
	NodeEntry           NodeKind = iota // method entry
	NodeExit                            // normal method exit
	NodeExceptionalExit                 // exceptional method exit
	NodeStatement                       // simple statement
	NodeBranch                          // condition of an if statement
	NodeJoin                            // reconvergence point of an if or switch
	NodeLoop                            // loop test (or for-each header)
	NodeSwitch                          // switch selector
	NodeTry                             // try statement
	NodeCatch                           // catch clause entry; defines the exception parameter
	NodeFinally                         // finally clause entry
	NodeClose                           // implicit close of try-with-resources resources
	NodeSync                            // synchronized statement header
)

var nodeKindNames = [...]string{
	NodeEntry:           "entry",
	NodeExit:            "exit",
	NodeExceptionalExit: "exceptional exit",
	NodeStatement:       "statement",
	NodeBranch:          "branch",
	NodeJoin:            "join",
	NodeLoop:            "loop",
	NodeSwitch:          "switch",
	NodeTry:             "try",
	NodeCatch:           "catch",
	NodeFinally:         "finally",
	NodeClose:           "close",
	NodeSync:            "synchronized",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// IsStructural returns true iff nodes of this kind do not correspond to any
// code a programmer wrote, but exist only to shape the graph.
func (k NodeKind) IsStructural() bool {
	switch k {
	case NodeEntry, NodeExit, NodeExceptionalExit, NodeJoin, NodeTry,
		NodeCatch, NodeFinally, NodeClose:
		return true
	default:
		return false
	}
}

// EdgeKind labels a control flow edge.
type EdgeKind int

const (
	Unconditional EdgeKind = iota // sequential flow
	True                          // condition held (or a switch case was selected)
	False                         // condition failed (or no switch case matched)
	Exception                     // an exception was raised
)

func (k EdgeKind) String() string {
	switch k {
	case True:
		return "T"
	case False:
		return "F"
	case Exception:
		return "E"
	default:
		return "U"
	}
}

// An Edge is a control flow edge between two nodes, identified by ID.
type Edge struct {
	From, To int
	Kind     EdgeKind
}

// A Node is a vertex of the control flow graph.
type Node struct {
	ID   int
	Kind NodeKind
	// Statement the node was created for, or nil for Entry, Exit, and
	// ExceptionalExit.  Join, try, catch, finally, and close nodes refer to
	// the composite statement that owns them.
	Stmt   stmt.Statement
	Text   string
	Extent text.Extent
	// Line of the statement fragment, or 0 for structural nodes
	Line int

	Defs, Uses, Decls []stmt.Variable
	Calls             []stmt.Call
	Copies            []stmt.Copy

	// Exception types the node may raise explicitly (declared by a callee,
	// thrown by a throw statement, or re-raised at the end of a finally
	// clause).  The empty string denotes a type that could not be resolved.
	Raises []string
	// True if the node may raise unchecked exceptions
	Unchecked bool

	// For try, catch, finally, and close nodes, the try statement's node
	Try *TryNode
	// For catch nodes, the index of the catch clause; otherwise -1
	Catch int
}

func (n *Node) String() string {
	switch n.Kind {
	case NodeEntry:
		return "ENTRY"
	case NodeExit:
		return "EXIT"
	case NodeExceptionalExit:
		return "EXCEPTIONAL EXIT"
	}
	if n.Text == "" {
		return fmt.Sprintf("%d: %s", n.ID, n.Kind)
	}
	return fmt.Sprintf("%d: %s %s", n.ID, n.Kind, n.Text)
}

// A TryNode describes a try statement in the graph.  Its derived attributes
// are copied from the statement when the node is created.
type TryNode struct {
	// ID of the try node
	ID                int
	Statement         *stmt.TryStatement
	HandledExceptions []string
	HasResources      bool
	// IDs of the catch entry nodes, parallel to Statement.Catches
	Catches []int
	// ID of the finally entry node, or -1
	Finally int
	// IDs of the normal and exceptional resource-close nodes, or -1
	Close, ExceptionalClose int
}

// HasFinallyClauseClosingVariable returns true iff the try statement's
// finally clause invokes a closing operation on v.
func (t *TryNode) HasFinallyClauseClosingVariable(v stmt.Variable) bool {
	return t.Statement.HasFinallyClauseClosingVariable(v)
}

// HasCatchClause returns true iff the try statement has a catch clause.
func (t *TryNode) HasCatchClause() bool {
	return t.Statement.HasCatchClause()
}

// A CFG is the control flow graph for a single method body.  A CFG is never
// modified after New returns.
type CFG struct {
	Method *stmt.Method
	Tree   *stmt.Tree
	Nodes  []*Node
	Edges  []Edge

	succs, preds [][]int // edge indices
	byStmt       map[stmt.Statement][]int
	tries        []*TryNode
}

// New constructs the control flow graph for the given method.
func New(m *stmt.Method) *CFG {
	return newBuilder(m).build()
}

// Len returns the number of nodes in the graph.
func (c *CFG) Len() int {
	return len(c.Nodes)
}

// OutEdges returns the edges leaving the given node, in creation order.
func (c *CFG) OutEdges(id int) []Edge {
	result := make([]Edge, 0, len(c.succs[id]))
	for _, e := range c.succs[id] {
		result = append(result, c.Edges[e])
	}
	return result
}

// InEdges returns the edges entering the given node, in creation order.
func (c *CFG) InEdges(id int) []Edge {
	result := make([]Edge, 0, len(c.preds[id]))
	for _, e := range c.preds[id] {
		result = append(result, c.Edges[e])
	}
	return result
}

// Succs returns the IDs of the immediate successors of a node.  A node
// connected to the same successor by edges of several kinds is listed once.
func (c *CFG) Succs(id int) []int {
	return c.endpoints(c.succs[id], func(e Edge) int { return e.To })
}

// Preds returns the IDs of the immediate predecessors of a node.
func (c *CFG) Preds(id int) []int {
	return c.endpoints(c.preds[id], func(e Edge) int { return e.From })
}

func (c *CFG) endpoints(edges []int, end func(Edge) int) []int {
	result := []int{}
	seen := map[int]bool{}
	for _, e := range edges {
		n := end(c.Edges[e])
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
		}
	}
	return result
}

// Tries returns the try nodes of the graph in source order.
func (c *CFG) Tries() []*TryNode {
	return c.tries
}

// NodesOf returns the IDs of the nodes created for the given statement
// itself (not including its nested statements).
func (c *CFG) NodesOf(s stmt.Statement) []int {
	return c.byStmt[s]
}

// Within returns the IDs of all nodes created for s or for any statement
// nested within it, in ascending order.
func (c *CFG) Within(s stmt.Statement) []int {
	var result []int
	for _, n := range c.Nodes {
		if n.Stmt != nil && c.Tree.Contains(s, n.Stmt) {
			result = append(result, n.ID)
		}
	}
	return result
}

func (c *CFG) String() string {
	var b bytes.Buffer
	for _, n := range c.Nodes {
		fmt.Fprintf(&b, "%s\n", n)
		for _, e := range c.OutEdges(n.ID) {
			fmt.Fprintf(&b, "\t-%s-> %d\n", e.Kind, e.To)
		}
	}
	return b.String()
}
