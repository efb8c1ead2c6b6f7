// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slicing computes dependence-closure slices over a program
// dependence graph and decides whether each slice can be extracted into a
// new method.
//
// A slice is computed for a criterion (a node and a variable defined or
// used there) relative to a boundary: a statement sequence enclosing the
// criterion.  Only nodes within the boundary are added to the slice.  The
// slice's region is the contiguous run of boundary statements spanning the
// slice; a slice is extractable only if its region contains nothing but the
// slice and satisfies the structural checks in validity.go.
//
// Example Usage:
//
//	p := pdg.New(cfg.New(method))
//	s := slicing.New(p, slicing.Options{MinStatements: 2, ForwardClosure: true})
//	for _, b := range s.Boundaries(criterion.Node) {
//		slice, err := s.Compute(criterion, b)
//		...
//	}
package slicing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/pdg"
	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/text"
)

// ErrBadCriterion is returned when a criterion does not name a variable
// defined or used at a statement node within the boundary.
var ErrBadCriterion = errors.New("invalid slicing criterion")

// A Criterion is a node of the dependence graph and a variable defined or
// used at that node.
type Criterion struct {
	Node int
	Var  stmt.Variable
}

func (c Criterion) String() string {
	return fmt.Sprintf("%s@%d", c.Var, c.Node)
}

// Options control how slices are computed and filtered.
type Options struct {
	// Smallest number of statements (counting the headers of compound
	// statements) an extractable region may contain
	MinStatements int
	// Whether slices are closed forward over later consumers of the
	// criterion's value when the criterion variable is redefined
	ForwardClosure bool
}

// A Slice is the dependence closure of a criterion within a boundary, plus
// the result of checking whether it can be extracted.
type Slice struct {
	Method    *stmt.Method
	Graph     *pdg.PDG
	Criterion Criterion
	Boundary  *stmt.Sequence

	// IDs of the nodes in the slice, ordered by source position
	Nodes []int
	// Top-level boundary statements spanned by the slice, in order
	Statements []stmt.Statement
	// Region of the source file occupied by Statements
	Extent text.Extent
	// Digests of Statements at the time the slice was computed
	Digests []string

	// Local variables the region reads before writing (the parameters of
	// an extracted method), sorted by name
	Inputs []stmt.Variable
	// The variable an extracted method would return, or nil
	Output *stmt.Variable

	Valid     bool
	Rejection Rejection
	// Additional information about the rejection (e.g., a variable name)
	Detail string
}

// Key returns a string identifying the node set of the slice.  Slices with
// equal keys in the same method contain exactly the same nodes.
func (s *Slice) Key() string {
	ids := make([]string, len(s.Nodes))
	for i, id := range s.Nodes {
		ids[i] = strconv.Itoa(id)
	}
	return strings.Join(ids, ",")
}

// Contains returns true iff the given node is in the slice.
func (s *Slice) Contains(id int) bool {
	for _, n := range s.Nodes {
		if n == id {
			return true
		}
	}
	return false
}

// Text returns the normalized source text of the slice's nodes, one per
// line.
func (s *Slice) Text() string {
	var b strings.Builder
	for _, id := range s.Nodes {
		n := s.Graph.CFG.Nodes[id]
		if n.Kind.IsStructural() {
			continue
		}
		b.WriteString(n.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Slice) String() string {
	status := "valid"
	if !s.Valid {
		status = s.Rejection.String()
		if s.Detail != "" {
			status += " (" + s.Detail + ")"
		}
	}
	return fmt.Sprintf("%s %s [%s]: %s", s.Method, s.Criterion, s.Key(), status)
}

// A Slicer computes slices for the nodes of one dependence graph.  It is not
// safe for concurrent use.
type Slicer struct {
	PDG  *pdg.PDG
	opts Options
}

// New returns a Slicer for the given dependence graph.
func New(p *pdg.PDG, opts Options) *Slicer {
	if opts.MinStatements < 1 {
		opts.MinStatements = 1
	}
	return &Slicer{PDG: p, opts: opts}
}

func (s *Slicer) tree() *stmt.Tree {
	return s.PDG.CFG.Tree
}

// Boundaries returns the statement sequences enclosing the given node,
// from the innermost outwards.  The result is empty for nodes that do not
// belong to a statement.
func (s *Slicer) Boundaries(node int) []*stmt.Sequence {
	st := s.PDG.CFG.Nodes[node].Stmt
	if st == nil {
		return nil
	}
	return s.tree().Enclosing(st)
}

// Criteria returns a criterion for every local variable defined at every
// non-structural node of the graph, in node order.
func (s *Slicer) Criteria() []Criterion {
	var result []Criterion
	for _, n := range s.PDG.CFG.Nodes {
		if n.Stmt == nil || n.Kind.IsStructural() {
			continue
		}
		for _, v := range n.Defs {
			if v.IsLocal() {
				result = append(result, Criterion{Node: n.ID, Var: v})
			}
		}
	}
	return result
}

// Compute computes the slice for criterion c within the given boundary and
// checks whether it can be extracted.
func (s *Slicer) Compute(c Criterion, boundary *stmt.Sequence) (*Slice, error) {
	if err := s.checkCriterion(c, boundary); err != nil {
		return nil, err
	}

	inside := func(id int) bool {
		st := s.PDG.CFG.Nodes[id].Stmt
		return st != nil && s.tree().IndexIn(boundary, st) >= 0
	}
	set := s.backward([]int{c.Node}, inside, nil)
	if s.opts.ForwardClosure {
		s.forward(c, set, inside)
	}

	slice := &Slice{
		Method:    s.PDG.CFG.Method,
		Graph:     s.PDG,
		Criterion: c,
		Boundary:  boundary,
		Nodes:     s.ordered(set.AppendTo(nil)),
	}
	s.region(slice)
	s.validate(slice, set)
	slice.Valid = slice.Rejection == None
	return slice, nil
}

func (s *Slicer) checkCriterion(c Criterion, boundary *stmt.Sequence) error {
	if c.Node < 0 || c.Node >= s.PDG.Len() {
		return fmt.Errorf("%w: no node %d", ErrBadCriterion, c.Node)
	}
	n := s.PDG.CFG.Nodes[c.Node]
	if n.Stmt == nil || (n.Kind.IsStructural() && n.Kind != cfg.NodeCatch) {
		return fmt.Errorf("%w: node %d is not a statement", ErrBadCriterion, c.Node)
	}
	if !stmt.ContainsVar(n.Defs, c.Var) && !stmt.ContainsVar(n.Uses, c.Var) {
		return fmt.Errorf("%w: %s is neither defined nor used at %s", ErrBadCriterion, c.Var, n)
	}
	if boundary == nil || s.tree().IndexIn(boundary, n.Stmt) < 0 {
		return fmt.Errorf("%w: boundary does not enclose %s", ErrBadCriterion, n)
	}
	return nil
}

// ordered sorts node IDs by source position.
func (s *Slicer) ordered(ids []int) []int {
	nodes := s.PDG.CFG.Nodes
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := nodes[ids[i]], nodes[ids[j]]
		if a.Extent.Offset != b.Extent.Offset {
			return a.Extent.Offset < b.Extent.Offset
		}
		return a.ID < b.ID
	})
	return ids
}

// region computes the boundary statements spanned by the slice, and their
// extent and digests.
func (s *Slicer) region(slice *Slice) {
	first, last := -1, -1
	for _, id := range slice.Nodes {
		i := s.tree().IndexIn(slice.Boundary, s.PDG.CFG.Nodes[id].Stmt)
		if first < 0 || i < first {
			first = i
		}
		if i > last {
			last = i
		}
	}
	slice.Statements = slice.Boundary.Stmts[first : last+1]
	begin := slice.Statements[0].Extent()
	end := slice.Statements[len(slice.Statements)-1].Extent()
	slice.Extent = text.Extent{Offset: begin.Offset, Length: end.OffsetPastEnd() - begin.Offset}
	for _, st := range slice.Statements {
		slice.Digests = append(slice.Digests, s.tree().Digest(st))
	}
}
