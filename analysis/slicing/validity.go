// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slicing

import (
	"sort"
	"strings"

	"golang.org/x/tools/container/intsets"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/stmt"
)

// A Rejection is the reason a slice cannot be extracted.
type Rejection int

const (
	None                Rejection = iota // the slice can be extracted
	TooSmall                             // fewer statements than the configured minimum
	NotProper                            // the region is the entire method body
	NotContiguous                        // the region contains statements outside the slice
	EscapingJump                         // a return, break, or continue leaves the region
	MultipleEntries                      // control enters the region at more than one node
	MultipleExits                        // control leaves the region for more than one node
	ResourceUndeclared                   // a resource is used without its try-with-resources
	ClosedInFinally                      // defines a variable closed by a finally clause outside the slice
	GuardedBodyRemoved                   // the region is the whole body of a try with catch clauses
	MultipleOutputs                      // more than one variable would have to be returned
	OutputNotCriterion                   // the returned variable is not the criterion variable
)

var rejectionNames = [...]string{
	None:               "extractable",
	TooSmall:           "too few statements",
	NotProper:          "region is the entire method body",
	NotContiguous:      "region contains statements outside the slice",
	EscapingJump:       "region contains a jump out of it",
	MultipleEntries:    "region has more than one entry",
	MultipleExits:      "region has more than one exit",
	ResourceUndeclared: "resource used without its declaration",
	ClosedInFinally:    "defines a variable closed in a finally clause",
	GuardedBodyRemoved: "region is the only code guarded by a try statement",
	MultipleOutputs:    "more than one output variable",
	OutputNotCriterion: "output is not the criterion variable",
}

func (r Rejection) String() string {
	if int(r) < len(rejectionNames) {
		return rejectionNames[r]
	}
	return "unknown"
}

// validate runs each check in turn, recording the first failure, then
// computes the slice's inputs and output.
func (s *Slicer) validate(slice *Slice, set *intsets.Sparse) {
	region := s.regionNodes(slice)
	checks := []func(*Slice, *intsets.Sparse, *intsets.Sparse) (Rejection, string){
		s.checkSize,
		s.checkProper,
		s.checkContiguous,
		s.checkJumps,
		s.checkEntryExit,
		s.checkResources,
		s.checkFinally,
		s.checkGuarded,
		s.checkOutputs,
	}
	for _, check := range checks {
		if r, detail := check(slice, set, region); r != None {
			slice.Rejection, slice.Detail = r, detail
			break
		}
	}
	s.computeInputs(slice, region)
}

// regionNodes returns every node created for the region's statements,
// including structural nodes.
func (s *Slicer) regionNodes(slice *Slice) *intsets.Sparse {
	region := new(intsets.Sparse)
	for _, st := range slice.Statements {
		for _, id := range s.PDG.CFG.Within(st) {
			region.Insert(id)
		}
	}
	return region
}

func (s *Slicer) checkSize(slice *Slice, _, region *intsets.Sparse) (Rejection, string) {
	count := 0
	for _, id := range region.AppendTo(nil) {
		if !s.PDG.CFG.Nodes[id].Kind.IsStructural() {
			count++
		}
	}
	if count < s.opts.MinStatements {
		return TooSmall, ""
	}
	return None, ""
}

func (s *Slicer) checkProper(slice *Slice, _, _ *intsets.Sparse) (Rejection, string) {
	b := slice.Boundary
	if b.Owner == stmt.Statement(slice.Method.Body) && len(slice.Statements) == len(b.Stmts) {
		return NotProper, ""
	}
	return None, ""
}

func (s *Slicer) checkContiguous(slice *Slice, set, region *intsets.Sparse) (Rejection, string) {
	for _, id := range region.AppendTo(nil) {
		n := s.PDG.CFG.Nodes[id]
		if !n.Kind.IsStructural() && !set.Has(id) {
			return NotContiguous, n.Text
		}
	}
	return None, ""
}

func (s *Slicer) checkJumps(slice *Slice, _, region *intsets.Sparse) (Rejection, string) {
	for _, id := range region.AppendTo(nil) {
		n := s.PDG.CFG.Nodes[id]
		ss, ok := n.Stmt.(*stmt.SimpleStatement)
		if !ok || !ss.SimpleKind.IsJump() {
			continue
		}
		for _, e := range s.PDG.CFG.OutEdges(id) {
			if e.Kind != cfg.Exception && !region.Has(e.To) {
				return EscapingJump, n.Text
			}
		}
	}
	return None, ""
}

func (s *Slicer) checkEntryExit(slice *Slice, _, region *intsets.Sparse) (Rejection, string) {
	var entries, exits intsets.Sparse
	for _, e := range s.PDG.CFG.Edges {
		if e.Kind == cfg.Exception {
			continue
		}
		from, to := region.Has(e.From), region.Has(e.To)
		switch {
		case !from && to:
			entries.Insert(e.To)
		case from && !to:
			exits.Insert(e.To)
		}
	}
	if entries.Len() > 1 {
		return MultipleEntries, ""
	}
	if exits.Len() > 1 {
		return MultipleExits, ""
	}
	return None, ""
}

// checkResources rejects a slice that uses a resource of a
// try-with-resources statement but does not contain its declaration.
func (s *Slicer) checkResources(slice *Slice, set, _ *intsets.Sparse) (Rejection, string) {
	c := s.PDG.CFG
	for _, t := range c.Tries() {
		if !t.HasResources {
			continue
		}
		decl := map[stmt.Variable]int{}
		for _, r := range t.Statement.Resources {
			ids := c.NodesOf(r)
			if len(ids) == 0 {
				continue
			}
			vars := r.Decls
			if len(vars) == 0 {
				vars = r.Fragment.Uses
			}
			for _, v := range vars {
				decl[v] = ids[0]
			}
		}
		for _, id := range set.AppendTo(nil) {
			if id == t.Close || id == t.ExceptionalClose {
				continue
			}
			for _, u := range c.Nodes[id].Uses {
				if d, ok := decl[u.RootVariable()]; ok && d != id && !set.Has(d) {
					return ResourceUndeclared, u.Root()
				}
			}
		}
	}
	return None, ""
}

// checkFinally rejects a slice that defines, within the body of a try
// statement, a variable closed by that statement's finally clause, unless
// the try statement is in the slice.
func (s *Slicer) checkFinally(slice *Slice, set, region *intsets.Sparse) (Rejection, string) {
	c := s.PDG.CFG
	for _, t := range c.Tries() {
		if t.Finally < 0 || set.Has(t.ID) || region.Has(t.ID) {
			continue
		}
		for _, id := range set.AppendTo(nil) {
			n := c.Nodes[id]
			if !c.Tree.Contains(t.Statement.Body, n.Stmt) {
				continue
			}
			for _, v := range n.Defs {
				if v.IsLocal() && t.HasFinallyClauseClosingVariable(v) {
					return ClosedInFinally, v.Path
				}
			}
		}
	}
	return None, ""
}

// checkGuarded rejects a region that is the entire body of a try statement
// with catch clauses, since extracting it would leave the catch clauses
// guarding nothing.
func (s *Slicer) checkGuarded(slice *Slice, set, _ *intsets.Sparse) (Rejection, string) {
	b := slice.Boundary
	if len(slice.Statements) != len(b.Stmts) {
		return None, ""
	}
	for _, t := range s.PDG.CFG.Tries() {
		if b.Owner == stmt.Statement(t.Statement.Body) && t.HasCatchClause() && !set.Has(t.ID) {
			return GuardedBodyRemoved, ""
		}
	}
	return None, ""
}

// checkOutputs computes the variables an extracted method would have to
// return: locals defined in the region whose values are observed after
// control leaves it, and locals declared in the region that are referenced
// outside it.  At most one is allowed, and it must be the criterion
// variable.
func (s *Slicer) checkOutputs(slice *Slice, _, region *intsets.Sparse) (Rejection, string) {
	c := s.PDG.CFG
	var exits []cfg.Edge
	for _, e := range c.Edges {
		if region.Has(e.From) && !region.Has(e.To) {
			exits = append(exits, e)
		}
	}

	outputs := map[stmt.Variable]bool{}
	ids := region.AppendTo(nil)
	for _, id := range ids {
		n := c.Nodes[id]
		for _, v := range n.Defs {
			if !v.IsLocal() {
				continue
			}
			for _, e := range exits {
				if s.PDG.Live.LiveAlong(e, v) {
					outputs[v] = true
				}
			}
		}
		for _, v := range n.Decls {
			if !outputs[v] && s.referencedOutside(v, region) {
				outputs[v] = true
			}
		}
	}

	vars := sortedVars(outputs)
	switch {
	case len(vars) > 1:
		names := make([]string, len(vars))
		for i, v := range vars {
			names[i] = v.Path
		}
		return MultipleOutputs, strings.Join(names, ", ")
	case len(vars) == 1:
		v := vars[0]
		slice.Output = &v
		if v != slice.Criterion.Var {
			return OutputNotCriterion, v.Path
		}
	}
	return None, ""
}

func (s *Slicer) referencedOutside(v stmt.Variable, region *intsets.Sparse) bool {
	for _, n := range s.PDG.CFG.Nodes {
		if region.Has(n.ID) {
			continue
		}
		if stmt.ContainsVar(n.Uses, v) || stmt.ContainsVar(n.Defs, v) {
			return true
		}
	}
	return false
}

// computeInputs records the locals that are live on entry to the region
// and used within it.
func (s *Slicer) computeInputs(slice *Slice, region *intsets.Sparse) {
	c := s.PDG.CFG
	used := map[stmt.Variable]bool{}
	for _, id := range region.AppendTo(nil) {
		for _, u := range c.Nodes[id].Uses {
			if u.IsLocal() {
				used[u] = true
			}
		}
	}
	inputs := map[stmt.Variable]bool{}
	for _, e := range c.Edges {
		if e.Kind == cfg.Exception || region.Has(e.From) || !region.Has(e.To) {
			continue
		}
		for _, v := range s.PDG.Live.In(e.To) {
			if used[v] {
				inputs[v] = true
			}
		}
	}
	slice.Inputs = sortedVars(inputs)
}

func sortedVars(set map[stmt.Variable]bool) []stmt.Variable {
	vars := make([]stmt.Variable, 0, len(set))
	for v := range set {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool {
		if vars[i].Path != vars[j].Path {
			return vars[i].Path < vars[j].Path
		}
		return vars[i].Scope < vars[j].Scope
	})
	return vars
}

// AreSliceStatementsValid returns true iff every statement of the slice's
// region still exists in the given (current) version of the method, at the
// same position and with the same structure and text.
func (s *Slice) AreSliceStatementsValid(current *stmt.Method) bool {
	if current == nil || current.Body == nil {
		return false
	}
	t := stmt.NewTree(current.Body)
	for i, st := range s.Statements {
		found := t.Find(st.Extent(), st.Kind())
		if found == nil || t.Digest(found) != s.Digests[i] {
			return false
		}
	}
	return true
}
