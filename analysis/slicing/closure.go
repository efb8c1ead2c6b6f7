// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slicing

import (
	"golang.org/x/tools/container/intsets"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/stmt"
)

// backward adds the seeds to set (allocating it if nil) and closes it over
// data and control dependences, ignoring nodes for which inside returns
// false.
func (s *Slicer) backward(seeds []int, inside func(int) bool, set *intsets.Sparse) *intsets.Sparse {
	if set == nil {
		set = new(intsets.Sparse)
	}
	var work []int
	add := func(id int) {
		if inside(id) && set.Insert(id) {
			work = append(work, id)
		}
	}
	for _, id := range seeds {
		add(id)
	}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		n := s.PDG.Nodes[id]
		for _, d := range n.DataIn {
			add(d.Def)
		}
		for _, c := range n.Controllers {
			if c.Node != cfg.Entry {
				add(c.Node)
			}
		}
	}
	return set
}

// forward extends the slice when the criterion variable is redefined
// later in the boundary and the new value is used: every statement that
// consumes a value of the variable defined in the slice is added, with its
// backward closure, so that an extracted method can hand back the value
// those statements need through the criterion variable.  Consumers that
// themselves redefine the variable are left out.  A redefinition counts
// only if it follows the criterion without leaving the boundary or coming
// back around to the criterion, so the previous iteration of an enclosing
// loop does not count.
func (s *Slicer) forward(c Criterion, set *intsets.Sparse, inside func(int) bool) {
	nodes := s.PDG.CFG.Nodes
	redefined := false
	it := s.PDG.ReachableWithin(c.Node, inside).Iterator()
	for it.HasNext() {
		id := int(it.Next())
		if !set.Has(id) && stmt.ContainsVar(nodes[id].Defs, c.Var) && s.used(id, c.Var) {
			redefined = true
			break
		}
	}
	if !redefined {
		return
	}

	for {
		var seeds []int
		for _, id := range set.AppendTo(nil) {
			if !stmt.ContainsVar(nodes[id].Defs, c.Var) {
				continue
			}
			for _, d := range s.PDG.Nodes[id].DataOut {
				u := d.Use
				if set.Has(u) || !inside(u) || stmt.ContainsVar(nodes[u].Defs, c.Var) {
					continue
				}
				if s.PDG.Aliases.MayAlias(c.Var, d.Var) {
					seeds = append(seeds, u)
				}
			}
		}
		if len(seeds) == 0 {
			return
		}
		s.backward(seeds, inside, set)
	}
}

// used returns true iff the value of v defined at the given node is read
// somewhere.
func (s *Slicer) used(id int, v stmt.Variable) bool {
	for _, d := range s.PDG.Nodes[id].DataOut {
		if s.PDG.Aliases.MayAlias(v, d.Var) {
			return true
		}
	}
	return false
}
