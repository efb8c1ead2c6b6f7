// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dataflow

import (
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/stmt"
)

// File defines reaching definitions for a statement level
// control flow graph.
//
// based on algo from ch 9.2, p.607 Dragonbook, v2.2,
// "Iterative algorithm to compute reaching definitions":
//
// OUT[ENTRY] = {};
// for(each basic block B other than ENTRY) OUT[B] = {};
// for(changes to any OUT occur)
//    for(each basic block B other than ENTRY) {
//      IN[B] = Union(P a pred of B) OUT[P];
//      OUT[B] = gen[b] Union (IN[B] - kill[b]);
//    }
//
// with one change for exceptional control flow.  When an exception edge
// P->B is taken, the statement P may not have completed, so P contributes
// IN[P] to IN[B] rather than OUT[P].  It contributes OUT[P] as well only if
// B is the entry of a catch clause that can handle an exception raised at
// P, since such an exception may be raised after P's assignments (e.g., by
// the end of a finally clause that re-raises).

// A Def is a definition site: a node of the control flow graph and one of
// the variables it defines.  Method parameters are defined at cfg.Entry.
type Def struct {
	Node int
	Var  stmt.Variable
}

// Reaching holds the reaching definitions for every node of a control flow
// graph.
type Reaching struct {
	cfg  *cfg.CFG
	Defs []Def // indexed by bit position

	gen, kill []*bitset.BitSet
	ins, outs []*bitset.BitSet
}

// ReachingDefs computes reaching definitions for the given control flow
// graph.
func ReachingDefs(c *cfg.CFG) *Reaching {
	r := &Reaching{cfg: c}
	r.buildGenKill()
	r.build()
	return r
}

// weak returns true iff a definition of v does not overwrite all of v's
// previous value, as with a store into an array element.
func weak(v stmt.Variable) bool {
	return strings.Contains(v.Path, stmt.ElementSuffix)
}

// buildGenKill numbers the definition sites and builds the gen and kill
// bitsets for each node.
func (r *Reaching) buildGenKill() {
	n := r.cfg.Len()
	r.gen = make([]*bitset.BitSet, n)
	r.kill = make([]*bitset.BitSet, n)

	okills := map[stmt.Variable]*bitset.BitSet{}
	for _, node := range r.cfg.Nodes {
		r.gen[node.ID] = new(bitset.BitSet)
		r.kill[node.ID] = new(bitset.BitSet)

		defs := node.Defs
		if node.ID == cfg.Entry {
			defs = r.cfg.Method.Params
		}
		for _, v := range defs {
			i := uint(len(r.Defs))
			r.Defs = append(r.Defs, Def{Node: node.ID, Var: v})
			r.gen[node.ID].Set(i)
			if okills[v] == nil {
				okills[v] = new(bitset.BitSet)
			}
			okills[v].Set(i)
		}
	}

	// KILL[B] = every definition of a variable B defines - GEN[B]
	for _, node := range r.cfg.Nodes {
		defs := node.Defs
		if node.ID == cfg.Entry {
			defs = r.cfg.Method.Params
		}
		for _, v := range defs {
			if !weak(v) {
				r.kill[node.ID].InPlaceUnion(okills[v])
			}
		}
		r.kill[node.ID].InPlaceDifference(r.gen[node.ID])
	}
}

// build computes the reaching definitions for each node.
// Precondition: buildGenKill() must have been called previously.
func (r *Reaching) build() {
	n := r.cfg.Len()
	r.ins = make([]*bitset.BitSet, n)
	r.outs = make([]*bitset.BitSet, n)
	for i := 0; i < n; i++ {
		r.ins[i] = new(bitset.BitSet)
		r.outs[i] = r.gen[i].Clone()
	}

	for {
		changed := false
		for id := 0; id < n; id++ {
			if id == cfg.Entry {
				continue
			}
			in := new(bitset.BitSet)
			for _, e := range r.cfg.InEdges(id) {
				if e.Kind != cfg.Exception {
					in.InPlaceUnion(r.outs[e.From])
					continue
				}
				in.InPlaceUnion(r.ins[e.From])
				if r.catchable(e.From, id) {
					in.InPlaceUnion(r.outs[e.From])
				}
			}
			out := r.gen[id].Union(in.Difference(r.kill[id]))
			if !in.Equal(r.ins[id]) || !out.Equal(r.outs[id]) {
				changed = true
			}
			r.ins[id], r.outs[id] = in, out
		}
		if !changed {
			break
		}
	}
}

// catchable returns true iff to is the entry node of a catch clause that
// can handle an exception raised at from.
func (r *Reaching) catchable(from, to int) bool {
	x := r.cfg.Nodes[to]
	if x.Kind != cfg.NodeCatch || x.Try == nil {
		return false
	}
	h := r.cfg.Method.Types()
	s := r.cfg.Nodes[from]
	for _, caught := range x.Try.Statement.Catches[x.Catch].Types {
		if s.Unchecked && h.CatchesUnchecked(caught) {
			return true
		}
		for _, raised := range s.Raises {
			if h.Compatible(raised, caught) {
				return true
			}
		}
	}
	return false
}

func (r *Reaching) defs(b *bitset.BitSet) []Def {
	result := []Def{}
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		result = append(result, r.Defs[i])
	}
	return result
}

// In returns the definitions reaching the entry of the given node, in
// ascending order of node ID.
func (r *Reaching) In(id int) []Def {
	return r.defs(r.ins[id])
}

// Out returns the definitions reaching the exit of the given node.
func (r *Reaching) Out(id int) []Def {
	return r.defs(r.outs[id])
}

// Reaches returns true iff some definition of v at node def reaches the
// entry of node use.
func (r *Reaching) Reaches(def int, v stmt.Variable, use int) bool {
	for i, ok := r.ins[use].NextSet(0); ok; i, ok = r.ins[use].NextSet(i + 1) {
		if d := r.Defs[i]; d.Node == def && d.Var == v {
			return true
		}
	}
	return false
}

// DefsOf returns the definition sites of the given node.
func (r *Reaching) DefsOf(id int) []Def {
	return r.defs(r.gen[id])
}
