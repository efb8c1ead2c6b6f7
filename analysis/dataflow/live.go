// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dataflow

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/stmt"
)

// File defines live variables analysis for a statement
// level control flow graph.
//
// based on algo from ch 9.2, p.610 Dragonbook, v2.2,
// "Iterative algorithm to compute live variables":
//
// IN[EXIT] = {};
// for(each basic block B other than EXIT) IN[B} = {};
// for(changes to any IN occur)
//    for(each basic block B other than EXIT) {
//      OUT[B] = Union(S a successor of B) IN[S];
//      IN[B] = use[b] Union (OUT[B] - def[b]);
//    }
//
// A node's definitions may not have happened when it raises an exception,
// so the variables live at its exception successors are live on entry to
// the node regardless of what it defines:
//
//      IN[B] = use[b] Union (OUTn[B] - def[b]) Union OUTe[B]

// NOTE: for extract method: the parameters of the extracted method are
// LIVE[IN][first] ∩ USE[region], and its result is LIVE[OUT][region] ∩
// DEF[region], where LIVE[OUT][region] is taken over the edges that leave
// the region.

// Live holds the live variables at every node of a control flow graph.
type Live struct {
	cfg       *cfg.CFG
	vars      []stmt.Variable // variables whose indices appear in bitsets
	index     map[stmt.Variable]uint
	def, use  []*bitset.BitSet
	ins, outs []*bitset.BitSet
}

// LiveVars computes the live variables for each node of the given control
// flow graph, including cfg.Entry and cfg.Exit.  Nothing is live at Exit or
// ExceptionalExit.
func LiveVars(c *cfg.CFG) *Live {
	lv := &Live{cfg: c, index: map[stmt.Variable]uint{}}
	lv.buildDefUse()
	lv.build()
	return lv
}

func (lv *Live) indexOf(v stmt.Variable) uint {
	k, ok := lv.index[v]
	if !ok {
		k = uint(len(lv.vars))
		lv.index[v] = k
		lv.vars = append(lv.vars, v)
	}
	return k
}

// buildDefUse builds def and use bitsets
func (lv *Live) buildDefUse() {
	n := lv.cfg.Len()
	lv.def = make([]*bitset.BitSet, n)
	lv.use = make([]*bitset.BitSet, n)
	for _, node := range lv.cfg.Nodes {
		lv.def[node.ID] = new(bitset.BitSet)
		lv.use[node.ID] = new(bitset.BitSet)
		for _, d := range node.Defs {
			k := lv.indexOf(d)
			if !weak(d) {
				lv.def[node.ID].Set(k)
			}
		}
		for _, u := range node.Uses {
			lv.use[node.ID].Set(lv.indexOf(u))
		}
	}
}

// build computes the live variables for each node.
// Precondition: buildDefUse() must have been called previously.
func (lv *Live) build() {
	n := lv.cfg.Len()
	lv.ins = make([]*bitset.BitSet, n)
	lv.outs = make([]*bitset.BitSet, n)
	for i := 0; i < n; i++ {
		lv.ins[i] = new(bitset.BitSet)
		lv.outs[i] = new(bitset.BitSet)
	}

	for {
		change := false
		// Visiting nodes in reverse converges faster for a backward analysis
		for id := n - 1; id >= 0; id-- {
			normal, exceptional := new(bitset.BitSet), new(bitset.BitSet)
			for _, e := range lv.cfg.OutEdges(id) {
				if e.Kind == cfg.Exception {
					exceptional.InPlaceUnion(lv.ins[e.To])
				} else {
					normal.InPlaceUnion(lv.ins[e.To])
				}
			}
			in := lv.use[id].Union(normal.Difference(lv.def[id]))
			in.InPlaceUnion(exceptional)
			out := normal.Union(exceptional)

			if !in.Equal(lv.ins[id]) || !out.Equal(lv.outs[id]) {
				change = true
			}
			lv.ins[id], lv.outs[id] = in, out
		}
		if !change {
			break
		}
	}
}

func (lv *Live) list(b *bitset.BitSet) []stmt.Variable {
	result := []stmt.Variable{}
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		result = append(result, lv.vars[i])
	}
	return result
}

// In returns the variables live on entry to the given node.
func (lv *Live) In(id int) []stmt.Variable {
	return lv.list(lv.ins[id])
}

// Out returns the variables live on exit from the given node.
func (lv *Live) Out(id int) []stmt.Variable {
	return lv.list(lv.outs[id])
}

// LiveIn returns true iff v is live on entry to the given node.
func (lv *Live) LiveIn(id int, v stmt.Variable) bool {
	k, ok := lv.index[v]
	return ok && lv.ins[id].Test(k)
}

// LiveOut returns true iff v is live on exit from the given node.
func (lv *Live) LiveOut(id int, v stmt.Variable) bool {
	k, ok := lv.index[v]
	return ok && lv.outs[id].Test(k)
}

// LiveAlong returns true iff v is live at the start of the given edge's
// target, i.e., iff the value of v is observed after control leaves the
// edge's source along that edge.
func (lv *Live) LiveAlong(e cfg.Edge, v stmt.Variable) bool {
	return lv.LiveIn(e.To, v)
}
