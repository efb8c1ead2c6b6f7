// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dataflow

import (
	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/stmt"
)

// Aliases partitions the local variables of a method into classes of
// variables that may refer to the same object.  Two locals are in the same
// class if one is ever assigned directly to the other (b = a, or T b = a).
// The analysis is flow insensitive and does not look through fields, so a
// reference stored into a field and read back out is not tracked.
type Aliases struct {
	parent map[stmt.Variable]stmt.Variable
}

// NewAliases builds the alias classes for the given graph.
func NewAliases(c *cfg.CFG) *Aliases {
	a := &Aliases{parent: map[stmt.Variable]stmt.Variable{}}
	for _, n := range c.Nodes {
		for _, cp := range n.Copies {
			a.union(cp.Dst, cp.Src)
		}
	}
	return a
}

func (a *Aliases) find(v stmt.Variable) stmt.Variable {
	for {
		p, ok := a.parent[v]
		if !ok || p == v {
			return v
		}
		// path halving
		if gp, ok := a.parent[p]; ok {
			a.parent[v] = gp
		}
		v = p
	}
}

func (a *Aliases) union(x, y stmt.Variable) {
	rx, ry := a.find(x), a.find(y)
	if rx != ry {
		a.parent[rx] = ry
	}
}

// SameClass returns true iff x and y are locals that may refer to the same
// object.
func (a *Aliases) SameClass(x, y stmt.Variable) bool {
	return x == y || a.find(x) == a.find(y)
}

// MayAlias returns true iff a definition of w may change the value read by
// a use of u.  Access paths related by a prefix (a.b and a.b.c) may
// overlap.  A store through an access path (b.f = ...) may also change
// paths rooted at any alias of b; assigning a new value to a simple local b
// does not affect its aliases.
func (a *Aliases) MayAlias(w, u stmt.Variable) bool {
	if w.MayAlias(u) {
		return true
	}
	if a == nil || !w.IsPath() {
		return false
	}
	wr, ur := w.RootVariable(), u.RootVariable()
	if wr == ur || !a.SameClass(wr, ur) {
		return false
	}
	rebased := stmt.Variable{Path: ur.Path + "." + w.Suffix(), Scope: ur.Scope, Kind: u.Kind}
	return rebased.MayAlias(u)
}
