// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dataflow provides data flow analyses that can be performed on a
// previously constructed control flow graph, including an exception-sensitive
// reaching definitions analysis and a live variables analysis.
package dataflow

// This file contains functions common to all data flow analyses, as well as
// the def-use chains the dependence graph is built from.

import (
	"sort"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/stmt"
)

// ReferencedVars returns the sets of variables that are defined or used at
// the given nodes.
func ReferencedVars(nodes []*cfg.Node) (def, use map[stmt.Variable]struct{}) {
	def = make(map[stmt.Variable]struct{})
	use = make(map[stmt.Variable]struct{})

	for _, n := range nodes {
		for _, d := range n.Defs {
			def[d] = struct{}{}
		}
		for _, u := range n.Uses {
			use[u] = struct{}{}
		}
	}
	return def, use
}

// A Dep is a def-use pair: a definition at node Def reaches node Use, which
// reads Var.
type Dep struct {
	Def, Use int
	Var      stmt.Variable
}

// DefUse returns the def-use pairs of the given graph, sorted by definition
// node, then use node.  A definition of w reaches a use of u when the
// definition reaches the entry of the using node and w and u may denote
// overlapping storage.
func DefUse(c *cfg.CFG, r *Reaching, a *Aliases) []Dep {
	type key struct {
		def, use int
		v        stmt.Variable
	}
	seen := map[key]bool{}
	var result []Dep
	for _, n := range c.Nodes {
		if len(n.Uses) == 0 {
			continue
		}
		for _, d := range r.In(n.ID) {
			for _, u := range n.Uses {
				k := key{d.Node, n.ID, u}
				if seen[k] || !a.MayAlias(d.Var, u) {
					continue
				}
				seen[k] = true
				result = append(result, Dep{Def: d.Node, Use: n.ID, Var: u})
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Def != result[j].Def {
			return result[i].Def < result[j].Def
		}
		return result[i].Use < result[j].Use
	})
	return result
}
