// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package grouping partitions slices into groups of structural duplicates.
//
// Two slices are duplicates when they have the same shape: the same node
// kinds in the same order, the same statement text up to a consistent
// renaming of local variables (and, optionally, of literals), the same
// control-parent topology, and corresponding criterion variables.
// Shapes are bucketed by an xxhash fingerprint; slices sharing a bucket are
// confirmed by comparing their full shapes.
package grouping

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"

	"github.com/godoctor/slicedoctor/analysis/slicing"
	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/config"
)

// A SliceGroup is a set of slices with identical shapes.
type SliceGroup struct {
	// Hex-encoded blake3 digest of the members' shape
	Signature string
	// Members in input order
	Members []*slicing.Slice
}

// Methods returns the number of distinct methods the group's members were
// computed from.
func (g *SliceGroup) Methods() int {
	seen := map[string]bool{}
	for _, m := range g.Members {
		seen[m.Method.Key()] = true
	}
	return len(seen)
}

func (g *SliceGroup) String() string {
	return fmt.Sprintf("%s (%d slices in %d methods)", g.Signature[:12], len(g.Members), g.Methods())
}

type options struct {
	normalizeLiterals bool
	minGroupSize      int
}

// Option configures Partition and Duplicates.
type Option func(*options)

// WithNormalizeLiterals causes literals to be ignored when shapes are
// compared.
func WithNormalizeLiterals(normalize bool) Option {
	return func(o *options) {
		o.normalizeLiterals = normalize
	}
}

// WithMinGroupSize sets the smallest group Duplicates reports.
func WithMinGroupSize(n int) Option {
	return func(o *options) {
		if n > 1 {
			o.minGroupSize = n
		}
	}
}

// WithConfig applies the grouping settings of an analysis configuration.
func WithConfig(cfg config.AnalysisConfig) Option {
	return func(o *options) {
		o.normalizeLiterals = cfg.NormalizeLiterals
		if cfg.MinGroupSize > 1 {
			o.minGroupSize = cfg.MinGroupSize
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{minGroupSize: 2}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Shape returns the canonical description of a slice used to decide
// whether two slices are duplicates.
func Shape(s *slicing.Slice, normalizeLiterals bool) string {
	nodes := s.Graph.CFG.Nodes
	index := make(map[int]int, len(s.Nodes))
	for i, id := range s.Nodes {
		index[id] = i
	}

	names := map[string]string{}
	rename := func(name string) string {
		alpha, ok := names[name]
		if !ok {
			alpha = "v" + strconv.Itoa(len(names))
			names[name] = alpha
		}
		return alpha
	}

	var b strings.Builder
	for i, id := range s.Nodes {
		n := nodes[id]
		vars := localNames(n.Defs, n.Uses, n.Decls)
		tokens := tokenize(n.Text)
		for j, tok := range tokens {
			switch {
			case vars[tok] && (j == 0 || tokens[j-1] != "."):
				tokens[j] = rename(tok)
			case normalizeLiterals && isLiteral(tok):
				tokens[j] = "LITERAL"
			}
		}

		parent := -1
		if p := s.Graph.Nodes[id].ControlParent; p >= 0 {
			if k, ok := index[p]; ok {
				parent = k - i
			}
		}
		fmt.Fprintf(&b, "%s|%s|%d\n", n.Kind, strings.Join(tokens, " "), parent)
	}

	crit := names[s.Criterion.Var.Path]
	if crit == "" {
		crit = "?"
	}
	fmt.Fprintf(&b, "criterion %s", crit)
	return b.String()
}

// localNames returns the names of the local variables and parameters among
// the given variables.  Access paths contribute their root.
func localNames(lists ...[]stmt.Variable) map[string]bool {
	result := map[string]bool{}
	for _, vars := range lists {
		for _, v := range vars {
			r := v.RootVariable()
			if r.Kind != stmt.Field {
				result[r.Path] = true
			}
		}
	}
	return result
}

// Signature returns the hex-encoded blake3 digest of a shape.
func Signature(shape string) string {
	sum := blake3.Sum256([]byte(shape))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	shape string
	group *SliceGroup
}

// Partition groups slices by shape.  Every slice belongs to exactly one
// group.  Groups are returned in order of their first member.
func Partition(slices []*slicing.Slice, opts ...Option) []*SliceGroup {
	o := newOptions(opts)
	buckets := map[uint64][]*entry{}
	var groups []*SliceGroup
	for _, s := range slices {
		shape := Shape(s, o.normalizeLiterals)
		h := xxhash.Sum64String(shape)
		var found *entry
		for _, e := range buckets[h] {
			if e.shape == shape {
				found = e
				break
			}
		}
		if found == nil {
			found = &entry{shape, &SliceGroup{Signature: Signature(shape)}}
			buckets[h] = append(buckets[h], found)
			groups = append(groups, found.group)
		}
		found.group.Members = append(found.group.Members, s)
	}
	return groups
}

// Duplicates returns the groups that have at least the minimum number of
// members drawn from at least two distinct methods, largest first.
func Duplicates(slices []*slicing.Slice, opts ...Option) []*SliceGroup {
	o := newOptions(opts)
	var result []*SliceGroup
	for _, g := range Partition(slices, opts...) {
		if len(g.Members) >= o.minGroupSize && g.Methods() >= 2 {
			result = append(result, g)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return len(result[i].Members) > len(result[j].Members)
	})
	return result
}
