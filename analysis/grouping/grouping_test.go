// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grouping_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/grouping"
	"github.com/godoctor/slicedoctor/analysis/loader"
	"github.com/godoctor/slicedoctor/analysis/pdg"
	"github.com/godoctor/slicedoctor/analysis/slicing"
	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/config"
)

const fixture = `
Two methods that differ only in variable names, and a third with one more
statement.  The fourth uses another literal and the fifth non-ASCII names.

-- A.java --
class A {
  int first(int p) {
    int x = p + 1;
    int y = x * 2;
    return y;
  }
}
-- B.java --
class B {
  int second(int q) {
    int u = q + 1;
    int w = u * 2;
    return w;
  }
}
-- C.java --
class C {
  int third(int p) {
    int x = p + 1;
    x = x + 3;
    int y = x * 2;
    return y;
  }
}
-- D.java --
class D {
  int fourth(int p) {
    int x = p + 7;
    int y = x * 2;
    return y;
  }
}
-- E.java --
class E {
  int fifth(int größe) {
    int ä = größe + 1;
    int ü = ä * 2;
    return ü;
  }
}
`

// lastDeclSlices loads the fixture and, for each named method, slices on
// the variable declared by the last declaration in the method body.
func lastDeclSlices(t *testing.T, names ...string) []*slicing.Slice {
	t.Helper()
	ar := txtar.Parse([]byte(fixture))
	var srcs []loader.Source
	for _, f := range ar.Files {
		srcs = append(srcs, loader.Source{Name: f.Name, Src: f.Data})
	}
	prog, err := loader.LoadSources(context.Background(), srcs)
	require.NoError(t, err)
	require.Empty(t, prog.Diagnostics)

	var result []*slicing.Slice
	for _, name := range names {
		ms := prog.MethodsNamed(name)
		require.Len(t, ms, 1, name)
		result = append(result, lastDeclSlice(t, ms[0]))
	}
	return result
}

func lastDeclSlice(t *testing.T, m *stmt.Method) *slicing.Slice {
	t.Helper()
	g := cfg.New(m)
	s := slicing.New(pdg.New(g), slicing.Options{MinStatements: 1})
	var crit *slicing.Criterion
	for _, n := range g.Nodes {
		if n.Kind == cfg.NodeStatement && len(n.Decls) == 1 {
			crit = &slicing.Criterion{Node: n.ID, Var: n.Decls[0]}
		}
	}
	require.NotNil(t, crit)
	slice, err := s.Compute(*crit, s.Boundaries(crit.Node)[0])
	require.NoError(t, err)
	return slice
}

func TestRenamedVariablesGroupTogether(t *testing.T) {
	slices := lastDeclSlices(t, "first", "second", "third")

	groups := grouping.Partition(slices)
	require.Len(t, groups, 2)
	assert.Equal(t, []*slicing.Slice{slices[0], slices[1]}, groups[0].Members)
	assert.Equal(t, []*slicing.Slice{slices[2]}, groups[1].Members)
	assert.Equal(t, 2, groups[0].Methods())
	assert.NotEqual(t, groups[0].Signature, groups[1].Signature)
	assert.Len(t, groups[0].Signature, 64)

	dups := grouping.Duplicates(slices)
	require.Len(t, dups, 1)
	assert.Same(t, groups[0].Members[0], dups[0].Members[0])
}

func TestShape(t *testing.T) {
	slices := lastDeclSlices(t, "first", "second")
	s1 := grouping.Shape(slices[0], false)
	assert.Equal(t, s1, grouping.Shape(slices[1], false))
	assert.Contains(t, s1, "int v0 = v1 + 1 ;")
	assert.Contains(t, s1, "criterion v2")
}

func TestNonASCIIIdentifiers(t *testing.T) {
	slices := lastDeclSlices(t, "first", "fifth")
	assert.Equal(t, grouping.Shape(slices[0], false), grouping.Shape(slices[1], false))
	assert.Len(t, grouping.Duplicates(slices), 1)
}

func TestNormalizeLiterals(t *testing.T) {
	slices := lastDeclSlices(t, "first", "fourth")

	assert.Len(t, grouping.Partition(slices), 2)
	assert.Len(t, grouping.Partition(slices, grouping.WithNormalizeLiterals(true)), 1)

	cfg := config.DefaultConfig().Analysis
	cfg.NormalizeLiterals = true
	assert.Len(t, grouping.Duplicates(slices, grouping.WithConfig(cfg)), 1)
}

func TestMinGroupSize(t *testing.T) {
	slices := lastDeclSlices(t, "first", "second")
	assert.Len(t, grouping.Duplicates(slices), 1)
	assert.Empty(t, grouping.Duplicates(slices, grouping.WithMinGroupSize(3)))
}

func TestSameMethodIsNotADuplicate(t *testing.T) {
	slices := lastDeclSlices(t, "first", "first")
	groups := grouping.Partition(slices)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 2)
	assert.Empty(t, grouping.Duplicates(slices))
}
