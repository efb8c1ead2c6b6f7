// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slicing_test

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/loader"
	"github.com/godoctor/slicedoctor/analysis/pdg"
	"github.com/godoctor/slicedoctor/analysis/slicing"
	"github.com/godoctor/slicedoctor/analysis/stmt"
)

func TestSingleStatementSlice(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a, int b) {
    int x = a + b; //1
    int y = x * 2; //2
    return y;      //3
  }
}`, slicing.Options{MinStatements: 1, ForwardClosure: true})

	s := w.slice(t, 1, "x")
	w.expectNodes(t, s, 1)
	assert.True(t, s.Valid, s.String())
	require.NotNil(t, s.Output)
	assert.Equal(t, "x", s.Output.Path)
	assert.Equal(t, []string{"a", "b"}, paths(s.Inputs))
	require.Len(t, s.Statements, 1)
	assert.Equal(t, "int x = a + b;", w.text(s))
}

func TestDependentStatements(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a) {
    int x = a;     //1
    x = x + 1;     //2
    int y = x * 2; //3
    print(y);      //4
    return 0;      //5
  }
}`, slicing.Options{MinStatements: 2, ForwardClosure: true})

	s := w.slice(t, 3, "y")
	w.expectNodes(t, s, 1, 2, 3)
	assert.True(t, s.Valid, s.String())
	assert.Equal(t, []string{"a"}, paths(s.Inputs))
	require.NotNil(t, s.Output)
	assert.Equal(t, "y", s.Output.Path)
}

func TestTooSmall(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a, int b) {
    int x = a + b; //1
    return x;      //2
  }
}`, slicing.Options{MinStatements: 2})

	s := w.slice(t, 1, "x")
	assert.False(t, s.Valid)
	assert.Equal(t, slicing.TooSmall, s.Rejection)
}

func TestNotContiguous(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a, int b) {
    int x = a;    //1
    int y = b;    //2
    x = x + 1;    //3
    return x + y; //4
  }
}`, slicing.Options{MinStatements: 2})

	s := w.slice(t, 3, "x")
	w.expectNodes(t, s, 1, 3)
	assert.Equal(t, slicing.NotContiguous, s.Rejection)
	assert.Len(t, s.Statements, 3)
}

func TestMultipleOutputs(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a) {
    int x = a;    //1
    int y = x;    //2
    return x + y; //3
  }
}`, slicing.Options{MinStatements: 2})

	s := w.slice(t, 2, "y")
	w.expectNodes(t, s, 1, 2)
	assert.Equal(t, slicing.MultipleOutputs, s.Rejection)
	assert.Equal(t, "x, y", s.Detail)
}

func TestEscapingJump(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a) {
    int x = a;      //1
    if (x > 0) {    //2
      return x;     //3
    }
    x = x - 1;      //4
    return x;       //5
  }
}`, slicing.Options{MinStatements: 1})

	s := w.slice(t, 3, "x")
	assert.False(t, s.Valid)
	assert.Equal(t, slicing.EscapingJump, s.Rejection)
}

func TestResourceWithoutDeclaration(t *testing.T) {
	w := getWrapper(t, `
class T {
  void m(String p) throws IOException {
    try (Reader r = open(p)) { //1
      int c = r.read();        //2
      use(c);                  //3
    }
  }
}`, slicing.Options{MinStatements: 1})

	s := w.slice(t, 2, "c")
	w.expectNodes(t, s, 2)
	assert.False(t, s.Valid)
	assert.Equal(t, slicing.ResourceUndeclared, s.Rejection)
	assert.Equal(t, "r", s.Detail)
}

func TestClosedInFinally(t *testing.T) {
	w := getWrapper(t, `
class T {
  void m() throws IOException {
    Reader r = null;  //1
    try {             //2
      r = open();     //3
      r.read();       //4
    } finally {
      r.close();      //5
    }
  }
}`, slicing.Options{MinStatements: 1})

	s := w.slice(t, 3, "r")
	w.expectNodes(t, s, 3)
	assert.Equal(t, slicing.ClosedInFinally, s.Rejection)
	assert.Equal(t, "r", s.Detail)
}

func TestGuardedBodyRemoved(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a) {
    int x = 0;              //1
    try {                   //2
      x = parse(a);         //3
      x = x + 1;            //4
    } catch (Exception e) { //5
      x = -1;               //6
    }
    return x;               //7
  }
}`, slicing.Options{MinStatements: 2})

	s := w.slice(t, 4, "x")
	w.expectNodes(t, s, 3, 4)
	assert.Equal(t, slicing.GuardedBodyRemoved, s.Rejection)
}

func TestForwardClosure(t *testing.T) {
	src := `
class T {
  int m(int a) {
    int x = a * 2;   //1
    int y = x + 1;   //2
    x = 0;           //3
    return x + y;    //4
  }
}`
	w := getWrapper(t, src, slicing.Options{MinStatements: 1, ForwardClosure: true})
	w.expectNodes(t, w.slice(t, 1, "x"), 1, 2)

	w = getWrapper(t, src, slicing.Options{MinStatements: 1})
	w.expectNodes(t, w.slice(t, 1, "x"), 1)
}

func TestNoForwardClosureForDeadRedefinition(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a) {
    int x = a * 2;   //1
    int y = x + 1;   //2
    x = 0;           //3
    return y;        //4
  }
}`, slicing.Options{MinStatements: 1, ForwardClosure: true})

	w.expectNodes(t, w.slice(t, 1, "x"), 1)
}

func TestForwardClosureInLoop(t *testing.T) {
	// The redefinition on line 3 belongs to the next iteration
	w := getWrapper(t, `
class T {
  void m(int a) {
    int x = 0;       //1
    while (a > 0) {  //2
      x = 1;         //3
      print(x);      //4
      x = a * 2;     //5
      print(x);      //6
    }
  }
}`, slicing.Options{MinStatements: 1, ForwardClosure: true})
	w.expectNodes(t, w.slice(t, 5, "x"), 5)

	w = getWrapper(t, `
class T {
  void m(int a) {
    int x = 0;       //1
    while (a > 0) {  //2
      x = a * 2;     //3
      print(x);      //4
      x = 1;         //5
      print(x);      //6
    }
  }
}`, slicing.Options{MinStatements: 1, ForwardClosure: true})
	w.expectNodes(t, w.slice(t, 3, "x"), 3, 4)
}

func TestNoForwardClosureWithoutRedefinition(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a) {
    int x = a * 2;   //1
    int y = x + 1;   //2
    return y;        //3
  }
}`, slicing.Options{MinStatements: 1, ForwardClosure: true})

	w.expectNodes(t, w.slice(t, 1, "x"), 1)
}

func TestBadCriterion(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a) {
    int x = a; //1
    return x;  //2
  }
}`, slicing.Options{})

	b := w.slicer.Boundaries(w.exp[1])[0]
	_, err := w.slicer.Compute(slicing.Criterion{Node: w.exp[2], Var: local("q")}, b)
	assert.True(t, errors.Is(err, slicing.ErrBadCriterion))

	_, err = w.slicer.Compute(slicing.Criterion{Node: cfg.Entry, Var: local("a")}, b)
	assert.True(t, errors.Is(err, slicing.ErrBadCriterion))

	_, err = w.slicer.Compute(slicing.Criterion{Node: 1 << 20}, b)
	assert.True(t, errors.Is(err, slicing.ErrBadCriterion))
}

func TestBoundaries(t *testing.T) {
	w := getWrapper(t, `
class T {
  void m(int a) {
    if (a > 0) {  //1
      a--;        //2
    }
  }
}`, slicing.Options{})

	bs := w.slicer.Boundaries(w.exp[2])
	require.Len(t, bs, 2)
	body := stmt.Statement(w.slicer.PDG.CFG.Method.Body)
	assert.IsType(t, &stmt.BlockStatement{}, bs[0].Owner)
	assert.NotEqual(t, body, bs[0].Owner)
	assert.Equal(t, body, bs[1].Owner)
	assert.Empty(t, w.slicer.Boundaries(cfg.Entry))
}

func TestCriteria(t *testing.T) {
	w := getWrapper(t, `
class T {
  int m(int a) {
    int x = a; //1
    this.f = x; //2
    return x;  //3
  }
}`, slicing.Options{})

	var got []string
	for _, c := range w.slicer.Criteria() {
		got = append(got, c.Var.Path)
	}
	assert.Equal(t, []string{"x"}, got)
}

func TestIdempotent(t *testing.T) {
	src := `
class T {
  int m(int[] a) {
    int s = 0;                          //1
    for (int i = 0; i < a.length; i++) { //2
      s += a[i];                        //3
    }
    return s;                           //4
  }
}`
	w1 := getWrapper(t, src, slicing.Options{MinStatements: 2, ForwardClosure: true})
	w2 := getWrapper(t, src, slicing.Options{MinStatements: 2, ForwardClosure: true})
	s1, s2 := w1.slice(t, 3, "s"), w2.slice(t, 3, "s")
	assert.Equal(t, s1.Key(), s2.Key())
	assert.Equal(t, s1.Rejection, s2.Rejection)
	assert.Equal(t, s1.Digests, s2.Digests)
	assert.Equal(t, s1.String(), s2.String())
}

func TestRevalidation(t *testing.T) {
	src := `
class T {
  int m(int a, int b) {
    int x = a + b; //1
    int y = x * 2; //2
    return y;      //3
  }
}`
	w := getWrapper(t, src, slicing.Options{MinStatements: 1})
	s := w.slice(t, 1, "x")

	same := load(t, src)
	assert.True(t, s.AreSliceStatementsValid(same))

	edited := load(t, strings.Replace(src, "a + b", "a - b", 1))
	assert.False(t, s.AreSliceStatementsValid(edited))

	shifted := load(t, strings.Replace(src, "class T {", "class T {\n", 1))
	assert.False(t, s.AreSliceStatementsValid(shifted))

	assert.False(t, s.AreSliceStatementsValid(nil))
}

func TestRejectionString(t *testing.T) {
	assert.Equal(t, "extractable", slicing.None.String())
	assert.Equal(t, "more than one output variable", slicing.MultipleOutputs.String())
	assert.Equal(t, "unknown", slicing.Rejection(99).String())
}

var marker = regexp.MustCompile(`//\s*(\d+)\s*$`)

type wrapper struct {
	slicer *slicing.Slicer
	exp    map[int]int // label -> node ID
}

func load(t *testing.T, src string) *stmt.Method {
	t.Helper()
	prog, err := loader.LoadSource("T.java", []byte(src))
	require.NoError(t, err)
	require.Empty(t, prog.Diagnostics)
	ms := prog.MethodsNamed("m")
	require.Len(t, ms, 1)
	return ms[0]
}

func getWrapper(t *testing.T, src string, opts slicing.Options) *wrapper {
	t.Helper()
	prog, err := loader.LoadSource("T.java", []byte(src))
	require.NoError(t, err)
	require.Empty(t, prog.Diagnostics)
	ms := prog.MethodsNamed("m")
	require.Len(t, ms, 1)
	g := cfg.New(ms[0])
	lines := prog.Files[0].Lines

	byLine := map[int]int{}
	for _, n := range g.Nodes {
		switch n.Kind {
		case cfg.NodeEntry, cfg.NodeExit, cfg.NodeExceptionalExit, cfg.NodeJoin:
			continue
		}
		line := lines.Position(n.Extent.Offset).Line
		if _, ok := byLine[line]; !ok {
			byLine[line] = n.ID
		}
	}

	exp := map[int]int{}
	for i, line := range strings.Split(src, "\n") {
		m := marker.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label, _ := strconv.Atoi(m[1])
		id, ok := byLine[i+1]
		require.True(t, ok, "no node on line %d (labeled %d)", i+1, label)
		exp[label] = id
	}
	return &wrapper{slicing.New(pdg.New(g), opts), exp}
}

// slice computes the slice for the named variable at the labeled node,
// within the innermost enclosing boundary.
func (w *wrapper) slice(t *testing.T, label int, name string) *slicing.Slice {
	t.Helper()
	id := w.exp[label]
	n := w.slicer.PDG.CFG.Nodes[id]
	var v stmt.Variable
	found := false
	for _, d := range append(append([]stmt.Variable{}, n.Defs...), n.Uses...) {
		if d.Path == name {
			v, found = d, true
			break
		}
	}
	require.True(t, found, "%s is not referenced at %d", name, label)
	bs := w.slicer.Boundaries(id)
	require.NotEmpty(t, bs)
	s, err := w.slicer.Compute(slicing.Criterion{Node: id, Var: v}, bs[0])
	require.NoError(t, err)
	return s
}

func (w *wrapper) expectNodes(t *testing.T, s *slicing.Slice, labels ...int) {
	t.Helper()
	want := map[int]bool{}
	for _, l := range labels {
		want[w.exp[l]] = true
	}
	for _, id := range s.Nodes {
		if w.slicer.PDG.CFG.Nodes[id].Kind.IsStructural() {
			continue
		}
		if !want[id] {
			t.Errorf("unexpected node in slice: %s", w.slicer.PDG.CFG.Nodes[id])
		}
		delete(want, id)
	}
	for id := range want {
		t.Errorf("expected node in slice: %s", w.slicer.PDG.CFG.Nodes[id])
	}
}

func (w *wrapper) text(s *slicing.Slice) string {
	return strings.TrimSpace(s.Text())
}

func local(name string) stmt.Variable {
	return stmt.Variable{Path: name, Kind: stmt.Local}
}

func paths(vars []stmt.Variable) []string {
	result := make([]string, 0, len(vars))
	for _, v := range vars {
		result = append(result, v.Path)
	}
	return result
}
