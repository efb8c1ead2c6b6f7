// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg_test

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/loader"
)

const (
	START = 0
	END   = 100000000
	EXC   = 100000001 // exceptional exit
	CLOSE = 100000002 // normal resource close
	XCLS  = 100000003 // exceptional resource close
)

func TestIfElse(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m(int c) {
    if (c > 0) { //1
      print("there"); //2
    } else {
      print("nowhere"); //3
    }
    print("end"); //4
  }
}`)

	c.expectSuccs(t, START, 1)
	c.expectSuccs(t, 1, 2, 3)
	c.expectSuccs(t, 2, 4)
	c.expectSuccs(t, 3, 4)
	c.expectSuccs(t, 4, END)

	c.expectEdge(t, 1, 2, cfg.True)
	c.expectEdge(t, 1, 3, cfg.False)
	c.expectPreds(t, 4, 2, 3)
	c.expectPreds(t, END, 4)
	c.expectPreds(t, EXC)
}

func TestFor(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m(int c) {
    for (int i = 0; //1
         i < c; //2
         i++) { //3
      if (i == 3) //4
        continue; //5
      if (i == 5) //6
        break; //7
      print(i); //8
    }
    print(c); //9
  }
}`)

	c.expectSuccs(t, START, 1)
	c.expectSuccs(t, 1, 2)
	c.expectSuccs(t, 2, 4, 9)
	c.expectSuccs(t, 4, 5, 6)
	c.expectSuccs(t, 5, 3)
	c.expectSuccs(t, 6, 7, 8)
	c.expectSuccs(t, 7, 9)
	c.expectSuccs(t, 8, 3)
	c.expectSuccs(t, 3, 2)

	c.expectPreds(t, 2, 1, 3)
	c.expectPreds(t, 3, 5, 8)
	c.expectPreds(t, 9, 2, 7)
	c.expectEdge(t, 2, 9, cfg.False)
}

func TestLabeledDoWhile(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m(int c) {
    outer:
    while (c > 0) { //1
      do {
        c--; //2
        if (c == 2) //3
          continue outer; //4
        if (c == 1) //5
          break outer; //6
      } while (c > 5); //7
      print(c); //8
    }
    print(0); //9
  }
}`)

	c.expectSuccs(t, 1, 2, 9)
	c.expectSuccs(t, 2, 3)
	c.expectSuccs(t, 3, 4, 5)
	c.expectSuccs(t, 4, 1)
	c.expectSuccs(t, 5, 6, 7)
	c.expectSuccs(t, 6, 9)
	c.expectSuccs(t, 7, 2, 8)
	c.expectSuccs(t, 8, 1)

	c.expectEdge(t, 7, 2, cfg.True)
	c.expectEdge(t, 7, 8, cfg.False)
	c.expectPreds(t, 9, 1, 6)
	c.expectPreds(t, 2, 1, 7)
}

func TestInfiniteFor(t *testing.T) {
	c := getWrapper(t, `
class T {
  int m(int c) {
    for (;;) { //1
      if (c > 10) //2
        return c; //3
      c++; //4
    }
  }
}`)

	c.expectSuccs(t, 1, 2)
	c.expectSuccs(t, 2, 3, 4)
	c.expectSuccs(t, 3, END)
	c.expectSuccs(t, 4, 1)
	c.expectPreds(t, END, 3)
}

func TestSwitchFallthrough(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m(int c) {
    switch (c) { //1
      case 1:
        print(1); //2
      case 2:
        print(2); //3
        break; //4
      default:
        print(0); //5
    }
    print(9); //6
  }
}`)

	c.expectSuccs(t, 1, 2, 3, 5)
	c.expectSuccs(t, 2, 3)
	c.expectSuccs(t, 3, 4)
	c.expectSuccs(t, 4, 6)
	c.expectSuccs(t, 5, 6)

	c.expectEdge(t, 1, 2, cfg.True)
	c.expectPreds(t, 3, 1, 2)
	c.expectPreds(t, 6, 4, 5)
}

func TestSwitchNoDefault(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m(int c) {
    switch (c) { //1
      case 1 -> print(1); //2
      case 2 -> print(2); //3
    }
    print(9); //4
  }
}`)

	c.expectSuccs(t, 1, 2, 3, 4)
	c.expectSuccs(t, 2, 4)
	c.expectSuccs(t, 3, 4)
	c.expectEdge(t, 1, 4, cfg.False)
}

func TestTryCatchFinally(t *testing.T) {
	c := getWrapper(t, `
class T {
  void read() throws java.io.IOException {}

  void m() {
    try { //1
      read(); //2
      print(1); //3
    } catch (java.io.IOException e) { //4
      print(2); //5
    } finally { //6
      print(3); //7
    }
    print(4); //8
  }
}`)

	c.expectSuccs(t, START, 1)
	c.expectSuccs(t, 1, 2)
	c.expectSuccs(t, 2, 3, 4, 6)
	c.expectSuccs(t, 3, 6)
	c.expectSuccs(t, 4, 5)
	c.expectSuccs(t, 5, 6)
	c.expectSuccs(t, 6, 7)
	c.expectSuccs(t, 7, 8)

	c.expectEdge(t, 2, 3, cfg.Unconditional)
	c.expectEdge(t, 2, 4, cfg.Exception)
	c.expectEdge(t, 2, 6, cfg.Exception)
	c.expectEdge(t, 5, 6, cfg.Exception)
	c.expectPreds(t, 6, 2, 3, 5)

	try := c.node(1).Try
	if try == nil || try.Finally != c.exp[6] || len(try.Catches) != 1 || try.Catches[0] != c.exp[4] {
		t.Fatalf("wrong try node: %+v", try)
	}
	if !try.HasCatchClause() || try.HasResources {
		t.Error("wrong derived attributes")
	}
	if n := c.node(4); n.Catch != 0 || len(n.Raises) != 0 || n.Unchecked {
		t.Errorf("wrong catch node: %+v", n)
	}
	if n := c.node(7); !n.Unchecked {
		t.Error("end of finally clause should re-raise unchecked exceptions")
	}
}

// An exception handled by an inner catch clause never reaches an
// unrelated catch clause of an enclosing try statement.
func TestNestedTryUnrelatedCatch(t *testing.T) {
	c := getWrapper(t, `
class T {
  void read() throws java.io.IOException {}

  void m() {
    try { //1
      try { //2
        read(); //3
      } catch (java.io.IOException e) { //4
        print(1); //5
      }
    } catch (java.sql.SQLException e) { //6
      print(2); //7
    }
  }
}`)

	c.expectSuccs(t, 1, 2)
	c.expectSuccs(t, 2, 3)
	c.expectSuccs(t, 3, 4, END)
	c.expectSuccs(t, 5, END)
	c.expectPreds(t, 6)
	c.expectPreds(t, EXC)
}

// Unchecked exceptions certainly handled by an inner catch clause never
// reach the catch clauses of an enclosing try statement.
func TestNestedTryCatchAll(t *testing.T) {
	c := getWrapper(t, `
class T {
  void read() throws java.io.IOException {}

  void m() {
    try { //1
      try { //2
        read(); //3
      } catch (Throwable e) { //4
        print(1); //5
      }
    } catch (RuntimeException e) { //6
      print(2); //7
    }
    print(3); //8
  }
}`)

	c.expectSuccs(t, 3, 4, 8)
	c.expectEdge(t, 3, 4, cfg.Exception)
	c.expectSuccs(t, 5, 6, 8)
	c.expectPreds(t, 6, 5)
	c.expectPreds(t, EXC)

	// catch (Exception) handles RuntimeException but not Error
	c = getWrapper(t, `
class T {
  void m() {
    try { //1
      try { //2
        print(0); //3
      } catch (Exception e) { //4
        e = null; //5
      }
    } catch (RuntimeException e) { //6
      print(1); //7
    } catch (Error e) { //8
      print(2); //9
    }
  }
}`)

	c.expectSuccs(t, 3, 4, 8, END)
	c.expectPreds(t, 6)
	c.expectPreds(t, 8, 3)
}

func TestUncheckedCatch(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m() {
    try { //1
      print(1); //2
    } catch (IllegalStateException e) { //3
      print(2); //4
    } catch (java.io.IOException e) { //5
      print(3); //6
    } catch (Exception e) { //7
      print(4); //8
    }
  }
}`)

	c.expectSuccs(t, 2, 3, 7, END)
	c.expectPreds(t, 5)
	c.expectPreds(t, END, 2, 4, 6, 8)
}

func TestThrow(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m(int c) throws Exception {
    if (c < 0) //1
      throw new IllegalArgumentException(); //2
    try { //3
      throw new java.io.FileNotFoundException(); //4
    } catch (java.io.IOException e) { //5
      throw e; //6
    }
  }
}`)

	c.expectSuccs(t, 1, 2, 3)
	c.expectSuccs(t, 2, EXC)
	c.expectSuccs(t, 4, 5)
	c.expectSuccs(t, 6, EXC)
	c.expectPreds(t, END)
	c.expectPreds(t, EXC, 2, 6)
}

func TestFinallyJumps(t *testing.T) {
	c := getWrapper(t, `
class T {
  int m(int c) {
    while (c > 0) { //1
      try { //2
        if (c == 1) //3
          return c; //4
        if (c == 2) //5
          break; //6
        c--; //7
      } finally { //8
        c = c - 2; //9
      }
    }
    return 0; //10
  }
}`)

	c.expectSuccs(t, 1, 2, 10)
	c.expectSuccs(t, 4, 8)
	c.expectSuccs(t, 6, 8)
	c.expectSuccs(t, 7, 8)
	c.expectSuccs(t, 8, 9)
	c.expectSuccs(t, 9, 1, 10, END)
	c.expectPreds(t, 10, 1, 9)
}

func TestTryWithResources(t *testing.T) {
	c := getWrapper(t, `
class T {
  java.io.Reader open() throws java.io.IOException { return null; }

  int m() {
    try ( //1
        java.io.Reader r = open() //2
    ) {
      if (r == null) //3
        return 0; //4
      print(r); //5
    } catch (java.io.IOException e) { //6
      print(0); //7
    }
    return 9; //8
  }
}`)
	try := c.node(1).Try
	if try == nil || !try.HasResources || try.Close < 0 || try.ExceptionalClose < 0 {
		t.Fatalf("wrong try node: %+v", try)
	}
	c.exp[CLOSE] = try.Close
	c.exp[XCLS] = try.ExceptionalClose

	c.expectSuccs(t, 1, 2)
	c.expectSuccs(t, 2, 3, 6)
	c.expectSuccs(t, 3, 4, 5)
	c.expectSuccs(t, 4, CLOSE)
	c.expectSuccs(t, 5, CLOSE, XCLS)
	c.expectSuccs(t, CLOSE, 8, END)
	c.expectSuccs(t, 7, 8)
	c.expectPreds(t, 8, CLOSE, 7)
	c.expectEdge(t, 5, XCLS, cfg.Exception)

	if n := c.node(CLOSE); n.Text != "close(r)" || len(n.Calls) != 1 || n.Calls[0].Receiver == nil {
		t.Errorf("wrong close node: %+v", n)
	}
}

func TestSynchronized(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m(Object lock) {
    synchronized (lock) { //1
      print(1); //2
    }
  }
}`)

	c.expectSuccs(t, START, 1)
	c.expectSuccs(t, 1, 2)
	c.expectSuccs(t, 2, END)
	if c.node(1).Kind != cfg.NodeSync {
		t.Errorf("expected a synchronized node, got %s", c.node(1).Kind)
	}
}

func TestNodesOf(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m(int c) {
    try { //1
      c++; //2
    } catch (Exception e) { //3
    } finally { //4
      c--; //5
    }
  }
}`)
	try := c.node(1).Stmt
	if got := c.cfg.NodesOf(try); len(got) != 3 {
		t.Errorf("NodesOf(try) = %v", got)
	}
	within := c.cfg.Within(try)
	if len(within) != 5 {
		t.Errorf("Within(try) = %v", within)
	}
	for _, id := range within {
		if id == cfg.Entry || id == cfg.Exit || id == cfg.ExceptionalExit {
			t.Errorf("Within(try) contains %d", id)
		}
	}
	if len(c.cfg.Tries()) != 1 {
		t.Errorf("Tries() = %v", c.cfg.Tries())
	}
}

func TestPrintDot(t *testing.T) {
	c := getWrapper(t, `
class T {
  void m(int c) throws Exception {
    if (c < 0) //1
      throw new Exception("negative"); //2
  }
}`)
	var b bytes.Buffer
	c.cfg.PrintDot(&b, func(n *cfg.Node) string {
		if n.Kind == cfg.NodeBranch {
			return "uses c"
		}
		return ""
	})
	out := b.String()
	for _, want := range []string{
		"digraph mgraph {",
		`label="E",style=dashed`,
		`uses c`,
		`label="T"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output does not contain %q:\n%s", want, out)
		}
	}
	if !strings.Contains(c.cfg.String(), "-E-> 2") {
		t.Errorf("String() does not show the exception edge:\n%s", c.cfg.String())
	}
}

// A cfgWrapper maps the numbers in //N comments to the IDs of the nodes on
// those lines, so that tests can refer to nodes by number.
type cfgWrapper struct {
	cfg *cfg.CFG
	exp map[int]int
}

var marker = regexp.MustCompile(`//\s*(\d+)\s*$`)

// getWrapper builds the CFG of the method named m in the given source.
// Each //N comment labels the node with the lowest ID (other than a join
// node) on its line.
func getWrapper(t *testing.T, src string) *cfgWrapper {
	t.Helper()
	prog, err := loader.LoadSource("T.java", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Diagnostics) > 0 {
		t.Fatal(prog.Diagnostics)
	}
	ms := prog.MethodsNamed("m")
	if len(ms) != 1 {
		t.Fatalf("expected one method named m, found %d", len(ms))
	}
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

	exp := map[int]int{START: cfg.Entry, END: cfg.Exit, EXC: cfg.ExceptionalExit}
	for i, line := range strings.Split(src, "\n") {
		m := marker.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label, _ := strconv.Atoi(m[1])
		id, ok := byLine[i+1]
		if !ok {
			t.Fatalf("no node on line %d (labeled %d)", i+1, label)
		}
		exp[label] = id
	}
	return &cfgWrapper{g, exp}
}

func (c *cfgWrapper) node(label int) *cfg.Node {
	return c.cfg.Nodes[c.exp[label]]
}

func (c *cfgWrapper) label(id int) string {
	for k, v := range c.exp {
		if v == id {
			return strconv.Itoa(k)
		}
	}
	return c.cfg.Nodes[id].String()
}

// skipJoins replaces join nodes by their successors (or predecessors).
func (c *cfgWrapper) skipJoins(ids []int, next func(int) []int) map[int]bool {
	result := map[int]bool{}
	var visit func(int)
	visit = func(id int) {
		if c.cfg.Nodes[id].Kind == cfg.NodeJoin {
			for _, n := range next(id) {
				visit(n)
			}
			return
		}
		result[id] = true
	}
	for _, id := range ids {
		visit(id)
	}
	return result
}

func (c *cfgWrapper) expectSuccs(t *testing.T, s int, expSuccs ...int) {
	t.Helper()
	c.expect(t, "successor", s, c.skipJoins(c.cfg.Succs(c.exp[s]), c.cfg.Succs), expSuccs)
}

func (c *cfgWrapper) expectPreds(t *testing.T, s int, expPreds ...int) {
	t.Helper()
	c.expect(t, "predecessor", s, c.skipJoins(c.cfg.Preds(c.exp[s]), c.cfg.Preds), expPreds)
}

func (c *cfgWrapper) expect(t *testing.T, what string, s int, actual map[int]bool, expected []int) {
	t.Helper()
	if _, ok := c.exp[s]; !ok {
		t.Fatal("Did not find node", s)
	}
	for _, a := range expected {
		id, ok := c.exp[a]
		if !ok {
			t.Fatal("Did not find node", a)
		}
		if !actual[id] {
			t.Errorf("Did not find %d as %s for %d", a, what, s)
		}
		delete(actual, id)
	}
	for id := range actual {
		t.Errorf("Found %s as %s for %d", c.label(id), what, s)
	}
}

func (c *cfgWrapper) expectEdge(t *testing.T, from, to int, kind cfg.EdgeKind) {
	t.Helper()
	for _, e := range c.cfg.OutEdges(c.exp[from]) {
		if e.Kind == kind && c.skipJoins([]int{e.To}, c.cfg.Succs)[c.exp[to]] {
			return
		}
	}
	t.Errorf("Did not find %s edge from %d to %d", kind, from, to)
}
