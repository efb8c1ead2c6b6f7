// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdg_test

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/loader"
	"github.com/godoctor/slicedoctor/analysis/pdg"
)

const (
	START = 0
	END   = 100000000
)

func TestStraightLine(t *testing.T) {
	p := getWrapper(t, `
class T {
  int m(int a, int b) {
    int x = a + b; //1
    int y = x * 2; //2
    return y;      //3
  }
}`)

	for _, s := range []int{1, 2, 3} {
		p.expectParent(t, s, -1)
		p.expectControl(t, s, START, cfg.Unconditional)
	}
	p.expectData(t, START, 1, "a", "b")
	p.expectData(t, 1, 2, "x")
	p.expectData(t, 2, 3, "y")
	p.expectDataPreds(t, 3, 2)
	p.expectDataPreds(t, 2, 1)
}

func TestIfElse(t *testing.T) {
	p := getWrapper(t, `
class T {
  int m(int a) {
    int x = 0;   //1
    if (a > 0) { //2
      x = a;     //3
    } else {
      x = -a;    //4
    }
    return x;    //5
  }
}`)

	p.expectParent(t, 1, -1)
	p.expectParent(t, 2, -1)
	p.expectParent(t, 3, 2)
	p.expectParent(t, 4, 2)
	p.expectParent(t, 5, -1)
	p.expectControl(t, 3, 2, cfg.True)
	p.expectControl(t, 4, 2, cfg.False)
	p.expectControl(t, 5, START, cfg.Unconditional)

	p.expectDataPreds(t, 5, 3, 4)
	p.expectDataPreds(t, 3, START)

	if !p.pdg.PostDominates(p.exp[5], p.exp[1]) {
		t.Error("expected 5 to post-dominate 1")
	}
	if p.pdg.PostDominates(p.exp[3], p.exp[2]) {
		t.Error("did not expect 3 to post-dominate 2")
	}
}

func TestWhile(t *testing.T) {
	p := getWrapper(t, `
class T {
  int m(int n) {
    int s = 0;      //1
    while (n > 0) { //2
      s += n;       //3
      n--;          //4
    }
    return s;       //5
  }
}`)

	p.expectParent(t, 2, -1)
	p.expectParent(t, 3, 2)
	p.expectParent(t, 4, 2)
	p.expectControl(t, 3, 2, cfg.True)
	p.expectControl(t, 2, 2, cfg.True)
	p.expectControl(t, 2, START, cfg.Unconditional)

	p.expectDataPreds(t, 2, START, 4)
	p.expectDataPreds(t, 3, START, 1, 3, 4)
	p.expectDataPreds(t, 5, 1, 3)
}

func TestThrowMakesRestConditional(t *testing.T) {
	p := getWrapper(t, `
class T {
  void m(int a) {
    if (a < 0) {                            //1
      throw new IllegalArgumentException(); //2
    }
    print(a);                               //3
  }
}`)

	p.expectControl(t, 2, 1, cfg.True)
	p.expectControl(t, 3, 1, cfg.False)
	p.expectParent(t, 3, 1)
	p.expectParent(t, 1, -1)
}

func TestInfiniteLoop(t *testing.T) {
	p := getWrapper(t, `
class T {
  void m() {
    int i = 0;   //1
    for (;;) {   //2
      i++;       //3
    }
  }
}`)

	p.expectParent(t, 1, -1)
	p.expectParent(t, 3, 2)
	p.expectDataPreds(t, 3, 1, 3)
}

func TestTryCatch(t *testing.T) {
	p := getWrapper(t, `
class T {
  void m() {
    try {                   //1
      work();               //2
    } catch (Exception e) { //3
      log(e);               //4
    }
    done();                 //5
  }
}`)

	p.expectControl(t, 1, START, cfg.Unconditional)
	p.expectControl(t, 5, START, cfg.Unconditional)
	p.expectControl(t, 2, 1, cfg.Unconditional)
	p.expectControl(t, 3, 1, cfg.Exception)
	p.expectControl(t, 4, 1, cfg.Exception)
	p.expectParent(t, 4, 1)
	p.expectParent(t, 5, -1)
	p.expectData(t, 3, 4, "e")
}

func TestReachable(t *testing.T) {
	p := getWrapper(t, `
class T {
  int m(int a) {
    int x = a;   //1
    x++;         //2
    return x;    //3
  }
}`)

	r := p.pdg.Reachable(p.exp[1])
	for _, s := range []int{2, 3, END} {
		if !r.Contains(uint32(p.exp[s])) {
			t.Errorf("expected %d to be reachable from 1", s)
		}
	}
	for _, s := range []int{START, 1} {
		if r.Contains(uint32(p.exp[s])) {
			t.Errorf("did not expect %d to be reachable from 1", s)
		}
	}
	if p.pdg.Reachable(p.exp[1]) != r {
		t.Error("expected reachability to be computed once")
	}
}

func TestReachableWithin(t *testing.T) {
	p := getWrapper(t, `
class T {
  void m(int a) {
    while (a > 0) {  //1
      a--;           //2
      print(a);      //3
    }
    print(0);        //4
  }
}`)

	notTest := func(id int) bool { return id != p.exp[1] }
	r := p.pdg.ReachableWithin(p.exp[2], notTest)
	if !r.Contains(uint32(p.exp[3])) {
		t.Error("expected 3 to be reachable from 2")
	}
	for _, s := range []int{1, 2, 4} {
		if r.Contains(uint32(p.exp[s])) {
			t.Errorf("did not expect %d to be reachable from 2 without the loop test", s)
		}
	}

	all := func(int) bool { return true }
	r = p.pdg.ReachableWithin(p.exp[2], all)
	for _, s := range []int{1, 3, 4} {
		if !r.Contains(uint32(p.exp[s])) {
			t.Errorf("expected %d to be reachable from 2", s)
		}
	}
	if r.Contains(uint32(p.exp[2])) {
		t.Error("did not expect the starting node to be included")
	}
}

func TestIdempotent(t *testing.T) {
	src := `
class T {
  int m(int[] a) {
    int s = 0;
    try {
      for (int i = 0; i < a.length; i++) {
        if (a[i] < 0) break;
        s += a[i];
      }
    } finally {
      s = -s;
    }
    return s;
  }
}`
	p1, p2 := getWrapper(t, src), getWrapper(t, src)
	if p1.pdg.String() != p2.pdg.String() {
		t.Errorf("expected identical dependence graphs, got\n%s\nand\n%s", p1.pdg, p2.pdg)
	}
	if p1.pdg.CFG.String() != p2.pdg.CFG.String() {
		t.Error("expected identical control flow graphs")
	}
}

func TestPrintDot(t *testing.T) {
	p := getWrapper(t, `
class T {
  int m(int a) {
    int x = a;  //1
    return x;   //2
  }
}`)
	var b bytes.Buffer
	p.pdg.PrintDot(&b)
	dot := b.String()
	if !strings.HasPrefix(dot, "digraph pdg {") {
		t.Errorf("unexpected DOT output: %s", dot)
	}
	want := strconv.Itoa(p.exp[1]) + " -> " + strconv.Itoa(p.exp[2]) + ` [label="x",style=dashed];`
	if !strings.Contains(dot, want) {
		t.Errorf("expected %q in DOT output:\n%s", want, dot)
	}
}

var marker = regexp.MustCompile(`//\s*(\d+)\s*$`)

type pdgWrapper struct {
	pdg *pdg.PDG
	exp map[int]int // label -> node ID
}

func getWrapper(t *testing.T, src string) *pdgWrapper {
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

	exp := map[int]int{START: cfg.Entry, END: cfg.Exit}
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
	return &pdgWrapper{pdg.New(g), exp}
}

func (p *pdgWrapper) label(id int) string {
	for k, v := range p.exp {
		if v == id {
			return strconv.Itoa(k)
		}
	}
	return p.pdg.CFG.Nodes[id].String()
}

func (p *pdgWrapper) expectParent(t *testing.T, s, parent int) {
	t.Helper()
	want := -1
	if parent >= 0 {
		want = p.exp[parent]
	}
	if got := p.pdg.Nodes[p.exp[s]].ControlParent; got != want {
		t.Errorf("expected control parent of %d to be %d, got %s", s, parent, p.label(got))
	}
}

func (p *pdgWrapper) expectControl(t *testing.T, s, controller int, kind cfg.EdgeKind) {
	t.Helper()
	for _, c := range p.pdg.Nodes[p.exp[s]].Controllers {
		if c.Node == p.exp[controller] && c.Kind == kind {
			return
		}
	}
	t.Errorf("did not find %d as a %s controller of %d", controller, kind, s)
}

func (p *pdgWrapper) expectData(t *testing.T, def, use int, vars ...string) {
	t.Helper()
	found := map[string]bool{}
	for _, d := range p.pdg.Nodes[p.exp[use]].DataIn {
		if d.Def == p.exp[def] {
			found[d.Var.Path] = true
		}
	}
	for _, v := range vars {
		if !found[v] {
			t.Errorf("did not find dependence on %s from %d to %d", v, def, use)
		}
	}
}

func (p *pdgWrapper) expectDataPreds(t *testing.T, s int, exp ...int) {
	t.Helper()
	actual := map[int]bool{}
	for _, id := range p.pdg.DataPreds(p.exp[s]) {
		actual[id] = true
	}
	for _, e := range exp {
		if !actual[p.exp[e]] {
			t.Errorf("did not find %d as a data predecessor of %d", e, s)
		}
		delete(actual, p.exp[e])
	}
	for id := range actual {
		t.Errorf("found %s as a data predecessor of %d", p.label(id), s)
	}
}
