// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import (
	"fmt"
	"strings"

	"github.com/godoctor/slicedoctor/analysis/stmt"
)

// The builder translates a statement tree into a graph recursively.  Each
// buildXxx method takes the dangling exits of whatever precedes the statement
// (preds), connects them to the statement's entry node, and returns the
// statement's own dangling exits.  The first node a buildXxx method creates
// is always the entry node of its statement; buildLoop relies on this to
// find the entry of a do-while body.
//
// Jumps (break, continue, return) and exceptions are resolved against a
// stack of frames, one per enclosing loop, switch, labeled statement, try
// statement, and try-with-resources body.  A jump or exception that would
// leave a try statement with a finally clause is routed to the finally
// entry instead; it is recorded in the try's frame and resumed from the
// finally clause's exits once the finally clause has been built.  The
// resource-close nodes of a try-with-resources statement intercept jumps
// and exceptions leaving its body the same way.

// An exit is a dangling edge: the edge from node, of the given kind, whose
// target is not known yet.
type exit struct {
	node int
	kind EdgeKind
}

type frameKind int

const (
	loopFrame frameKind = iota
	switchFrame
	labelFrame
	tryFrame
	resourceFrame
)

type jumpKind int

const (
	breakJump jumpKind = iota
	continueJump
	returnJump
)

// A pendingJump is a jump that was routed through a finally clause (or a
// resource close) and must be resumed from its exits.
type pendingJump struct {
	kind   jumpKind
	target int // frame index, or -1 for the method
}

type frame struct {
	kind  frameKind
	label string

	breaks, continues []exit

	// try and resource frames
	try        *TryNode
	inHandlers bool // building catch clauses
	inFinally  bool // building the finally clause
	jumps      []pendingJump
	raises     []string
	unchecked  bool
}

// intercepts returns true iff jumps and exceptions leaving this frame must
// first pass through a finally clause or a resource close.
func (f *frame) intercepts() bool {
	switch f.kind {
	case resourceFrame:
		return true
	case tryFrame:
		return f.try.Finally >= 0 && !f.inFinally
	default:
		return false
	}
}

func (f *frame) addJump(j pendingJump) {
	for _, k := range f.jumps {
		if k == j {
			return
		}
	}
	f.jumps = append(f.jumps, j)
}

func (f *frame) addRaises(types []string, unchecked bool) {
	f.raises = union(f.raises, types)
	f.unchecked = f.unchecked || unchecked
}

type builder struct {
	cfg          *CFG
	types        *stmt.Hierarchy
	frames       []*frame
	edges        map[Edge]bool
	pendingLabel string
}

func newBuilder(m *stmt.Method) *builder {
	c := &CFG{
		Method: m,
		Tree:   stmt.NewTree(m.Body),
		byStmt: map[stmt.Statement][]int{},
	}
	return &builder{cfg: c, types: m.Types(), edges: map[Edge]bool{}}
}

func (b *builder) build() *CFG {
	b.newNode(NodeEntry, nil, nil)
	b.newNode(NodeExit, nil, nil)
	b.newNode(NodeExceptionalExit, nil, nil)

	exits := b.buildStmt(b.cfg.Method.Body, []exit{{Entry, Unconditional}})
	b.connect(exits, Exit)
	return b.cfg
}

// newNode creates a node for the given statement, copying the defs, uses,
// and calls of the fragment (if any) into it.
func (b *builder) newNode(kind NodeKind, s stmt.Statement, f *stmt.Fragment) int {
	n := &Node{ID: len(b.cfg.Nodes), Kind: kind, Stmt: s, Catch: -1}
	if s != nil {
		n.Extent = s.Extent()
	}
	if f != nil {
		n.Text = strings.Join(strings.Fields(f.Text), " ")
		n.Extent = f.Extent
		n.Line = f.Line
		n.Defs = f.Defs
		n.Uses = f.Uses
		n.Decls = f.Decls
		n.Calls = f.Calls
		n.Copies = f.Copies
		n.Raises, n.Unchecked = f.Raises()
	}
	b.cfg.Nodes = append(b.cfg.Nodes, n)
	b.cfg.succs = append(b.cfg.succs, nil)
	b.cfg.preds = append(b.cfg.preds, nil)
	if s != nil {
		b.cfg.byStmt[s] = append(b.cfg.byStmt[s], n.ID)
	}
	return n.ID
}

func (b *builder) addEdge(from, to int, kind EdgeKind) {
	e := Edge{From: from, To: to, Kind: kind}
	if b.edges[e] {
		return
	}
	b.edges[e] = true
	idx := len(b.cfg.Edges)
	b.cfg.Edges = append(b.cfg.Edges, e)
	b.cfg.succs[from] = append(b.cfg.succs[from], idx)
	b.cfg.preds[to] = append(b.cfg.preds[to], idx)
}

func (b *builder) connect(exits []exit, to int) {
	for _, e := range exits {
		b.addEdge(e.node, to, e.kind)
	}
}

func (b *builder) push(f *frame) *frame {
	b.frames = append(b.frames, f)
	return f
}

func (b *builder) pop() {
	b.frames = b.frames[:len(b.frames)-1]
}

// takeLabel returns the label attached to the statement being built (if it
// is a loop or switch) and clears it.
func (b *builder) takeLabel() string {
	l := b.pendingLabel
	b.pendingLabel = ""
	return l
}

func (b *builder) buildStmt(s stmt.Statement, preds []exit) []exit {
	if _, ok := s.(*stmt.LabeledStatement); !ok {
		if _, ok := s.(*stmt.LoopStatement); !ok {
			if _, ok := s.(*stmt.SwitchStatement); !ok {
				// A label only applies to the statement it is attached to
				b.pendingLabel = ""
			}
		}
	}

	switch s := s.(type) {
	case *stmt.SimpleStatement:
		return b.buildSimple(s, preds)
	case *stmt.BlockStatement:
		return b.buildList(s.Stmts, preds)
	case *stmt.IfStatement:
		return b.buildIf(s, preds)
	case *stmt.LoopStatement:
		return b.buildLoop(s, preds)
	case *stmt.SwitchStatement:
		return b.buildSwitch(s, preds)
	case *stmt.TryStatement:
		return b.buildTry(s, preds)
	case *stmt.SynchronizedStatement:
		n := b.newNode(NodeSync, s, &s.Lock)
		b.connect(preds, n)
		b.raiseFrom(n)
		return b.buildStmt(s.Body, []exit{{n, Unconditional}})
	case *stmt.LabeledStatement:
		return b.buildLabeled(s, preds)
	case nil:
		return preds
	default:
		panic(fmt.Sprintf("cfg: unexpected statement type %T", s))
	}
}

func (b *builder) buildList(stmts []stmt.Statement, preds []exit) []exit {
	for _, s := range stmts {
		preds = b.buildStmt(s, preds)
	}
	return preds
}

func (b *builder) buildSimple(s *stmt.SimpleStatement, preds []exit) []exit {
	n := b.newNode(NodeStatement, s, &s.Fragment)
	b.connect(preds, n)
	here := []exit{{n, Unconditional}}

	switch s.SimpleKind {
	case stmt.ThrowStmt:
		node := b.cfg.Nodes[n]
		node.Raises = union(node.Raises, []string{stmt.SimpleName(s.Thrown)})
		b.raiseFrom(n)
		return nil
	case stmt.ReturnStmt:
		b.raiseFrom(n)
		b.jump(here, returnJump, -1)
		return nil
	case stmt.BreakStmt, stmt.YieldStmt:
		b.raiseFrom(n)
		if target := b.breakTarget(s); target >= 0 {
			b.jump(here, breakJump, target)
		}
		return nil
	case stmt.ContinueStmt:
		if target := b.continueTarget(s.Label); target >= 0 {
			b.jump(here, continueJump, target)
		}
		return nil
	default:
		b.raiseFrom(n)
		return here
	}
}

func (b *builder) breakTarget(s *stmt.SimpleStatement) int {
	for i := len(b.frames) - 1; i >= 0; i-- {
		f := b.frames[i]
		switch {
		case s.SimpleKind == stmt.YieldStmt:
			if f.kind == switchFrame {
				return i
			}
		case s.Label != "":
			if f.label == s.Label && (f.kind == loopFrame || f.kind == switchFrame || f.kind == labelFrame) {
				return i
			}
		case f.kind == loopFrame || f.kind == switchFrame:
			return i
		}
	}
	return -1
}

func (b *builder) continueTarget(label string) int {
	for i := len(b.frames) - 1; i >= 0; i-- {
		f := b.frames[i]
		if f.kind == loopFrame && (label == "" || f.label == label) {
			return i
		}
	}
	return -1
}

// jump transfers control from exits to the target frame (or, for a return,
// to Exit), passing through any intervening finally clauses.
func (b *builder) jump(exits []exit, kind jumpKind, target int) {
	b.jumpFrom(exits, kind, target, len(b.frames)-1)
}

func (b *builder) jumpFrom(exits []exit, kind jumpKind, target, start int) {
	for i := start; i > target; i-- {
		f := b.frames[i]
		if f.intercepts() {
			b.connect(exits, b.guardEntry(f, false))
			f.addJump(pendingJump{kind, target})
			return
		}
	}
	if target < 0 {
		b.connect(exits, Exit)
		return
	}
	f := b.frames[target]
	switch kind {
	case continueJump:
		f.continues = append(f.continues, exits...)
	default:
		f.breaks = append(f.breaks, exits...)
	}
}

// guardEntry returns the node that intercepts jumps and exceptions leaving
// a try or resource frame.
func (b *builder) guardEntry(f *frame, exceptional bool) int {
	if f.kind == resourceFrame {
		if exceptional {
			return f.try.ExceptionalClose
		}
		return f.try.Close
	}
	return f.try.Finally
}

func (b *builder) buildIf(s *stmt.IfStatement, preds []exit) []exit {
	n := b.newNode(NodeBranch, s, &s.Cond)
	b.connect(preds, n)
	b.raiseFrom(n)

	exits := b.buildStmt(s.Then, []exit{{n, True}})
	if s.Else != nil {
		exits = append(exits, b.buildStmt(s.Else, []exit{{n, False}})...)
	} else {
		exits = append(exits, exit{n, False})
	}
	return b.join(s, exits)
}

// join creates a join node for s that all of the given exits flow into.
func (b *builder) join(s stmt.Statement, exits []exit) []exit {
	if len(exits) == 0 {
		return nil
	}
	j := b.newNode(NodeJoin, s, nil)
	b.connect(exits, j)
	return []exit{{j, Unconditional}}
}

func (b *builder) buildLoop(s *stmt.LoopStatement, preds []exit) []exit {
	label := b.takeLabel()

	if s.LoopKind == stmt.DoWhileLoop {
		//   body <--+
		//    |      | T
		//   test ---+
		//    | F
		f := b.push(&frame{kind: loopFrame, label: label})
		first := len(b.cfg.Nodes)
		exits := b.buildStmt(s.Body, preds)
		test := b.newNode(NodeLoop, s, &s.Cond)
		b.connect(exits, test)
		b.connect(f.continues, test)
		b.raiseFrom(test)
		b.addEdge(test, first, True) // first == test if the body is empty
		b.pop()
		return append([]exit{{test, False}}, f.breaks...)
	}

	//   init
	//    |
	//   test <----+
	//    | T      |
	//   body      |
	//    |        |
	//   update ---+
	for _, init := range s.Init {
		preds = b.buildStmt(init, preds)
	}
	test := b.newNode(NodeLoop, s, &s.Cond)
	b.connect(preds, test)
	b.raiseFrom(test)

	f := b.push(&frame{kind: loopFrame, label: label})
	exits := b.buildStmt(s.Body, []exit{{test, True}})
	exits = append(exits, f.continues...)
	for _, update := range s.Update {
		exits = b.buildStmt(update, exits)
	}
	b.connect(exits, test)
	b.pop()

	if s.Infinite() {
		return f.breaks
	}
	return append([]exit{{test, False}}, f.breaks...)
}

func (b *builder) buildSwitch(s *stmt.SwitchStatement, preds []exit) []exit {
	//        switch
	//      /   |    \
	//    case case [default]
	//      |   |     |
	//  []stmt []stmt []stmt
	//       \  |   /
	//         join
	label := b.takeLabel()
	n := b.newNode(NodeSwitch, s, &s.Selector)
	b.connect(preds, n)
	b.raiseFrom(n)

	f := b.push(&frame{kind: switchFrame, label: label})
	var exits, fall []exit
	for _, c := range s.Cases {
		entry := append([]exit{{n, True}}, fall...)
		caseExits := b.buildList(c.Body, entry)
		if c.FallsThrough {
			fall = caseExits
		} else {
			exits = append(exits, caseExits...)
			fall = nil
		}
	}
	exits = append(exits, fall...)
	if !s.HasDefault() {
		exits = append(exits, exit{n, False})
	}
	exits = append(exits, f.breaks...)
	b.pop()
	return b.join(s, exits)
}

func (b *builder) buildLabeled(s *stmt.LabeledStatement, preds []exit) []exit {
	switch s.Body.(type) {
	case *stmt.LoopStatement, *stmt.SwitchStatement:
		b.pendingLabel = s.Label
		return b.buildStmt(s.Body, preds)
	}
	f := b.push(&frame{kind: labelFrame, label: s.Label})
	exits := b.buildStmt(s.Body, preds)
	b.pop()
	return append(exits, f.breaks...)
}

func (b *builder) buildTry(s *stmt.TryStatement, preds []exit) []exit {
	t := b.newNode(NodeTry, s, nil)
	b.cfg.Nodes[t].Text = "try"
	b.connect(preds, t)

	tn := &TryNode{
		ID:                t,
		Statement:         s,
		HandledExceptions: s.HandledExceptions,
		HasResources:      s.HasResources,
		Finally:           -1,
		Close:             -1,
		ExceptionalClose:  -1,
	}
	b.cfg.Nodes[t].Try = tn
	b.cfg.tries = append(b.cfg.tries, tn)

	for i := range s.Catches {
		c := b.newNode(NodeCatch, s, &s.Catches[i].Param)
		b.cfg.Nodes[c].Try = tn
		b.cfg.Nodes[c].Catch = i
		// Catch parameters are declared, not computed
		b.cfg.Nodes[c].Raises, b.cfg.Nodes[c].Unchecked = nil, false
		tn.Catches = append(tn.Catches, c)
	}
	if s.Finally != nil {
		tn.Finally = b.newNode(NodeFinally, s, nil)
		b.cfg.Nodes[tn.Finally].Text = "finally"
		b.cfg.Nodes[tn.Finally].Extent = s.Finally.Ext
		b.cfg.Nodes[tn.Finally].Try = tn
	}
	if s.HasResources {
		frag := closeFragment(s)
		tn.Close = b.newNode(NodeClose, s, &frag)
		tn.ExceptionalClose = b.newNode(NodeClose, s, &frag)
		for _, id := range []int{tn.Close, tn.ExceptionalClose} {
			b.cfg.Nodes[id].Try = tn
			b.cfg.Nodes[id].Extent = s.Ext
		}
	}

	f := b.push(&frame{kind: tryFrame, try: tn})
	tryIndex := len(b.frames) - 1

	exits := []exit{{t, Unconditional}}
	for _, r := range s.Resources {
		exits = b.buildSimple(r, exits)
	}

	if s.HasResources {
		rf := b.push(&frame{kind: resourceFrame, try: tn})
		bodyExits := b.buildStmt(s.Body, exits)
		b.pop()

		exits = nil
		closed := []exit{{tn.Close, Unconditional}}
		if len(bodyExits) > 0 || len(rf.jumps) > 0 {
			b.connect(bodyExits, tn.Close)
			b.raiseFrom(tn.Close)
			for _, j := range rf.jumps {
				b.jumpFrom(closed, j.kind, j.target, tryIndex)
			}
			if len(bodyExits) > 0 {
				exits = closed
			}
		}
		if len(rf.raises) > 0 || rf.unchecked {
			n := b.cfg.Nodes[tn.ExceptionalClose]
			n.Raises = union(n.Raises, rf.raises)
			n.Unchecked = true
			b.raise(tn.ExceptionalClose, n.Raises, n.Unchecked, tryIndex)
		}
	} else {
		exits = b.buildStmt(s.Body, exits)
	}

	f.inHandlers = true
	for i, c := range s.Catches {
		exits = append(exits, b.buildStmt(c.Body, []exit{{tn.Catches[i], Unconditional}})...)
	}

	if s.Finally == nil {
		b.pop()
		return exits
	}

	f.inFinally = true
	b.connect(exits, tn.Finally)
	completes := len(exits) > 0
	finallyExits := b.buildStmt(s.Finally, []exit{{tn.Finally, Unconditional}})
	b.pop()

	for _, j := range f.jumps {
		b.jumpFrom(finallyExits, j.kind, j.target, len(b.frames)-1)
	}
	if len(f.raises) > 0 || f.unchecked {
		// The end of the finally clause re-raises whatever entered it
		for _, e := range finallyExits {
			n := b.cfg.Nodes[e.node]
			n.Raises = union(n.Raises, f.raises)
			n.Unchecked = n.Unchecked || f.unchecked
			b.raise(e.node, f.raises, f.unchecked, len(b.frames)-1)
		}
	}
	if !completes {
		return nil
	}
	return finallyExits
}

// closeFragment describes the implicit close calls made on the resources
// of a try-with-resources statement.
func closeFragment(s *stmt.TryStatement) stmt.Fragment {
	vars := s.ResourceVariables()
	f := stmt.Fragment{Uses: vars}
	names := make([]string, 0, len(vars))
	for i := range vars {
		v := vars[i]
		f.Calls = append(f.Calls, stmt.Call{Name: "close", Receiver: &v})
		names = append(names, v.Path)
	}
	f.Text = "close(" + strings.Join(names, ", ") + ")"
	return f
}

// raiseFrom dispatches the exceptions a node may raise, starting at the
// innermost frame.
func (b *builder) raiseFrom(n int) {
	node := b.cfg.Nodes[n]
	b.raise(n, node.Raises, node.Unchecked, len(b.frames)-1)
}

// raise adds exception edges from node n for the given exception types,
// scanning frames outward from start.  Each type goes to the first catch
// clause that certainly handles it, and to every earlier clause that might
// handle it.  If the node may raise unchecked exceptions, every catch clause
// that can handle an unchecked exception also receives an edge, until a
// clause certainly handles both RuntimeException and Error.  Whatever
// remains unhandled passes through any finally clause (or resource close)
// and on to the enclosing try statement, and finally to ExceptionalExit.
func (b *builder) raise(n int, types []string, unchecked bool, start int) {
	remaining := types
	for i := start; i >= 0; i-- {
		if len(remaining) == 0 && !unchecked {
			return
		}
		f := b.frames[i]
		switch f.kind {
		case resourceFrame:
			b.addEdge(n, f.try.ExceptionalClose, Exception)
			f.addRaises(remaining, unchecked)
			return
		case tryFrame:
			if f.inFinally {
				continue
			}
			if !f.inHandlers {
				remaining, unchecked = b.dispatch(n, f.try, remaining, unchecked)
			}
			if f.try.Finally >= 0 && (len(remaining) > 0 || unchecked) {
				b.addEdge(n, f.try.Finally, Exception)
				f.addRaises(remaining, unchecked)
				return
			}
		}
	}
	if len(remaining) > 0 {
		b.addEdge(n, ExceptionalExit, Exception)
	}
}

// dispatch adds edges from node n to the catch clauses of a try statement
// and returns the types that no clause certainly handles, and whether some
// unchecked exception may still escape the try.
func (b *builder) dispatch(n int, t *TryNode, types []string, unchecked bool) ([]string, bool) {
	h := b.types
	var remaining []string
	for _, raised := range types {
		handled := false
	scan:
		for i, c := range t.Statement.Catches {
			for _, caught := range c.Types {
				if h.Catches(caught, raised) {
					b.addEdge(n, t.Catches[i], Exception)
					handled = true
					break scan
				}
				if h.Compatible(raised, caught) {
					b.addEdge(n, t.Catches[i], Exception)
					break
				}
			}
		}
		if !handled {
			remaining = append(remaining, raised)
		}
	}
	if !unchecked {
		return remaining, false
	}
	// Unchecked roots not yet certainly handled
	roots := []string{stmt.RuntimeException, stmt.Error}
	for i, c := range t.Statement.Catches {
		if len(roots) == 0 {
			break
		}
		reached := false
		for _, caught := range c.Types {
			if !h.CatchesUnchecked(caught) {
				continue
			}
			for _, r := range roots {
				if h.Compatible(r, caught) {
					reached = true
				}
			}
			roots = uncaught(h, roots, caught)
		}
		if reached {
			b.addEdge(n, t.Catches[i], Exception)
		}
	}
	return remaining, len(roots) > 0
}

// uncaught returns the roots that a catch clause for type caught does not
// certainly handle.
func uncaught(h *stmt.Hierarchy, roots []string, caught string) []string {
	var result []string
	for _, r := range roots {
		if !h.Catches(caught, r) {
			result = append(result, r)
		}
	}
	return result
}

// union returns the elements of a followed by the elements of b not in a.
func union(a, b []string) []string {
	result := append([]string(nil), a...)
	for _, s := range b {
		found := false
		for _, t := range result {
			if s == t {
				found = true
				break
			}
		}
		if !found {
			result = append(result, s)
		}
	}
	return result
}
