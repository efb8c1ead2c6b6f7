// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stmt defines the statement model consumed by the control flow,
// dependence, and slicing analyses: a closed set of statement variants, the
// variables each one defines and uses, and the method declarations that
// contain them.
//
// A statement tree is built once by a front end (see package loader) and is
// never modified afterward, so it may be shared freely among goroutines.
package stmt

import (
	"fmt"
	"strings"

	"github.com/godoctor/slicedoctor/text"
)

// A Statement is one of *SimpleStatement, *BlockStatement, *IfStatement,
// *LoopStatement, *SwitchStatement, *TryStatement, *SynchronizedStatement,
// or *LabeledStatement.  No other implementations exist.
type Statement interface {
	// Kind returns a short, stable name for the statement kind, e.g.,
	// "if" or "declaration".
	Kind() string
	// Extent returns the region of the source file the statement occupies.
	Extent() text.Extent
	// Defs returns the variables assigned by the statement itself (for a
	// composite statement, by its header only).
	Defs() []Variable
	// Uses returns the variables read by the statement itself (for a
	// composite statement, by its header only).
	Uses() []Variable
	// Children returns the nested statements in source order.
	Children() []Statement

	isStatement()
}

// A Fragment is the flat, non-nested part of a statement: a simple statement
// in its entirety, or the header (condition, selector, lock expression, ...)
// of a composite statement.
type Fragment struct {
	Text   string
	Extent text.Extent
	Line   int
	// Variables assigned, read, and declared in this fragment
	Defs, Uses, Decls []Variable
	// Method and constructor invocations, in evaluation order
	Calls []Call
	// Direct local-to-local assignments (dst = src), used for alias tracking
	Copies []Copy
}

// A Copy records an assignment of one variable directly to another.
type Copy struct {
	Dst, Src Variable
}

// Raises returns the exception types explicitly raised by calls in this
// fragment, and whether the fragment may raise unchecked exceptions (which
// is true of any fragment containing a call).
func (f *Fragment) Raises() (types []string, unchecked bool) {
	seen := map[string]bool{}
	for _, c := range f.Calls {
		for _, t := range c.Thrown {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	return types, len(f.Calls) > 0
}

// SimpleKind distinguishes the various kinds of simple statement.
type SimpleKind int

const (
	ExpressionStmt  SimpleKind = iota // expression statement
	DeclarationStmt                   // local variable declaration
	ReturnStmt                        // return, with or without a value
	ThrowStmt                         // throw
	BreakStmt                         // break, optionally labeled
	ContinueStmt                      // continue, optionally labeled
	YieldStmt                         // yield from a switch expression
	AssertStmt                        // assert
	EmptyStmt                         // ;
	OtherStmt                         // local class, explicit constructor call, etc.
)

var simpleKindNames = [...]string{
	ExpressionStmt:  "expression",
	DeclarationStmt: "declaration",
	ReturnStmt:      "return",
	ThrowStmt:       "throw",
	BreakStmt:       "break",
	ContinueStmt:    "continue",
	YieldStmt:       "yield",
	AssertStmt:      "assert",
	EmptyStmt:       "empty",
	OtherStmt:       "other",
}

func (k SimpleKind) String() string {
	if int(k) < len(simpleKindNames) {
		return simpleKindNames[k]
	}
	return fmt.Sprintf("SimpleKind(%d)", int(k))
}

// IsJump returns true iff statements of this kind never complete normally.
func (k SimpleKind) IsJump() bool {
	switch k {
	case ReturnStmt, ThrowStmt, BreakStmt, ContinueStmt, YieldStmt:
		return true
	default:
		return false
	}
}

// A SimpleStatement contains no nested statements.
type SimpleStatement struct {
	Fragment
	SimpleKind SimpleKind
	// Target label of a break or continue, if any
	Label string
	// Static type of the exception raised by a throw statement, or the
	// empty string if it could not be determined
	Thrown string
}

// A BlockStatement is a brace-delimited sequence of statements.
type BlockStatement struct {
	Ext   text.Extent
	Stmts []Statement
}

// An IfStatement has a condition, a then branch, and an optional else
// branch (Else is nil if absent).
type IfStatement struct {
	Ext  text.Extent
	Cond Fragment
	Then Statement
	Else Statement
}

// LoopKind distinguishes the various kinds of loop.
type LoopKind int

const (
	WhileLoop   LoopKind = iota // while (cond) body
	DoWhileLoop                 // do body while (cond)
	ForLoop                     // for (init; cond; update) body
	ForEachLoop                 // for (T x : xs) body
)

// A LoopStatement is a while, do-while, for, or enhanced for loop.  For an
// enhanced for loop, Cond is the loop header: it defines the element
// variable and uses the iterated expression.  A for loop with an empty
// condition never exits except by a jump.
type LoopStatement struct {
	Ext      text.Extent
	LoopKind LoopKind
	Init     []Statement
	Cond     Fragment
	Update   []Statement
	Body     Statement
}

// Infinite returns true iff the loop has no condition, as in for (;;).
func (s *LoopStatement) Infinite() bool {
	return s.LoopKind == ForLoop && strings.TrimSpace(s.Cond.Text) == ""
}

// A SwitchStatement evaluates a selector and transfers control to one of
// its cases.
type SwitchStatement struct {
	Ext      text.Extent
	Selector Fragment
	Cases    []*SwitchCase
}

// A SwitchCase is one case group (or arrow rule) of a switch statement.  If
// FallsThrough is true, control that reaches the end of Body continues into
// the next case.
type SwitchCase struct {
	Ext          text.Extent
	Labels       Fragment
	Default      bool
	Body         []Statement
	FallsThrough bool
}

// HasDefault returns true iff some case of the switch is the default case.
func (s *SwitchStatement) HasDefault() bool {
	for _, c := range s.Cases {
		if c.Default {
			return true
		}
	}
	return false
}

// A SynchronizedStatement holds a monitor for the duration of its body.
type SynchronizedStatement struct {
	Ext  text.Extent
	Lock Fragment
	Body *BlockStatement
}

// A LabeledStatement attaches a label to another statement.
type LabeledStatement struct {
	Ext   text.Extent
	Label string
	Body  Statement
}

func (*SimpleStatement) isStatement()       {}
func (*BlockStatement) isStatement()        {}
func (*IfStatement) isStatement()           {}
func (*LoopStatement) isStatement()         {}
func (*SwitchStatement) isStatement()       {}
func (*TryStatement) isStatement()          {}
func (*SynchronizedStatement) isStatement() {}
func (*LabeledStatement) isStatement()      {}

func (s *SimpleStatement) Kind() string       { return s.SimpleKind.String() }
func (s *BlockStatement) Kind() string        { return "block" }
func (s *IfStatement) Kind() string           { return "if" }
func (s *SwitchStatement) Kind() string       { return "switch" }
func (s *TryStatement) Kind() string          { return "try" }
func (s *SynchronizedStatement) Kind() string { return "synchronized" }
func (s *LabeledStatement) Kind() string      { return "labeled" }

func (s *LoopStatement) Kind() string {
	switch s.LoopKind {
	case DoWhileLoop:
		return "do"
	case ForLoop:
		return "for"
	case ForEachLoop:
		return "foreach"
	default:
		return "while"
	}
}

func (s *SimpleStatement) Extent() text.Extent       { return s.Fragment.Extent }
func (s *BlockStatement) Extent() text.Extent        { return s.Ext }
func (s *IfStatement) Extent() text.Extent           { return s.Ext }
func (s *LoopStatement) Extent() text.Extent         { return s.Ext }
func (s *SwitchStatement) Extent() text.Extent       { return s.Ext }
func (s *TryStatement) Extent() text.Extent          { return s.Ext }
func (s *SynchronizedStatement) Extent() text.Extent { return s.Ext }
func (s *LabeledStatement) Extent() text.Extent      { return s.Ext }

func (s *SimpleStatement) Defs() []Variable       { return s.Fragment.Defs }
func (s *BlockStatement) Defs() []Variable        { return nil }
func (s *IfStatement) Defs() []Variable           { return s.Cond.Defs }
func (s *LoopStatement) Defs() []Variable         { return s.Cond.Defs }
func (s *SwitchStatement) Defs() []Variable       { return s.Selector.Defs }
func (s *TryStatement) Defs() []Variable          { return nil }
func (s *SynchronizedStatement) Defs() []Variable { return s.Lock.Defs }
func (s *LabeledStatement) Defs() []Variable      { return nil }

func (s *SimpleStatement) Uses() []Variable       { return s.Fragment.Uses }
func (s *BlockStatement) Uses() []Variable        { return nil }
func (s *IfStatement) Uses() []Variable           { return s.Cond.Uses }
func (s *LoopStatement) Uses() []Variable         { return s.Cond.Uses }
func (s *SwitchStatement) Uses() []Variable       { return s.Selector.Uses }
func (s *TryStatement) Uses() []Variable          { return nil }
func (s *SynchronizedStatement) Uses() []Variable { return s.Lock.Uses }
func (s *LabeledStatement) Uses() []Variable      { return nil }

func (s *SimpleStatement) Children() []Statement { return nil }
func (s *BlockStatement) Children() []Statement  { return s.Stmts }

func (s *IfStatement) Children() []Statement {
	if s.Else == nil {
		return []Statement{s.Then}
	}
	return []Statement{s.Then, s.Else}
}

// Children of a loop are listed in source order: initializers, updates,
// then the body.
func (s *LoopStatement) Children() []Statement {
	var result []Statement
	result = append(result, s.Init...)
	result = append(result, s.Update...)
	if s.Body != nil {
		result = append(result, s.Body)
	}
	return result
}

func (s *SwitchStatement) Children() []Statement {
	var result []Statement
	for _, c := range s.Cases {
		result = append(result, c.Body...)
	}
	return result
}

func (s *TryStatement) Children() []Statement {
	var result []Statement
	for _, r := range s.Resources {
		result = append(result, r)
	}
	result = append(result, s.Body)
	for _, c := range s.Catches {
		result = append(result, c.Body)
	}
	if s.Finally != nil {
		result = append(result, s.Finally)
	}
	return result
}

func (s *SynchronizedStatement) Children() []Statement {
	return []Statement{s.Body}
}

func (s *LabeledStatement) Children() []Statement {
	return []Statement{s.Body}
}

// Walk traverses a statement tree in depth-first order, calling visit for
// each statement.  If visit returns false, the children of that statement
// are not visited.
func Walk(s Statement, visit func(Statement) bool) {
	if s == nil || !visit(s) {
		return
	}
	for _, child := range s.Children() {
		Walk(child, visit)
	}
}
