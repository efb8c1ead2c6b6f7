// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stmt

import "github.com/godoctor/slicedoctor/text"

// A TryStatement is a try/catch/finally statement, possibly with resources.
//
// HandledExceptions and HasResources are computed by NewTryStatement and
// must not be modified afterward.
type TryStatement struct {
	Ext       text.Extent
	Resources []*SimpleStatement
	Body      *BlockStatement
	Catches   []*CatchClause
	// Finally is nil if there is no finally clause.
	Finally *BlockStatement

	// Union of the exception types named in all catch clauses, in order
	// of first appearance
	HandledExceptions []string
	// True iff this is a try-with-resources statement
	HasResources bool
}

// A CatchClause handles one or more exception types.  Param declares the
// exception variable.
type CatchClause struct {
	Ext   text.Extent
	Param Fragment
	Types []string
	Body  *BlockStatement
}

// NewTryStatement constructs a TryStatement and computes its derived
// attributes.  Every type listed in a multi-catch clause is registered as a
// handled exception.
func NewTryStatement(ext text.Extent, resources []*SimpleStatement, body *BlockStatement, catches []*CatchClause, finally *BlockStatement) *TryStatement {
	if body == nil {
		body = &BlockStatement{Ext: text.Extent{Offset: ext.Offset}}
	}
	s := &TryStatement{
		Ext:          ext,
		Resources:    resources,
		Body:         body,
		Catches:      catches,
		Finally:      finally,
		HasResources: len(resources) > 0,
	}
	seen := map[string]bool{}
	for _, c := range catches {
		for _, t := range c.Types {
			if !seen[t] {
				seen[t] = true
				s.HandledExceptions = append(s.HandledExceptions, t)
			}
		}
	}
	return s
}

// HasCatchClause returns true iff the statement has at least one catch
// clause.
func (s *TryStatement) HasCatchClause() bool {
	return len(s.Catches) > 0
}

// HasFinallyClauseClosingVariable returns true iff some statement in the
// finally block (at any depth) invokes a closing operation on v.
func (s *TryStatement) HasFinallyClauseClosingVariable(v Variable) bool {
	if s.Finally == nil {
		return false
	}
	found := false
	Walk(s.Finally, func(st Statement) bool {
		if found {
			return false
		}
		for _, f := range fragments(st) {
			for i := range f.Calls {
				if f.Calls[i].Closes(v) {
					found = true
					return false
				}
			}
		}
		return true
	})
	return found
}

// ResourceVariables returns the variables declared in the resource
// specification of a try-with-resources statement.  Java 9 style resources
// that name an existing variable contribute that variable.
func (s *TryStatement) ResourceVariables() []Variable {
	var result []Variable
	for _, r := range s.Resources {
		if len(r.Decls) > 0 {
			result = append(result, r.Decls...)
		} else {
			result = append(result, r.Fragment.Uses...)
		}
	}
	return result
}

// fragments returns the fragments that belong directly to a statement.
func fragments(s Statement) []*Fragment {
	switch s := s.(type) {
	case *SimpleStatement:
		return []*Fragment{&s.Fragment}
	case *IfStatement:
		return []*Fragment{&s.Cond}
	case *LoopStatement:
		return []*Fragment{&s.Cond}
	case *SwitchStatement:
		result := []*Fragment{&s.Selector}
		for _, c := range s.Cases {
			result = append(result, &c.Labels)
		}
		return result
	case *SynchronizedStatement:
		return []*Fragment{&s.Lock}
	case *TryStatement:
		var result []*Fragment
		for _, c := range s.Catches {
			result = append(result, &c.Param)
		}
		return result
	default:
		return nil
	}
}
