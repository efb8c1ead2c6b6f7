// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stmt

import "strings"

// VarKind indicates how a variable was declared.
type VarKind int

const (
	Local     VarKind = iota // local variable (including catch and loop variables)
	Parameter                // method parameter
	Field                    // field, or any access path through a receiver
)

func (k VarKind) String() string {
	switch k {
	case Local:
		return "local"
	case Parameter:
		return "parameter"
	default:
		return "field"
	}
}

// ElementSuffix is appended to an array's access path to denote "some
// element of the array."  A store into a[i] is a definition of a.[].
const ElementSuffix = ".[]"

// A Variable identifies a local variable, a parameter, or an access path
// through a receiver (e.g., a.b.c, or this.count).  Two Variables are equal
// (==) iff they have the same access path and the same declaring scope.
//
// Scope identifies the declaration of the root of the access path: for
// locals and parameters it names the declaring method and the offset of the
// declaration; for fields of this it is the name of the enclosing class.
type Variable struct {
	Path  string
	Scope string
	Kind  VarKind
}

func (v Variable) String() string {
	return v.Path
}

// Root returns the first element of the access path.
func (v Variable) Root() string {
	if i := strings.IndexByte(v.Path, '.'); i >= 0 {
		return v.Path[:i]
	}
	return v.Path
}

// IsPath returns true iff the variable is an access path through a receiver
// rather than a simple name.
func (v Variable) IsPath() bool {
	return strings.IndexByte(v.Path, '.') >= 0
}

// IsLocal returns true iff the variable is a simple local variable or
// parameter, i.e., something whose value an extracted method would have to
// return to its caller.
func (v Variable) IsLocal() bool {
	return v.Kind != Field && !v.IsPath()
}

// RootVariable returns the variable denoted by the first element of the
// access path.  For this.x the result has path "this".  Access paths carry
// the kind of their root, so p.RootVariable() == p for a simple name.
func (v Variable) RootVariable() Variable {
	if !v.IsPath() {
		return v
	}
	kind := v.Kind
	if v.Root() == "this" {
		kind = Field
	}
	return Variable{Path: v.Root(), Scope: v.Scope, Kind: kind}
}

// HasPrefix returns true iff other's access path is a proper prefix of
// this variable's path (e.g., a.b is a prefix of a.b.c) and both are
// rooted in the same declaration.
func (v Variable) HasPrefix(other Variable) bool {
	return v.Scope == other.Scope &&
		len(v.Path) > len(other.Path) &&
		strings.HasPrefix(v.Path, other.Path) &&
		v.Path[len(other.Path)] == '.'
}

// MayAlias returns true iff the two variables may denote the same storage.
// Any path-prefix relationship is treated as a possible overlap: a
// definition of a.b may affect a use of a.b.c, and vice versa.
func (v Variable) MayAlias(other Variable) bool {
	return v == other || v.HasPrefix(other) || other.HasPrefix(v)
}

// Suffix returns the access path with its first element removed, or the
// empty string if the variable is a simple name.
func (v Variable) Suffix() string {
	if i := strings.IndexByte(v.Path, '.'); i >= 0 {
		return v.Path[i+1:]
	}
	return ""
}

// ContainsVar returns true iff vars contains v.
func ContainsVar(vars []Variable, v Variable) bool {
	for _, w := range vars {
		if w == v {
			return true
		}
	}
	return false
}

// A Call is a method or constructor invocation.
type Call struct {
	// Simple name of the invoked method; for constructors, "new " followed
	// by the simple type name
	Name string
	// Receiver, if the call is of the form v.m(...) for some variable v
	Receiver *Variable
	// Arguments that are plain variables or access paths
	Args []Variable
	// Checked exception types the callee declares
	Thrown []string
	// Whether the callee was found in the analyzed sources
	Resolved bool
}

// Closes returns true iff the call looks like a closing operation on v: its
// name starts with "close" (ignoring case), and v is its receiver or one of
// its arguments (as in closeQuietly(v)).
func (c *Call) Closes(v Variable) bool {
	if !strings.HasPrefix(strings.ToLower(c.Name), "close") {
		return false
	}
	if c.Receiver != nil && *c.Receiver == v {
		return true
	}
	return ContainsVar(c.Args, v)
}
