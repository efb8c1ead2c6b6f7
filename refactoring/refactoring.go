// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This file defines the Refactoring interface, the RefactoringBase struct, and
// several methods common to refactorings based on RefactoringBase, including
// a base implementation of the Run method.

// Package refactoring contains the analyses slicedoctor exposes to end
// users (finding Extract Method opportunities, and debugging output), as
// well as types (such as refactoring.Log) used to interface with them.
package refactoring

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/loader"
	"github.com/godoctor/slicedoctor/analysis/pdg"
	"github.com/godoctor/slicedoctor/analysis/slicing"
	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/config"
)

// ErrNoMethod is logged when a refactoring is run without a method to
// analyze, or on a method with no body.
var ErrNoMethod = errors.New("no method selected")

// ErrBadCriterion is logged when the variable or line selected for
// slicing does not identify a valid slicing criterion.
var ErrBadCriterion = slicing.ErrBadCriterion

// Description of a parameter for a refactoring.
//
// Some refactorings require additional input from the user besides a
// method.  For example, the Debug refactoring must be told which output to
// produce.  These inputs are parameters to the refactoring.
type Parameter struct {
	// A brief label suitable for display next to an input field, e.g.,
	// "Command:"
	Label string
	// A longer (typically one sentence) description of the input
	// requested, suitable for display in a tooltip/hover tip.
	Prompt string
	// The default value for this parameter.  The type of the parameter
	// (string or boolean) can be determined from the type of its default
	// value.
	DefaultValue interface{}
}

// IsBoolean returns true iff this Parameter must be either true or false.
func (p *Parameter) IsBoolean() bool {
	switch p.DefaultValue.(type) {
	case bool:
		return true
	default:
		return false
	}
}

// Description provides information about a refactoring suitable for display in
// a user interface.
type Description struct {
	// A human-readable name for this refactoring, properly capitalized
	// (e.g., "Extract Method") as it would appear in a user interface.
	// Every refactoring should have a unique name.
	Name string
	// A brief, one-line description of the refactoring
	Synopsis string
	// Usage of the refactoring's arguments on the command line
	Usage string
	// Additional input required for this refactoring.  See Parameter.
	Params []Parameter
	// True if the refactoring is not intended for end users
	Hidden bool
}

// A Config provides the initial configuration for a refactoring: the
// program and method on which it will operate, an optional slicing
// criterion, analysis settings, and any refactoring-specific arguments.
//
// At a minimum, the Method must be set.
type Config struct {
	// The loaded program containing Method.  May be nil, in which case
	// positions are reported as byte offsets only.
	Program *loader.Program
	// The method to analyze
	Method *stmt.Method
	// If nonzero, only statements on this (1-based) line are used as
	// slicing criteria.
	Line int
	// If nonempty, only this variable is used as a slicing criterion.
	Var string
	// Slicing settings
	Analysis config.AnalysisConfig
	// Refactoring-specific arguments.  To determine what arguments are
	// required for each refactoring, see Refactoring.Description().Params.
	Args []interface{}
	// Receives structured diagnostics; nil discards them
	Logger *slog.Logger
}

// The Refactoring interface identifies methods common to all refactorings.
//
// The protocol for invoking a refactoring is:
//
//  1. If necessary, invoke the Description() method to obtain the name of
//     the refactoring and a list of arguments that must be provided to it.
//  2. Create a Config naming the method to analyze.
//  3. Invoke Run, which returns a Result.
//  4. If Result.Log is not empty, display the log to the user.
//  5. Present Result.Opportunities (and, optionally, Result.Rejected).
type Refactoring interface {
	Description() *Description
	Run(*Config) *Result
}

// A Result is produced by running a refactoring on one method.
type Result struct {
	// A list of informational messages, errors, and warnings to display to
	// the user.  If Log.ContainsErrors() is true, the slices may be empty
	// or incomplete.
	Log *Log
	// Slices that can be extracted into a new method, in source order
	Opportunities []*slicing.Slice
	// Slices that were computed but cannot be extracted
	Rejected []*slicing.Slice
	// Output produced by the Debug refactoring
	DebugOutput bytes.Buffer
}

// RefactoringBase holds the state common to all refactorings: the method
// being analyzed and the graphs built for it.
type RefactoringBase struct {
	Program *loader.Program
	Method  *stmt.Method
	CFG     *cfg.CFG
	PDG     *pdg.PDG
	Logger  *slog.Logger
	Result
}

// Run is the base implementation of a Run method.  Most refactorings should
// invoke this method before performing refactoring-specific work.  It
// clears the log, checks the configuration, and builds the control flow
// and dependence graphs for the method.
func (r *RefactoringBase) Run(config *Config) *Result {
	r.Log = NewLog()
	r.Opportunities = nil
	r.Rejected = nil
	r.DebugOutput.Reset()

	r.Logger = config.Logger
	if r.Logger == nil {
		r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if config.Method == nil || config.Method.Body == nil {
		r.Log.Error(ErrNoMethod)
		return &r.Result
	}
	r.Program = config.Program
	r.Method = config.Method
	r.CFG = cfg.New(r.Method)
	r.PDG = pdg.New(r.CFG)
	r.Logger.Debug("built dependence graph", "method", r.Method.Key(), "nodes", r.CFG.Len(),
		"edges", len(r.CFG.Edges))
	return &r.Result
}

// LogAt appends an entry associated with the given extent of the method's
// file.
func (r *RefactoringBase) LogAt(severity Severity, st stmt.Statement, format string, v ...interface{}) {
	r.Log.log(severity, format, v...)
	r.Log.AssociateExtent(r.Method.File, st.Extent())
}

// Line returns the 1-based line on which the given offset of the method's
// file lies, or 0 if the program is unknown.
func (r *RefactoringBase) Line(offset int) int {
	if r.Program == nil {
		return 0
	}
	return r.Program.Position(r.Method, offset).Line
}

// ValidateArgs determines whether the arguments supplied in the given
// Config match the parameters required by the given Description.  If they
// mismatch in count or type, ValidateArgs logs an error and returns false.
func ValidateArgs(config *Config, desc *Description, log *Log) bool {
	numArgsExpected := len(desc.Params)
	numArgsSupplied := len(config.Args)
	if numArgsSupplied != numArgsExpected {
		log.Errorf("This refactoring requires %d arguments, but %d were supplied.", numArgsExpected, numArgsSupplied)
		return false
	}

	for i, param := range desc.Params {
		if param.IsBoolean() {
			if _, ok := config.Args[i].(bool); !ok {
				log.Errorf("Argument %d (%s) must be true or false", i+1, strings.TrimSuffix(param.Label, ":"))
				return false
			}
		} else if _, ok := config.Args[i].(string); !ok {
			log.Errorf("Argument %d (%s) must be a string", i+1, strings.TrimSuffix(param.Label, ":"))
			return false
		}
	}
	return true
}

// describe returns a short description of a slice's criterion suitable for
// log messages, e.g., "x at line 12".
func (r *RefactoringBase) describe(s *slicing.Slice) string {
	n := r.CFG.Nodes[s.Criterion.Node]
	if line := r.Line(n.Extent.Offset); line > 0 {
		return fmt.Sprintf("%s at line %d", s.Criterion.Var, line)
	}
	return fmt.Sprintf("%s at %q", s.Criterion.Var, n.Text)
}
