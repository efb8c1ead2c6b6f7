// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This file defines a "debug" refactoring, which is not really a refactoring
// at all.  It is invoked to print information about the analyses slicedoctor
// performs on a method.  For example, it can output a GraphViz DOT file with
// the method's control flow graph or program dependence graph, or list every
// slice computed for the method and why each was rejected.

package refactoring

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/godoctor/slicedoctor/analysis/cfg"
	"github.com/godoctor/slicedoctor/analysis/stmt"
)

const usage = `Usage: debug <command>
where <command> is one of the following:

    showcfg           Output the control flow graph (CFG) in GraphViz DOT format
    showdefuse        Output the CFG with def-use information in GraphViz DOT format
    showlive          Output the CFG with liveness information in GraphViz DOT format
    showpdg           Output the program dependence graph in GraphViz DOT format
    showslices        List every slice computed for the method, valid or not
    showmethods       List the files and methods loaded

Use GraphViz's "dot" tool to view DOT files.  For example:
    $ slicedoctor debug --file Point.java --line 12 showpdg > output.dot
    $ dot -Tpng output.dot > output.png`

// Debug produces diagnostic output about a method.
type Debug struct {
	RefactoringBase
}

func (r *Debug) Description() *Description {
	return &Description{
		Name:     "Debug Refactoring",
		Synopsis: "Provides assorted debugging outputs",
		Usage:    "<command>",
		Params: []Parameter{{
			Label:        "Command",
			Prompt:       "Command",
			DefaultValue: "",
		}},
		Hidden: true,
	}
}

func (r *Debug) Run(config *Config) *Result {
	if len(config.Args) == 0 {
		r.Log = NewLog()
		r.Log.Error(usage)
		return &r.Result
	}
	if s, ok := config.Args[0].(string); ok && strings.EqualFold(strings.TrimSpace(s), "showmethods") {
		r.Log = NewLog()
		r.DebugOutput.Reset()
		r.Program = config.Program
		r.showMethods(&r.DebugOutput)
		return &r.Result
	}

	r.RefactoringBase.Run(config)
	if r.Log.ContainsErrors() {
		return &r.Result
	}
	if !ValidateArgs(config, r.Description(), r.Log) {
		return &r.Result
	}
	command := strings.ToLower(strings.TrimSpace(config.Args[0].(string)))

	switch command {
	case "showcfg":
		r.showCFG(&r.DebugOutput)
	case "showdefuse":
		r.showDefUse(&r.DebugOutput)
	case "showlive":
		r.showLiveVars(&r.DebugOutput)
	case "showpdg":
		r.showPDG(&r.DebugOutput)
	case "showslices":
		r.showSlices(&r.DebugOutput, config)
	default:
		r.Log.Errorf("Unknown option %s", command)
	}
	return &r.Result
}

func (r *Debug) showCFG(out io.Writer) {
	fmt.Fprintf(out, "// Control flow graph for %s\n", r.Method)
	r.CFG.PrintDot(out, nil)
}

func (r *Debug) showDefUse(out io.Writer) {
	fmt.Fprintf(out, "// Def-use information for %s\n", r.Method)
	r.CFG.PrintDot(out, describeVariables)
}

func describeVariables(n *cfg.Node) string {
	var buf bytes.Buffer
	if len(n.Defs) > 0 {
		fmt.Fprintf(&buf, "Assigns: %s\n", listNames(n.Defs))
	}
	if len(n.Decls) > 0 {
		fmt.Fprintf(&buf, "Declares: %s\n", listNames(n.Decls))
	}
	if len(n.Uses) > 0 {
		fmt.Fprintf(&buf, "Uses: %s\n", listNames(n.Uses))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func listNames(vars []stmt.Variable) string {
	names := []string{}
	for _, v := range vars {
		names = append(names, v.Path)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (r *Debug) showLiveVars(out io.Writer) {
	fmt.Fprintf(out, "// Live variables in %s\n", r.Method)
	live := r.PDG.Live
	r.CFG.PrintDot(out, func(n *cfg.Node) string {
		ins, outs := live.In(n.ID), live.Out(n.ID)
		if len(ins) == 0 && len(outs) == 0 {
			return ""
		}
		return fmt.Sprintf("In: %s\nOut: %s", listNames(ins), listNames(outs))
	})
}

func (r *Debug) showPDG(out io.Writer) {
	fmt.Fprintf(out, "// Program dependence graph for %s\n", r.Method)
	r.PDG.PrintDot(out)
}

func (r *Debug) showSlices(out io.Writer, config *Config) {
	extract := *config
	extract.Args = nil
	var em ExtractMethod
	result := em.Run(&extract)
	r.Log.Append(result.Log)
	fmt.Fprintf(out, "Slices in %s\n", r.Method)
	for _, s := range result.Opportunities {
		fmt.Fprintf(out, "  valid    %-10s lines %s  in: %s\n", s.Criterion.Var, r.lines(s.Statements),
			listNames(s.Inputs))
	}
	for _, s := range result.Rejected {
		fmt.Fprintf(out, "  rejected %-10s lines %s  %s\n", s.Criterion.Var, r.lines(s.Statements), reason(s))
	}
}

// lines describes the range of lines spanned by the given statements.
func (r *Debug) lines(stmts []stmt.Statement) string {
	first := stmts[0].Extent()
	last := stmts[len(stmts)-1].Extent()
	from, to := r.Line(first.Offset), r.Line(last.OffsetPastEnd()-1)
	if from == 0 {
		return fmt.Sprintf("@%d-%d", first.Offset, last.OffsetPastEnd())
	}
	if from == to {
		return fmt.Sprintf("%d", from)
	}
	return fmt.Sprintf("%d-%d", from, to)
}

func (r *Debug) showMethods(out io.Writer) {
	if r.Program == nil {
		r.Log.Error("No program loaded")
		return
	}
	fmt.Fprintln(out, "Files/methods loaded:")
	for _, f := range r.Program.Files {
		fmt.Fprintf(out, "\t%s\n", displayablePath(f.Name))
		for _, m := range f.Methods {
			fmt.Fprintf(out, "\t\t%s (line %d)\n", m, m.Line)
		}
	}
}
