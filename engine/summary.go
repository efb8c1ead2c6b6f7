// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"strconv"

	"github.com/godoctor/slicedoctor/analysis/loader"
	"github.com/godoctor/slicedoctor/analysis/slicing"
)

// A SliceSummary describes a slice in terms of source lines and variable
// names, for reporting.
type SliceSummary struct {
	File        string   `json:"file"`
	Method      string   `json:"method"`
	StartLine   int      `json:"start_line"`
	EndLine     int      `json:"end_line"`
	Variable    string   `json:"variable"`
	Statements  int      `json:"statements"`
	Parameters  []string `json:"parameters"`
	Returns     string   `json:"returns,omitempty"`
	Extractable bool     `json:"extractable"`
	Reason      string   `json:"reason,omitempty"`
}

// Summarize describes a slice of a method of prog.
func Summarize(prog *loader.Program, s *slicing.Slice) SliceSummary {
	d := SliceSummary{
		File:        s.Method.File,
		Method:      s.Method.String(),
		StartLine:   prog.Position(s.Method, s.Extent.Offset).Line,
		EndLine:     prog.Position(s.Method, s.Extent.OffsetPastEnd()-1).Line,
		Variable:    s.Criterion.Var.Path,
		Statements:  len(s.Statements),
		Parameters:  make([]string, 0, len(s.Inputs)),
		Extractable: s.Valid,
	}
	for _, v := range s.Inputs {
		d.Parameters = append(d.Parameters, v.Path)
	}
	if s.Output != nil {
		d.Returns = s.Output.Path
	}
	if !s.Valid {
		d.Reason = s.Rejection.String()
		if s.Detail != "" {
			d.Reason += " (" + s.Detail + ")"
		}
	}
	return d
}

// Lines returns the line range of the slice, e.g., "12-15".
func (d SliceSummary) Lines() string {
	if d.StartLine == d.EndLine {
		return strconv.Itoa(d.StartLine)
	}
	return fmt.Sprintf("%d-%d", d.StartLine, d.EndLine)
}
