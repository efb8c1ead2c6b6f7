// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This file defines the Extract Method refactoring, which finds the slices
// of a method body that can be moved into a new method of their own.  It
// does not rewrite any source code; it reports each opportunity (the
// statements to extract, the parameters, and the value returned) so that
// another tool or the user can perform the extraction.

package refactoring

import (
	"fmt"
	"sort"

	"github.com/godoctor/slicedoctor/analysis/slicing"
)

// ExtractMethod finds Extract Method opportunities in a single method.
type ExtractMethod struct {
	RefactoringBase
}

func (r *ExtractMethod) Description() *Description {
	return &Description{
		Name:     "Extract Method",
		Synopsis: "Find slices of a method that can be extracted into a new method",
		Usage:    "",
		Params:   nil,
		Hidden:   false,
	}
}

func (r *ExtractMethod) Run(config *Config) *Result {
	r.RefactoringBase.Run(config)
	if r.Log.ContainsErrors() {
		return &r.Result
	}
	if !ValidateArgs(config, r.Description(), r.Log) {
		return &r.Result
	}

	slicer := slicing.New(r.PDG, slicing.Options{
		MinStatements:  config.Analysis.MinStatements,
		ForwardClosure: config.Analysis.ForwardClosure,
	})

	criteria := r.selectCriteria(slicer.Criteria(), config)
	if len(criteria) == 0 {
		if config.Line > 0 || config.Var != "" {
			r.Log.Error(fmt.Errorf("%w: %s", ErrBadCriterion, selection(config)))
			r.Log.Associate(r.Method.File)
		}
		return &r.Result
	}

	slices := r.computeSlices(slicer, criteria)
	for _, s := range slices {
		if s.Valid {
			r.Opportunities = append(r.Opportunities, s)
		} else {
			r.Rejected = append(r.Rejected, s)
		}
	}
	sortSlices(r.Opportunities)
	sortSlices(r.Rejected)

	r.Logger.Debug("sliced method", "method", r.Method.Key(), "criteria", len(criteria),
		"opportunities", len(r.Opportunities), "rejected", len(r.Rejected))
	if config.Line > 0 || config.Var != "" {
		for _, s := range r.Rejected {
			r.LogAt(Info, s.Statements[0], "Slice on %s cannot be extracted: %s", r.describe(s), reason(s))
		}
	}
	return &r.Result
}

// selectCriteria keeps the criteria matching the line and variable given in
// the configuration, if any.
func (r *ExtractMethod) selectCriteria(all []slicing.Criterion, config *Config) []slicing.Criterion {
	var result []slicing.Criterion
	for _, c := range all {
		if config.Var != "" && c.Var.Path != config.Var {
			continue
		}
		if config.Line > 0 && r.Line(r.CFG.Nodes[c.Node].Extent.Offset) != config.Line {
			continue
		}
		result = append(result, c)
	}
	return result
}

// computeSlices computes a slice for every criterion and every boundary
// enclosing it.  Slices with identical node sets are reported once,
// preferring an extractable one.
func (r *ExtractMethod) computeSlices(slicer *slicing.Slicer, criteria []slicing.Criterion) []*slicing.Slice {
	var result []*slicing.Slice
	byKey := map[string]int{}
	for _, c := range criteria {
		for _, b := range slicer.Boundaries(c.Node) {
			s, err := slicer.Compute(c, b)
			if err != nil {
				r.Log.Warn(err)
				continue
			}
			if i, ok := byKey[s.Key()]; ok {
				if !result[i].Valid && s.Valid {
					result[i] = s
				}
				continue
			}
			byKey[s.Key()] = len(result)
			result = append(result, s)
		}
	}
	return result
}

// sortSlices orders slices by the position of their regions, then by size.
func sortSlices(slices []*slicing.Slice) {
	sort.SliceStable(slices, func(i, j int) bool {
		a, b := slices[i], slices[j]
		if a.Extent.Offset != b.Extent.Offset {
			return a.Extent.Offset < b.Extent.Offset
		}
		if a.Extent.Length != b.Extent.Length {
			return a.Extent.Length < b.Extent.Length
		}
		return a.Key() < b.Key()
	})
}

func reason(s *slicing.Slice) string {
	if s.Detail != "" {
		return fmt.Sprintf("%s (%s)", s.Rejection, s.Detail)
	}
	return s.Rejection.String()
}

func selection(config *Config) string {
	switch {
	case config.Var != "" && config.Line > 0:
		return fmt.Sprintf("%s is not assigned on line %d", config.Var, config.Line)
	case config.Var != "":
		return fmt.Sprintf("%s is not assigned in %s", config.Var, config.Method)
	default:
		return fmt.Sprintf("no local variable is assigned on line %d", config.Line)
	}
}
