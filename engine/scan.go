// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/godoctor/slicedoctor/analysis/grouping"
	"github.com/godoctor/slicedoctor/analysis/loader"
	"github.com/godoctor/slicedoctor/analysis/slicing"
	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/config"
	"github.com/godoctor/slicedoctor/refactoring"
)

// ErrPanic is wrapped by the error of a MethodError recorded when the
// analysis of a method panicked.
var ErrPanic = errors.New("analysis panicked")

// A MethodError records the failure of the analysis of a single method.
// Other methods are analyzed normally.
type MethodError struct {
	Method string
	File   string
	Err    error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Method, e.File, e.Err)
}

func (e *MethodError) Unwrap() error {
	return e.Err
}

// ScanOptions control a project scan.
type ScanOptions struct {
	Analysis config.AnalysisConfig
	// Maximum number of methods analyzed concurrently; 0 means one per CPU
	Workers int
	// Receives structured diagnostics; nil discards them
	Logger *slog.Logger
	// Called after each method is analyzed; may be nil.  It is called from
	// multiple goroutines.
	Progress func()
	// Reads a file for revalidation; nil means os.ReadFile
	ReadFile func(name string) ([]byte, error)
}

// A ScanResult is the outcome of a project scan.
type ScanResult struct {
	// Number of methods analyzed
	Methods int `json:"methods"`
	// Extractable slices, ordered by file, then position
	Opportunities []*slicing.Slice `json:"-"`
	// Groups of structurally identical opportunities from distinct methods
	Groups []*grouping.SliceGroup `json:"-"`
	// Methods whose analysis failed
	Failures []*MethodError `json:"-"`
	// Number of opportunities dropped because their source changed
	Stale int `json:"stale"`
	Log   *refactoring.Log `json:"log"`
}

// A ScanContext owns the results of one scan while it is in progress.
// Each method's analysis writes only to its own slot, so no locking is
// needed; results are merged in method order once all analyses finish.
type ScanContext struct {
	prog    *loader.Program
	opts    ScanOptions
	logger  *slog.Logger
	results []methodResult
}

type methodResult struct {
	done          bool
	opportunities []*slicing.Slice
	log           *refactoring.Log
	err           *MethodError
}

// NewScanContext prepares a scan of every method of the given program.
func NewScanContext(prog *loader.Program, opts ScanOptions) *ScanContext {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	return &ScanContext{
		prog:    prog,
		opts:    opts,
		logger:  logger,
		results: make([]methodResult, len(prog.Methods)),
	}
}

// Scan runs the Extract Method analysis on every method of prog in
// parallel, revalidates the opportunities found against the current
// contents of their files (if enabled), and groups duplicates.  Failures
// of individual methods are recorded in the result.  If ctx is canceled,
// Scan stops starting new methods and returns ctx.Err().
func Scan(ctx context.Context, prog *loader.Program, opts ScanOptions) (*ScanResult, error) {
	return NewScanContext(prog, opts).Run(ctx)
}

// Run performs the scan.
func (sc *ScanContext) Run(ctx context.Context) (*ScanResult, error) {
	workers := sc.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sc.logger.Info("scanning", "methods", len(sc.prog.Methods), "workers", workers)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(workers)
	for i, m := range sc.prog.Methods {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sc.analyze(i, m)
			if sc.opts.Progress != nil {
				sc.opts.Progress()
			}
			return nil
		})
	}
	err := p.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}

	result := sc.collect()
	if sc.opts.Analysis.Revalidate {
		sc.revalidate(result)
	}
	result.Groups = grouping.Duplicates(result.Opportunities, grouping.WithConfig(sc.opts.Analysis))
	sc.logger.Info("scan complete", "methods", result.Methods, "opportunities", len(result.Opportunities),
		"groups", len(result.Groups), "failures", len(result.Failures), "stale", result.Stale)
	return result, nil
}

// analyze runs the Extract Method refactoring on one method, recording a
// MethodError if it panics.
func (sc *ScanContext) analyze(i int, m *stmt.Method) {
	r := &sc.results[i]
	var pc panics.Catcher
	pc.Try(func() {
		em := new(refactoring.ExtractMethod)
		res := em.Run(&refactoring.Config{
			Program:  sc.prog,
			Method:   m,
			Analysis: sc.opts.Analysis,
			Logger:   sc.logger,
		})
		r.opportunities = res.Opportunities
		r.log = res.Log
	})
	if rec := pc.Recovered(); rec != nil {
		sc.logger.Warn("method analysis failed", "method", m.Key(), "panic", rec.Value)
		r.opportunities, r.log = nil, nil
		r.err = &MethodError{
			Method: m.String(),
			File:   m.File,
			Err:    fmt.Errorf("%w: %v", ErrPanic, rec.Value),
		}
	}
	r.done = true
}

// collect merges the per-method results in program order.
func (sc *ScanContext) collect() *ScanResult {
	result := &ScanResult{Log: refactoring.NewLog()}
	for _, d := range sc.prog.Diagnostics {
		result.Log.Warnf("%s", d.Message)
		result.Log.AssociateLine(d.File, d.Line)
	}
	result.Log.MarkInitial()

	for i := range sc.results {
		r := &sc.results[i]
		if !r.done {
			continue
		}
		result.Methods++
		if r.err != nil {
			result.Failures = append(result.Failures, r.err)
			result.Log.Errorf("%v", r.err)
			result.Log.Associate(r.err.File)
			continue
		}
		result.Log.Append(r.log)
		result.Opportunities = append(result.Opportunities, r.opportunities...)
	}
	sort.SliceStable(result.Opportunities, func(i, j int) bool {
		a, b := result.Opportunities[i], result.Opportunities[j]
		if a.Method.File != b.Method.File {
			return a.Method.File < b.Method.File
		}
		return a.Extent.Offset < b.Extent.Offset
	})
	return result
}

// revalidate re-parses every file containing an opportunity and drops the
// opportunities whose statements no longer match the file.
func (sc *ScanContext) revalidate(result *ScanResult) {
	fresh := map[string]*loader.Program{}
	kept := result.Opportunities[:0]
	for _, s := range result.Opportunities {
		name := s.Method.File
		prog, ok := fresh[name]
		if !ok {
			prog = sc.reload(name)
			fresh[name] = prog
		}
		var current *stmt.Method
		if prog != nil {
			current = prog.Method(s.Method.Key())
		}
		if current == nil || !s.AreSliceStatementsValid(current) {
			result.Stale++
			result.Log.Warnf("Discarding slice on %s in %s: the source has changed", s.Criterion.Var, s.Method)
			result.Log.AssociateExtent(name, s.Extent)
			continue
		}
		kept = append(kept, s)
	}
	result.Opportunities = kept
}

func (sc *ScanContext) reload(name string) *loader.Program {
	src, err := sc.opts.ReadFile(name)
	if err != nil {
		sc.logger.Warn("cannot reread file", "file", name, "error", err)
		return nil
	}
	prog, err := loader.LoadSource(name, src)
	if err != nil {
		sc.logger.Warn("cannot reparse file", "file", name, "error", err)
		return nil
	}
	return prog
}
