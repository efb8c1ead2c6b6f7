// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/godoctor/slicedoctor/analysis/grouping"
	"github.com/godoctor/slicedoctor/analysis/loader"
	"github.com/godoctor/slicedoctor/analysis/slicing"
	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/config"
	"github.com/godoctor/slicedoctor/engine"
	"github.com/godoctor/slicedoctor/refactoring"
)

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func paint(colored bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func warningf(w io.Writer, colored bool, format string, args ...interface{}) {
	paint(colored, color.FgYellow).Fprintf(w, format+"\n", args...)
}

// writeLog writes the entries of a refactoring log, one per line, colored
// by severity.
func writeLog(w io.Writer, log *refactoring.Log, colored bool) {
	if log == nil {
		return
	}
	for _, entry := range log.Entries {
		var c *color.Color
		switch entry.Severity {
		case refactoring.Error:
			c = paint(colored, color.FgRed)
		case refactoring.Warning:
			c = paint(colored, color.FgYellow)
		default:
			c = paint(colored)
		}
		c.Fprintln(w, entry.String())
	}
}

// A report is rendered as a sequence of titled tables in text or markdown
// format, or as its data in JSON format.
type report struct {
	Title  string
	Tables []*table
	Data   interface{}
}

type table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string
}

func render(w io.Writer, format string, colored bool, r *report) error {
	switch format {
	case config.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r.Data)
	case config.FormatMarkdown:
		return r.renderMarkdown(w)
	default:
		return r.renderText(w, colored)
	}
}

func (r *report) renderText(w io.Writer, colored bool) error {
	if r.Title != "" {
		paint(colored, color.Bold, color.FgCyan).Fprintln(w, r.Title)
		fmt.Fprintln(w, strings.Repeat("=", len(r.Title)))
		fmt.Fprintln(w)
	}
	for _, t := range r.Tables {
		if err := t.renderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) renderText(w io.Writer, colored bool) error {
	if t.Title != "" {
		paint(colored, color.Bold).Fprintln(w, t.Title)
		fmt.Fprintln(w, strings.Repeat("-", len(t.Title)))
	}
	if len(t.Rows) == 0 {
		fmt.Fprintln(w, "(none)")
		fmt.Fprintln(w)
		return nil
	}

	tbl := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Footer: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{
				Left:   tw.Off,
				Right:  tw.Off,
				Top:    tw.Off,
				Bottom: tw.Off,
			},
			Settings: tw.Settings{
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		}),
	)
	tbl.Header(t.Headers)
	for _, row := range t.Rows {
		tbl.Append(row)
	}
	if len(t.Footer) > 0 {
		footer := make([]any, len(t.Footer))
		for i, f := range t.Footer {
			footer[i] = f
		}
		tbl.Footer(footer...)
	}
	tbl.Render()
	fmt.Fprintln(w)
	return nil
}

func (r *report) renderMarkdown(w io.Writer) error {
	if r.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", r.Title)
	}
	for _, t := range r.Tables {
		if t.Title != "" {
			fmt.Fprintf(w, "## %s\n\n", t.Title)
		}
		if len(t.Rows) == 0 {
			fmt.Fprint(w, "(none)\n\n")
			continue
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(t.Headers, " | "))
		seps := make([]string, len(t.Headers))
		for i := range seps {
			seps[i] = "---"
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))
		for _, row := range t.Rows {
			fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | "))
		}
		if len(t.Footer) > 0 {
			fmt.Fprintf(w, "| %s |\n", strings.Join(t.Footer, " | "))
		}
		fmt.Fprintln(w)
	}
	return nil
}

type groupData struct {
	Signature string                `json:"signature"`
	Slices    []engine.SliceSummary `json:"slices"`
}

type scanData struct {
	Files         int                   `json:"files"`
	Methods       int                   `json:"methods"`
	Stale         int                   `json:"stale"`
	Opportunities []engine.SliceSummary `json:"opportunities"`
	Groups        []groupData           `json:"groups"`
	Failures      []string              `json:"failures,omitempty"`
	Log           *refactoring.Log      `json:"log"`
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func scanReport(prog *loader.Program, result *engine.ScanResult) *report {
	data := scanData{
		Files:         len(prog.Files),
		Methods:       result.Methods,
		Stale:         result.Stale,
		Opportunities: []engine.SliceSummary{},
		Groups:        []groupData{},
		Log:           result.Log,
	}

	opportunities := &table{
		Title:   "Extract Method opportunities",
		Headers: []string{"File", "Lines", "Method", "Variable", "Statements", "Parameters", "Returns"},
	}
	for _, s := range result.Opportunities {
		d := engine.Summarize(prog, s)
		data.Opportunities = append(data.Opportunities, d)
		opportunities.Rows = append(opportunities.Rows, []string{
			d.File, d.Lines(), d.Method, d.Variable, strconv.Itoa(d.Statements),
			orDash(strings.Join(d.Parameters, ", ")), orDash(d.Returns),
		})
	}
	opportunities.Footer = []string{"Total", "", strconv.Itoa(result.Methods) + " methods", "",
		strconv.Itoa(len(result.Opportunities)), "", ""}

	groups := &table{
		Title:   "Duplicate slices",
		Headers: []string{"Group", "Signature", "Slices", "Locations"},
	}
	for i, g := range result.Groups {
		gd := groupDataOf(prog, g)
		data.Groups = append(data.Groups, gd)
		var locations []string
		for _, d := range gd.Slices {
			locations = append(locations, fmt.Sprintf("%s:%s", d.File, d.Lines()))
		}
		groups.Rows = append(groups.Rows, []string{
			strconv.Itoa(i + 1), shortSignature(g.Signature), strconv.Itoa(len(g.Members)),
			strings.Join(locations, " "),
		})
	}

	for _, f := range result.Failures {
		data.Failures = append(data.Failures, f.Error())
	}
	return &report{
		Title:  "slicedoctor scan",
		Tables: []*table{opportunities, groups},
		Data:   data,
	}
}

func groupDataOf(prog *loader.Program, g *grouping.SliceGroup) groupData {
	gd := groupData{Signature: g.Signature}
	for _, s := range g.Members {
		gd.Slices = append(gd.Slices, engine.Summarize(prog, s))
	}
	return gd
}

func shortSignature(sig string) string {
	if len(sig) > 12 {
		return sig[:12]
	}
	return sig
}

func sliceReport(prog *loader.Program, m *stmt.Method, result *refactoring.Result) *report {
	t := &table{
		Title:   "Slices of " + m.String(),
		Headers: []string{"Lines", "Variable", "Statements", "Parameters", "Returns", "Status"},
	}
	data := []engine.SliceSummary{}
	add := func(s *slicing.Slice) {
		d := engine.Summarize(prog, s)
		data = append(data, d)
		status := "extractable"
		if !d.Extractable {
			status = d.Reason
		}
		t.Rows = append(t.Rows, []string{
			d.Lines(), d.Variable, strconv.Itoa(d.Statements),
			orDash(strings.Join(d.Parameters, ", ")), orDash(d.Returns), status,
		})
	}
	for _, s := range result.Opportunities {
		add(s)
	}
	for _, s := range result.Rejected {
		add(s)
	}
	return &report{Tables: []*table{t}, Data: data}
}

type refactoringData struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Synopsis string `json:"synopsis"`
}

func listReport(all bool) *report {
	t := &table{
		Title:   "Refactorings",
		Headers: []string{"Name", "Description"},
	}
	data := []refactoringData{}
	for _, name := range engine.Names() {
		d := engine.GetRefactoring(name).Description()
		if d.Hidden && !all {
			continue
		}
		data = append(data, refactoringData{Name: name, Title: d.Name, Synopsis: d.Synopsis})
		t.Rows = append(t.Rows, []string{name, d.Synopsis})
	}
	return &report{Tables: []*table{t}, Data: data}
}
