// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader parses Java source files with tree-sitter and translates
// every method and constructor body into the statement model of package
// stmt.  It also collects the information the analyses need from the rest
// of the program: the class hierarchy (for exception types) and the
// exceptions each method declares in its throws clause.
//
// Loading proceeds in two passes.  The first pass parses every file (in
// parallel) and records class, field, and method signatures; the second
// translates method bodies (again in parallel, one file per goroutine),
// resolving calls against the signatures collected by the first pass.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"golang.org/x/sync/errgroup"

	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/text"
)

// ErrNotJava is returned when a file that is not a Java source file is
// given to Load.
var ErrNotJava = errors.New("not a Java source file")

// A Source is the name and contents of a source file.
type Source struct {
	Name string
	Src  []byte
}

// A File is a loaded source file.
type File struct {
	Name    string
	Src     []byte
	Lines   *text.LineIndex
	Methods []*stmt.Method
}

// A Diagnostic describes a problem that prevented a method (or a file) from
// being loaded.  Diagnostics are not fatal: the remaining methods are
// loaded normally.
type Diagnostic struct {
	File    string
	Line    int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.File, d.Message)
}

// A Program is the result of loading a set of Java source files.  It is
// never modified after loading completes, so it may be shared by any number
// of goroutines.
type Program struct {
	Files []*File
	// All methods, ordered by file and then by offset
	Methods     []*stmt.Method
	Hierarchy   *stmt.Hierarchy
	Diagnostics []Diagnostic
}

// File returns the loaded file with the given name, or nil.
func (p *Program) File(name string) *File {
	for _, f := range p.Files {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Method returns the method with the given key (see stmt.Method.Key), or
// nil.
func (p *Program) Method(key string) *stmt.Method {
	for _, m := range p.Methods {
		if m.Key() == key {
			return m
		}
	}
	return nil
}

// MethodsNamed returns every method with the given simple name, or, if name
// has the form Class.method, every such method of that class.
func (p *Program) MethodsNamed(name string) []*stmt.Method {
	class := ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		class, name = name[:i], name[i+1:]
	}
	var result []*stmt.Method
	for _, m := range p.Methods {
		if m.Name == name && (class == "" || m.Class == class) {
			result = append(result, m)
		}
	}
	return result
}

// MethodAt returns the innermost method in the given file whose declaration
// spans the given 1-based line, or nil.
func (p *Program) MethodAt(filename string, line int) *stmt.Method {
	f := p.File(filename)
	if f == nil {
		return nil
	}
	var best *stmt.Method
	for _, m := range f.Methods {
		start := f.Lines.Position(m.Extent.Offset).Line
		end := f.Lines.Position(m.Extent.OffsetPastEnd()).Line
		if line >= start && line <= end {
			if best == nil || m.Extent.Length < best.Extent.Length {
				best = m
			}
		}
	}
	return best
}

// Position converts a byte offset in the file declaring m into a line and
// column.
func (p *Program) Position(m *stmt.Method, offset int) text.Position {
	if f := p.File(m.File); f != nil {
		return f.Lines.Position(offset)
	}
	return text.Position{Filename: m.File}
}

type options struct {
	workers int
	logger  *slog.Logger
}

// An Option configures Load.
type Option func(*options)

// WithWorkers bounds the number of files parsed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger used to report progress and diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		workers: runtime.NumCPU(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Load reads and loads the given Java source files.
func Load(ctx context.Context, paths []string, opts ...Option) (*Program, error) {
	srcs := make([]Source, 0, len(paths))
	for _, path := range paths {
		if !IsJava(path) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotJava)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		srcs = append(srcs, Source{Name: path, Src: src})
	}
	return LoadSources(ctx, srcs, opts...)
}

// LoadSource loads a single in-memory source file.
func LoadSource(name string, src []byte) (*Program, error) {
	return LoadSources(context.Background(), []Source{{Name: name, Src: src}})
}

// LoadSources loads in-memory source files.
func LoadSources(ctx context.Context, srcs []Source, opts ...Option) (*Program, error) {
	o := newOptions(opts)

	files := make([]*parsedFile, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, s := range srcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := parse(gctx, s)
			if err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := newIndex()
	for _, f := range files {
		idx.merge(f)
	}

	results := make([][]*stmt.Method, len(files))
	diags := make([][]Diagnostic, len(files))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], diags[i] = translateFile(f, idx)
			f.tree.Close()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prog := &Program{Hierarchy: idx.hierarchy}
	for i, f := range files {
		file := &File{Name: f.name, Src: f.src, Lines: f.lines, Methods: results[i]}
		prog.Files = append(prog.Files, file)
		prog.Methods = append(prog.Methods, results[i]...)
		for _, d := range diags[i] {
			o.logger.Debug("skipping method", "file", d.File, "line", d.Line, "reason", d.Message)
		}
		prog.Diagnostics = append(prog.Diagnostics, diags[i]...)
	}
	o.logger.Debug("loaded program", "files", len(prog.Files), "methods", len(prog.Methods))
	return prog, nil
}

// IsJava returns true iff the path names a Java source file.
func IsJava(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".java")
}

// A parsedFile is a file after the first pass: its syntax tree, plus the
// declarations it contributes to the program index.
type parsedFile struct {
	name  string
	src   []byte
	lines *text.LineIndex
	tree  *sitter.Tree

	// Declarations with bodies, in source order
	decls []declaration
	// Signatures of all methods and constructors
	sigs []signature
	// Superclass of each class that has one
	supers map[string]string
	// Field names declared by each class
	fields map[string][]string
}

// A declaration is a method or constructor with a body.
type declaration struct {
	node  *sitter.Node
	class string
}

type signature struct {
	name    string // "new C" for constructors of C
	class   string
	arity   int
	varargs bool
	throws  []string
}

func parse(ctx context.Context, s Source) (*parsedFile, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, s.Src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	f := &parsedFile{
		name:   s.Name,
		src:    s.Src,
		lines:  text.NewLineIndex(s.Name, s.Src),
		tree:   tree,
		supers: map[string]string{},
		fields: map[string][]string{},
	}
	f.collect(tree.RootNode(), "")
	return f, nil
}

// collect records the classes, fields, and methods declared under n.
func (f *parsedFile) collect(n *sitter.Node, class string) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			class = name.Content(f.src)
		}
		if super := n.ChildByFieldName("superclass"); super != nil {
			if t := firstNamed(super); t != nil {
				f.supers[class] = stmt.SimpleName(t.Content(f.src))
			}
		}
	case "object_creation_expression", "unqualified_object_creation_expression":
		if n.ChildByFieldName("class_body") != nil || hasChildOfType(n, "class_body") {
			if t := n.ChildByFieldName("type"); t != nil {
				class = class + "$" + stmt.SimpleName(t.Content(f.src))
			}
		}
	case "field_declaration":
		for _, d := range childrenByField(n, "declarator") {
			if name := d.ChildByFieldName("name"); name != nil {
				f.fields[class] = append(f.fields[class], name.Content(f.src))
			}
		}
	case "method_declaration", "constructor_declaration":
		f.sigs = append(f.sigs, f.signature(n, class))
		if n.ChildByFieldName("body") != nil {
			f.decls = append(f.decls, declaration{node: n, class: class})
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		f.collect(n.NamedChild(i), class)
	}
}

func (f *parsedFile) signature(n *sitter.Node, class string) signature {
	sig := signature{class: class}
	if n.Type() == "constructor_declaration" {
		sig.name = "new " + unqualifiedClass(class)
	} else if name := n.ChildByFieldName("name"); name != nil {
		sig.name = name.Content(f.src)
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			switch params.NamedChild(i).Type() {
			case "formal_parameter":
				sig.arity++
			case "spread_parameter":
				sig.arity++
				sig.varargs = true
			}
		}
	}
	sig.throws = throwsClause(n, f.src)
	return sig
}

// throwsClause returns the simple names of the types listed in the throws
// clause of a method or constructor declaration.
func throwsClause(n *sitter.Node, src []byte) []string {
	var result []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "throws" {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			result = append(result, stmt.SimpleName(c.NamedChild(j).Content(src)))
		}
	}
	return result
}

// unqualifiedClass strips the enclosing-class prefix from the name of a
// nested or anonymous class.
func unqualifiedClass(class string) string {
	if i := strings.LastIndexByte(class, '$'); i >= 0 {
		return class[i+1:]
	}
	return class
}

// An index holds the declarations of the whole program.  It is built
// serially after the first pass and only read afterward.
type index struct {
	hierarchy *stmt.Hierarchy
	methods   map[string][]signature
	fields    map[string]map[string]bool
}

func newIndex() *index {
	return &index{
		hierarchy: stmt.NewHierarchy(),
		methods:   map[string][]signature{},
		fields:    map[string]map[string]bool{},
	}
}

func (x *index) merge(f *parsedFile) {
	classes := make([]string, 0, len(f.supers))
	for class := range f.supers {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		x.hierarchy.AddSubtype(unqualifiedClass(class), f.supers[class])
	}
	for _, sig := range f.sigs {
		x.methods[sig.name] = append(x.methods[sig.name], sig)
	}
	for class, names := range f.fields {
		if x.fields[class] == nil {
			x.fields[class] = map[string]bool{}
		}
		for _, name := range names {
			x.fields[class][name] = true
		}
	}
}

// resolve looks up a method by name and number of arguments, returning the
// union of the exceptions declared by every matching overload.
func (x *index) resolve(name string, arity int) ([]string, bool) {
	var thrown []string
	found := false
	for _, sig := range x.methods[name] {
		if sig.arity == arity || (sig.varargs && arity >= sig.arity-1) {
			found = true
			for _, t := range sig.throws {
				if !containsString(thrown, t) {
					thrown = append(thrown, t)
				}
			}
		}
	}
	return thrown, found
}

func (x *index) isField(class, name string) bool {
	return x.fields[class][name]
}

func containsString(list []string, s string) bool {
	for _, t := range list {
		if t == s {
			return true
		}
	}
	return false
}

func firstNamed(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); !isComment(c) {
			return c
		}
	}
	return nil
}

func hasChildOfType(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == typ {
			return true
		}
	}
	return false
}

// childrenByField returns the children of n with the given field name.
// tree-sitter attaches comments to the field that surrounds them; those are
// skipped.
func childrenByField(n *sitter.Node, field string) []*sitter.Node {
	var result []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == field && !isComment(n.Child(i)) {
			result = append(result, n.Child(i))
		}
	}
	return result
}

func isComment(n *sitter.Node) bool {
	switch n.Type() {
	case "line_comment", "block_comment", "comment":
		return true
	default:
		return false
	}
}
