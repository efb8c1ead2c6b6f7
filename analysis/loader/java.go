// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/text"
)

// translateFile translates every method body declared in f.  Methods that
// contain syntax errors, or that the translator cannot handle, are skipped
// and reported as diagnostics.
func translateFile(f *parsedFile, idx *index) ([]*stmt.Method, []Diagnostic) {
	var methods []*stmt.Method
	var diags []Diagnostic
	for _, d := range f.decls {
		line := int(d.node.StartPoint().Row) + 1
		if d.node.HasError() {
			diags = append(diags, Diagnostic{File: f.name, Line: line, Message: "syntax error in method"})
			continue
		}
		m, err := newTranslator(f, idx, d.class).method(d.node)
		if err != nil {
			diags = append(diags, Diagnostic{File: f.name, Line: line, Message: err.Error()})
			continue
		}
		methods = append(methods, m)
	}
	if len(diags) == 0 && f.tree.RootNode().HasError() {
		diags = append(diags, Diagnostic{File: f.name, Message: "syntax error outside method bodies"})
	}
	return methods, diags
}

// A translator converts the body of one method from a tree-sitter syntax
// tree into a statement tree.
type translator struct {
	file  *parsedFile
	idx   *index
	src   []byte
	class string
	key   string

	// Innermost scope last
	scopes []map[string]stmt.Variable
	// Declared (simple) type of each local variable and parameter
	types map[stmt.Variable]string
	// Fragment receiving defs, uses, and calls
	cur *stmt.Fragment
}

func newTranslator(f *parsedFile, idx *index, class string) *translator {
	return &translator{
		file:  f,
		idx:   idx,
		src:   f.src,
		class: class,
		types: map[stmt.Variable]string{},
	}
}

func (t *translator) method(n *sitter.Node) (m *stmt.Method, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("cannot translate method: %v", r)
		}
	}()

	m = &stmt.Method{
		Class:     t.class,
		File:      t.file.name,
		Extent:    extentOf(n),
		Line:      int(n.StartPoint().Row) + 1,
		Throws:    throwsClause(n, t.src),
		Hierarchy: t.idx.hierarchy,
	}
	if n.Type() == "constructor_declaration" {
		m.Name = unqualifiedClass(t.class)
	} else {
		m.Name = t.content(n.ChildByFieldName("name"))
	}

	var params []*sitter.Node
	if list := n.ChildByFieldName("parameters"); list != nil {
		for i := 0; i < int(list.NamedChildCount()); i++ {
			p := list.NamedChild(i)
			if p.Type() == "formal_parameter" || p.Type() == "spread_parameter" {
				params = append(params, p)
			}
		}
	}
	// The key depends only on the number of parameters
	m.Params = make([]stmt.Variable, len(params))
	t.key = m.Key()

	t.pushScope()
	defer t.popScope()
	for i, p := range params {
		name := p.ChildByFieldName("name")
		if name == nil {
			if d := childOfType(p, "variable_declarator"); d != nil {
				name = d.ChildByFieldName("name")
			}
		}
		if name == nil {
			return nil, fmt.Errorf("cannot find name of parameter %d", i+1)
		}
		v := t.declare(name, stmt.Parameter, t.declaredType(p))
		m.Params[i] = v
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return nil, fmt.Errorf("method %s has no body", m.Name)
	}
	m.Body = t.block(body)
	return m, nil
}

// Scopes

func (t *translator) pushScope() {
	t.scopes = append(t.scopes, map[string]stmt.Variable{})
}

func (t *translator) popScope() {
	t.scopes = t.scopes[:len(t.scopes)-1]
}

// declare introduces a local variable or parameter in the innermost scope.
// Its scope identifies the method and the offset of the declaration, so
// that distinct variables with the same name are never equal.
func (t *translator) declare(name *sitter.Node, kind stmt.VarKind, typ string) stmt.Variable {
	v := stmt.Variable{
		Path:  t.content(name),
		Scope: t.key + "#" + strconv.Itoa(int(name.StartByte())),
		Kind:  kind,
	}
	t.scopes[len(t.scopes)-1][v.Path] = v
	if typ != "" {
		t.types[v] = typ
	}
	return v
}

func (t *translator) lookup(name string) (stmt.Variable, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if v, ok := t.scopes[i][name]; ok {
			return v, true
		}
	}
	return stmt.Variable{}, false
}

// resolveName resolves a simple name to a local variable, a parameter, or a
// field of this.  Capitalized names that are not variables are taken to be
// type names and do not resolve.
func (t *translator) resolveName(name string) (stmt.Variable, bool) {
	if v, ok := t.lookup(name); ok {
		return v, true
	}
	if name == "" || (unicode.IsUpper(rune(name[0])) && !t.idx.isField(t.class, name)) {
		return stmt.Variable{}, false
	}
	return t.this(name), true
}

func (t *translator) this(field string) stmt.Variable {
	path := "this"
	if field != "" {
		path += "." + field
	}
	return stmt.Variable{Path: path, Scope: t.class, Kind: stmt.Field}
}

// Fragments

// fragment creates a fragment for the given node and calls fill to populate
// its defs, uses, and calls.
func (t *translator) fragment(n *sitter.Node, fill func()) stmt.Fragment {
	saved := t.cur
	f := &stmt.Fragment{
		Text:   t.content(n),
		Extent: extentOf(n),
		Line:   int(n.StartPoint().Row) + 1,
	}
	t.cur = f
	if fill != nil {
		fill()
	}
	t.cur = saved
	return *f
}

func (t *translator) addUse(v stmt.Variable) {
	if !stmt.ContainsVar(t.cur.Uses, v) {
		t.cur.Uses = append(t.cur.Uses, v)
	}
	if v.IsPath() && v.Root() != "this" {
		t.addUse(v.RootVariable())
	}
}

func (t *translator) addDef(v stmt.Variable) {
	if !stmt.ContainsVar(t.cur.Defs, v) {
		t.cur.Defs = append(t.cur.Defs, v)
	}
	if v.IsPath() && v.Root() != "this" {
		t.addUse(v.RootVariable())
	}
}

func (t *translator) addDecl(v stmt.Variable) {
	if !stmt.ContainsVar(t.cur.Decls, v) {
		t.cur.Decls = append(t.cur.Decls, v)
	}
}

// Statements

func (t *translator) block(n *sitter.Node) *stmt.BlockStatement {
	b := &stmt.BlockStatement{Ext: extentOf(n)}
	t.pushScope()
	defer t.popScope()
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if s := t.stmt(n.NamedChild(i)); s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	return b
}

// stmt translates a statement, returning nil for comments.
func (t *translator) stmt(n *sitter.Node) stmt.Statement {
	switch n.Type() {
	case "line_comment", "block_comment", "comment":
		return nil
	case "block", "constructor_body":
		return t.block(n)
	case ";":
		return t.simple(n, stmt.EmptyStmt, nil)
	case "local_variable_declaration":
		return t.simple(n, stmt.DeclarationStmt, func() { t.declaration(n) })
	case "expression_statement":
		return t.simple(n, stmt.ExpressionStmt, func() { t.exprChildren(n) })
	case "if_statement":
		return t.ifStmt(n)
	case "while_statement":
		return t.whileStmt(n)
	case "do_statement":
		return t.doStmt(n)
	case "for_statement":
		return t.forStmt(n)
	case "enhanced_for_statement":
		return t.forEachStmt(n)
	case "switch_expression", "switch_statement":
		return t.switchStmt(n)
	case "try_statement", "try_with_resources_statement":
		return t.tryStmt(n)
	case "synchronized_statement":
		return t.syncStmt(n)
	case "labeled_statement":
		return t.labeledStmt(n)
	case "return_statement":
		return t.simple(n, stmt.ReturnStmt, func() { t.exprChildren(n) })
	case "throw_statement":
		s := t.simple(n, stmt.ThrowStmt, func() { t.exprChildren(n) })
		if e := firstNamed(n); e != nil {
			s.Thrown = t.thrownType(e)
		}
		return s
	case "break_statement":
		s := t.simple(n, stmt.BreakStmt, nil)
		s.Label = t.content(childOfType(n, "identifier"))
		return s
	case "continue_statement":
		s := t.simple(n, stmt.ContinueStmt, nil)
		s.Label = t.content(childOfType(n, "identifier"))
		return s
	case "yield_statement":
		return t.simple(n, stmt.YieldStmt, func() { t.exprChildren(n) })
	case "assert_statement":
		return t.simple(n, stmt.AssertStmt, func() { t.exprChildren(n) })
	case "explicit_constructor_invocation":
		return t.simple(n, stmt.OtherStmt, func() { t.constructorCall(n) })
	case "class_declaration", "local_class_declaration", "interface_declaration",
		"enum_declaration", "record_declaration":
		return t.simple(n, stmt.OtherStmt, nil)
	default:
		return t.simple(n, stmt.OtherStmt, func() { t.exprChildren(n) })
	}
}

func (t *translator) simple(n *sitter.Node, kind stmt.SimpleKind, fill func()) *stmt.SimpleStatement {
	return &stmt.SimpleStatement{Fragment: t.fragment(n, fill), SimpleKind: kind}
}

// header creates the fragment for the condition (or other header
// expression) of a composite statement.  A missing header yields an empty
// fragment positioned at the start of the statement.
func (t *translator) header(owner, n *sitter.Node, fill func()) stmt.Fragment {
	if n == nil {
		return stmt.Fragment{
			Extent: text.Extent{Offset: int(owner.StartByte())},
			Line:   int(owner.StartPoint().Row) + 1,
		}
	}
	return t.fragment(n, fill)
}

func (t *translator) ifStmt(n *sitter.Node) *stmt.IfStatement {
	cond := n.ChildByFieldName("condition")
	s := &stmt.IfStatement{
		Ext:  extentOf(n),
		Cond: t.header(n, cond, func() { t.expr(cond) }),
	}
	s.Then = t.body(n.ChildByFieldName("consequence"), n)
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		s.Else = t.body(alt, n)
	}
	return s
}

// body translates the body of a composite statement.  A missing body (which
// tree-sitter produces for an empty statement) becomes an empty block.
func (t *translator) body(n, owner *sitter.Node) stmt.Statement {
	if n != nil {
		if s := t.stmt(n); s != nil {
			return s
		}
	}
	return &stmt.BlockStatement{Ext: text.Extent{Offset: int(owner.EndByte())}}
}

func (t *translator) whileStmt(n *sitter.Node) *stmt.LoopStatement {
	cond := n.ChildByFieldName("condition")
	return &stmt.LoopStatement{
		Ext:      extentOf(n),
		LoopKind: stmt.WhileLoop,
		Cond:     t.header(n, cond, func() { t.expr(cond) }),
		Body:     t.body(n.ChildByFieldName("body"), n),
	}
}

func (t *translator) doStmt(n *sitter.Node) *stmt.LoopStatement {
	s := &stmt.LoopStatement{Ext: extentOf(n), LoopKind: stmt.DoWhileLoop}
	s.Body = t.body(n.ChildByFieldName("body"), n)
	cond := n.ChildByFieldName("condition")
	s.Cond = t.header(n, cond, func() { t.expr(cond) })
	return s
}

func (t *translator) forStmt(n *sitter.Node) *stmt.LoopStatement {
	t.pushScope()
	defer t.popScope()

	s := &stmt.LoopStatement{Ext: extentOf(n), LoopKind: stmt.ForLoop}
	for _, init := range childrenByField(n, "init") {
		if init.Type() == "local_variable_declaration" {
			s.Init = append(s.Init, t.simple(init, stmt.DeclarationStmt, func() { t.declaration(init) }))
		} else {
			s.Init = append(s.Init, t.simple(init, stmt.ExpressionStmt, func() { t.expr(init) }))
		}
	}
	cond := n.ChildByFieldName("condition")
	s.Cond = t.header(n, cond, func() { t.expr(cond) })
	for _, update := range childrenByField(n, "update") {
		s.Update = append(s.Update, t.simple(update, stmt.ExpressionStmt, func() { t.expr(update) }))
	}
	s.Body = t.body(n.ChildByFieldName("body"), n)
	return s
}

// forEachStmt translates an enhanced for loop.  The loop header, from the
// element type through the iterated expression, declares and defines the
// element variable and uses the iterated expression.
func (t *translator) forEachStmt(n *sitter.Node) *stmt.LoopStatement {
	t.pushScope()
	defer t.popScope()

	s := &stmt.LoopStatement{Ext: extentOf(n), LoopKind: stmt.ForEachLoop}
	typ := n.ChildByFieldName("type")
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if typ == nil || name == nil || value == nil {
		panic("malformed enhanced for statement")
	}
	ext := text.Extent{
		Offset: int(typ.StartByte()),
		Length: int(value.EndByte() - typ.StartByte()),
	}
	s.Cond = stmt.Fragment{
		Text:   string(t.src[ext.Offset:ext.OffsetPastEnd()]),
		Extent: ext,
		Line:   int(typ.StartPoint().Row) + 1,
	}
	saved := t.cur
	t.cur = &s.Cond
	t.expr(value)
	v := t.declare(name, stmt.Local, stmt.SimpleName(t.content(typ)))
	t.addDecl(v)
	t.addDef(v)
	t.cur = saved

	s.Body = t.body(n.ChildByFieldName("body"), n)
	return s
}

func (t *translator) switchStmt(n *sitter.Node) *stmt.SwitchStatement {
	sel := n.ChildByFieldName("condition")
	s := &stmt.SwitchStatement{
		Ext:      extentOf(n),
		Selector: t.header(n, sel, func() { t.expr(sel) }),
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return s
	}

	// All case groups share one scope
	t.pushScope()
	defer t.popScope()
	for i := 0; i < int(body.NamedChildCount()); i++ {
		group := body.NamedChild(i)
		switch group.Type() {
		case "switch_block_statement_group":
			s.Cases = append(s.Cases, t.switchCase(group, true))
		case "switch_rule":
			s.Cases = append(s.Cases, t.switchCase(group, false))
		}
	}
	return s
}

func (t *translator) switchCase(n *sitter.Node, fallsThrough bool) *stmt.SwitchCase {
	c := &stmt.SwitchCase{Ext: extentOf(n), FallsThrough: fallsThrough}
	var labels []*sitter.Node
	var body []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "switch_label" {
			labels = append(labels, child)
			label := strings.TrimSpace(t.content(child))
			if strings.HasPrefix(label, "default") || strings.HasSuffix(label, "default") {
				c.Default = true
			}
		} else {
			body = append(body, child)
		}
	}
	if len(labels) > 0 {
		first, last := labels[0], labels[len(labels)-1]
		ext := text.Extent{
			Offset: int(first.StartByte()),
			Length: int(last.EndByte() - first.StartByte()),
		}
		c.Labels = stmt.Fragment{
			Text:   string(t.src[ext.Offset:ext.OffsetPastEnd()]),
			Extent: ext,
			Line:   int(first.StartPoint().Row) + 1,
		}
		saved := t.cur
		t.cur = &c.Labels
		for _, l := range labels {
			t.patterns(l)
		}
		t.cur = saved
	}
	for _, b := range body {
		if s := t.stmt(b); s != nil {
			c.Body = append(c.Body, s)
		}
	}
	return c
}

// patterns records the uses in a case label and declares the variables
// bound by type patterns.
func (t *translator) patterns(label *sitter.Node) {
	for i := 0; i < int(label.NamedChildCount()); i++ {
		child := label.NamedChild(i)
		switch child.Type() {
		case "pattern", "type_pattern", "record_pattern":
			t.bindPattern(child)
		case "guard":
			t.exprChildren(child)
		default:
			t.expr(child)
		}
	}
}

// bindPattern declares every variable bound by a (possibly nested) type
// pattern.
func (t *translator) bindPattern(n *sitter.Node) {
	if n.Type() == "type_pattern" {
		var typ string
		var name *sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "identifier" {
				name = child
			} else if typ == "" {
				typ = stmt.SimpleName(t.content(child))
			}
		}
		if name != nil {
			v := t.declare(name, stmt.Local, typ)
			t.addDecl(v)
			t.addDef(v)
		}
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		t.bindPattern(n.NamedChild(i))
	}
}

func (t *translator) tryStmt(n *sitter.Node) *stmt.TryStatement {
	t.pushScope()
	defer t.popScope()

	var resources []*stmt.SimpleStatement
	if spec := n.ChildByFieldName("resources"); spec != nil {
		for i := 0; i < int(spec.NamedChildCount()); i++ {
			r := spec.NamedChild(i)
			if r.Type() == "resource" {
				resources = append(resources, t.resource(r))
			}
		}
	}

	var body *stmt.BlockStatement
	if b := n.ChildByFieldName("body"); b != nil {
		body = t.block(b)
	}

	var catches []*stmt.CatchClause
	var finally *stmt.BlockStatement
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "catch_clause":
			catches = append(catches, t.catchClause(child))
		case "finally_clause":
			if b := childOfType(child, "block"); b != nil {
				finally = t.block(b)
			}
		}
	}
	return stmt.NewTryStatement(extentOf(n), resources, body, catches, finally)
}

// resource translates a resource specification entry: either a declaration
// (T r = expr) or a reference to an existing variable.
func (t *translator) resource(n *sitter.Node) *stmt.SimpleStatement {
	name := n.ChildByFieldName("name")
	if name == nil {
		return t.simple(n, stmt.ExpressionStmt, func() { t.exprChildren(n) })
	}
	return t.simple(n, stmt.DeclarationStmt, func() {
		if value := n.ChildByFieldName("value"); value != nil {
			t.expr(value)
		}
		v := t.declare(name, stmt.Local, t.declaredType(n))
		t.addDecl(v)
		t.addDef(v)
	})
}

func (t *translator) catchClause(n *sitter.Node) *stmt.CatchClause {
	t.pushScope()
	defer t.popScope()

	c := &stmt.CatchClause{Ext: extentOf(n)}
	param := childOfType(n, "catch_formal_parameter")
	if param == nil {
		panic("catch clause without parameter")
	}
	if ct := childOfType(param, "catch_type"); ct != nil {
		for i := 0; i < int(ct.NamedChildCount()); i++ {
			c.Types = append(c.Types, stmt.SimpleName(t.content(ct.NamedChild(i))))
		}
	}
	c.Param = t.fragment(param, func() {
		name := param.ChildByFieldName("name")
		if name == nil {
			name = childOfType(param, "identifier")
		}
		if name == nil {
			return
		}
		typ := ""
		if len(c.Types) == 1 {
			typ = c.Types[0]
		}
		v := t.declare(name, stmt.Local, typ)
		t.addDecl(v)
		t.addDef(v)
	})
	if b := n.ChildByFieldName("body"); b != nil {
		c.Body = t.block(b)
	} else if b := childOfType(n, "block"); b != nil {
		c.Body = t.block(b)
	} else {
		c.Body = &stmt.BlockStatement{Ext: text.Extent{Offset: int(n.EndByte())}}
	}
	return c
}

func (t *translator) syncStmt(n *sitter.Node) *stmt.SynchronizedStatement {
	lock := childOfType(n, "parenthesized_expression")
	s := &stmt.SynchronizedStatement{
		Ext:  extentOf(n),
		Lock: t.header(n, lock, func() { t.expr(lock) }),
	}
	if b := n.ChildByFieldName("body"); b != nil {
		s.Body = t.block(b)
	} else if b := childOfType(n, "block"); b != nil {
		s.Body = t.block(b)
	} else {
		s.Body = &stmt.BlockStatement{Ext: text.Extent{Offset: int(n.EndByte())}}
	}
	return s
}

func (t *translator) labeledStmt(n *sitter.Node) stmt.Statement {
	label := childOfType(n, "identifier")
	var body *sitter.Node
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		if c := n.NamedChild(i); c != label && !isComment(c) {
			body = c
			break
		}
	}
	return &stmt.LabeledStatement{
		Ext:   extentOf(n),
		Label: t.content(label),
		Body:  t.body(body, n),
	}
}

// Declarations and expressions

func (t *translator) declaration(n *sitter.Node) {
	typ := t.declaredType(n)
	for _, d := range childrenByField(n, "declarator") {
		name := d.ChildByFieldName("name")
		if name == nil {
			continue
		}
		value := d.ChildByFieldName("value")
		if value != nil {
			t.expr(value)
		}
		v := t.declare(name, stmt.Local, typ)
		t.addDecl(v)
		if value != nil {
			t.addDef(v)
			t.copyFrom(v, value)
		}
	}
}

// copyFrom records dst = src when value is a plain local variable.
func (t *translator) copyFrom(dst stmt.Variable, value *sitter.Node) {
	if !dst.IsLocal() {
		return
	}
	value = unparen(value)
	if value.Type() != "identifier" {
		return
	}
	if src, ok := t.lookup(t.content(value)); ok && src.IsLocal() {
		t.cur.Copies = append(t.cur.Copies, stmt.Copy{Dst: dst, Src: src})
	}
}

func (t *translator) declaredType(n *sitter.Node) string {
	if typ := n.ChildByFieldName("type"); typ != nil {
		return stmt.SimpleName(t.content(typ))
	}
	return ""
}

// thrownType returns the static type of a thrown expression, if it can be
// determined from the expression itself or from the declaration of the
// variable it names.
func (t *translator) thrownType(e *sitter.Node) string {
	e = unparen(e)
	switch e.Type() {
	case "object_creation_expression":
		return stmt.SimpleName(t.content(e.ChildByFieldName("type")))
	case "identifier":
		if v, ok := t.lookup(t.content(e)); ok {
			return t.types[v]
		}
	case "cast_expression":
		return stmt.SimpleName(t.content(e.ChildByFieldName("type")))
	}
	return ""
}

// path returns the variable denoted by an expression that is a simple name
// or an access path (x, this.f, a.b.c, a[i].b).
func (t *translator) path(n *sitter.Node) (stmt.Variable, bool) {
	if n == nil {
		return stmt.Variable{}, false
	}
	switch n.Type() {
	case "identifier":
		return t.resolveName(t.content(n))
	case "this":
		return t.this(""), true
	case "parenthesized_expression":
		return t.path(firstNamed(n))
	case "field_access":
		obj := n.ChildByFieldName("object")
		field := t.content(n.ChildByFieldName("field"))
		if obj == nil || field == "" {
			return stmt.Variable{}, false
		}
		if obj.Type() == "super" {
			return t.this(field), true
		}
		base, ok := t.path(obj)
		if !ok {
			return stmt.Variable{}, false
		}
		return stmt.Variable{Path: base.Path + "." + field, Scope: base.Scope, Kind: base.Kind}, true
	case "array_access":
		base, ok := t.path(n.ChildByFieldName("array"))
		if !ok {
			return stmt.Variable{}, false
		}
		return stmt.Variable{Path: base.Path + stmt.ElementSuffix, Scope: base.Scope, Kind: base.Kind}, true
	}
	return stmt.Variable{}, false
}

// indexUses records the uses in the index expressions of an access path.
func (t *translator) indexUses(n *sitter.Node) {
	switch n.Type() {
	case "parenthesized_expression":
		t.indexUses(firstNamed(n))
	case "field_access":
		if obj := n.ChildByFieldName("object"); obj != nil {
			t.indexUses(obj)
		}
	case "array_access":
		t.indexUses(n.ChildByFieldName("array"))
		if idx := n.ChildByFieldName("index"); idx != nil {
			t.expr(idx)
		}
	}
}

func (t *translator) exprChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		t.expr(n.NamedChild(i))
	}
}

// expr records the defs, uses, and calls of an expression in the current
// fragment.
func (t *translator) expr(n *sitter.Node) {
	if n == nil || isComment(n) || isTypeNode(n) || isLiteral(n) {
		return
	}
	switch n.Type() {
	case "identifier", "this", "field_access", "array_access":
		if v, ok := t.path(n); ok {
			if v.Path != "this" {
				t.addUse(v)
			}
			t.indexUses(n)
			return
		}
		if n.Type() == "identifier" {
			return
		}
		if n.Type() == "field_access" {
			t.expr(n.ChildByFieldName("object"))
			return
		}
	case "assignment_expression":
		t.assign(n)
		return
	case "update_expression":
		t.update(firstNamed(n))
		return
	case "method_invocation":
		t.call(n)
		return
	case "object_creation_expression":
		t.newObject(n)
		return
	case "lambda_expression", "method_reference":
		t.opaque(n, false)
		return
	case "switch_expression":
		t.expr(n.ChildByFieldName("condition"))
		if body := n.ChildByFieldName("body"); body != nil {
			t.opaque(body, true)
		}
		return
	case "instanceof_expression":
		t.expr(n.ChildByFieldName("left"))
		if name := n.ChildByFieldName("name"); name != nil {
			v := t.declare(name, stmt.Local, stmt.SimpleName(t.content(n.ChildByFieldName("right"))))
			t.addDecl(v)
			t.addDef(v)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			switch c := n.NamedChild(i); c.Type() {
			case "type_pattern", "record_pattern", "pattern":
				t.bindPattern(c)
			}
		}
		return
	case "cast_expression":
		t.expr(n.ChildByFieldName("value"))
		return
	case "class_literal", "super":
		return
	}
	t.exprChildren(n)
}

func (t *translator) assign(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	op := strings.TrimSpace(t.content(n.ChildByFieldName("operator")))
	t.expr(right)
	v, ok := t.path(left)
	if !ok {
		t.expr(left)
		return
	}
	if op != "=" {
		t.addUse(v)
	}
	t.addDef(v)
	t.indexUses(left)
	if op == "=" {
		t.copyFrom(v, right)
	}
}

func (t *translator) update(operand *sitter.Node) {
	if operand == nil {
		return
	}
	if v, ok := t.path(operand); ok {
		t.addUse(v)
		t.addDef(v)
		t.indexUses(operand)
		return
	}
	t.expr(operand)
}

func (t *translator) call(n *sitter.Node) {
	c := stmt.Call{Name: t.content(n.ChildByFieldName("name"))}
	if obj := n.ChildByFieldName("object"); obj != nil {
		if v, ok := t.path(obj); ok && v.Path != "this" {
			c.Receiver = &v
			t.addUse(v)
			t.indexUses(obj)
		} else if !ok {
			t.expr(obj)
		}
	}
	arity := t.args(n.ChildByFieldName("arguments"), &c)
	c.Thrown, c.Resolved = t.idx.resolve(c.Name, arity)
	t.cur.Calls = append(t.cur.Calls, c)
}

func (t *translator) newObject(n *sitter.Node) {
	typ := stmt.SimpleName(t.content(n.ChildByFieldName("type")))
	c := stmt.Call{Name: "new " + typ}
	arity := t.args(n.ChildByFieldName("arguments"), &c)
	c.Thrown, c.Resolved = t.idx.resolve(c.Name, arity)
	t.cur.Calls = append(t.cur.Calls, c)
	if body := childOfType(n, "class_body"); body != nil {
		t.opaque(body, false)
	}
}

func (t *translator) constructorCall(n *sitter.Node) {
	ctor := t.content(n.ChildByFieldName("constructor"))
	c := stmt.Call{Name: ctor}
	if obj := n.ChildByFieldName("object"); obj != nil {
		t.expr(obj)
	}
	arity := t.args(n.ChildByFieldName("arguments"), &c)
	if ctor == "this" {
		c.Thrown, c.Resolved = t.idx.resolve("new "+unqualifiedClass(t.class), arity)
	}
	t.cur.Calls = append(t.cur.Calls, c)
}

// args records the uses in an argument list, adding each argument that is
// a variable to the call's Args, and returns the number of arguments.
func (t *translator) args(list *sitter.Node, c *stmt.Call) int {
	if list == nil {
		return 0
	}
	arity := 0
	for i := 0; i < int(list.NamedChildCount()); i++ {
		arg := list.NamedChild(i)
		if isComment(arg) {
			continue
		}
		arity++
		if v, ok := t.path(arg); ok && v.Path != "this" {
			c.Args = append(c.Args, v)
		}
		t.expr(arg)
	}
	return arity
}

// opaque records the uses of enclosing local variables and parameters in a
// lambda body, an anonymous class body, or the body of a switch expression.
// Variables declared within n are ignored.  If executes is true, the code
// runs when the enclosing statement does, so its calls are recorded too.
func (t *translator) opaque(n *sitter.Node, executes bool) {
	inner := map[string]bool{}
	collectDeclared(n, t.src, inner)
	t.opaqueWalk(n, inner, executes)
}

func (t *translator) opaqueWalk(n *sitter.Node, inner map[string]bool, executes bool) {
	if n == nil || isComment(n) || isTypeNode(n) || isLiteral(n) {
		return
	}
	switch n.Type() {
	case "identifier":
		name := t.content(n)
		if inner[name] {
			return
		}
		if v, ok := t.lookup(name); ok {
			t.addUse(v)
		}
		return
	case "field_access":
		t.opaqueWalk(n.ChildByFieldName("object"), inner, executes)
		return
	case "method_invocation":
		t.opaqueWalk(n.ChildByFieldName("object"), inner, executes)
		args := n.ChildByFieldName("arguments")
		t.opaqueWalk(args, inner, executes)
		if executes {
			arity := 0
			if args != nil {
				arity = int(args.NamedChildCount())
			}
			c := stmt.Call{Name: t.content(n.ChildByFieldName("name"))}
			c.Thrown, c.Resolved = t.idx.resolve(c.Name, arity)
			t.cur.Calls = append(t.cur.Calls, c)
		}
		return
	case "labeled_statement", "break_statement", "continue_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() != "identifier" {
				t.opaqueWalk(c, inner, executes)
			}
		}
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		t.opaqueWalk(n.NamedChild(i), inner, executes)
	}
}

// collectDeclared adds to names every variable name declared within n.
func collectDeclared(n *sitter.Node, src []byte, names map[string]bool) {
	switch n.Type() {
	case "variable_declarator", "formal_parameter", "catch_formal_parameter",
		"enhanced_for_statement", "resource", "instanceof_expression":
		if name := n.ChildByFieldName("name"); name != nil {
			names[name.Content(src)] = true
		}
	case "spread_parameter":
		if d := childOfType(n, "variable_declarator"); d != nil {
			if name := d.ChildByFieldName("name"); name != nil {
				names[name.Content(src)] = true
			}
		}
	case "type_pattern":
		if id := childOfType(n, "identifier"); id != nil {
			names[id.Content(src)] = true
		}
	case "lambda_expression":
		if params := n.ChildByFieldName("parameters"); params != nil {
			if params.Type() == "identifier" {
				names[params.Content(src)] = true
			}
			if params.Type() == "inferred_parameters" {
				for i := 0; i < int(params.NamedChildCount()); i++ {
					names[params.NamedChild(i).Content(src)] = true
				}
			}
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		collectDeclared(n.NamedChild(i), src, names)
	}
}

// Syntax tree helpers

func (t *translator) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(t.src)
}

func extentOf(n *sitter.Node) text.Extent {
	return text.Extent{
		Offset: int(n.StartByte()),
		Length: int(n.EndByte() - n.StartByte()),
	}
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func unparen(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		inner := firstNamed(n)
		if inner == nil {
			break
		}
		n = inner
	}
	return n
}

func isTypeNode(n *sitter.Node) bool {
	switch n.Type() {
	case "type_identifier", "generic_type", "scoped_type_identifier", "array_type",
		"integral_type", "floating_point_type", "boolean_type", "void_type",
		"type_arguments", "type_parameters", "dimensions", "annotation",
		"marker_annotation", "modifiers", "scoped_identifier":
		return true
	default:
		return false
	}
}

func isLiteral(n *sitter.Node) bool {
	switch n.Type() {
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal",
		"binary_integer_literal", "decimal_floating_point_literal",
		"hex_floating_point_literal", "true", "false", "character_literal",
		"string_literal", "text_block", "null_literal":
		return true
	default:
		return false
	}
}
