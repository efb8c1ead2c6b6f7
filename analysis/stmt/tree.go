// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stmt

import (
	"encoding/hex"
	"strings"

	"github.com/godoctor/slicedoctor/text"
	"github.com/zeebo/blake3"
)

// A Sequence is an ordered list of sibling statements: the statements of a
// block, or the body of one switch case.
type Sequence struct {
	ID int
	// *BlockStatement, or *SwitchStatement for a case body
	Owner Statement
	// Index of the case within the switch, or -1 for a block
	Case  int
	Stmts []Statement
}

// Extent returns the region spanned by the statements of the sequence.
func (q *Sequence) Extent() text.Extent {
	if len(q.Stmts) == 0 {
		return q.Owner.Extent()
	}
	first, last := q.Stmts[0].Extent(), q.Stmts[len(q.Stmts)-1].Extent()
	return text.Extent{Offset: first.Offset, Length: last.OffsetPastEnd() - first.Offset}
}

type seqPos struct {
	seq   *Sequence
	index int
}

// A Tree indexes the statements of a method body: the parent, depth, and
// preorder position of every statement, the sequence (if any) containing it,
// and a digest of its structure.
type Tree struct {
	Root *BlockStatement

	parent   map[Statement]Statement
	depth    map[Statement]int
	order    map[Statement]int
	preorder []Statement
	seqs     []*Sequence
	seqOf    map[Statement]seqPos
	digest   map[Statement]string
}

// NewTree indexes the given method body.
func NewTree(root *BlockStatement) *Tree {
	t := &Tree{
		Root:   root,
		parent: map[Statement]Statement{},
		depth:  map[Statement]int{},
		order:  map[Statement]int{},
		seqOf:  map[Statement]seqPos{},
		digest: map[Statement]string{},
	}
	t.index(root, nil, 0)
	return t
}

func (t *Tree) index(s Statement, parent Statement, depth int) {
	t.parent[s] = parent
	t.depth[s] = depth
	t.order[s] = len(t.preorder)
	t.preorder = append(t.preorder, s)

	switch s := s.(type) {
	case *BlockStatement:
		t.addSequence(s, -1, s.Stmts)
	case *SwitchStatement:
		for i, c := range s.Cases {
			t.addSequence(s, i, c.Body)
		}
	}

	for _, child := range s.Children() {
		t.index(child, s, depth+1)
	}
	t.digest[s] = t.computeDigest(s)
}

func (t *Tree) addSequence(owner Statement, caseIndex int, stmts []Statement) {
	q := &Sequence{ID: len(t.seqs), Owner: owner, Case: caseIndex, Stmts: stmts}
	t.seqs = append(t.seqs, q)
	for i, s := range stmts {
		t.seqOf[s] = seqPos{q, i}
	}
}

// computeDigest hashes the kind and normalized text of a statement together
// with the digests of its children.  Children are indexed before their
// parent's digest is computed.
func (t *Tree) computeDigest(s Statement) string {
	h := blake3.New()
	h.Write([]byte(s.Kind()))
	for _, f := range fragments(s) {
		h.Write([]byte{0})
		h.Write([]byte(strings.Join(strings.Fields(f.Text), " ")))
	}
	for _, child := range s.Children() {
		h.Write([]byte{1})
		h.Write([]byte(t.digest[child]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Statements returns every statement of the tree in preorder.
func (t *Tree) Statements() []Statement {
	return t.preorder
}

// Parent returns the statement immediately enclosing s, or nil if s is the
// root.
func (t *Tree) Parent(s Statement) Statement {
	return t.parent[s]
}

// Depth returns the nesting depth of s; the root has depth 0.
func (t *Tree) Depth(s Statement) int {
	return t.depth[s]
}

// Order returns the preorder position of s, or -1 if s is not in the tree.
func (t *Tree) Order(s Statement) int {
	if i, ok := t.order[s]; ok {
		return i
	}
	return -1
}

// Has returns true iff s is a statement of the tree.
func (t *Tree) Has(s Statement) bool {
	_, ok := t.order[s]
	return ok
}

// Digest returns a hex-encoded BLAKE3 hash of the structure and text of s.
// Statements that differ only in whitespace have equal digests.
func (t *Tree) Digest(s Statement) string {
	return t.digest[s]
}

// Sequences returns all sequences in the tree, in preorder of their owners.
func (t *Tree) Sequences() []*Sequence {
	return t.seqs
}

// SequenceOf returns the sequence directly containing s and the index of s
// within it, or nil and -1 if s is not an element of any sequence (e.g., it
// is the root, or the unbraced body of an if statement).
func (t *Tree) SequenceOf(s Statement) (*Sequence, int) {
	if p, ok := t.seqOf[s]; ok {
		return p.seq, p.index
	}
	return nil, -1
}

// Enclosing returns the sequences that contain s or one of its ancestors,
// from the innermost outwards.
func (t *Tree) Enclosing(s Statement) []*Sequence {
	var result []*Sequence
	for a := s; a != nil; a = t.parent[a] {
		if p, ok := t.seqOf[a]; ok {
			result = append(result, p.seq)
		}
	}
	return result
}

// IndexIn returns the index of the element of q that is s or an ancestor of
// s, or -1 if s is not nested in q.
func (t *Tree) IndexIn(q *Sequence, s Statement) int {
	for a := s; a != nil; a = t.parent[a] {
		if p, ok := t.seqOf[a]; ok && p.seq == q {
			return p.index
		}
	}
	return -1
}

// Contains returns true iff inner is outer or is nested inside it.
func (t *Tree) Contains(outer, inner Statement) bool {
	for a := inner; a != nil; a = t.parent[a] {
		if a == outer {
			return true
		}
	}
	return false
}

// Ancestors returns the statements enclosing s, from its parent up to the
// root.
func (t *Tree) Ancestors(s Statement) []Statement {
	var result []Statement
	for a := t.parent[s]; a != nil; a = t.parent[a] {
		result = append(result, a)
	}
	return result
}

// Find returns the statement of the given kind occupying exactly the given
// extent, or nil if there is none.
func (t *Tree) Find(ext text.Extent, kind string) Statement {
	for _, s := range t.preorder {
		if s.Extent() == ext && s.Kind() == kind {
			return s
		}
	}
	return nil
}
