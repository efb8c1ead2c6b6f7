// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package text defines text.Extent and text.Position, which describe regions
// and locations within a particular source file, and a LineIndex for
// converting between byte offsets and line/column positions.
package text

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// An Extent consists of two integers: a 0-based byte offset and a
// nonnegative length.  An Extent is used to specify a region of a string
// or file.  For example, given the string "ABCDEFG", the substring CDE could
// be specified by Extent{offset: 2, length: 3}.
type Extent struct {
	// Byte offset of the first character (0-based)
	Offset int `json:"offset"`
	// Length in bytes (nonnegative)
	Length int `json:"length"`
}

// OffsetPastEnd returns the offset of the first byte immediately beyond the
// end of this region.  For example, a region at offset 2 with length 3
// occupies bytes 2 through 4, so this method would return 5.
func (o *Extent) OffsetPastEnd() int {
	return o.Offset + o.Length
}

func (o *Extent) String() string {
	return fmt.Sprintf("offset %d, length %d", o.Offset, o.Length)
}

// A Position is a 1-based line/column location within a named file.
type Position struct {
	Filename string `json:"filename,omitempty"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// A LineIndex records the offset at which each line of a file begins.
type LineIndex struct {
	filename string
	lines    []int
	size     int
}

// NewLineIndex builds a LineIndex for the given file contents.
func NewLineIndex(filename string, src []byte) *LineIndex {
	lines := []int{0}
	for i, b := range src {
		if b == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &LineIndex{filename: filename, lines: lines, size: len(src)}
}

// Position converts a byte offset into a line/column position.  Offsets
// beyond the end of the file are clamped.
func (idx *LineIndex) Position(offset int) Position {
	if offset > idx.size {
		offset = idx.size
	}
	if offset < 0 {
		offset = 0
	}
	line := sort.Search(len(idx.lines), func(i int) bool {
		return idx.lines[i] > offset
	}) - 1
	return Position{
		Filename: idx.filename,
		Line:     line + 1,
		Column:   offset - idx.lines[line] + 1,
	}
}

// Offset converts a 1-based line/column position into a byte offset, or
// returns -1 if the line does not exist.
func (idx *LineIndex) Offset(line, column int) int {
	if line < 1 || line > len(idx.lines) || column < 1 {
		return -1
	}
	offset := idx.lines[line-1] + column - 1
	if offset > idx.size {
		return -1
	}
	return offset
}

// ParseLineCol parses a position of the form "line,col" (e.g., 302,6) or a
// bare line number, in which case the column is 1.
func ParseLineCol(linecol string) (int, int, error) {
	lc := strings.Split(strings.TrimSpace(linecol), ",")
	l, err := strconv.Atoi(lc[0])
	if err != nil || l < 1 {
		return -1, -1, fmt.Errorf("invalid line in position %q", linecol)
	}
	if len(lc) == 1 {
		return l, 1, nil
	}
	c, err := strconv.Atoi(lc[1])
	if err != nil || c < 1 || len(lc) > 2 {
		return -1, -1, fmt.Errorf("invalid column in position %q", linecol)
	}
	return l, c, nil
}
