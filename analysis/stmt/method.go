// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stmt

import (
	"fmt"
	"strings"

	"github.com/godoctor/slicedoctor/text"
)

// A Method is a method or constructor declaration with a body.
type Method struct {
	Name  string
	Class string
	// File containing the declaration, as given to the front end
	File   string
	Extent text.Extent
	// Line on which the declaration begins (1-based)
	Line   int
	Params []Variable
	// Checked exception types listed in the throws clause
	Throws []string
	Body   *BlockStatement
	// Hierarchy used to resolve exception types; shared by all methods
	// loaded from the same program
	Hierarchy *Hierarchy
}

// Key returns a string that identifies the method within its program, e.g.,
// Point.move(2)@113.  The offset disambiguates overloads with equal arity.
func (m *Method) Key() string {
	return fmt.Sprintf("%s.%s(%d)@%d", m.Class, m.Name, len(m.Params), m.Extent.Offset)
}

func (m *Method) String() string {
	params := make([]string, 0, len(m.Params))
	for _, p := range m.Params {
		params = append(params, p.Path)
	}
	return fmt.Sprintf("%s.%s(%s)", m.Class, m.Name, strings.Join(params, ", "))
}

var defaultHierarchy = NewHierarchy()

// Types returns the method's exception hierarchy, or the standard library
// hierarchy if none was attached.
func (m *Method) Types() *Hierarchy {
	if m.Hierarchy == nil {
		return defaultHierarchy
	}
	return m.Hierarchy
}
