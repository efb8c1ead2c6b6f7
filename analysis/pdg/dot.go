// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdg

import (
	"fmt"
	"io"
	"strings"

	"github.com/godoctor/slicedoctor/analysis/cfg"
)

// PrintDot prints the dependence graph in GraphViz DOT format.  Control
// dependences are drawn as solid edges labeled with the branch taken; data
// dependences are dashed and labeled with the variable.  Structural nodes
// with no dependences are omitted.
func (p *PDG) PrintDot(w io.Writer) {
	fmt.Fprintf(w, "digraph pdg {\n")
	fmt.Fprintf(w, "\tnode [shape=box];\n")
	for _, n := range p.Nodes {
		c := p.CFG.Nodes[n.ID]
		if c.Kind.IsStructural() && c.Kind != cfg.NodeEntry && len(n.Controllers) == 0 &&
			len(n.DataIn) == 0 && len(n.DataOut) == 0 {
			continue
		}
		fmt.Fprintf(w, "\t%d [label=%q];\n", n.ID, c.String())
	}
	for _, n := range p.Nodes {
		for _, c := range n.Controllers {
			fmt.Fprintf(w, "\t%d -> %d [label=\"%s\"];\n", c.Node, n.ID, c.Kind)
		}
		for _, d := range n.DataOut {
			fmt.Fprintf(w, "\t%d -> %d [label=%q,style=dashed];\n", d.Def, d.Use, d.Var.Path)
		}
	}
	fmt.Fprintf(w, "}\n")
}

// String returns a textual description of the dependences of every node.
func (p *PDG) String() string {
	var b strings.Builder
	for _, n := range p.Nodes {
		fmt.Fprintf(&b, "%s\n", p.CFG.Nodes[n.ID])
		if n.ControlParent >= 0 {
			fmt.Fprintf(&b, "\tparent %d\n", n.ControlParent)
		}
		for _, c := range n.Controllers {
			fmt.Fprintf(&b, "\tcontrol %d (%s)\n", c.Node, c.Kind)
		}
		for _, d := range n.DataIn {
			fmt.Fprintf(&b, "\tdata %d (%s)\n", d.Def, d.Var)
		}
	}
	return b.String()
}
