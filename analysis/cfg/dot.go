// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import (
	"fmt"
	"io"
	"strings"
)

// PrintDot prints the graph in GraphViz DOT format.  If describe is non-nil,
// the text it returns for a node is appended to the node's label.
func (c *CFG) PrintDot(w io.Writer, describe func(*Node) string) {
	fmt.Fprintf(w, "digraph mgraph {\n")
	fmt.Fprintf(w, "\tmode=\"heir\";\n")
	fmt.Fprintf(w, "\tnode [shape=box];\n")
	for _, n := range c.Nodes {
		label := n.String()
		if describe != nil {
			if extra := describe(n); extra != "" {
				label += "\n" + extra
			}
		}
		shape := ""
		switch n.Kind {
		case NodeEntry, NodeExit, NodeExceptionalExit:
			shape = ",shape=ellipse"
		case NodeBranch, NodeLoop, NodeSwitch:
			shape = ",shape=diamond"
		case NodeJoin:
			shape = ",shape=point"
		}
		fmt.Fprintf(w, "\t%d [label=%s%s];\n", n.ID, quote(label), shape)
	}
	for _, e := range c.Edges {
		switch e.Kind {
		case Unconditional:
			fmt.Fprintf(w, "\t%d -> %d;\n", e.From, e.To)
		case Exception:
			fmt.Fprintf(w, "\t%d -> %d [label=\"E\",style=dashed];\n", e.From, e.To)
		default:
			fmt.Fprintf(w, "\t%d -> %d [label=\"%s\"];\n", e.From, e.To, e.Kind)
		}
	}
	fmt.Fprintf(w, "}\n")
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}
