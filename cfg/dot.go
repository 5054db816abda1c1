// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import (
	"bytes"
	"fmt"
	"sort"
)

// WriteDot renders a CFG as a Graphviz "dot" digraph: one node per block,
// labelled with its kind and content size, and one edge per CFG edge,
// labelled "t"/"f" for conditional arms and unlabelled otherwise. Blocks and edges are
// visited in sorted index order so repeated dumps of the same CFG are
// byte-identical.
func WriteDot[A any](c *CFG[A]) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph func%d {\n", c.FuncIndex)
	if c.Name != "" {
		fmt.Fprintf(&buf, "  label=%q;\n", c.Name)
	}

	indices := make([]int, 0, len(c.Blocks))
	for idx := range c.Blocks {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		b := c.Blocks[idx]
		shape := "box"
		if b.Kind == MergeContent {
			shape = "diamond"
		}
		style := ""
		if idx == c.Entry {
			style = ",style=bold"
		}
		if idx == c.Exit {
			style = ",style=dashed"
		}
		fmt.Fprintf(&buf, "  n%d [shape=%s%s,label=%q];\n", idx, shape, style, blockLabel(b))
	}

	for _, idx := range indices {
		for _, e := range c.out[idx] {
			switch {
			case e.Cond == nil:
				fmt.Fprintf(&buf, "  n%d -> n%d;\n", e.Src, e.Dst)
			case *e.Cond:
				fmt.Fprintf(&buf, "  n%d -> n%d [label=\"t\"];\n", e.Src, e.Dst)
			default:
				fmt.Fprintf(&buf, "  n%d -> n%d [label=\"f\"];\n", e.Src, e.Dst)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.Bytes()
}

func blockLabel[A any](b *Block[A]) string {
	switch b.Kind {
	case DataContent:
		return fmt.Sprintf("#%d data(%d)", b.Index, len(b.Data))
	case ControlContent:
		return fmt.Sprintf("#%d %s", b.Index, b.Control)
	default:
		return fmt.Sprintf("#%d merge", b.Index)
	}
}
