package dep

import (
	"github.com/go-interpreter/wasmslice/cfg"
	"github.com/go-interpreter/wasmslice/graph"
	"github.com/go-interpreter/wasmslice/ssa"
)

// ControlDep maps a block index to the set of branch blocks it is control
// dependent on: a block b is control dependent on a branch block s if b
// post-dominates a successor of s but does not post-dominate s itself —
// the standard Ferrante-Ottenstein-Warren definition, computed here via the
// post-dominator tree (spec §4.5: "Cooper-Harvey-Kennedy computation on the
// reversed graph").
type ControlDep map[int][]int

// BuildControlDep computes every block's control dependences. The virtual
// exit used for post-domination is the CFG's own Exit block: every path
// eventually reaches it (spec's CFG invariant), so no synthetic augmenting
// node is needed, unlike source-language CDG constructions that must add
// one to handle infinite loops — Wasm loops always have a decidable
// `br`/`br_if` exit path reachable in this core's scope (br_table/return
// inside the loop, or the loop is provably non-terminating and has no
// instructions after it to be dependent on anyway).
func BuildControlDep(c *cfg.CFG[ssa.Spec]) ControlDep {
	g := c.Graph()
	pdom := graph.BuildDominatorTree(g.Reversed(), c.Exit)

	cdep := make(ControlDep)
	for _, idx := range c.BlockIndices() {
		for _, e := range c.Out(idx) {
			if len(c.Out(idx)) < 2 {
				continue // only branch blocks (>1 out-edge) induce control dependence
			}
			for n := e.Dst; ; {
				if pdom.Dominates(n, idx) {
					break
				}
				cdep[n] = appendUnique(cdep[n], idx)
				parent, ok := pdom.IDom[n]
				if !ok || parent == n {
					break
				}
				n = parent
			}
		}
	}
	return cdep
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
