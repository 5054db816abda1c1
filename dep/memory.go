package dep

import (
	"sort"

	"github.com/go-interpreter/wasmslice/cfg"
	"github.com/go-interpreter/wasmslice/domain"
	"github.com/go-interpreter/wasmslice/fixpoint"
	"github.com/go-interpreter/wasmslice/ir"
	"github.com/go-interpreter/wasmslice/ssa"
)

// MemoryDep maps a load's label to the labels of every store that may have
// produced the bytes it reads, per the byte-level points-to approximation
// in package domain.
type MemoryDep map[ir.Label][]ir.Label

// BuildMemoryDep re-derives, for every MemLoad instruction, the address var
// it reads from and the may-alias set of stores recorded by the memory
// Result fixpoint.Run computed incoming to the load's block — replayed
// instruction by instruction via fixpoint.Step so a store earlier in the
// same block is visible to a load later in it, not just stores from prior
// blocks.
func BuildMemoryDep(c *cfg.CFG[ssa.Spec], incoming map[int]fixpoint.Result) MemoryDep {
	md := make(MemoryDep)

	for _, idx := range c.BlockIndices() {
		b := c.Blocks[idx]
		if b.Kind != cfg.DataContent {
			continue
		}
		state := incoming[idx]
		for _, lbl := range b.Data {
			instr := c.Instrs[lbl]
			if instr == nil {
				continue
			}
			if _, ok := instr.Data.(ir.MemLoad); ok {
				addr := operand(instr.Before.Stack, 0)
				region := domain.Region{Base: addressBase(state, addr), Width: 4}
				writes := state.Memory.MayAliasingWrites(region)
				sort.Slice(writes, func(i, j int) bool { return writes[i].Less(writes[j]) })
				md[lbl] = writes
			}
			state = fixpoint.Step(c, lbl, state)
		}
	}
	return md
}

// operand returns the var occupying the stack slot `fromTop` slots below the
// top (0 = top) of a Before-stack snapshot.
func operand(before []ir.Var, fromTop int) ir.Var {
	idx := len(before) - 1 - fromTop
	if idx < 0 || idx >= len(before) {
		return ir.Var{Kind: ir.VarUnknown}
	}
	return before[idx]
}

func addressBase(r fixpoint.Result, addr ir.Var) ir.Var {
	if r.Get(addr).Kind == domain.Exact {
		return ir.Const(r.Get(addr).Const)
	}
	return addr
}
