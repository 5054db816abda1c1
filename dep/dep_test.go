package dep

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/wasmslice/cfg"
	"github.com/go-interpreter/wasmslice/config"
	"github.com/go-interpreter/wasmslice/fixpoint"
	"github.com/go-interpreter/wasmslice/ir"
	"github.com/go-interpreter/wasmslice/ssa"
)

func annotated(t *testing.T, body []ir.Instruction[struct{}]) *cfg.CFG[ssa.Spec] {
	t.Helper()
	c, err := cfg.Build(cfg.Signature{FuncIndex: 0}, body)
	require.NoError(t, err)
	out, _ := ssa.Infer(c, config.Default)
	return out
}

func annotatedWithUses(t *testing.T, body []ir.Instruction[struct{}]) (*cfg.CFG[ssa.Spec], ssa.MergeUses) {
	t.Helper()
	c, err := cfg.Build(cfg.Signature{FuncIndex: 0}, body)
	require.NoError(t, err)
	return ssa.Infer(c, config.Default)
}

func TestBuildUseDefLinksAddToItsOperands(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	c := annotated(t, []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 1}},
		{Label: lbl(1), Data: ir.ConstOp{Type: ir.I32, Value: 2}},
		{Label: lbl(2), Data: ir.BinaryOp{}},
		{Label: lbl(3), Control: ir.Return{}},
	})
	ud := BuildUseDef(c)
	require.Equal(t, lbl(0), ud[ir.FromInstr(lbl(0))])
	require.Equal(t, lbl(1), ud[ir.FromInstr(lbl(1))])

	addInstr := c.Instrs[lbl(2)]
	uses := Uses(addInstr, nil)
	require.ElementsMatch(t, []ir.Var{ir.FromInstr(lbl(0)), ir.FromInstr(lbl(1))}, uses)
}

// TestUsesStepsThroughMergeBlock covers the bug spec.md §4.2/§4.5 calls
// out: a backward walk must be able to see past an if/else join to the
// values that actually feed it, not stop at the merge block's own label.
func TestUsesStepsThroughMergeBlock(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 1}},
		{Label: lbl(1), Control: ir.IfElse[struct{}]{
			Then: []ir.Instruction[struct{}]{{Label: lbl(2), Data: ir.ConstOp{Type: ir.I32, Value: 10}}},
			Else: []ir.Instruction[struct{}]{{Label: lbl(3), Data: ir.ConstOp{Type: ir.I32, Value: 20}}},
		}},
	}
	c, uses := annotatedWithUses(t, body)

	var mergeInstr *ir.Instruction[ssa.Spec]
	for _, idx := range c.BlockIndices() {
		b := c.Blocks[idx]
		if b.Kind == cfg.MergeContent && idx != c.Exit {
			mergeInstr = c.Instrs[b.Merge]
		}
	}
	require.NotNil(t, mergeInstr)
	require.ElementsMatch(t, []ir.Var{ir.FromInstr(lbl(2)), ir.FromInstr(lbl(3))}, Uses(mergeInstr, uses))
}

func TestBuildControlDepMarksThenBranchBody(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	c := annotated(t, []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 1}},
		{Label: lbl(1), Control: ir.IfElse[struct{}]{
			Then: []ir.Instruction[struct{}]{{Label: lbl(2), Data: ir.Drop{}}},
			Else: nil,
		}},
	})
	cdep := BuildControlDep(c)

	var thenBlock int
	found := false
	for _, idx := range c.BlockIndices() {
		b := c.Blocks[idx]
		if b.Kind == cfg.DataContent {
			for _, l := range b.Data {
				if l == lbl(2) {
					thenBlock, found = idx, true
				}
			}
		}
	}
	require.True(t, found)
	require.NotEmpty(t, cdep[thenBlock])
}

func TestBuildMemoryDepLinksLoadToPrecedingStoreSameAddress(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	c := annotated(t, []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 100}}, // addr
		{Label: lbl(1), Data: ir.ConstOp{Type: ir.I32, Value: 7}},   // value
		{Label: lbl(2), Data: ir.MemStore{}},
		{Label: lbl(3), Data: ir.ConstOp{Type: ir.I32, Value: 100}}, // addr again
		{Label: lbl(4), Data: ir.MemLoad{}},
		{Label: lbl(5), Control: ir.Return{}},
	})
	incoming := fixpoint.Run(c, fixpoint.ConstantTransfer)
	md := BuildMemoryDep(c, incoming)
	require.Contains(t, md[lbl(4)], lbl(2))
}
