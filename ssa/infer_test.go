package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/wasmslice/cfg"
	"github.com/go-interpreter/wasmslice/config"
	"github.com/go-interpreter/wasmslice/ir"
)

func build(t *testing.T, body []ir.Instruction[struct{}]) *cfg.CFG[struct{}] {
	t.Helper()
	c, err := cfg.Build(cfg.Signature{FuncIndex: 0}, body)
	require.NoError(t, err)
	return c
}

func TestInferStraightLineAssignsDistinctVars(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 1}},
		{Label: lbl(1), Data: ir.ConstOp{Type: ir.I32, Value: 2}},
		{Label: lbl(2), Data: ir.BinaryOp{}},
		{Label: lbl(3), Control: ir.Return{}},
	}
	c := build(t, body)
	annotated, _ := Infer(c, config.Default)

	addInstr := annotated.Instrs[lbl(2)]
	require.Len(t, addInstr.Before.Stack, 2)
	require.Equal(t, ir.FromInstr(lbl(0)), addInstr.Before.Stack[0])
	require.Equal(t, ir.FromInstr(lbl(1)), addInstr.Before.Stack[1])
}

func TestInferMergeBlockMintsFreshVar(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 1}},
		{Label: lbl(1), Control: ir.IfElse[struct{}]{
			Then: []ir.Instruction[struct{}]{{Label: lbl(2), Data: ir.ConstOp{Type: ir.I32, Value: 10}}},
			Else: []ir.Instruction[struct{}]{{Label: lbl(3), Data: ir.ConstOp{Type: ir.I32, Value: 20}}},
		}},
	}
	c := build(t, body)
	annotated, _ := Infer(c, config.Default)

	var mergeBlock *cfg.Block[Spec]
	for _, idx := range annotated.BlockIndices() {
		b := annotated.Blocks[idx]
		if b.Kind == cfg.MergeContent && idx != annotated.Exit {
			mergeBlock = b
		}
	}
	require.NotNil(t, mergeBlock)
	require.Len(t, mergeBlock.Before.Stack, 1)
	require.Equal(t, ir.VarMerge, mergeBlock.Before.Stack[0].Kind)
}

// TestInferStraightLineExitKeepsCommonVar is spec.md §8's scenario 2
// (local.get 0; local.get 1; i32.add): the function's Exit block is a
// MergeContent block with exactly one predecessor, so it must keep that
// predecessor's var rather than minting a fresh one at every position.
func TestInferStraightLineExitKeepsCommonVar(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.LocalGet{Index: 0}},
		{Label: lbl(1), Data: ir.LocalGet{Index: 1}},
		{Label: lbl(2), Data: ir.BinaryOp{}},
	}
	c := build(t, body)
	annotated, uses := Infer(c, config.Default)

	exit := annotated.Blocks[annotated.Exit]
	require.Equal(t, cfg.MergeContent, exit.Kind)
	require.Len(t, exit.Before.Stack, 1)
	require.Equal(t, ir.FromInstr(lbl(2)), exit.Before.Stack[0])
	require.Empty(t, uses)
}

// TestInferMergeKeepsAgreeingValueNoFreshVar covers an if/else whose two
// arms push the same constant: the merge must not mint a fresh var since
// spec.md §4.2 invariant 3 requires the predecessors' common identity to
// survive an unchanged position.
func TestInferMergeKeepsAgreeingValueNoFreshVar(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 1}},
		{Label: lbl(1), Control: ir.IfElse[struct{}]{
			Then: []ir.Instruction[struct{}]{{Label: lbl(2), Data: ir.LocalGet{Index: 0}}},
			Else: []ir.Instruction[struct{}]{{Label: lbl(3), Data: ir.LocalGet{Index: 0}}},
		}},
	}
	c := build(t, body)
	annotated, uses := Infer(c, config.Default)

	var mergeBlock *cfg.Block[Spec]
	for _, idx := range annotated.BlockIndices() {
		b := annotated.Blocks[idx]
		if b.Kind == cfg.MergeContent && idx != annotated.Exit {
			mergeBlock = b
		}
	}
	require.NotNil(t, mergeBlock)
	require.Len(t, mergeBlock.Before.Stack, 1)
	require.Equal(t, ir.Local(0), mergeBlock.Before.Stack[0])
	require.Empty(t, uses)
}

// TestInferMergeRecordsMergeUsesForMintedVar checks the MergeUses relation
// itself: when the merge does mint a fresh var, its two distinct incoming
// sources are recorded under it, sorted and deduplicated.
func TestInferMergeRecordsMergeUsesForMintedVar(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 1}},
		{Label: lbl(1), Control: ir.IfElse[struct{}]{
			Then: []ir.Instruction[struct{}]{{Label: lbl(2), Data: ir.ConstOp{Type: ir.I32, Value: 10}}},
			Else: []ir.Instruction[struct{}]{{Label: lbl(3), Data: ir.ConstOp{Type: ir.I32, Value: 20}}},
		}},
	}
	c := build(t, body)
	annotated, uses := Infer(c, config.Default)

	var mergeVar ir.Var
	for _, idx := range annotated.BlockIndices() {
		b := annotated.Blocks[idx]
		if b.Kind == cfg.MergeContent && idx != annotated.Exit {
			mergeVar = b.Before.Stack[0]
		}
	}
	require.ElementsMatch(t, []ir.Var{ir.FromInstr(lbl(2)), ir.FromInstr(lbl(3))}, uses[mergeVar])
}
