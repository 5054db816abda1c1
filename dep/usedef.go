// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dep derives the three dependence relations the slicer walks
// backward over: use-def (which instruction defines a var a later
// instruction reads), control-dependence (which branch governs whether an
// instruction executes, via the post-dominator tree), and
// memory-dependence (which store a load may read from).
package dep

import (
	"sort"

	"github.com/go-interpreter/wasmslice/cfg"
	"github.com/go-interpreter/wasmslice/ir"
	"github.com/go-interpreter/wasmslice/ssa"
)

// UseDef maps a used Var to the label that defines it. Local/global/const
// vars have no defining instruction (they are "parameters" of the
// function or literals) and are absent from the map; callers treat a
// missing entry as "this use's def is outside the instruction stream."
type UseDef map[ir.Var]ir.Label

// BuildUseDef records, for every VarInstr an instruction pushes (the var
// its After stack adds over its Before stack) and every VarMerge a merge
// block mints, which label defines it.
func BuildUseDef(c *cfg.CFG[ssa.Spec]) UseDef {
	ud := make(UseDef)
	for lbl, instr := range c.Instrs {
		switch v := defines(instr); {
		case v != nil:
			ud[*v] = lbl
		}
	}
	for _, idx := range c.BlockIndices() {
		b := c.Blocks[idx]
		if b.Kind != cfg.MergeContent {
			continue
		}
		// v.MergeBlock == idx picks out only the vars this block itself
		// minted, not a var from an earlier join that merely survives
		// unchanged through this one's Before (a chain of agreeing merges
		// would otherwise keep rebinding the same var to the wrong, later
		// label).
		record := func(v ir.Var) {
			if v.Kind == ir.VarMerge && v.MergeBlock == idx {
				ud[v] = b.Merge
			}
		}
		for _, v := range b.Before.Stack {
			record(v)
		}
		for _, v := range b.Before.Locals {
			record(v)
		}
		for _, v := range b.Before.Globals {
			record(v)
		}
		record(b.Before.Memory)
	}
	return ud
}

// defines returns the var an instruction's After-stack adds relative to its
// Before-stack, or nil if it defines nothing.
func defines(instr *ir.Instruction[ssa.Spec]) *ir.Var {
	if len(instr.After.Stack) <= len(instr.Before.Stack) {
		return nil
	}
	v := instr.After.Stack[len(instr.After.Stack)-1]
	if v.Kind != ir.VarInstr {
		return nil
	}
	return &v
}

// Uses returns, in a fixed deterministic order, every Var a single
// instruction reads: its consumed stack operands (the top N slots of
// Before, where N is the number of operands the instruction's arity says it
// consumes) plus, for LocalSet/GlobalSet/LocalTee, nothing extra (their
// "index" operand is immediate data, not an SSA var). A merge block's own
// instruction consumes nothing off any stack — its uses instead come from
// the MergeUses relation recorded when ssa.Infer minted it.
func Uses(instr *ir.Instruction[ssa.Spec], uses ssa.MergeUses) []ir.Var {
	if _, ok := instr.Control.(ir.MergeOp); ok {
		return mergeUses(instr, uses)
	}
	before, after := instr.Before.Stack, instr.After.Stack
	consumed := consumedCount(before, after, instr)
	if consumed <= 0 || consumed > len(before) {
		return nil
	}
	out := append([]ir.Var(nil), before[len(before)-consumed:]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// mergeUses returns the union of every incoming source var recorded, in
// uses, for whichever of this merge's stack/local/global/memory slots it
// actually minted a fresh var for — the vars a backward slice must step
// through to see past this join (spec.md §4.2's "new_merge_variables"
// relation). A slot the merge left unchanged (every predecessor agreed)
// contributes nothing here: its source is found through its own defining
// instruction like any other var, not through the merge.
func mergeUses(instr *ir.Instruction[ssa.Spec], uses ssa.MergeUses) []ir.Var {
	seen := make(map[ir.Var]bool)
	var out []ir.Var
	add := func(v ir.Var) {
		srcs, ok := uses[v]
		if !ok {
			return
		}
		for _, s := range srcs {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	for _, v := range instr.Before.Stack {
		add(v)
	}
	for _, k := range sortedIntKeys(instr.Before.Locals) {
		add(instr.Before.Locals[k])
	}
	for _, k := range sortedIntKeys(instr.Before.Globals) {
		add(instr.Before.Globals[k])
	}
	add(instr.Before.Memory)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func sortedIntKeys(m map[int]ir.Var) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func consumedCount(before, after []ir.Var, instr *ir.Instruction[ssa.Spec]) int {
	if instr.Data != nil {
		return ir.DataArity(instr.Data)
	}
	// Block/Loop/IfElse payloads are always the struct{}-annotated
	// instantiation cfg.Build constructed them with — lowering never
	// retypes a control payload to the CFG's own annotation type, since
	// nothing about Type/Arity depends on A once Body/Then/Else are gone.
	switch c := instr.Control.(type) {
	case ir.Call:
		return c.Arity.In
	case ir.CallIndirect:
		return c.Arity.In + 1
	case ir.Block[struct{}]:
		return c.Arity.In
	case ir.Loop[struct{}]:
		return c.Arity.In
	case ir.IfElse[struct{}]:
		return c.Arity.In + 1
	case ir.BrIf:
		return 1
	default:
		return 0
	}
}
