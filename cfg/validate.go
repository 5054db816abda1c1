// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import (
	"fmt"

	"github.com/go-interpreter/wasmslice/ir"
)

// ErrStackUnderflow is returned when a block consumes more values than its
// incoming stack depth provides.
type ErrStackUnderflow struct {
	Block int
	Label ir.Label
}

func (e ErrStackUnderflow) Error() string {
	return fmt.Sprintf("cfg: stack underflow at block #%d (%s)", e.Block, e.Label)
}

// ErrStackMismatch is returned when two predecessors of a block disagree on
// the stack depth they hand off, which a merge block's shared annotation
// cannot represent.
type ErrStackMismatch struct {
	Block    int
	Expected int
	Got      int
}

func (e ErrStackMismatch) Error() string {
	return fmt.Sprintf("cfg: block #%d reached with stack depth %d, expected %d", e.Block, e.Got, e.Expected)
}

// ErrNonMergeJoin is returned when a block has more than one predecessor but
// is not MergeContent — invariant (ii).
type ErrNonMergeJoin int

func (e ErrNonMergeJoin) Error() string {
	return fmt.Sprintf("cfg: block #%d has multiple predecessors but is not a merge block", int(e))
}

// ErrEmptyDataBlock is returned when a DataContent block holds zero
// instructions outside of the slicer's post-condition allowance.
type ErrEmptyDataBlock int

func (e ErrEmptyDataBlock) Error() string {
	return fmt.Sprintf("cfg: data block #%d is empty", int(e))
}

// stackArity returns a block's (consumed, produced) stack depth delta. Only
// arity is tracked, per the scope limitation that operand types are not
// modelled in this core (spec §1 Non-goals: operator semantics tables).
func stackArity(c *CFG[struct{}], b *Block[struct{}]) (in, out int) {
	switch b.Kind {
	case DataContent:
		for _, lbl := range b.Data {
			instr := c.Instrs[lbl]
			if instr == nil || instr.Data == nil {
				continue
			}
			consumed := ir.DataArity(instr.Data)
			if consumed > out {
				in += consumed - out
				out = 0
			} else {
				out -= consumed
			}
			if ir.DefinesValue(instr.Data) {
				out++
			}
		}
		return in, out
	case ControlContent:
		instr := c.Instrs[b.Control]
		if instr == nil {
			return 0, 0
		}
		switch ctrl := instr.Control.(type) {
		case ir.Call:
			return ctrl.Arity.In, ctrl.Arity.Out
		case ir.CallIndirect:
			return ctrl.Arity.In + 1, ctrl.Arity.Out // +1 for the table index operand
		case ir.Block[struct{}]:
			return ctrl.Arity.In, 0
		case ir.Loop[struct{}]:
			return ctrl.Arity.In, 0
		case ir.IfElse[struct{}]:
			return ctrl.Arity.In + 1, 0 // +1 for the condition operand
		case ir.BrIf:
			return 1, 0 // condition consumed; carried value (if any) passes through untouched
		case ir.Br, ir.BrTable, ir.Return, ir.Unreachable:
			return 0, 0
		default:
			return 0, 0
		}
	default: // MergeContent
		return 0, 0
	}
}

// ValidateStackShape walks the CFG from its entry block, propagating the net
// stack depth along every edge and checking the invariants from spec §3:
// every block other than the entry and exit with indegree > 1 is a merge
// block, every block's
// predecessors agree on incoming depth, and a data block is non-empty unless
// allowEmptyData is set (the slicer's post-condition relaxes this).
func ValidateStackShape(c *CFG[struct{}], allowEmptyData bool) error {
	depth := map[int]int{c.Entry: 0}
	visited := make(map[int]bool)
	queue := []int{c.Entry}

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		if visited[idx] {
			continue
		}
		visited[idx] = true

		b, err := c.FindBlock(idx)
		if err != nil {
			return err
		}

		if idx != c.Entry && idx != c.Exit && c.InDegree(idx) > 1 && b.Kind != MergeContent {
			return ErrNonMergeJoin(idx)
		}
		if !allowEmptyData && b.Kind == DataContent && len(b.Data) == 0 {
			return ErrEmptyDataBlock(idx)
		}

		in, out := stackArity(c, b)
		cur := depth[idx]
		if cur < in {
			lbl := b.Control
			if b.Kind == MergeContent {
				lbl = b.Merge
			}
			return ErrStackUnderflow{Block: idx, Label: lbl}
		}
		after := cur - in + out

		for _, e := range c.Out(idx) {
			if existing, ok := depth[e.Dst]; ok {
				if existing != after {
					return ErrStackMismatch{Block: e.Dst, Expected: existing, Got: after}
				}
			}
			depth[e.Dst] = after
			if !visited[e.Dst] {
				queue = append(queue, e.Dst)
			}
		}
	}
	return nil
}
