// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fixpoint runs the worklist abstract-interpretation loop over a
// Spec-annotated CFG: a caller-supplied Transfer function maps a block's
// incoming Result to an outgoing one, Results are joined at merges, and the
// loop iterates to a fixpoint.
package fixpoint

import (
	"github.com/go-interpreter/wasmslice/cfg"
	"github.com/go-interpreter/wasmslice/domain"
	"github.com/go-interpreter/wasmslice/ir"
	"github.com/go-interpreter/wasmslice/ssa"
)

// Result is the abstract state propagated between blocks: a value binding
// per SSA var and the memory store observed so far. The zero Result is the
// lattice's bottom element.
type Result struct {
	Values map[ir.Var]domain.Value
	Memory domain.Store
}

// NewResult returns bottom: no vars bound, no writes observed.
func NewResult() Result {
	return Result{Values: make(map[ir.Var]domain.Value), Memory: domain.NewStore()}
}

// Get looks up a var's Value, defaulting to ValueBottom if unbound.
func (r Result) Get(v ir.Var) domain.Value {
	if val, ok := r.Values[v]; ok {
		return val
	}
	return domain.ValueBottom
}

// With returns a copy of r with v bound to val.
func (r Result) With(v ir.Var, val domain.Value) Result {
	out := Result{Values: make(map[ir.Var]domain.Value, len(r.Values)+1), Memory: r.Memory}
	for k, ev := range r.Values {
		out.Values[k] = ev
	}
	out.Values[v] = val
	return out
}

// JoinResult implements spec §4.4's join_result: per-var Value join, union
// of memory writes.
func JoinResult(a, b Result) Result {
	out := Result{Values: make(map[ir.Var]domain.Value, len(a.Values)+len(b.Values)), Memory: a.Memory.Join(b.Memory)}
	for v, val := range a.Values {
		out.Values[v] = val
	}
	for v, val := range b.Values {
		out.Values[v] = out.Get(v).Join(val)
	}
	return out
}

// CompareResult reports whether a and b are lattice-equal, used as the
// worklist's convergence test.
func CompareResult(a, b Result) bool {
	if len(a.Values) != len(b.Values) || !a.Memory.Equal(b.Memory) {
		return false
	}
	for v, val := range a.Values {
		if !val.Equal(b.Get(v)) {
			return false
		}
	}
	return true
}

// Transfer computes a block's outgoing Result from its incoming one. The
// caller owns the abstract semantics of every instruction in the block;
// fixpoint only owns propagation and convergence.
type Transfer func(c *cfg.CFG[ssa.Spec], blockIdx int, in Result) Result

// Run iterates Transfer over every block in the CFG via a FIFO worklist
// seeded with the entry block, re-enqueueing successors whenever a block's
// outgoing Result changes, until no block's Result changes — the standard
// monotone worklist fixpoint. It returns each block's incoming Result,
// keyed by block index, which is what callers (the memory dependence
// builder) actually need.
func Run(c *cfg.CFG[ssa.Spec], transfer Transfer) map[int]Result {
	in := make(map[int]Result, len(c.Blocks))
	out := make(map[int]Result, len(c.Blocks))
	for _, idx := range c.BlockIndices() {
		in[idx] = NewResult()
		out[idx] = NewResult()
	}

	queue := []int{c.Entry}
	queued := map[int]bool{c.Entry: true}
	visited := make(map[int]bool, len(c.Blocks))

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		queued[idx] = false

		merged := computeIncoming(c, idx, out)
		in[idx] = merged

		newOut := transfer(c, idx, merged)
		if visited[idx] && CompareResult(newOut, out[idx]) {
			continue
		}
		visited[idx] = true
		out[idx] = newOut

		for _, e := range c.Out(idx) {
			if !queued[e.Dst] {
				queued[e.Dst] = true
				queue = append(queue, e.Dst)
			}
		}
	}
	return in
}

// computeIncoming joins the outgoing Results of every predecessor of idx;
// the entry block (no predecessors) starts from bottom.
func computeIncoming(c *cfg.CFG[ssa.Spec], idx int, out map[int]Result) Result {
	ins := c.In(idx)
	if len(ins) == 0 {
		return NewResult()
	}
	acc := out[ins[0].Src]
	for _, e := range ins[1:] {
		acc = JoinResult(acc, out[e.Src])
	}
	return acc
}
