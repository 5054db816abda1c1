// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ssa turns a unit-annotated cfg.CFG into one annotated, at every
// instruction, with the operand-stack shape expressed in terms of SSA vars:
// which var each stack slot holds before the instruction runs, and which
// var (if any) the instruction defines.
package ssa

import (
	"github.com/go-interpreter/wasmslice/ir"
)

// Spec is the per-program-point annotation: the operand stack's SSA names
// just before the instruction/block runs, plus which Var currently names
// each local and global slot and which Var names the current memory
// version. All four flow together through Infer's pass and are read by the
// dependence analyses in package dep. Locals/Globals hold no entries
// wherever the config.Analysis that produced this Spec had the
// corresponding propagation flag off; in that mode local/global reads were
// named by fresh per-instruction vars instead and carry no cross-
// instruction identity to look up here, so Local/Global fall back to the
// slot's own entry identity.
type Spec struct {
	Stack   []ir.Var
	Locals  map[int]ir.Var
	Globals map[int]ir.Var
	Memory  ir.Var
}

// Local returns the Var currently naming local slot i.
func (s Spec) Local(i int) ir.Var {
	if v, ok := s.Locals[i]; ok {
		return v
	}
	return ir.Local(i)
}

// Global returns the Var currently naming global slot i.
func (s Spec) Global(i int) ir.Var {
	if v, ok := s.Globals[i]; ok {
		return v
	}
	return ir.Global(i)
}

// NextStack derives the stack spec.md requires immediately after an
// instruction with the given consumed arity and defined-value flag.
func NextStack(before []ir.Var, consumed int, defines bool, label ir.Label) []ir.Var {
	n := len(before) - consumed
	if n < 0 {
		n = 0
	}
	out := append([]ir.Var(nil), before[:n]...)
	if defines {
		out = append(out, ir.FromInstr(label))
	}
	return out
}

// Top returns the var naming the topmost stack slot, or the zero Var and
// false if the stack is empty.
func (s Spec) Top() (ir.Var, bool) {
	if len(s.Stack) == 0 {
		return ir.Var{}, false
	}
	return s.Stack[len(s.Stack)-1], true
}

// Empty is the zero Spec: an empty operand stack with no local, global or
// memory var.
var Empty = Spec{}
