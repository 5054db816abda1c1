// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package summary defines the contract an external collaborator (an
// inter-procedural analysis, a user-supplied effect table) implements to
// tell this intra-procedural core what a call site does, since call
// semantics beyond arity are out of scope here.
package summary

import (
	"github.com/go-interpreter/wasmslice/domain"
	"github.com/go-interpreter/wasmslice/ir"
)

// CallEffect is what a Provider reports about one call site: its result (if
// any) as a domain.Value — possibly domain.ParameterOf(i), which the caller
// must resolve with Value.Adapt against that call's actual arguments before
// using it — and whether the call may have written to memory (in which case
// every region is assumed touched; this core has no way to learn a narrower
// footprint without the collaborator naming it).
type CallEffect struct {
	Result       domain.Value
	WritesMemory bool
}

// Provider answers what a given call instruction does, keyed by the
// callee's function index (direct call) or type index (indirect call via
// a table, where the concrete callee is not known in an intra-procedural
// analysis).
type Provider interface {
	Direct(funcIndex int) CallEffect
	Indirect(typeIndex int) CallEffect
}

// Fixed is the fixture Provider used by tests and by callers that have not
// wired a real inter-procedural summary yet: every call is assumed to
// write memory and return an unknown value, the conservative default.
type Fixed struct{}

func (Fixed) Direct(int) CallEffect   { return CallEffect{Result: domain.ValueTop, WritesMemory: true} }
func (Fixed) Indirect(int) CallEffect { return CallEffect{Result: domain.ValueTop, WritesMemory: true} }

// Label is a convenience for collaborators that want to key a cache of
// CallEffects by the actual call instruction rather than by callee index
// (useful once the same callee's effect can vary by call site, e.g. with
// constant-propagated arguments — left to the collaborator to exploit).
type Label = ir.Label
