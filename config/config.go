// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config carries the small set of knobs the rest of the analysis
// core reads, as an explicit value threaded through entry points rather
// than as package-level state — so running the same analysis twice with
// different settings in the same process (as the test suite does) never
// has one run leak into another.
package config

// Analysis controls how much of the abstract-interpretation and slicing
// machinery engages for a given run.
type Analysis struct {
	// PropagateLocals makes ssa.Infer name a local.get's result by the var
	// the local slot currently holds (tracking local.set/tee); disabling it
	// gives every local read a fresh per-instruction var instead.
	PropagateLocals bool
	// PropagateGlobals is PropagateLocals' counterpart for globals.
	PropagateGlobals bool
	// UseConst enables the Value lattice at all; with it false the fixpoint
	// still runs (dep needs its Memory half) but no var is ever Exact, so
	// memory dependence degrades to "every load may-alias every store with
	// an unresolved base."
	UseConst bool
	// KeepEntireBlocks makes the slicer retain or drop a DataContent
	// block's instructions as a unit rather than per-instruction, trading
	// slice precision for a simpler (and cheaper to validate) result.
	KeepEntireBlocks bool
}

// Default is the configuration every exported entry point uses unless the
// caller overrides it: full precision, per-instruction slicing.
var Default = Analysis{
	PropagateLocals:  true,
	PropagateGlobals: true,
	UseConst:         true,
	KeepEntireBlocks: false,
}
