package fixpoint

import (
	"github.com/go-interpreter/wasmslice/cfg"
	"github.com/go-interpreter/wasmslice/config"
	"github.com/go-interpreter/wasmslice/domain"
	"github.com/go-interpreter/wasmslice/ir"
	"github.com/go-interpreter/wasmslice/ssa"
	"github.com/go-interpreter/wasmslice/summary"
)

// stepContext bundles a transfer's two external dependencies: the
// config.Analysis flags that decide how much precision to spend (UseConst
// gates the Value lattice entirely; PropagateLocals/PropagateGlobals govern
// ssa.Infer upstream and do not affect this package directly, since by the
// time a Spec-annotated CFG reaches fixpoint, local/global identity is
// already baked into the vars themselves) and the summary.Provider
// consulted at call sites.
type stepContext struct {
	analysis config.Analysis
	provider summary.Provider
}

// defaultCtx backs the package-level ConstantTransfer/Step exported for
// callers (and tests) that have not wired their own config/summary: full
// constant propagation against the conservative Fixed provider.
var defaultCtx = stepContext{analysis: config.Default, provider: summary.Fixed{}}

// NewTransfer builds a Transfer parameterized by analysis and a
// summary.Provider — the value-propagation counterpart to
// ssa.Infer(cfg, config.Analysis{...}), letting a caller with real
// inter-procedural summaries (or a cheaper, UseConst-disabled run) plug
// them into the same worklist fixpoint.
func NewTransfer(analysis config.Analysis, provider summary.Provider) Transfer {
	ctx := stepContext{analysis: analysis, provider: provider}
	return ctx.transferBlock
}

// ConstantTransfer is the Transfer spec §4.3 names: constant propagation
// over the Value lattice plus region-tracking over the Memory lattice. It
// is precise for const/local/global moves and arithmetic on two known
// constants, and degrades to Top/AnyBase the moment a value or address
// can't be resolved — exactly the scope spec §1 draws around the abstract
// domain (no floating point, no operator semantics tables beyond add
// constant folding for address arithmetic).
var ConstantTransfer Transfer = defaultCtx.transferBlock

func (ctx stepContext) transferBlock(c *cfg.CFG[ssa.Spec], blockIdx int, in Result) Result {
	b := c.Blocks[blockIdx]
	out := in

	switch b.Kind {
	case cfg.DataContent:
		for _, lbl := range b.Data {
			out = ctx.step(c, lbl, out)
		}
	case cfg.ControlContent:
		out = ctx.step(c, b.Control, out)
	case cfg.MergeContent:
		out = ctx.stepMerge(c, b, out)
	}
	return out
}

// Step applies the default context's transfer for a single instruction's
// label, independent of which block it belongs to. Package dep replays
// this instruction by instruction within a block to recover the precise
// memory/value state at an intermediate point (e.g. the load in a
// store-then-load sequence), rather than only the state incoming to or
// outgoing from the whole block.
func Step(c *cfg.CFG[ssa.Spec], lbl ir.Label, in Result) Result {
	return defaultCtx.step(c, lbl, in)
}

func (ctx stepContext) step(c *cfg.CFG[ssa.Spec], lbl ir.Label, in Result) Result {
	instr := c.Instrs[lbl]
	if instr == nil {
		return in
	}
	if instr.Data != nil {
		return ctx.stepData(c, lbl, in)
	}
	return ctx.stepControl(c, lbl, in)
}

// stepMerge conservatively sets every merge var a block actually minted
// (across its stack, local, and global slots — Spec now carries all three)
// to Top: a merge var's real value is the join of whatever its
// predecessors' slot held, which package ssa's MergeUses relation names,
// but fixpoint.Result only tracks value bindings and isn't threaded that
// relation; slicer/dep's correctness needs merge identity and dependence,
// not a precise merge value, so Top is safe here without it.
func (ctx stepContext) stepMerge(c *cfg.CFG[ssa.Spec], b *cfg.Block[ssa.Spec], in Result) Result {
	out := in
	set := func(v ir.Var) {
		if v.Kind == ir.VarMerge {
			out = out.With(v, domain.ValueTop)
		}
	}
	for _, v := range b.Before.Stack {
		set(v)
	}
	for _, v := range b.Before.Locals {
		set(v)
	}
	for _, v := range b.Before.Globals {
		set(v)
	}
	return out
}

func (ctx stepContext) stepControl(c *cfg.CFG[ssa.Spec], lbl ir.Label, in Result) Result {
	instr := c.Instrs[lbl]
	if instr == nil {
		return in
	}
	switch op := instr.Control.(type) {
	case ir.Call:
		return ctx.stepCall(instr, in, ctx.provider.Direct(op.Target))
	case ir.CallIndirect:
		return ctx.stepCall(instr, in, ctx.provider.Indirect(op.TypeIndex))
	default:
		return in
	}
}

// stepCall applies a call's summarized effect: a WritesMemory effect
// records a whole-memory write (an inter-procedural summary this core
// consults gives no narrower footprint than that), and the call's result,
// if it defines one, is the summary's reported Value adapted against the
// call's actual argument values — resolving any domain.Parameter(i) the
// summary expressed its result in terms of. With analysis.UseConst off the
// result is forced to Top outright, the same degradation every other value
// in the lattice gets under that flag.
func (ctx stepContext) stepCall(instr *ir.Instruction[ssa.Spec], in Result, effect summary.CallEffect) Result {
	out := in
	if effect.WritesMemory {
		out.Memory = out.Memory.Record(instr.Label, domain.Region{Base: domain.AnyBase, Width: 4})
	}

	produced := 0
	switch op := instr.Control.(type) {
	case ir.Call:
		produced = op.Arity.Out
	case ir.CallIndirect:
		produced = op.Arity.Out
	}
	v, ok := instr.After.Top()
	if !ok || produced == 0 {
		return out
	}

	result := domain.ValueTop
	if ctx.analysis.UseConst {
		result = effect.Result.Adapt(callArgs(instr, out))
	}
	return out.With(v, result)
}

// callArgs maps each argument slot index (0 = the first value pushed to
// the callee, matching how a summary's domain.Parameter(i) names it) to
// its currently known Value, for CallEffect.Result.Adapt to substitute
// against. CallIndirect's table-index operand sits on top of the actual
// arguments and is excluded.
func callArgs(instr *ir.Instruction[ssa.Spec], in Result) map[int]domain.Value {
	before := instr.Before.Stack
	var arity int
	switch c := instr.Control.(type) {
	case ir.Call:
		arity = c.Arity.In
	case ir.CallIndirect:
		arity = c.Arity.In
		if len(before) > 0 {
			before = before[:len(before)-1]
		}
	default:
		return nil
	}

	args := make(map[int]domain.Value, arity)
	for i := 0; i < arity; i++ {
		idx := len(before) - arity + i
		if idx < 0 || idx >= len(before) {
			continue
		}
		args[i] = in.Get(before[idx])
	}
	return args
}

func (ctx stepContext) stepData(c *cfg.CFG[ssa.Spec], lbl ir.Label, in Result) Result {
	instr := c.Instrs[lbl]
	if instr == nil || instr.Data == nil {
		return in
	}
	def := ir.FromInstr(lbl)
	before := instr.Before.Stack

	switch op := instr.Data.(type) {
	case ir.ConstOp:
		// UseConst's "Value lattice at all" gate lives here: every other
		// Exact value in the function is ultimately derived from a constant
		// literal or a summarized call result (also gated, in stepCall), so
		// forcing ConstOp to Top with UseConst off is enough to degrade the
		// whole lattice to Top without threading the flag through every
		// case below.
		if !ctx.analysis.UseConst {
			return in.With(def, domain.ValueTop)
		}
		return in.With(def, domain.ValueOf(op.Value))

	case ir.LocalGet:
		return in.With(def, in.Get(ir.Local(op.Index)))

	case ir.LocalTee:
		v := operand(before, 0)
		next := in.With(ir.Local(op.Index), in.Get(v))
		return next.With(def, in.Get(v))

	case ir.LocalSet:
		v := operand(before, 0)
		return in.With(ir.Local(op.Index), in.Get(v))

	case ir.GlobalGet:
		return in.With(def, in.Get(ir.Global(op.Index)))

	case ir.GlobalSet:
		v := operand(before, 0)
		return in.With(ir.Global(op.Index), in.Get(v))

	case ir.BinaryOp:
		rhs, lhs := in.Get(operand(before, 0)), in.Get(operand(before, 1))
		return in.With(def, foldBinary(lhs, rhs))

	case ir.MemLoad:
		addr := operand(before, 0)
		_ = addr // the region this load reads from is reconstructed by package dep from in.Memory, not recorded on Result itself.
		return in.With(def, domain.ValueTop)

	case ir.MemStore:
		// MemStore consumes (address, value) in push order, so value sits on
		// top of stack and address is the slot below it.
		val, addr := operand(before, 0), operand(before, 1)
		region := domain.Region{Base: addressBase(in, addr), Width: 4}
		_ = val
		in.Memory = in.Memory.Record(lbl, region)
		return in

	default:
		if ir.DefinesValue(op) {
			return in.With(def, domain.ValueTop)
		}
		return in
	}
}

// operand returns the var occupying stack slot n-from-top (0 = top) of
// before, the slot count an op with the given arity actually touches.
func operand(before []ir.Var, fromBottomOfConsumed int) ir.Var {
	// before already holds only the slots live at this instruction; the
	// first consumed operand sits at a fixed offset from the end.
	idx := len(before) - 1 - fromBottomOfConsumed
	if idx < 0 || idx >= len(before) {
		return ir.Var{Kind: ir.VarUnknown}
	}
	return before[idx]
}

func addressBase(in Result, addr ir.Var) ir.Var {
	if in.Get(addr).Kind == domain.Exact {
		return ir.Const(in.Get(addr).Const)
	}
	return addr
}

// foldBinary treats every BinaryOp as address-style addition, spec's
// arithmetic scope (see DESIGN.md): two Exacts fold to their sum, an Exact
// offsetting an Interval shifts its bounds via AddOffset, and anything
// touching Bottom/Top/Parameter collapses the usual way.
func foldBinary(a, b domain.Value) domain.Value {
	switch {
	case a.Kind == domain.Exact && b.Kind == domain.Exact:
		return domain.ValueOf(a.Const + b.Const)
	case a.Kind == domain.Exact && b.Kind == domain.Interval:
		return b.AddOffset(a.Const)
	case a.Kind == domain.Interval && b.Kind == domain.Exact:
		return a.AddOffset(b.Const)
	case a.Kind == domain.Bottom || b.Kind == domain.Bottom:
		return domain.ValueBottom
	default:
		return domain.ValueTop
	}
}
