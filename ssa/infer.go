package ssa

import (
	"sort"

	"github.com/go-interpreter/wasmslice/cfg"
	"github.com/go-interpreter/wasmslice/config"
	"github.com/go-interpreter/wasmslice/graph"
	"github.com/go-interpreter/wasmslice/ir"
)

// MergeUses records, for every Var a merge block actually minted — because
// its incoming predecessors disagreed at that slot, per mergeFrame below —
// the set of distinct per-predecessor source vars it merges (spec.md
// §4.2/§4.5's "new_merge_variables" relation). It is consumed by both the
// use-def engine (package dep's Uses) and the slicer (closeBackward) to
// step backward through a control-flow join instead of stopping at it.
type MergeUses map[ir.Var][]ir.Var

// frame is Infer's internal working state: a Stack plus Locals/Globals
// identity maps plus the current memory token, threaded block to block.
// Spec is frame's flattened, externally-visible projection.
type frame struct {
	Stack   []ir.Var
	Locals  map[int]ir.Var
	Globals map[int]ir.Var
	Memory  ir.Var
}

func (f frame) clone() frame {
	locals := make(map[int]ir.Var, len(f.Locals))
	for k, v := range f.Locals {
		locals[k] = v
	}
	globals := make(map[int]ir.Var, len(f.Globals))
	for k, v := range f.Globals {
		globals[k] = v
	}
	return frame{
		Stack:   append([]ir.Var(nil), f.Stack...),
		Locals:  locals,
		Globals: globals,
		Memory:  f.Memory,
	}
}

func (f frame) Local(i int) ir.Var {
	if v, ok := f.Locals[i]; ok {
		return v
	}
	return ir.Local(i)
}

func (f frame) Global(i int) ir.Var {
	if v, ok := f.Globals[i]; ok {
		return v
	}
	return ir.Global(i)
}

func (f frame) spec() Spec {
	return Spec{Stack: f.Stack, Locals: f.Locals, Globals: f.Globals, Memory: f.Memory}
}

// entryFrame seeds the function's incoming state: an empty stack, the
// memory-entry token, and — only when analysis.PropagateLocals is set —
// every local slot (arguments followed by declared locals) named by its
// own entry identity, ir.Local(i), giving rise to spec.md §4.5's
// `(l, Local i) -> Entry(Local i)` definition kind. Globals are not
// pre-seeded (the CFG carries no global count); Spec.Global/frame.Global's
// fallback to ir.Global(i) supplies the same entry identity lazily, on
// first read.
func entryFrame(c *cfg.CFG[struct{}], analysis config.Analysis) frame {
	f := frame{Locals: make(map[int]ir.Var), Globals: make(map[int]ir.Var), Memory: ir.MemoryEntry()}
	if analysis.PropagateLocals {
		for i := 0; i < len(c.ArgTypes)+len(c.LocalTypes); i++ {
			f.Locals[i] = ir.Local(i)
		}
	}
	return f
}

// stepInstr applies one DataContent instruction's effect to a frame.
// LocalGet/GlobalGet consult (and LocalSet/GlobalSet/LocalTee update) the
// real Locals/Globals identity maps when the matching config flag is set;
// otherwise they fall back to minting a fresh, disconnected
// ir.FromInstr(lbl) per read, the legacy fully-imprecise behaviour
// PropagateLocals/PropagateGlobals = false asks for. MemStore always
// advances the memory token regardless of config: the "memory mapping"
// naming requirement is a correctness concern, not a precision knob, the
// same as local/global naming now is.
func stepInstr(analysis config.Analysis, in frame, lbl ir.Label, op ir.DataOp) frame {
	out := in.clone()
	consumed := ir.DataArity(op)
	if consumed > len(out.Stack) {
		consumed = len(out.Stack)
	}
	top := func() ir.Var {
		if len(in.Stack) == 0 {
			return ir.Var{Kind: ir.VarUnknown}
		}
		return in.Stack[len(in.Stack)-1]
	}

	switch d := op.(type) {
	case ir.LocalGet:
		out.Stack = out.Stack[:len(out.Stack)-consumed]
		if analysis.PropagateLocals {
			out.Stack = append(out.Stack, out.Local(d.Index))
		} else {
			out.Stack = append(out.Stack, ir.FromInstr(lbl))
		}
		return out

	case ir.LocalSet:
		out.Stack = out.Stack[:len(out.Stack)-consumed]
		if analysis.PropagateLocals {
			out.Locals[d.Index] = top()
		}
		return out

	case ir.LocalTee:
		if analysis.PropagateLocals {
			out.Locals[d.Index] = top()
		}
		out.Stack = out.Stack[:len(out.Stack)-consumed]
		out.Stack = append(out.Stack, top())
		return out

	case ir.GlobalGet:
		out.Stack = out.Stack[:len(out.Stack)-consumed]
		if analysis.PropagateGlobals {
			out.Stack = append(out.Stack, out.Global(d.Index))
		} else {
			out.Stack = append(out.Stack, ir.FromInstr(lbl))
		}
		return out

	case ir.GlobalSet:
		out.Stack = out.Stack[:len(out.Stack)-consumed]
		if analysis.PropagateGlobals {
			out.Globals[d.Index] = top()
		}
		return out

	case ir.MemStore:
		out.Stack = out.Stack[:len(out.Stack)-consumed]
		out.Memory = ir.MemoryAfter(lbl)
		return out

	default:
		out.Stack = NextStack(in.Stack, consumed, ir.DefinesValue(op), lbl)
		return out
	}
}

func controlArity(instr *ir.Instruction[struct{}]) (in, out int) {
	if instr == nil {
		return 0, 0
	}
	switch c := instr.Control.(type) {
	case ir.Call:
		return c.Arity.In, c.Arity.Out
	case ir.CallIndirect:
		return c.Arity.In + 1, c.Arity.Out
	case ir.Block[struct{}]:
		return c.Arity.In, 0
	case ir.Loop[struct{}]:
		return c.Arity.In, 0
	case ir.IfElse[struct{}]:
		return c.Arity.In + 1, 0
	case ir.BrIf:
		return 1, 0
	default:
		return 0, 0
	}
}

// controlFrame applies a ControlContent block's stack effect; Locals/
// Globals/Memory pass through unchanged — a call's effect on values is
// summarized by package fixpoint's transfer, at the value-lattice level,
// not renamed here.
func controlFrame(instr *ir.Instruction[struct{}], in frame, lbl ir.Label) frame {
	out := in.clone()
	inN, outN := controlArity(instr)
	n := len(out.Stack) - inN
	if n < 0 {
		n = 0
	}
	out.Stack = out.Stack[:n]
	for i := 0; i < outN; i++ {
		out.Stack = append(out.Stack, ir.FromInstr(lbl))
	}
	return out
}

// frameDelta computes a block's outgoing frame from its incoming one.
func frameDelta(analysis config.Analysis, c *cfg.CFG[struct{}], b *cfg.Block[struct{}], in frame) frame {
	switch b.Kind {
	case cfg.DataContent:
		cur := in
		for _, lbl := range b.Data {
			instr := c.Instrs[lbl]
			if instr == nil || instr.Data == nil {
				continue
			}
			cur = stepInstr(analysis, cur, lbl, instr.Data)
		}
		return cur
	case cfg.ControlContent:
		return controlFrame(c.Instrs[b.Control], in, b.Control)
	default: // MergeContent: rewritten wholesale by mergeFrame.
		return in
	}
}

// Infer walks the CFG in reverse-postorder, assigning every block (and
// every instruction) a Before/After Spec, synthesizing merge variables
// only where a join's incoming predecessors actually disagree (mergeFrame,
// spec §4.2 invariant 3), and returns a Spec-annotated copy of the CFG
// together with the MergeUses relation every freshly-minted merge var
// needs for backward analyses to see through it. Unlike the value/memory
// fixpoint in package fixpoint, this pass runs exactly once: a block's
// incoming stack depth is fixed by its static nesting, so there is nothing
// left to iterate once every predecessor has been visited — which reverse
// postorder on an irreducible-free Wasm CFG guarantees for everything
// except loop back edges, which MergeContent already resolves
// structurally.
func Infer(c *cfg.CFG[struct{}], analysis config.Analysis) (*cfg.CFG[Spec], MergeUses) {
	order := reversePostorder(c)

	before := make(map[int]frame, len(order))
	after := make(map[int]frame, len(order))
	instrBefore := make(map[ir.Label]frame)
	instrAfter := make(map[ir.Label]frame)
	uses := make(MergeUses)

	for _, idx := range order {
		b := c.Blocks[idx]

		var in frame
		switch {
		case idx == c.Entry:
			in = entryFrame(c, analysis)
		case b.Kind == cfg.MergeContent:
			in = mergeFrame(c, idx, after, uses)
		default:
			in = firstPredecessorFrame(c, idx, after)
		}
		before[idx] = in

		annotateInstrs(analysis, c, b, in, instrBefore, instrAfter)
		after[idx] = frameDelta(analysis, c, b, in)
	}

	out := cfg.New[Spec](c.FuncIndex)
	out.Exported, out.Name = c.Exported, c.Name
	out.ArgTypes, out.LocalTypes, out.ReturnType = c.ArgTypes, c.LocalTypes, c.ReturnType
	out.Entry, out.Exit = c.Entry, c.Exit
	for idx, loop := range c.LoopHeads {
		out.LoopHeads[idx] = loop
	}
	for _, idx := range c.BlockIndices() {
		b := c.Blocks[idx]
		out.AddBlock(&cfg.Block[Spec]{
			Index: b.Index, Kind: b.Kind,
			Data: append([]ir.Label(nil), b.Data...), Control: b.Control, Merge: b.Merge,
			Before: before[idx].spec(), After: after[idx].spec(),
		})
	}
	for lbl, in := range c.Instrs {
		out.AddInstr(&ir.Instruction[Spec]{
			Label: lbl, Data: in.Data, Control: in.Control,
			Before: instrBefore[lbl].spec(), After: instrAfter[lbl].spec(),
		})
	}
	for _, idx := range c.BlockIndices() {
		for _, e := range c.Out(idx) {
			out.AddEdge(e)
		}
	}
	return out, uses
}

func annotateInstrs(analysis config.Analysis, c *cfg.CFG[struct{}], b *cfg.Block[struct{}], in frame, before, after map[ir.Label]frame) {
	switch b.Kind {
	case cfg.DataContent:
		cur := in
		for _, lbl := range b.Data {
			instr := c.Instrs[lbl]
			before[lbl] = cur
			if instr != nil && instr.Data != nil {
				cur = stepInstr(analysis, cur, lbl, instr.Data)
			}
			after[lbl] = cur
		}
	case cfg.ControlContent:
		before[b.Control] = in
		after[b.Control] = controlFrame(c.Instrs[b.Control], in, b.Control)
	case cfg.MergeContent:
		before[b.Merge] = in
		after[b.Merge] = in
	}
}

// firstPredecessorFrame returns the single predecessor's after-frame for a
// non-merge block (invariant (ii) guarantees there is at most one, except
// for the entry block which has none).
func firstPredecessorFrame(c *cfg.CFG[struct{}], idx int, after map[int]frame) frame {
	ins := c.In(idx)
	if len(ins) == 0 {
		return frame{}
	}
	return after[ins[0].Src]
}

// incomingFrames returns idx's predecessors' after-frames, ordered by
// source block index for determinism.
func incomingFrames(c *cfg.CFG[struct{}], idx int, after map[int]frame) []frame {
	ins := append([]cfg.Edge(nil), c.In(idx)...)
	sort.Slice(ins, func(i, j int) bool { return ins[i].Src < ins[j].Src })
	out := make([]frame, 0, len(ins))
	for _, e := range ins {
		if f, ok := after[e.Src]; ok {
			out = append(out, f)
		}
	}
	return out
}

// joinSlot decides one slot's merged identity given every predecessor's var
// there: if every predecessor agrees, that common Var is kept — spec §4.2
// invariant 3, "unchanged positions keep the predecessors' common Var" —
// which in particular covers any join with a single predecessor (a
// block/loop continuation with no internal br, or a straight-line
// function's Exit). Only when predecessors actually differ does it mint a
// fresh var via mint, recording every distinct incoming var under it in
// uses so backward analyses can step through the join.
func joinSlot(preds []ir.Var, mint func() ir.Var, uses MergeUses) ir.Var {
	if len(preds) == 0 {
		return mint()
	}
	agree := true
	for _, p := range preds[1:] {
		if p != preds[0] {
			agree = false
			break
		}
	}
	if agree {
		return preds[0]
	}

	v := mint()
	seen := make(map[ir.Var]bool, len(preds))
	var srcs []ir.Var
	for _, p := range preds {
		if !seen[p] {
			seen[p] = true
			srcs = append(srcs, p)
		}
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i].Less(srcs[j]) })
	uses[v] = srcs
	return v
}

// unionIntKeys returns the sorted union of every key sel observes across
// frames — the local/global slots a merge needs to consider at all; a slot
// no predecessor ever recorded stays absent from the merged Spec exactly as
// it was absent from every predecessor.
func unionIntKeys(frames []frame, sel func(frame) map[int]ir.Var) []int {
	seen := make(map[int]bool)
	for _, f := range frames {
		for k := range sel(f) {
			seen[k] = true
		}
	}
	keys := make([]int, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// mergeFrame computes a MergeContent block's incoming frame by diffing,
// per stack position / local slot / global slot / the memory token, every
// predecessor's value at that slot (joinSlot), only minting a fresh merge
// var where they actually disagree.
func mergeFrame(c *cfg.CFG[struct{}], idx int, after map[int]frame, uses MergeUses) frame {
	ins := incomingFrames(c, idx, after)
	if len(ins) == 0 {
		return frame{Locals: map[int]ir.Var{}, Globals: map[int]ir.Var{}}
	}

	depth := len(ins[0].Stack)
	stack := make([]ir.Var, depth)
	for p := 0; p < depth; p++ {
		pos := p
		preds := make([]ir.Var, len(ins))
		for i, f := range ins {
			if pos < len(f.Stack) {
				preds[i] = f.Stack[pos]
			} else {
				preds[i] = ir.Var{Kind: ir.VarUnknown}
			}
		}
		stack[pos] = joinSlot(preds, func() ir.Var { return ir.Merge(idx, pos) }, uses)
	}

	locals := make(map[int]ir.Var)
	for _, k := range unionIntKeys(ins, func(f frame) map[int]ir.Var { return f.Locals }) {
		key := k
		preds := make([]ir.Var, len(ins))
		for i, f := range ins {
			preds[i] = f.Local(key)
		}
		locals[key] = joinSlot(preds, func() ir.Var { return ir.MergeLocal(idx, key) }, uses)
	}

	globals := make(map[int]ir.Var)
	for _, k := range unionIntKeys(ins, func(f frame) map[int]ir.Var { return f.Globals }) {
		key := k
		preds := make([]ir.Var, len(ins))
		for i, f := range ins {
			preds[i] = f.Global(key)
		}
		globals[key] = joinSlot(preds, func() ir.Var { return ir.MergeGlobal(idx, key) }, uses)
	}

	memPreds := make([]ir.Var, len(ins))
	for i, f := range ins {
		memPreds[i] = f.Memory
	}
	memory := joinSlot(memPreds, func() ir.Var { return ir.MergeMemory(idx) }, uses)

	return frame{Stack: stack, Locals: locals, Globals: globals, Memory: memory}
}

// reversePostorder walks the CFG's blocks via graph.ReversePostorder,
// falling back to BlockIndices for any block graph.ReversePostorder did not
// reach from Entry (dead code after an unconditional terminator).
func reversePostorder(c *cfg.CFG[struct{}]) []int {
	g := c.Graph()
	order := graph.ReversePostorder(g, c.Entry)
	seen := make(map[int]bool, len(order))
	for _, idx := range order {
		seen[idx] = true
	}
	for _, idx := range c.BlockIndices() {
		if !seen[idx] {
			order = append(order, idx)
		}
	}
	return order
}
