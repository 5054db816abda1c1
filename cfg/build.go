package cfg

import (
	"github.com/pkg/errors"

	"github.com/go-interpreter/wasmslice/ir"
)

// Signature is the piece of a front-end function record that the builder
// needs; callers translate from wasm.Function/wasm.Module into this before
// calling Build (spec §6's "Module ingestion" boundary).
type Signature struct {
	FuncIndex  int
	Exported   bool
	Name       string
	ArgTypes   []ir.ValueType
	LocalTypes []ir.ValueType
	ReturnType []ir.ValueType
}

// target is a labelStack entry: what `br n` resolves to at a given nesting
// depth, and whether it is a loop head (used only for documentation/asserts;
// the edge-building logic itself is identical for both).
type target struct {
	continuation int
	isLoop       bool
}

// noPred is the flush() sentinel meaning "no predecessor edge to add" —
// reached immediately after an unconditional br/br_table/return/unreachable,
// where the following straight-line code (if any) is unreachable from the
// construct just closed.
const noPred = -1

type builder struct {
	cfg        *CFG[struct{}]
	alloc      *ir.Allocator
	labelStack []target

	last     int // predecessor block index for the next emitted block, or noPred
	lastCond *bool
	pending  []ir.Label

	entryAssigned bool
}

func (b *builder) newBlockIndex() int {
	idx := b.cfg.NextBlockIndex()
	// NextBlockIndex reads the current block map, which is safe to call
	// repeatedly since every allocated index is registered before the next
	// call (see addBlock).
	return idx
}

func (b *builder) addBlock(blk *Block[struct{}]) {
	if !b.entryAssigned {
		b.cfg.Entry = blk.Index
		b.entryAssigned = true
	}
	b.cfg.AddBlock(blk)
}

func (b *builder) addEdge(src, dst int, cond *bool) {
	if src == noPred {
		return
	}
	b.cfg.AddEdge(Edge{Src: src, Dst: dst, Cond: cond})
}

// flush finalizes any pending straight-line data instructions into a fresh
// DataContent block, wires it to the current predecessor, and returns its
// index; if there is nothing pending it returns the existing predecessor
// unchanged so no spurious empty block is created.
func (b *builder) flush() int {
	if len(b.pending) == 0 {
		return b.last
	}
	idx := b.newBlockIndex()
	blk := &Block[struct{}]{Index: idx, Kind: DataContent, Data: b.pending}
	b.addBlock(blk)
	b.addEdge(b.last, idx, b.lastCond)
	b.pending = nil
	b.last, b.lastCond = idx, nil
	return idx
}

// labelTarget resolves a branch depth against the label stack: depth 0 is
// the innermost enclosing construct.
func (b *builder) labelTarget(depth int) (target, error) {
	n := len(b.labelStack)
	if depth < 0 || depth >= n {
		return target{}, errors.Errorf("cfg: branch depth %d exceeds nesting depth %d", depth, n)
	}
	return b.labelStack[n-1-depth], nil
}

// Build lowers a function body — a flat top-level instruction sequence whose
// control instructions carry their own nested bodies (§3's "mutually
// recursive IR") — into a basic-block CFG satisfying spec §3's invariants.
func Build(sig Signature, body []ir.Instruction[struct{}]) (*CFG[struct{}], error) {
	c := New[struct{}](sig.FuncIndex)
	c.Exported, c.Name = sig.Exported, sig.Name
	c.ArgTypes, c.LocalTypes, c.ReturnType = sig.ArgTypes, sig.LocalTypes, sig.ReturnType

	b := &builder{cfg: c, alloc: ir.NewAllocator(), last: noPred}

	exitIdx := b.newBlockIndex()
	exitLbl := b.alloc.New(ir.SectionMerge)
	c.Exit = exitIdx
	c.AddBlock(&Block[struct{}]{Index: exitIdx, Kind: MergeContent, Merge: exitLbl})
	c.AddInstr(&ir.Instruction[struct{}]{Label: exitLbl, Control: ir.MergeOp{}})

	if err := b.run(body); err != nil {
		return nil, err
	}
	tail := b.flush()
	b.addEdge(tail, exitIdx, nil)

	if !b.entryAssigned {
		// Degenerate empty body: a single block serves as both entry and exit.
		c.Entry = exitIdx
	}

	return c, nil
}

func (b *builder) run(seq []ir.Instruction[struct{}]) error {
	for _, instr := range seq {
		instr := instr
		if instr.Control == nil {
			b.pending = append(b.pending, instr.Label)
			b.cfg.AddInstr(&instr)
			continue
		}

		switch c := instr.Control.(type) {
		case ir.Block[struct{}]:
			if err := checkBlockArity(c.Arity); err != nil {
				return err
			}
			if err := b.doBlock(instr.Label, c); err != nil {
				return err
			}

		case ir.Loop[struct{}]:
			if err := checkBlockArity(c.Arity); err != nil {
				return err
			}
			if err := b.doLoop(instr.Label, c); err != nil {
				return err
			}

		case ir.IfElse[struct{}]:
			if err := checkBlockArity(c.Arity); err != nil {
				return err
			}
			if err := b.doIf(instr.Label, c); err != nil {
				return err
			}

		case ir.Call:
			if c.Arity.Out > 1 {
				return ir.UnsupportedFeatureError{Feature: "call with more than one return value"}
			}
			b.emitStraightControl(instr.Label, c)

		case ir.CallIndirect:
			if c.Arity.Out > 1 {
				return ir.UnsupportedFeatureError{Feature: "call_indirect with more than one return value"}
			}
			b.emitStraightControl(instr.Label, c)

		case ir.Br:
			if err := b.doBr(instr.Label, c.Depth); err != nil {
				return err
			}

		case ir.BrIf:
			if err := b.doBrIf(instr.Label, c.Depth); err != nil {
				return err
			}

		case ir.BrTable:
			if err := b.doBrTable(instr.Label, c); err != nil {
				return err
			}

		case ir.Return:
			b.emitTerminator(instr.Label, c)

		case ir.Unreachable:
			b.emitTerminator(instr.Label, c)

		default:
			return errors.Errorf("cfg: unrecognised control payload %T", c)
		}
	}
	return nil
}

func checkBlockArity(a ir.Arity) error {
	if a.In != 0 {
		return ir.UnsupportedFeatureError{Feature: "block/loop with non-zero input arity"}
	}
	if a.Out > 1 {
		return ir.UnsupportedFeatureError{Feature: "block/loop with output arity > 1"}
	}
	return nil
}

// emitStraightControl handles control instructions that do not branch: they
// get a singleton control block wired in as plain straight-line flow.
func (b *builder) emitStraightControl(lbl ir.Label, ctrl ir.ControlOp) {
	pred := b.flush()
	idx := b.newBlockIndex()
	b.addBlock(&Block[struct{}]{Index: idx, Kind: ControlContent, Control: lbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: lbl, Control: ctrl})
	b.addEdge(pred, idx, b.lastCond)
	b.last, b.lastCond = idx, nil
}

// emitTerminator handles return/unreachable: both end the block unwinding
// straight to Exit with no further straight-line successor.
func (b *builder) emitTerminator(lbl ir.Label, ctrl ir.ControlOp) {
	pred := b.flush()
	idx := b.newBlockIndex()
	b.addBlock(&Block[struct{}]{Index: idx, Kind: ControlContent, Control: lbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: lbl, Control: ctrl})
	b.addEdge(pred, idx, b.lastCond)

	b.addEdge(idx, b.cfg.Exit, nil)
	b.last, b.lastCond = noPred, nil
}

func (b *builder) doBlock(lbl ir.Label, blk ir.Block[struct{}]) error {
	cont := b.newBlockIndex()
	contLbl := b.alloc.New(ir.SectionMerge)
	b.cfg.AddBlock(&Block[struct{}]{Index: cont, Kind: MergeContent, Merge: contLbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: contLbl, Control: ir.MergeOp{}})

	pred := b.flush()
	idx := b.newBlockIndex()
	b.addBlock(&Block[struct{}]{Index: idx, Kind: ControlContent, Control: lbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: lbl, Control: ir.Block[struct{}]{Type: blk.Type, Arity: blk.Arity}})
	b.addEdge(pred, idx, b.lastCond)

	b.labelStack = append(b.labelStack, target{continuation: cont})
	b.last, b.lastCond = idx, nil
	if err := b.run(blk.Body); err != nil {
		return err
	}
	b.labelStack = b.labelStack[:len(b.labelStack)-1]

	tail := b.flush()
	b.addEdge(tail, cont, b.lastCond)
	b.last, b.lastCond = cont, nil
	return nil
}

func (b *builder) doLoop(lbl ir.Label, lp ir.Loop[struct{}]) error {
	head := b.newBlockIndex()
	headLbl := b.alloc.New(ir.SectionMerge)
	b.cfg.AddBlock(&Block[struct{}]{Index: head, Kind: MergeContent, Merge: headLbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: headLbl, Control: ir.MergeOp{}})
	b.cfg.LoopHeads[head] = true

	pred := b.flush()
	idx := b.newBlockIndex()
	b.addBlock(&Block[struct{}]{Index: idx, Kind: ControlContent, Control: lbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: lbl, Control: ir.Loop[struct{}]{Type: lp.Type, Arity: lp.Arity}})
	b.addEdge(pred, idx, b.lastCond)
	b.addEdge(idx, head, nil)

	b.labelStack = append(b.labelStack, target{continuation: head, isLoop: true})
	b.last, b.lastCond = head, nil
	if err := b.run(lp.Body); err != nil {
		return err
	}
	b.labelStack = b.labelStack[:len(b.labelStack)-1]

	// Per spec §4.1, falling off the end of the loop body flows back to the
	// head, not to a following continuation; code that follows the loop in
	// the enclosing sequence gets no incoming edge from it.
	tail := b.flush()
	b.addEdge(tail, head, b.lastCond)
	b.last, b.lastCond = noPred, nil
	return nil
}

func (b *builder) doIf(lbl ir.Label, ie ir.IfElse[struct{}]) error {
	cont := b.newBlockIndex()
	contLbl := b.alloc.New(ir.SectionMerge)
	b.cfg.AddBlock(&Block[struct{}]{Index: cont, Kind: MergeContent, Merge: contLbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: contLbl, Control: ir.MergeOp{}})

	pred := b.flush()
	idx := b.newBlockIndex()
	b.addBlock(&Block[struct{}]{Index: idx, Kind: ControlContent, Control: lbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: lbl, Control: ir.IfElse[struct{}]{Type: ie.Type, Arity: ie.Arity}})
	b.addEdge(pred, idx, b.lastCond)

	b.labelStack = append(b.labelStack, target{continuation: cont})

	tru := true
	b.last, b.lastCond = idx, &tru
	if err := b.run(ie.Then); err != nil {
		return err
	}
	tailT := b.flush()
	b.addEdge(tailT, cont, b.lastCond)

	fls := false
	b.last, b.lastCond = idx, &fls
	if err := b.run(ie.Else); err != nil {
		return err
	}
	tailE := b.flush()
	b.addEdge(tailE, cont, b.lastCond)

	b.labelStack = b.labelStack[:len(b.labelStack)-1]
	b.last, b.lastCond = cont, nil
	return nil
}

func (b *builder) doBr(lbl ir.Label, depth int) error {
	t, err := b.labelTarget(depth)
	if err != nil {
		return err
	}
	pred := b.flush()
	idx := b.newBlockIndex()
	b.addBlock(&Block[struct{}]{Index: idx, Kind: ControlContent, Control: lbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: lbl, Control: ir.Br{Depth: depth}})
	b.addEdge(pred, idx, b.lastCond)

	b.addEdge(idx, t.continuation, nil)
	b.last, b.lastCond = noPred, nil
	return nil
}

func (b *builder) doBrIf(lbl ir.Label, depth int) error {
	t, err := b.labelTarget(depth)
	if err != nil {
		return err
	}
	pred := b.flush()
	idx := b.newBlockIndex()
	b.addBlock(&Block[struct{}]{Index: idx, Kind: ControlContent, Control: lbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: lbl, Control: ir.BrIf{Depth: depth}})
	b.addEdge(pred, idx, b.lastCond)

	b.addEdge(idx, t.continuation, boolPtr(true))
	b.last, b.lastCond = idx, boolPtr(false)
	return nil
}

func (b *builder) doBrTable(lbl ir.Label, bt ir.BrTable) error {
	pred := b.flush()
	idx := b.newBlockIndex()
	b.addBlock(&Block[struct{}]{Index: idx, Kind: ControlContent, Control: lbl})
	b.cfg.AddInstr(&ir.Instruction[struct{}]{Label: lbl, Control: bt})
	b.addEdge(pred, idx, b.lastCond)

	for _, depth := range bt.Targets {
		t, err := b.labelTarget(depth)
		if err != nil {
			return err
		}
		b.addEdge(idx, t.continuation, nil)
	}
	t, err := b.labelTarget(bt.Default)
	if err != nil {
		return err
	}
	b.addEdge(idx, t.continuation, nil)

	b.last, b.lastCond = noPred, nil
	return nil
}
