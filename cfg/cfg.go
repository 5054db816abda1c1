package cfg

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/go-interpreter/wasmslice/graph"
	"github.com/go-interpreter/wasmslice/ir"
)

// ErrBlockNotFound is a fatal IR-invariant-violation error (spec §7): a
// block index was looked up that the CFG does not contain.
type ErrBlockNotFound int

func (e ErrBlockNotFound) Error() string { return errors.Errorf("cfg: no block #%d", int(e)).Error() }

// ErrLabelNotFound is a fatal IR-invariant-violation error: a label was
// looked up that the CFG's instruction map does not contain.
type ErrLabelNotFound ir.Label

func (e ErrLabelNotFound) Error() string {
	return errors.Errorf("cfg: no instruction at label %s", ir.Label(e)).Error()
}

// Edge carries the optional branch tag: true/false for the two arms of a
// conditional, nil ("none") for an unconditional edge. Duplicate (Src, Dst)
// pairs with distinct tags are permitted and meaningful (spec §3).
type Edge struct {
	Src, Dst int
	Cond     *bool
}

func boolPtr(b bool) *bool { return &b }

// TrueEdge and FalseEdge construct the two tagged arms of a conditional.
func TrueEdge(src, dst int) Edge  { return Edge{Src: src, Dst: dst, Cond: boolPtr(true)} }
func FalseEdge(src, dst int) Edge { return Edge{Src: src, Dst: dst, Cond: boolPtr(false)} }

// PlainEdge constructs an untagged edge.
func PlainEdge(src, dst int) Edge { return Edge{Src: src, Dst: dst} }

// CFG is the function-scoped record described in spec §3: a map from block
// index to basic block, a denormalised label->instruction index, forward
// and reverse edges keyed by source/destination block, and the entry/exit
// and loop-head markers.
type CFG[A any] struct {
	FuncIndex  int
	Exported   bool
	Name       string
	ArgTypes   []ir.ValueType
	LocalTypes []ir.ValueType
	ReturnType []ir.ValueType // 0 or 1 entries, per spec's scope limitation

	Blocks map[int]*Block[A]
	Instrs map[ir.Label]*ir.Instruction[A]

	out map[int][]Edge
	in  map[int][]Edge

	Entry int
	Exit  int

	LoopHeads map[int]bool
}

// New returns an empty CFG shell; cfg.Build populates it.
func New[A any](funcIndex int) *CFG[A] {
	return &CFG[A]{
		FuncIndex: funcIndex,
		Blocks:    make(map[int]*Block[A]),
		Instrs:    make(map[ir.Label]*ir.Instruction[A]),
		out:       make(map[int][]Edge),
		in:        make(map[int][]Edge),
		LoopHeads: make(map[int]bool),
	}
}

// AddBlock registers b, indexed by b.Index.
func (c *CFG[A]) AddBlock(b *Block[A]) {
	c.Blocks[b.Index] = b
}

// AddInstr registers an instruction, indexed by its label.
func (c *CFG[A]) AddInstr(in *ir.Instruction[A]) {
	c.Instrs[in.Label] = in
}

// AddEdge records e in both the forward and reverse maps.
func (c *CFG[A]) AddEdge(e Edge) {
	c.out[e.Src] = append(c.out[e.Src], e)
	c.in[e.Dst] = append(c.in[e.Dst], e)
}

// Out returns the out-edges of block idx, in insertion order.
func (c *CFG[A]) Out(idx int) []Edge { return c.out[idx] }

// In returns the in-edges of block idx, in insertion order.
func (c *CFG[A]) In(idx int) []Edge { return c.in[idx] }

// InDegree is len(c.In(idx)).
func (c *CFG[A]) InDegree(idx int) int { return len(c.in[idx]) }

// FindBlock looks up a block by index, returning a typed error on miss.
func (c *CFG[A]) FindBlock(idx int) (*Block[A], error) {
	b, ok := c.Blocks[idx]
	if !ok {
		return nil, ErrBlockNotFound(idx)
	}
	return b, nil
}

// FindInstr looks up an instruction by label, returning a typed error on
// miss.
func (c *CFG[A]) FindInstr(l ir.Label) (*ir.Instruction[A], error) {
	in, ok := c.Instrs[l]
	if !ok {
		return nil, ErrLabelNotFound(l)
	}
	return in, nil
}

// BlockIndices returns every block index, sorted, for deterministic
// iteration (spec's "Ordered associative containers" design note).
func (c *CFG[A]) BlockIndices() []int {
	out := make([]int, 0, len(c.Blocks))
	for idx := range c.Blocks {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// NextBlockIndex returns one greater than the current maximum block index;
// the builder uses it to mint each new block's index.
func (c *CFG[A]) NextBlockIndex() int {
	max := -1
	for idx := range c.Blocks {
		if idx > max {
			max = idx
		}
	}
	return max + 1
}

// Graph builds a graph.Graph[int] view of the CFG's blocks for use by the
// dominator-tree and reachability algorithms in package graph. Constructed
// fresh on demand per the design note that derived relations are recomputed,
// not stored state.
func (c *CFG[A]) Graph() *graph.Graph[int] {
	g := graph.New[int]()
	for _, idx := range c.BlockIndices() {
		g.AddNode(idx)
	}
	for _, idx := range c.BlockIndices() {
		for _, e := range c.out[idx] {
			g.AddEdge(e.Src, e.Dst)
		}
	}
	return g
}

// ClearAnnotation returns a structurally identical CFG whose every
// annotation slot is the zero value of A — a deliberately unit-typed skeleton
// that spec inference re-annotates from scratch.
func ClearAnnotation[A any](c *CFG[struct{}]) *CFG[A] {
	out := New[A](c.FuncIndex)
	out.Exported, out.Name = c.Exported, c.Name
	out.ArgTypes, out.LocalTypes, out.ReturnType = c.ArgTypes, c.LocalTypes, c.ReturnType
	out.Entry, out.Exit = c.Entry, c.Exit
	for idx, loop := range c.LoopHeads {
		out.LoopHeads[idx] = loop
	}
	for _, idx := range c.BlockIndices() {
		b := c.Blocks[idx]
		out.AddBlock(&Block[A]{Index: b.Index, Kind: b.Kind, Data: append([]ir.Label(nil), b.Data...), Control: b.Control, Merge: b.Merge})
	}
	for lbl, in := range c.Instrs {
		out.AddInstr(&ir.Instruction[A]{Label: lbl, Data: in.Data, Control: in.Control})
	}
	for _, idx := range c.BlockIndices() {
		for _, e := range c.out[idx] {
			out.AddEdge(e)
		}
	}
	return out
}

// MapAnnotations rewrites every annotation structurally via before/after,
// without touching labels, block indices, or payloads.
func MapAnnotations[A, B any](c *CFG[A], before, after func(A) B) *CFG[B] {
	out := New[B](c.FuncIndex)
	out.Exported, out.Name = c.Exported, c.Name
	out.ArgTypes, out.LocalTypes, out.ReturnType = c.ArgTypes, c.LocalTypes, c.ReturnType
	out.Entry, out.Exit = c.Entry, c.Exit
	for idx, loop := range c.LoopHeads {
		out.LoopHeads[idx] = loop
	}
	for _, idx := range c.BlockIndices() {
		b := c.Blocks[idx]
		out.AddBlock(&Block[B]{
			Index: b.Index, Kind: b.Kind,
			Data: append([]ir.Label(nil), b.Data...), Control: b.Control, Merge: b.Merge,
			Before: before(b.Before), After: after(b.After),
		})
	}
	for lbl, in := range c.Instrs {
		out.AddInstr(&ir.Instruction[B]{Label: lbl, Data: in.Data, Control: in.Control, Before: before(in.Before), After: after(in.After)})
	}
	for _, idx := range c.BlockIndices() {
		for _, e := range c.out[idx] {
			out.AddEdge(e)
		}
	}
	return out
}
