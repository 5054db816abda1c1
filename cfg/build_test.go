package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/wasmslice/ir"
)

func label(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }

func dataInstr(id int, data ir.DataOp) ir.Instruction[struct{}] {
	return ir.Instruction[struct{}]{Label: label(id), Data: data}
}

func ctrlInstr(id int, ctrl ir.ControlOp) ir.Instruction[struct{}] {
	return ir.Instruction[struct{}]{Label: label(id), Control: ctrl}
}

func TestBuildStraightLineFunction(t *testing.T) {
	body := []ir.Instruction[struct{}]{
		dataInstr(0, ir.ConstOp{Type: ir.I32, Value: 1}),
		dataInstr(1, ir.ConstOp{Type: ir.I32, Value: 2}),
		dataInstr(2, ir.BinaryOp{}),
		ctrlInstr(3, ir.Return{}),
	}
	c, err := Build(Signature{FuncIndex: 0}, body)
	require.NoError(t, err)
	require.Equal(t, DataContent, c.Blocks[c.Entry].Kind) // entry assigned
	require.NotEqual(t, c.Entry, c.Exit)
	require.NoError(t, ValidateStackShape(c, false))
}

func TestBuildIfElseMergesToSingleContinuation(t *testing.T) {
	body := []ir.Instruction[struct{}]{
		dataInstr(0, ir.ConstOp{Type: ir.I32, Value: 1}),
		ctrlInstr(1, ir.IfElse[struct{}]{
			Then: []ir.Instruction[struct{}]{dataInstr(2, ir.ConstOp{Type: ir.I32, Value: 10})},
			Else: []ir.Instruction[struct{}]{dataInstr(3, ir.ConstOp{Type: ir.I32, Value: 20})},
		}),
		dataInstr(4, ir.Drop{}),
	}
	c, err := Build(Signature{FuncIndex: 1}, body)
	require.NoError(t, err)

	var merges int
	for _, idx := range c.BlockIndices() {
		if c.Blocks[idx].Kind == MergeContent {
			merges++
		}
	}
	// one continuation for the if, one for the function exit.
	require.Equal(t, 2, merges)
}

func TestBuildLoopTailFlowsBackToHead(t *testing.T) {
	body := []ir.Instruction[struct{}]{
		ctrlInstr(0, ir.Loop[struct{}]{
			Body: []ir.Instruction[struct{}]{
				dataInstr(1, ir.NoOp{}),
				ctrlInstr(2, ir.BrIf{Depth: 0}),
			},
		}),
	}
	c, err := Build(Signature{FuncIndex: 2}, body)
	require.NoError(t, err)
	require.Len(t, c.LoopHeads, 1)

	var head int
	for idx := range c.LoopHeads {
		head = idx
	}
	// the loop head must have an incoming edge from somewhere inside the
	// loop body (the fallthrough / false arm of the br_if), not only from
	// the loop instruction that precedes it.
	require.GreaterOrEqual(t, c.InDegree(head), 2)
}

func TestBuildUnsupportedBlockArityRejected(t *testing.T) {
	body := []ir.Instruction[struct{}]{
		ctrlInstr(0, ir.Block[struct{}]{Arity: ir.Arity{In: 1}}),
	}
	_, err := Build(Signature{FuncIndex: 3}, body)
	require.Error(t, err)
	require.IsType(t, ir.UnsupportedFeatureError{}, err)
}

func TestBuildBrTableWiresEveryTargetAndDefault(t *testing.T) {
	body := []ir.Instruction[struct{}]{
		ctrlInstr(0, ir.Block[struct{}]{
			Body: []ir.Instruction[struct{}]{
				ctrlInstr(1, ir.Block[struct{}]{
					Body: []ir.Instruction[struct{}]{
						dataInstr(2, ir.ConstOp{Type: ir.I32, Value: 0}),
						ctrlInstr(3, ir.BrTable{Targets: []int{0, 1}, Default: 1}),
					},
				}),
			},
		}),
	}
	c, err := Build(Signature{FuncIndex: 4}, body)
	require.NoError(t, err)

	var brTableBlock int
	for _, idx := range c.BlockIndices() {
		b := c.Blocks[idx]
		if b.Kind == ControlContent && b.Control == label(3) {
			brTableBlock = idx
		}
	}
	require.Len(t, c.Out(brTableBlock), 3)
}
