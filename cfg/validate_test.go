package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/wasmslice/ir"
)

func TestValidateStackShapeRejectsUnderflow(t *testing.T) {
	c := New[struct{}](0)
	c.Entry, c.Exit = 0, 1
	c.AddBlock(&Block[struct{}]{Index: 0, Kind: DataContent, Data: []ir.Label{label(0)}})
	c.AddInstr(&ir.Instruction[struct{}]{Label: label(0), Data: ir.Drop{}})
	c.AddBlock(&Block[struct{}]{Index: 1, Kind: MergeContent, Merge: ir.Label{Section: ir.SectionMerge, ID: 0}})
	c.AddInstr(&ir.Instruction[struct{}]{Label: ir.Label{Section: ir.SectionMerge, ID: 0}, Control: ir.MergeOp{}})
	c.AddEdge(PlainEdge(0, 1))

	err := ValidateStackShape(c, false)
	require.Error(t, err)
	require.IsType(t, ErrStackUnderflow{}, err)
}

func TestValidateStackShapeRejectsNonMergeJoin(t *testing.T) {
	c := New[struct{}](0)
	c.Entry, c.Exit = 0, 3
	for i := 0; i < 3; i++ {
		c.AddBlock(&Block[struct{}]{Index: i, Kind: DataContent, Data: []ir.Label{label(i)}})
		c.AddInstr(&ir.Instruction[struct{}]{Label: label(i), Data: ir.NoOp{}})
	}
	c.AddBlock(&Block[struct{}]{Index: 3, Kind: DataContent, Data: []ir.Label{label(3)}})
	c.AddInstr(&ir.Instruction[struct{}]{Label: label(3), Data: ir.NoOp{}})
	c.AddEdge(PlainEdge(0, 2))
	c.AddEdge(PlainEdge(1, 2))
	c.AddEdge(PlainEdge(2, 3))

	err := ValidateStackShape(c, false)
	require.Error(t, err)
	require.IsType(t, ErrNonMergeJoin(0), err)
}

func TestValidateStackShapeAcceptsWellFormedFunction(t *testing.T) {
	body := []ir.Instruction[struct{}]{
		dataInstr(0, ir.ConstOp{Type: ir.I32, Value: 1}),
		dataInstr(1, ir.Drop{}),
		ctrlInstr(2, ir.Return{}),
	}
	c, err := Build(Signature{FuncIndex: 0}, body)
	require.NoError(t, err)
	require.NoError(t, ValidateStackShape(c, false))
}

func TestValidateStackShapeRejectsEmptyDataBlockUnlessAllowed(t *testing.T) {
	c := New[struct{}](0)
	c.Entry, c.Exit = 0, 1
	c.AddBlock(&Block[struct{}]{Index: 0, Kind: DataContent, Data: nil})
	c.AddBlock(&Block[struct{}]{Index: 1, Kind: MergeContent, Merge: ir.Label{Section: ir.SectionMerge, ID: 0}})
	c.AddInstr(&ir.Instruction[struct{}]{Label: ir.Label{Section: ir.SectionMerge, ID: 0}, Control: ir.MergeOp{}})
	c.AddEdge(PlainEdge(0, 1))

	require.Error(t, ValidateStackShape(c, false))
	require.NoError(t, ValidateStackShape(c, true))
}
