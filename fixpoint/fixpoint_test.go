package fixpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/wasmslice/cfg"
	"github.com/go-interpreter/wasmslice/config"
	"github.com/go-interpreter/wasmslice/domain"
	"github.com/go-interpreter/wasmslice/ir"
	"github.com/go-interpreter/wasmslice/ssa"
	"github.com/go-interpreter/wasmslice/summary"
)

func buildAnnotated(t *testing.T, body []ir.Instruction[struct{}]) *cfg.CFG[ssa.Spec] {
	t.Helper()
	c, err := cfg.Build(cfg.Signature{FuncIndex: 0}, body)
	require.NoError(t, err)
	out, _ := ssa.Infer(c, config.Default)
	return out
}

func TestRunPropagatesConstantThroughAdd(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 2}},
		{Label: lbl(1), Data: ir.ConstOp{Type: ir.I32, Value: 3}},
		{Label: lbl(2), Data: ir.BinaryOp{}},
		{Label: lbl(3), Control: ir.Return{}},
	}
	c := buildAnnotated(t, body)
	results := Run(c, ConstantTransfer)

	// Find the block containing label 2 and check its Before binding for
	// the var it defines was computed from its own incoming Result after
	// the transfer runs up to that instruction — verified indirectly via
	// the block's outgoing propagation into Exit.
	var exitIn Result
	for idx, r := range results {
		if idx == c.Exit {
			exitIn = r
		}
	}
	require.Equal(t, domain.ValueOf(5), exitIn.Get(ir.FromInstr(lbl(2))))
}

// fixedEffect is a summary.Provider fixture reporting the same CallEffect
// for every call site, for tests that need a non-conservative summary.
type fixedEffect summary.CallEffect

func (f fixedEffect) Direct(int) summary.CallEffect   { return summary.CallEffect(f) }
func (f fixedEffect) Indirect(int) summary.CallEffect { return summary.CallEffect(f) }

func TestNewTransferBindsCallResultFromSummary(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Control: ir.Call{Target: 0, Arity: ir.Arity{In: 0, Out: 1}}},
		{Label: lbl(1), Control: ir.Return{}},
	}
	c := buildAnnotated(t, body)
	transfer := NewTransfer(config.Default, fixedEffect{Result: domain.ValueOf(42)})
	results := Run(c, transfer)

	require.Equal(t, domain.ValueOf(42), results[c.Exit].Get(ir.FromInstr(lbl(0))))
}

func TestNewTransferAdaptsParameterResultAgainstCallArgs(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 7}},
		{Label: lbl(1), Control: ir.Call{Target: 0, Arity: ir.Arity{In: 1, Out: 1}}},
		{Label: lbl(2), Control: ir.Return{}},
	}
	c := buildAnnotated(t, body)
	transfer := NewTransfer(config.Default, fixedEffect{Result: domain.ParameterOf(0)})
	results := Run(c, transfer)

	require.Equal(t, domain.ValueOf(7), results[c.Exit].Get(ir.FromInstr(lbl(1))))
}

func TestNewTransferUseConstFalseForcesTop(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Data: ir.ConstOp{Type: ir.I32, Value: 2}},
		{Label: lbl(1), Data: ir.ConstOp{Type: ir.I32, Value: 3}},
		{Label: lbl(2), Data: ir.BinaryOp{}},
		{Label: lbl(3), Control: ir.Return{}},
	}
	c := buildAnnotated(t, body)
	analysis := config.Analysis{UseConst: false}
	transfer := NewTransfer(analysis, summary.Fixed{})
	results := Run(c, transfer)

	require.Equal(t, domain.ValueTop, results[c.Exit].Get(ir.FromInstr(lbl(2))))
}

func TestRunConvergesOnLoop(t *testing.T) {
	lbl := func(id int) ir.Label { return ir.Label{Section: ir.SectionBody, ID: id} }
	body := []ir.Instruction[struct{}]{
		{Label: lbl(0), Control: ir.Loop[struct{}]{
			Body: []ir.Instruction[struct{}]{
				{Label: lbl(1), Data: ir.NoOp{}},
				{Label: lbl(2), Control: ir.BrIf{Depth: 0}},
			},
		}},
	}
	c := buildAnnotated(t, body)
	require.NotPanics(t, func() { Run(c, ConstantTransfer) })
}
