package ir

import "fmt"

// ValueType mirrors the wasm front-end's value types without importing the
// wasm package here, keeping the IR free of a front-end dependency; cfg.Build
// is the only place that needs to translate between the two.
type ValueType int8

const (
	I32 ValueType = iota
	I64
)

func (t ValueType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	default:
		return fmt.Sprintf("<unknown value type %d>", int8(t))
	}
}

// OpCategory classifies a data operator. The core never inspects the
// specific operator beyond its category and arity; the semantics tables
// live in the (out-of-scope) front end.
type OpCategory int

const (
	OpUnary OpCategory = iota
	OpBinary
	OpCompare
	OpTest
	OpConvert
)

func (c OpCategory) String() string {
	switch c {
	case OpUnary:
		return "unary"
	case OpBinary:
		return "binary"
	case OpCompare:
		return "compare"
	case OpTest:
		return "test"
	case OpConvert:
		return "convert"
	default:
		return fmt.Sprintf("<unknown op category %d>", int(c))
	}
}

// Operator names a data operator by category and a front-end-assigned id.
// Arity follows the category: unary/test/convert consume one operand,
// binary/compare consume two; all five produce exactly one result.
type Operator struct {
	Category OpCategory
	ID       int
	Name     string
}

// Arity returns the number of stack values this operator pops.
func (op Operator) Arity() int {
	switch op.Category {
	case OpUnary, OpTest, OpConvert:
		return 1
	case OpBinary, OpCompare:
		return 2
	default:
		return 0
	}
}

func (op Operator) String() string {
	if op.Name != "" {
		return op.Name
	}
	return fmt.Sprintf("%s#%d", op.Category, op.ID)
}

// MemOp describes a memory load or store's immediate: the value type moved,
// the static offset, and (for loads) a narrower pack size with a sign/zero
// extension flag. PackBits == 0 means the full width of Type is moved.
type MemOp struct {
	Type     ValueType
	Offset   uint32
	PackBits int // 0, 8, 16 or 32
	Signed   bool
}

func (m MemOp) String() string {
	if m.PackBits == 0 {
		return fmt.Sprintf("%s off=%d", m.Type, m.Offset)
	}
	ext := "u"
	if m.Signed {
		ext = "s"
	}
	return fmt.Sprintf("%s%d_%s off=%d", m.Type, m.PackBits, ext, m.Offset)
}
