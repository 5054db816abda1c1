package ir

import "fmt"

// VarKind discriminates the shapes a Var can take.
type VarKind int

const (
	VarLocal VarKind = iota
	VarGlobal
	VarConst
	VarInstr
	VarMerge
	// VarMemory names a version of the function's linear memory as a whole
	// — minted fresh by every store and merged at joins exactly like a
	// stack/local/global value, so the use-def engine can trace "which
	// store(s) feed this point" at the same SSA-naming granularity as any
	// other var. It is a coarse naming layer only: the precise byte-level
	// aliasing a load actually needs comes from domain.Store/dep.MemoryDep,
	// which this does not replace.
	VarMemory
	// VarUnknown names a value the analysis could not resolve to any of the
	// above — used as a memory region's base when an address computation is
	// too indirect to track precisely.
	VarUnknown
)

// MergeDomain disambiguates which namespace a VarMerge was minted in: the
// same (block, pos) pair can simultaneously be a stack slot, a local slot,
// a global slot, or (pos unused) the memory token at the very same merge
// block, and those four identities must never collide.
type MergeDomain int

const (
	MergeStack MergeDomain = iota
	MergeLocalDomain
	MergeGlobalDomain
	MergeMemoryDomain
)

func (d MergeDomain) String() string {
	switch d {
	case MergeStack:
		return "stack"
	case MergeLocalDomain:
		return "local"
	case MergeGlobalDomain:
		return "global"
	case MergeMemoryDomain:
		return "memory"
	default:
		return "<invalid merge domain>"
	}
}

// Var names an SSA value. It is comparable and totally ordered so it can be
// used as a map key and sorted for deterministic dumps.
type Var struct {
	Kind VarKind

	// Index is the local/global slot for VarLocal/VarGlobal.
	Index int
	// Const is the constant value for VarConst.
	Const int64
	// Label is the defining instruction's label for VarInstr, or the
	// defining store's label for VarMemory (unused — IsMemoryEntry set
	// instead — for the memory token live at function entry).
	Label Label
	// IsMemoryEntry marks the VarMemory token observed before any store.
	IsMemoryEntry bool
	// MergeBlock/MergePos/MergeDomain locate a VarMerge: the merge block's
	// index, the stack/local/global position at which it was minted (unused
	// for MergeMemoryDomain, which has only one slot per block), and which
	// of those namespaces it was minted in.
	MergeBlock  int
	MergePos    int
	MergeDomain MergeDomain
}

// Local constructs the Var naming local slot i.
func Local(i int) Var { return Var{Kind: VarLocal, Index: i} }

// Global constructs the Var naming global slot i.
func Global(i int) Var { return Var{Kind: VarGlobal, Index: i} }

// Const constructs the Var naming the literal constant c.
func Const(c int64) Var { return Var{Kind: VarConst, Const: c} }

// FromInstr constructs the fresh Var defined by the instruction at lbl.
func FromInstr(lbl Label) Var { return Var{Kind: VarInstr, Label: lbl} }

// MemoryEntry names the memory token live at function entry, before any
// store has executed.
func MemoryEntry() Var { return Var{Kind: VarMemory, IsMemoryEntry: true} }

// MemoryAfter names the memory token produced by the store instruction at
// lbl.
func MemoryAfter(lbl Label) Var { return Var{Kind: VarMemory, Label: lbl} }

// Merge constructs the fresh Var minted by a merge block at a given stack
// position.
func Merge(block, pos int) Var {
	return Var{Kind: VarMerge, MergeBlock: block, MergePos: pos, MergeDomain: MergeStack}
}

// MergeLocal constructs the fresh Var minted by a merge block for local
// slot idx, when its incoming predecessors disagree on the local's value.
func MergeLocal(block, idx int) Var {
	return Var{Kind: VarMerge, MergeBlock: block, MergePos: idx, MergeDomain: MergeLocalDomain}
}

// MergeGlobal is MergeLocal's counterpart for global slots.
func MergeGlobal(block, idx int) Var {
	return Var{Kind: VarMerge, MergeBlock: block, MergePos: idx, MergeDomain: MergeGlobalDomain}
}

// MergeMemory constructs the fresh memory-token Var minted by a merge block
// when its incoming predecessors' memory tokens disagree.
func MergeMemory(block int) Var {
	return Var{Kind: VarMerge, MergeBlock: block, MergeDomain: MergeMemoryDomain}
}

func (v Var) String() string {
	switch v.Kind {
	case VarLocal:
		return fmt.Sprintf("local[%d]", v.Index)
	case VarGlobal:
		return fmt.Sprintf("global[%d]", v.Index)
	case VarConst:
		return fmt.Sprintf("const(%d)", v.Const)
	case VarInstr:
		return fmt.Sprintf("var(%s)", v.Label)
	case VarMemory:
		if v.IsMemoryEntry {
			return "memory(entry)"
		}
		return fmt.Sprintf("memory(%s)", v.Label)
	case VarMerge:
		if v.MergeDomain == MergeMemoryDomain {
			return fmt.Sprintf("merge-%s(%d)", v.MergeDomain, v.MergeBlock)
		}
		return fmt.Sprintf("merge-%s(%d,%d)", v.MergeDomain, v.MergeBlock, v.MergePos)
	case VarUnknown:
		return "unknown"
	default:
		return "<invalid var>"
	}
}

// Less gives Var a total order: by kind, then by the kind-specific payload.
func (v Var) Less(o Var) bool {
	if v.Kind != o.Kind {
		return v.Kind < o.Kind
	}
	switch v.Kind {
	case VarLocal, VarGlobal:
		return v.Index < o.Index
	case VarConst:
		return v.Const < o.Const
	case VarInstr:
		return v.Label.Less(o.Label)
	case VarMemory:
		if v.IsMemoryEntry != o.IsMemoryEntry {
			return v.IsMemoryEntry
		}
		return v.Label.Less(o.Label)
	case VarMerge:
		if v.MergeBlock != o.MergeBlock {
			return v.MergeBlock < o.MergeBlock
		}
		if v.MergeDomain != o.MergeDomain {
			return v.MergeDomain < o.MergeDomain
		}
		return v.MergePos < o.MergePos
	default:
		return false
	}
}
