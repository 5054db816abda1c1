package domain

import (
	"fmt"
	"sort"

	"github.com/go-interpreter/wasmslice/ir"
)

// Region is an abstract memory location: a base SSA var (the address
// operand's definition, or AnyBase if the address could not be resolved to
// a single var) plus a constant byte offset and width, i.e. a
// base-plus-offset summary of what `i32.load`/`i32.store` touched. Two
// regions may-alias unless they are provably disjoint: different bases
// may-alias (no points-to information relates two different vars), except
// two constant bases, which are compared as absolute byte ranges; equal bases with overlapping [offset, offset+width) ranges definitely
// alias, and equal bases with disjoint ranges never alias.
type Region struct {
	Base   ir.Var
	Offset int64
	Width  int64
}

// AnyBase stands in for an address this analysis could not resolve to a
// single defining var (e.g. the result of a non-constant computation chain
// deeper than the value lattice tracks); a Region with AnyBase may-aliases
// every other region, including another AnyBase one, conservatively.
var AnyBase = ir.Var{Kind: ir.VarUnknown}

// MayAlias reports whether r and o could denote overlapping bytes.
func (r Region) MayAlias(o Region) bool {
	if r.Base == AnyBase || o.Base == AnyBase {
		return true
	}
	if r.Base != o.Base {
		if r.Base.Kind == ir.VarConst && o.Base.Kind == ir.VarConst {
			rStart, oStart := r.Base.Const+r.Offset, o.Base.Const+o.Offset
			return rStart < oStart+o.Width && oStart < rStart+r.Width
		}
		return true
	}
	rEnd, oEnd := r.Offset+r.Width, o.Offset+o.Width
	return r.Offset < oEnd && o.Offset < rEnd
}

func (r Region) String() string {
	return fmt.Sprintf("%s+%d[%d]", r.Base, r.Offset, r.Width)
}

// Store is the memory lattice's element: the set of regions written on some
// path reaching this program point, keyed by writing label so a fixpoint
// Join can deduplicate writes from different predecessors of a merge block.
type Store struct {
	writes map[ir.Label]Region
}

// NewStore returns the empty memory state (no writes observed yet).
func NewStore() Store { return Store{writes: make(map[ir.Label]Region)} }

// Record returns a copy of s with lbl recorded as having written r. Like
// Join, Record never mutates its receiver: Result values built from the
// same ancestor Store must not observe each other's writes.
func (s Store) Record(lbl ir.Label, r Region) Store {
	out := NewStore()
	for l, wr := range s.writes {
		out.writes[l] = wr
	}
	out.writes[lbl] = r
	return out
}

// Join is the memory lattice's union: a write observed along any incoming
// path is live at the merge.
func (s Store) Join(o Store) Store {
	out := NewStore()
	for lbl, r := range s.writes {
		out.writes[lbl] = r
	}
	for lbl, r := range o.writes {
		out.writes[lbl] = r
	}
	return out
}

// Equal reports whether s and o record the same (label, region) pairs.
func (s Store) Equal(o Store) bool {
	if len(s.writes) != len(o.writes) {
		return false
	}
	for lbl, r := range s.writes {
		or, ok := o.writes[lbl]
		if !ok || or != r {
			return false
		}
	}
	return true
}

// MayAliasingWrites returns, in deterministic label order, every recorded
// write whose region may-aliases r — the candidate set the dependence
// builder turns into memory-dependence edges for a load at r.
func (s Store) MayAliasingWrites(r Region) []ir.Label {
	var out []ir.Label
	for lbl, wr := range s.writes {
		if wr.MayAlias(r) {
			out = append(out, lbl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
