// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package domain implements the abstract-interpretation lattices the
// fixpoint solver propagates over: an SSA-var value lattice (constant
// propagation, bounded-interval widening, and the Parameter symbol a call
// summary's result can be expressed in terms of) and a memory lattice
// tracking which abstract locations a store may have touched.
package domain

import "fmt"

// Kind distinguishes the elements of the Value lattice.
type Kind int

const (
	// Bottom is "unreached" — the initial value of every var before the
	// fixpoint has visited its defining block.
	Bottom Kind = iota
	// Exact is a single known constant.
	Exact
	// Interval is a closed range [Low, High] with either bound possibly
	// unbounded (nil) — spec.md §4.3's Interval/LeftOpenInterval/
	// RightOpenInterval/OpenInterval family collapsed into one shape, the
	// bound's nilness standing in for which of the four it is. Reached by
	// joining two differing Exacts; joining an Interval with an Exact that
	// falls outside it collapses straight to Top rather than growing the
	// interval further, keeping the lattice's height bounded at 4 so
	// the fixpoint is guaranteed to terminate without a separate widening
	// threshold.
	Interval
	// Parameter names "whatever the caller passed as argument i" — the one
	// symbolic value spec.md §4.3/§4.7 requires: a summary.CallEffect can
	// report a call's result in terms of Parameter(i), and Adapt substitutes
	// it with that call site's actual argument value.
	Parameter
	// Top is "unknown" — reached once widening gives up precision, or
	// immediately for any value this analysis does not track (e.g. an
	// unsummarized call's result).
	Top
)

func (k Kind) String() string {
	switch k {
	case Bottom:
		return "⊥"
	case Exact:
		return "const"
	case Interval:
		return "interval"
	case Parameter:
		return "param"
	case Top:
		return "⊤"
	default:
		return fmt.Sprintf("<unknown kind %d>", int(k))
	}
}

// Value is one lattice element. The zero Value is Bottom, matching the
// fixpoint's pre-analysis initial state.
type Value struct {
	Kind Kind

	// Const is the literal for Kind == Exact.
	Const int64
	// Low/High bound a Kind == Interval value; nil means unbounded on that
	// side.
	Low, High *int64
	// Index names the parameter slot for Kind == Parameter.
	Index int
}

// ValueBottom is the lattice's least element.
var ValueBottom = Value{Kind: Bottom}

// ValueTop is the lattice's greatest element.
var ValueTop = Value{Kind: Top}

// ValueOf builds an Exact value.
func ValueOf(c int64) Value { return Value{Kind: Exact, Const: c} }

// ParameterOf builds the symbolic "caller's argument i" value.
func ParameterOf(i int) Value { return Value{Kind: Parameter, Index: i} }

// IntervalOf builds an Interval value with the given bounds; either may be
// nil for unbounded.
func IntervalOf(low, high *int64) Value { return Value{Kind: Interval, Low: low, High: high} }

func i64(v int64) *int64 { return &v }

func ptrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ptrMax(a, b *int64) *int64 {
	if a == nil || b == nil {
		return nil
	}
	if *a > *b {
		return a
	}
	return b
}

func ptrMin(a, b *int64) *int64 {
	if a == nil || b == nil {
		return nil
	}
	if *a < *b {
		return a
	}
	return b
}

// contains reports whether v (an Interval) includes c.
func (v Value) contains(c int64) bool {
	if v.Low != nil && c < *v.Low {
		return false
	}
	if v.High != nil && c > *v.High {
		return false
	}
	return true
}

// widenWith returns the join of the Interval v with the Exact c: if c
// already falls inside v's bounds, v is unchanged (no information gained);
// otherwise — rather than growing the interval indefinitely across
// iterations — this widens straight to Top, which is what guarantees the
// fixpoint converges in a bounded number of steps for loop-carried values
// that don't stabilize on their own.
func (v Value) widenWith(c int64) Value {
	if v.contains(c) {
		return v
	}
	return ValueTop
}

// Join computes the least upper bound of two Values: Bottom is absorbed,
// equal values stay equal, two differing Exacts form the Interval spanning
// them, an Interval absorbs a contained Exact or otherwise widens to Top,
// and anything else (differing Parameters, an Interval joined with another
// differing Interval, any combination touching Top) collapses to Top.
func (v Value) Join(o Value) Value {
	switch {
	case v.Kind == Bottom:
		return o
	case o.Kind == Bottom:
		return v
	case v.Equal(o):
		return v
	case v.Kind == Exact && o.Kind == Exact:
		lo, hi := v.Const, o.Const
		if lo > hi {
			lo, hi = hi, lo
		}
		return IntervalOf(i64(lo), i64(hi))
	case v.Kind == Interval && o.Kind == Exact:
		return v.widenWith(o.Const)
	case v.Kind == Exact && o.Kind == Interval:
		return o.widenWith(v.Const)
	default:
		return ValueTop
	}
}

// Meet computes the greatest lower bound: the most precise Value consistent
// with both v and o, or ValueBottom if they are provably inconsistent
// (disjoint intervals, or differing Exacts/Parameters).
func (v Value) Meet(o Value) Value {
	switch {
	case v.Kind == Top:
		return o
	case o.Kind == Top:
		return v
	case v.Equal(o):
		return v
	case v.Kind == Exact && o.Kind == Interval:
		if o.contains(v.Const) {
			return v
		}
		return ValueBottom
	case v.Kind == Interval && o.Kind == Exact:
		if v.contains(o.Const) {
			return o
		}
		return ValueBottom
	case v.Kind == Interval && o.Kind == Interval:
		lo, hi := ptrMax(v.Low, o.Low), ptrMin(v.High, o.High)
		if lo != nil && hi != nil && *lo > *hi {
			return ValueBottom
		}
		return IntervalOf(lo, hi)
	default:
		return ValueBottom
	}
}

// Subsumes reports whether every concrete value o could denote is also one
// v could denote (v is at least as general as o) — used to check a
// summary's reported result against a call's actual, more-precise operands
// before trusting it outright.
func (v Value) Subsumes(o Value) bool {
	switch {
	case v.Kind == Top:
		return true
	case o.Kind == Bottom:
		return true
	case v.Kind == Exact:
		return o.Kind == Exact && o.Const == v.Const
	case v.Kind == Interval:
		switch o.Kind {
		case Exact:
			return v.contains(o.Const)
		case Interval:
			lowOK := v.Low == nil || (o.Low != nil && *v.Low <= *o.Low)
			highOK := v.High == nil || (o.High != nil && *o.High <= *v.High)
			return lowOK && highOK
		default:
			return false
		}
	default:
		return v.Equal(o)
	}
}

// AddOffset shifts v by a constant byte delta, the one arithmetic op the
// address-computation scope in fixpoint.foldBinary needs: an Exact shifts
// to another Exact, an Interval's bounds both shift, and anything else
// (Bottom, Parameter, Top) is unaffected since there is nothing concrete to
// shift.
func (v Value) AddOffset(delta int64) Value {
	switch v.Kind {
	case Exact:
		return ValueOf(v.Const + delta)
	case Interval:
		low, high := v.Low, v.High
		if low != nil {
			l := *low + delta
			low = &l
		}
		if high != nil {
			h := *high + delta
			high = &h
		}
		return IntervalOf(low, high)
	default:
		return v
	}
}

// Adapt re-keys a summary's reported Value against a specific call site's
// actual argument values (spec.md §4.7's "adapt"): a Parameter(i) resolves
// to args[i] if known, or Top if the call didn't supply enough arguments
// for the summary to make sense of; every other Kind passes through
// unchanged, since it names something already concrete at the callee.
func (v Value) Adapt(args map[int]Value) Value {
	if v.Kind != Parameter {
		return v
	}
	if a, ok := args[v.Index]; ok {
		return a
	}
	return ValueTop
}

// Equal reports lattice equality (not arithmetic equality: two Bottoms are
// equal, but Bottom and Exact(0) are not).
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Exact:
		return v.Const == o.Const
	case Interval:
		return ptrEqual(v.Low, o.Low) && ptrEqual(v.High, o.High)
	case Parameter:
		return v.Index == o.Index
	default:
		return true
	}
}

func boundString(p *int64, unboundedSymbol string) string {
	if p == nil {
		return unboundedSymbol
	}
	return fmt.Sprintf("%d", *p)
}

func (v Value) String() string {
	switch v.Kind {
	case Exact:
		return fmt.Sprintf("%d", v.Const)
	case Interval:
		return fmt.Sprintf("[%s,%s]", boundString(v.Low, "-inf"), boundString(v.High, "+inf"))
	case Parameter:
		return fmt.Sprintf("param(%d)", v.Index)
	default:
		return v.Kind.String()
	}
}
