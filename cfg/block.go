// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cfg converts a function's instruction stream into a basic-block
// graph with explicit merge nodes, and carries the per-block/per-CFG
// invariants (§3, §4.1 of the design) that every later analysis relies on.
package cfg

import (
	"fmt"

	"github.com/go-interpreter/wasmslice/ir"
)

// ContentKind distinguishes the three shapes a Block can take.
type ContentKind int

const (
	DataContent ContentKind = iota
	ControlContent
	MergeContent
)

func (k ContentKind) String() string {
	switch k {
	case DataContent:
		return "data"
	case ControlContent:
		return "control"
	case MergeContent:
		return "merge"
	default:
		return fmt.Sprintf("<unknown content %d>", int(k))
	}
}

// Block is the CFG's basic-block triple (index, content, annotations).
// Content is exactly one of a non-empty ordered data-instruction sequence, a
// single control instruction, or a merge marker; which one is live is given
// by Kind.
type Block[A any] struct {
	Index int
	Kind  ContentKind

	// Data holds the ordered labels of a DataContent block. Non-empty except
	// for a block the slicer has stripped down to nothing.
	Data []ir.Label
	// Control holds the single label of a ControlContent block's instruction.
	Control ir.Label
	// Merge holds the synthetic SectionMerge label standing for this block's
	// identity as an SSA join; the CFG's instruction map carries a
	// ir.MergeOp at this label for uniform def/use lookups.
	Merge ir.Label

	Before A
	After  A
}

// Label returns the single label that identifies this block's instruction
// for ControlContent and MergeContent blocks; it panics for DataContent
// (which may hold zero or many labels).
func (b *Block[A]) Label() ir.Label {
	switch b.Kind {
	case ControlContent:
		return b.Control
	case MergeContent:
		return b.Merge
	default:
		panic("cfg: Label() called on a DataContent block")
	}
}

// Empty reports whether a DataContent block has been fully emptied by the
// slicer. Spec §3 allows this only post-slicing.
func (b *Block[A]) Empty() bool {
	return b.Kind == DataContent && len(b.Data) == 0
}
