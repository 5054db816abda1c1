// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ir defines the labelled, annotated instruction representation
// that the rest of the analysis core is built on.
package ir

import "fmt"

// Section tags the provenance of a Label.
type Section int

const (
	// SectionBody labels an instruction belonging to a regular function body.
	SectionBody Section = iota
	// SectionTable labels a table-element instruction; TableIndex identifies
	// which element segment it comes from.
	SectionTable
	// SectionMerge labels a synthetic merge block introduced by the CFG
	// builder at a join point.
	SectionMerge
	// SectionDummy labels an instruction synthesized by the slicer to repair
	// stack shape. Dummies never appear in instructions_to_keep.
	SectionDummy
)

func (s Section) String() string {
	switch s {
	case SectionBody:
		return "body"
	case SectionTable:
		return "table"
	case SectionMerge:
		return "merge"
	case SectionDummy:
		return "dummy"
	default:
		return fmt.Sprintf("<unknown section %d>", int(s))
	}
}

// Label uniquely identifies an instruction within a module section. Labels
// are totally ordered and safe to use as map keys.
type Label struct {
	Section    Section
	TableIndex int // meaningful only when Section == SectionTable
	ID         int
}

// Less gives Label a total order: by section, then table index, then id.
func (l Label) Less(o Label) bool {
	if l.Section != o.Section {
		return l.Section < o.Section
	}
	if l.TableIndex != o.TableIndex {
		return l.TableIndex < o.TableIndex
	}
	return l.ID < o.ID
}

func (l Label) String() string {
	if l.Section == SectionTable {
		return fmt.Sprintf("%s[%d]#%d", l.Section, l.TableIndex, l.ID)
	}
	return fmt.Sprintf("%s#%d", l.Section, l.ID)
}

// Allocator mints fresh, monotonically increasing Labels per section. The
// CFG builder owns one allocator, from which it mints its merge-block
// labels; the slicer owns a second allocator seeded above the first's
// high-water mark, so every dummy it introduces lands in SectionDummy with
// an id that can never collide with a surviving original label.
type Allocator struct {
	next map[Section]int
	// nextTable is keyed by table index for SectionTable labels, which are
	// numbered independently per table.
	nextTable map[int]int
}

// NewAllocator returns an allocator starting all counters at zero.
func NewAllocator() *Allocator {
	return &Allocator{
		next:      make(map[Section]int),
		nextTable: make(map[int]int),
	}
}

// New allocates the next Label in the given section (SectionBody, SectionMerge
// or SectionDummy; use NewTable for SectionTable).
func (a *Allocator) New(sec Section) Label {
	id := a.next[sec]
	a.next[sec] = id + 1
	return Label{Section: sec, ID: id}
}

// NewTable allocates the next Label within the element table at tableIndex.
func (a *Allocator) NewTable(tableIndex int) Label {
	id := a.nextTable[tableIndex]
	a.nextTable[tableIndex] = id + 1
	return Label{Section: SectionTable, TableIndex: tableIndex, ID: id}
}

// Observe bumps the allocator's internal counters so that subsequently
// minted labels never collide with lbl. Used when seeding a slicer-owned
// allocator from the labels already present in a CFG.
func (a *Allocator) Observe(lbl Label) {
	if lbl.Section == SectionTable {
		if lbl.ID >= a.nextTable[lbl.TableIndex] {
			a.nextTable[lbl.TableIndex] = lbl.ID + 1
		}
		return
	}
	if lbl.ID >= a.next[lbl.Section] {
		a.next[lbl.Section] = lbl.ID + 1
	}
}
