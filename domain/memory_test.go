package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/wasmslice/ir"
)

func TestRegionMayAliasOverlapping(t *testing.T) {
	base := ir.Local(0)
	a := Region{Base: base, Offset: 0, Width: 4}
	b := Region{Base: base, Offset: 2, Width: 4}
	require.True(t, a.MayAlias(b))
}

func TestRegionDisjointSameBaseDoesNotAlias(t *testing.T) {
	base := ir.Local(0)
	a := Region{Base: base, Offset: 0, Width: 4}
	b := Region{Base: base, Offset: 4, Width: 4}
	require.False(t, a.MayAlias(b))
}

func TestRegionDifferentBasesNeverProvablyAlias(t *testing.T) {
	a := Region{Base: ir.Local(0), Offset: 0, Width: 4}
	b := Region{Base: ir.Local(1), Offset: 0, Width: 4}
	require.True(t, a.MayAlias(b))
}

func TestRegionAnyBaseAlwaysMayAlias(t *testing.T) {
	a := Region{Base: AnyBase, Offset: 0, Width: 4}
	b := Region{Base: ir.Local(1), Offset: 100, Width: 4}
	require.True(t, a.MayAlias(b))
}

func TestStoreJoinUnionsWrites(t *testing.T) {
	s1 := NewStore()
	s1 = s1.Record(ir.Label{Section: ir.SectionBody, ID: 0}, Region{Base: ir.Local(0), Width: 4})
	s2 := NewStore()
	s2 = s2.Record(ir.Label{Section: ir.SectionBody, ID: 1}, Region{Base: ir.Local(1), Width: 4})

	joined := s1.Join(s2)
	require.Len(t, joined.MayAliasingWrites(Region{Base: AnyBase}), 2)
}
