package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatorMonotonic(t *testing.T) {
	a := NewAllocator()
	l0 := a.New(SectionBody)
	l1 := a.New(SectionBody)
	require.Equal(t, Label{Section: SectionBody, ID: 0}, l0)
	require.Equal(t, Label{Section: SectionBody, ID: 1}, l1)
	require.True(t, l0.Less(l1))
}

func TestAllocatorTableIndependentPerTable(t *testing.T) {
	a := NewAllocator()
	t0 := a.NewTable(0)
	t1 := a.NewTable(1)
	t0b := a.NewTable(0)
	require.Equal(t, 0, t0.ID)
	require.Equal(t, 0, t1.ID)
	require.Equal(t, 1, t0b.ID)
}

func TestAllocatorObserveAvoidsCollision(t *testing.T) {
	a := NewAllocator()
	a.Observe(Label{Section: SectionDummy, ID: 41})
	next := a.New(SectionDummy)
	require.Equal(t, 42, next.ID)
}

func TestLabelOrderingBySection(t *testing.T) {
	body := Label{Section: SectionBody, ID: 5}
	merge := Label{Section: SectionMerge, ID: 0}
	require.True(t, body.Less(merge))
}
