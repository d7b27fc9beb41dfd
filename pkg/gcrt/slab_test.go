package gcrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagePoolBumpAllocation(t *testing.T) {
	pp := NewPagePool(256)
	_, ok := pp.bumpHead(8)
	assert.False(t, ok, "bump must fail before any page exists")

	pp.addPage(8)
	p1, ok := pp.bumpHead(8)
	require.True(t, ok)
	p2, ok := pp.bumpHead(8)
	require.True(t, ok)
	assert.NotEqual(t, p1, p2)
	assert.Equal(t, uintptr(256-16), pp.remainingInHead())
}

func TestPagePoolAddPageGrowsForOversizeRequest(t *testing.T) {
	pp := NewPagePool(64)
	pp.addPage(128)
	assert.Equal(t, uintptr(128), pp.remainingInHead())
}

func TestAllocatorSmallRoundTrip(t *testing.T) {
	a := NewAllocator(0, 256)
	p1 := a.allocSmall(10) // rounds up to 16
	a.freeSmall(10, p1)
	p2 := a.allocSmall(10)
	assert.Equal(t, p1, p2, "a freed slot must be reused before bumping further")
}

func TestAllocatorScavengeCarvesRemainingTail(t *testing.T) {
	a := NewAllocator(0, 32) // one page holds two 16-byte slots
	a.allocSmall(16)
	// The page's tail (16 bytes) isn't big enough for a 24-byte
	// request; allocSmall must scavenge it into the 16-byte free list
	// (and smaller) before adding a fresh page.
	a.allocSmall(24)
	assert.Equal(t, 2, a.pages.pageCount())
	assert.NotNil(t, a.freeList[slotFor(16)], "scavenge must have carved the old tail into the 16-byte class")
}

func TestRoundUpToGranularity(t *testing.T) {
	assert.Equal(t, uintptr(8), roundUpToGranularity(1))
	assert.Equal(t, uintptr(8), roundUpToGranularity(8))
	assert.Equal(t, uintptr(16), roundUpToGranularity(9))
}
