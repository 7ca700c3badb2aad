package arena

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocWithinChunk(t *testing.T) {
	a := New(64)
	b1 := a.Alloc(8)
	b2 := a.Alloc(8)
	require.Len(t, b1, 8)
	require.Len(t, b2, 8)
	// distinct, non-overlapping regions
	b1[0] = 1
	b2[0] = 2
	assert.EqualValues(t, 1, b1[0])
	assert.EqualValues(t, 2, b2[0])
}

func TestAllocGrowsChunk(t *testing.T) {
	a := New(16)
	a.Alloc(16) // exhaust first chunk exactly
	big := a.Alloc(64)
	require.Len(t, big, 64)
	assert.Greater(t, a.SizeAllocated(), 16)
}

func TestAllocAlignment(t *testing.T) {
	a := New(256)
	for _, align := range []int{1, 2, 4, 8, 16, 32} {
		b := a.AllocAligned(align, 3)
		addr := uintptrOf(b)
		assert.Zero(t, addr%uintptr(align), "alignment %d", align)
	}
}

func TestPurgeResetsCursorNotChunks(t *testing.T) {
	a := New(32)
	a.Alloc(16)
	a.Alloc(16)
	before := a.SizeAllocated()
	assert.Positive(t, before)
	a.Purge()
	assert.Zero(t, a.SizeAllocated())
}

func TestScopedRestoresOnNormalReturn(t *testing.T) {
	a := New(128)
	a.Alloc(8)
	pre := a.SizeAllocated()
	a.Scoped(func(inner *Arena) {
		inner.Alloc(64)
	})
	assert.Equal(t, pre, a.SizeAllocated())
}

func TestScopedRestoresOnPanic(t *testing.T) {
	a := New(128)
	a.Alloc(8)
	pre := a.SizeAllocated()
	func() {
		defer func() { recover() }()
		a.Scoped(func(inner *Arena) {
			inner.Alloc(64)
			panic("boom")
		})
	}()
	assert.Equal(t, pre, a.SizeAllocated())
}

func TestAllocAlignedRejectsNonPowerOfTwo(t *testing.T) {
	a := New(64)
	assert.Panics(t, func() {
		a.AllocAligned(3, 8)
	})
}

func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
