package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Borislavv/go-seg-cache/internal/datapool"
)

func newTestHeap(t *testing.T, segSize, nseg int64) *heap {
	t.Helper()
	pool, err := datapool.Open("", segSize*nseg, false)
	require.NoError(t, err)
	h := newHeap(pool, segSize)
	t.Cleanup(func() { _ = h.close() })
	return h
}

func TestHeap_Partitioning(t *testing.T) {
	h := newTestHeap(t, 4096, 8)

	require.Equal(t, 8, h.segments())
	require.Equal(t, 8, h.freeCount())

	for i := int32(0); i < 8; i++ {
		data := h.segData(i)
		require.Len(t, data, 4096)
		require.Equal(t, i, h.seg(i).id)
	}

	// segments must not overlap
	h.segData(0)[4095] = 0xaa
	require.Equal(t, byte(0), h.segData(1)[0])
}

func TestHeap_FreeStackIsLIFO(t *testing.T) {
	h := newTestHeap(t, 4096, 4)

	first, ok := h.popFree()
	require.True(t, ok)
	require.Equal(t, int32(0), first.id)

	second, ok := h.popFree()
	require.True(t, ok)
	require.Equal(t, int32(1), second.id)

	h.pushFree(first.id)
	again, ok := h.popFree()
	require.True(t, ok)
	require.Equal(t, first.id, again.id)
}

func TestHeap_PopUntilEmpty(t *testing.T) {
	h := newTestHeap(t, 4096, 2)

	_, ok := h.popFree()
	require.True(t, ok)
	_, ok = h.popFree()
	require.True(t, ok)
	_, ok = h.popFree()
	require.False(t, ok)
	require.Equal(t, 0, h.freeCount())
}
