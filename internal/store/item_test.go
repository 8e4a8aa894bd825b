package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItem_EncodeReadRoundTrip(t *testing.T) {
	for _, magic := range []bool{false, true} {
		buf := make([]byte, 4096)
		key := []byte("some-key")
		val := []byte("some-value-bytes")
		size := itemSize(len(key), len(val), magic)

		encodeItem(buf, magic, 42, 7, key, val)

		it, ok := readItem(buf, 0, size, magic)
		require.True(t, ok)
		require.Equal(t, uint32(42), it.flags)
		require.Equal(t, uint64(7), it.cas)
		require.Equal(t, key, it.key)
		require.Equal(t, val, it.val)
		require.Equal(t, byte(0), it.freq)
		require.False(t, it.tomb)
		require.Equal(t, size, it.size)
	}
}

func TestItem_ReadRejectsTruncated(t *testing.T) {
	buf := make([]byte, 4096)
	key := []byte("k")
	val := make([]byte, 100)
	encodeItem(buf, false, 0, 1, key, val)

	// limit cuts into the value
	_, ok := readItem(buf, 0, itemSize(1, 100, false)-1, false)
	require.False(t, ok)

	// limit cuts into the header
	_, ok = readItem(buf, 0, itemHeaderSize-1, false)
	require.False(t, ok)
}

func TestItem_Tombstone(t *testing.T) {
	buf := make([]byte, 256)
	encodeItem(buf, false, 0, 1, []byte("k"), []byte("v"))

	tombstoneItem(buf, 0, false)

	it, ok := readItem(buf, 0, int32(len(buf)), false)
	require.True(t, ok)
	require.True(t, it.tomb)
	// tombstoning must not disturb the frequency bits
	require.Equal(t, byte(0), it.freq)
}

func TestItem_FreqSaturates(t *testing.T) {
	buf := make([]byte, 256)
	encodeItem(buf, false, 0, 1, []byte("k"), []byte("v"))

	for i := 0; i < 300; i++ {
		bumpItemFreq(buf, 0, false)
	}
	it, _ := readItem(buf, 0, int32(len(buf)), false)
	require.Equal(t, byte(freqMask), it.freq)
	require.False(t, it.tomb)

	// saturated bumps must not leak into the tombstone bit
	tombstoneItem(buf, 0, false)
	bumpItemFreq(buf, 0, false)
	it, _ = readItem(buf, 0, int32(len(buf)), false)
	require.True(t, it.tomb)
}

func TestItem_MagicMismatchPanics(t *testing.T) {
	buf := make([]byte, 256)
	encodeItem(buf, true, 0, 1, []byte("k"), []byte("v"))
	buf[3] ^= 0xff

	require.Panics(t, func() {
		_, _ = readItem(buf, 0, int32(len(buf)), true)
	})
}

func TestUint24RoundTrip(t *testing.T) {
	var buf [3]byte
	for _, v := range []uint32{0, 1, 255, 256, 65535, 1<<24 - 1} {
		putUint24(buf[:], v)
		require.Equal(t, v, uint24(buf[:]))
	}
}
