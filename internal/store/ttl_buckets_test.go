package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Borislavv/go-seg-cache/config"
)

func TestBucketIndex_TierBoundaries(t *testing.T) {
	require.Equal(t, int32(1), bucketIndex(1))
	require.Equal(t, int32(60), bucketIndex(60))
	require.Equal(t, int32(255), bucketIndex(255))

	// first bucket of every higher tier
	require.Equal(t, int32(tier1Base), bucketIndex(tier1Boundary))
	require.Equal(t, int32(tier2Base), bucketIndex(tier2Boundary))
	require.Equal(t, int32(tier3Base), bucketIndex(tier3Boundary))

	// last addressable bucket
	require.Equal(t, int32(numBucket-1), bucketIndex(maxTTLSeconds-1))
}

func TestBucketIndex_ClampsNoExpiryAndHuge(t *testing.T) {
	last := int32(numBucket - 1)
	require.Equal(t, last, bucketIndex(0))
	require.Equal(t, last, bucketIndex(-5))
	require.Equal(t, last, bucketIndex(maxTTLSeconds))
	require.Equal(t, last, bucketIndex(1<<40))
}

func TestBucketIndex_Monotonic(t *testing.T) {
	prev := int32(0)
	for ttl := int64(1); ttl < maxTTLSeconds; ttl += 977 {
		idx := bucketIndex(ttl)
		require.GreaterOrEqual(t, idx, prev, "ttl %d", ttl)
		require.Less(t, idx, int32(numBucket))
		prev = idx
	}
}

func TestBucketWidth_RoundsDownNeverBeyondTTL(t *testing.T) {
	for ttl := int64(1); ttl < maxTTLSeconds; ttl += 1009 {
		w := bucketWidth(bucketIndex(ttl))
		require.LessOrEqual(t, w, ttl, "ttl %d", ttl)
		require.Greater(t, w, int64(0), "ttl %d", ttl)
	}
}

func TestBucketWidth_WithinOneGranule(t *testing.T) {
	cases := []struct {
		ttl     int64
		granule int64
	}{
		{ttl: 7, granule: 1},
		{ttl: 300, granule: 1 << tier1Shift},
		{ttl: 10_000, granule: 1 << tier2Shift},
		{ttl: 1_000_000, granule: 1 << tier3Shift},
	}
	for _, c := range cases {
		w := bucketWidth(bucketIndex(c.ttl))
		require.LessOrEqual(t, c.ttl-w, c.granule, "ttl %d", c.ttl)
	}
}

func TestTTLBuckets_LinkUnlink(t *testing.T) {
	s, _ := newTestStore(t, nil)

	idx := bucketIndex(60)
	tb := s.buckets.bucket(idx)

	_, err := s.Set([]byte("k"), []byte("v"), 0, 60)
	require.NoError(t, err)

	head := tb.head.Load()
	require.NotEqual(t, nilSeg, head)
	require.Equal(t, head, tb.tail.Load())
	require.Equal(t, int32(1), tb.nseg.Load())

	seg := s.heap.seg(head)
	require.True(t, s.reclaim(seg, reasonEvicted))

	require.Equal(t, nilSeg, tb.head.Load())
	require.Equal(t, nilSeg, tb.tail.Load())
	require.Equal(t, int32(0), tb.nseg.Load())
}

func TestTTLBuckets_ChainStaysInsertionOrdered(t *testing.T) {
	s, mock := newTestStore(t, func(cfg *config.Cache) {
		cfg.Heap.SizeBytes = 8 * 4096
		cfg.Heap.SegmentBytes = 4096
	})

	val := make([]byte, 2100)
	for i := 0; i < 4; i++ {
		_, err := s.Set([]byte{byte('a' + i)}, val, 0, 60)
		require.NoError(t, err)
		mock.Add(time.Second)
	}

	tb := s.buckets.bucket(bucketIndex(60))
	var prevTS int64
	for id := tb.head.Load(); id != nilSeg; id = s.heap.seg(id).next.Load() {
		ts := s.heap.seg(id).createTS.Load()
		require.GreaterOrEqual(t, ts, prevTS)
		prevTS = ts
	}
	require.Equal(t, int32(4), tb.nseg.Load())
}
