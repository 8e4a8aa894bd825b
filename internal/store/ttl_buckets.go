package store

import (
	"sync"
	"sync/atomic"
)

// The TTL index is a static array of buckets over a tiered, power-of-two
// time scale: four tiers of 256, 248, 248 and 254 buckets (1006 in all)
// with 1s, 32s, 1024s and 131072s granularity, covering one second to
// about a year. A requested TTL is
// rounded down to its bucket's boundary, so every segment of a bucket
// expires within one granule of its create timestamp plus the bucket
// width.
const (
	tier1Boundary = 1 << 8  // 256s
	tier2Boundary = 1 << 13 // ~2.3h
	tier3Boundary = 1 << 18 // ~3d
	maxTTLSeconds = 1 << 25 // ~1.06y

	tier1Shift = 5
	tier2Shift = 10
	tier3Shift = 17

	tier1Base = 256
	tier2Base = tier1Base + (tier2Boundary >> tier1Shift) - (tier1Boundary >> tier1Shift) // 504
	tier3Base = tier2Base + (tier3Boundary >> tier2Shift) - (tier2Boundary >> tier2Shift) // 752
	numBucket = tier3Base + (maxTTLSeconds >> tier3Shift) - (tier3Boundary >> tier3Shift) // 1006
)

// bucketIndex maps a TTL in seconds to its bucket. Non-positive TTLs
// (memcache "no expiry") and TTLs beyond the scale land in the last
// bucket.
func bucketIndex(ttl int64) int32 {
	if ttl <= 0 || ttl >= maxTTLSeconds {
		ttl = maxTTLSeconds - 1
	}
	switch {
	case ttl < tier1Boundary:
		return int32(ttl)
	case ttl < tier2Boundary:
		return int32(tier1Base + (ttl >> tier1Shift) - (tier1Boundary >> tier1Shift))
	case ttl < tier3Boundary:
		return int32(tier2Base + (ttl >> tier2Shift) - (tier2Boundary >> tier2Shift))
	default:
		return int32(tier3Base + (ttl >> tier3Shift) - (tier3Boundary >> tier3Shift))
	}
}

// bucketWidth is the rounded TTL shared by every segment of the bucket.
func bucketWidth(idx int32) int64 {
	i := int64(idx)
	switch {
	case idx < tier1Base:
		if i < 1 {
			return 1
		}
		return i
	case idx < tier2Base:
		return (i - tier1Base + (tier1Boundary >> tier1Shift)) << tier1Shift
	case idx < tier3Base:
		return (i - tier2Base + (tier2Boundary >> tier2Shift)) << tier2Shift
	default:
		return (i - tier3Base + (tier3Boundary >> tier3Shift)) << tier3Shift
	}
}

// ttlBucket chains its segments in insertion order; the head is always the
// earliest-expiring segment of the bucket.
type ttlBucket struct {
	// mu guards the chain links. It is held only for link/unlink splices,
	// never across allocation or copying.
	mu sync.Mutex

	// allocMu serializes creating a new writable tail for this bucket so
	// concurrent writers do not race segments out of the free stack.
	allocMu sync.Mutex

	head    atomic.Int32
	tail    atomic.Int32
	mergeAt atomic.Int32 // next-to-merge cursor, nilSeg when unset
	nseg    atomic.Int32

	width int64
}

type ttlBuckets struct {
	b [numBucket]ttlBucket
}

func newTTLBuckets() *ttlBuckets {
	t := &ttlBuckets{}
	for i := range t.b {
		t.b[i].width = bucketWidth(int32(i))
		t.b[i].head.Store(nilSeg)
		t.b[i].tail.Store(nilSeg)
		t.b[i].mergeAt.Store(nilSeg)
	}
	return t
}

func (t *ttlBuckets) bucket(idx int32) *ttlBucket { return &t.b[idx] }

// linkTail appends seg as the new writable tail and seals the previous
// one. Called with the segment already initialized for this bucket.
func (tb *ttlBucket) linkTail(h *heap, seg *segment) {
	tb.mu.Lock()
	old := tb.tail.Load()
	seg.prev.Store(old)
	seg.next.Store(nilSeg)
	if old != nilSeg {
		h.seg(old).next.Store(seg.id)
		// the old tail may already be under reclaim; losing the race is fine
		h.seg(old).state.CompareAndSwap(segWritable, segSealed)
	} else {
		tb.head.Store(seg.id)
	}
	tb.tail.Store(seg.id)
	tb.nseg.Add(1)
	tb.mu.Unlock()
}

// unlink splices seg out of the chain. The segment must already be gated
// (state segReclaiming) so no concurrent unlink can target it.
func (tb *ttlBucket) unlink(h *heap, seg *segment) {
	tb.mu.Lock()
	tb.unlinkLocked(h, seg)
	tb.mu.Unlock()
}

func (tb *ttlBucket) unlinkLocked(h *heap, seg *segment) {
	p, n := seg.prev.Load(), seg.next.Load()
	if p != nilSeg {
		h.seg(p).next.Store(n)
	} else {
		tb.head.Store(n)
	}
	if n != nilSeg {
		h.seg(n).prev.Store(p)
	} else {
		tb.tail.Store(p)
	}
	if tb.mergeAt.Load() == seg.id {
		tb.mergeAt.Store(n)
	}
	seg.prev.Store(nilSeg)
	seg.next.Store(nilSeg)
	tb.nseg.Add(-1)
}
