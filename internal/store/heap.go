package store

import (
	"sync"

	"github.com/Borislavv/go-seg-cache/internal/datapool"
)

// heap owns the contiguous byte region and the segment-header array, and
// tracks free segments in a LIFO stack so recently used headers stay warm.
type heap struct {
	pool    *datapool.Pool
	data    []byte
	segs    []segment
	segSize int32

	freeMu sync.Mutex
	free   []int32
}

func newHeap(pool *datapool.Pool, segSize int64) *heap {
	data := pool.Bytes()
	n := int32(int64(len(data)) / segSize)
	h := &heap{
		pool:    pool,
		data:    data,
		segs:    make([]segment, n),
		segSize: int32(segSize),
		free:    make([]int32, 0, n),
	}
	for i := int32(0); i < n; i++ {
		h.segs[i].id = i
		h.segs[i].bucket.Store(nilSeg)
		h.segs[i].prev.Store(nilSeg)
		h.segs[i].next.Store(nilSeg)
	}
	// push high ids first so low ids pop first
	for i := n - 1; i >= 0; i-- {
		h.free = append(h.free, i)
	}
	return h
}

func (h *heap) seg(id int32) *segment { return &h.segs[id] }

// segData returns the byte slice of one segment.
func (h *heap) segData(id int32) []byte {
	start := int64(id) * int64(h.segSize)
	return h.data[start : start+int64(h.segSize)]
}

func (h *heap) popFree() (*segment, bool) {
	h.freeMu.Lock()
	if len(h.free) == 0 {
		h.freeMu.Unlock()
		return nil, false
	}
	id := h.free[len(h.free)-1]
	h.free = h.free[:len(h.free)-1]
	h.freeMu.Unlock()
	return &h.segs[id], true
}

func (h *heap) pushFree(id int32) {
	h.freeMu.Lock()
	h.free = append(h.free, id)
	h.freeMu.Unlock()
}

func (h *heap) freeCount() int {
	h.freeMu.Lock()
	n := len(h.free)
	h.freeMu.Unlock()
	return n
}

func (h *heap) segments() int { return len(h.segs) }

// liveTotals sums live counters across all segments. Used for gauges and
// invariant checks, not on hot paths.
func (h *heap) liveTotals() (items, bytes int64) {
	for i := range h.segs {
		s := &h.segs[i]
		st := s.state.Load()
		if st == segWritable || st == segSealed {
			items += int64(s.liveItems.Load())
			bytes += int64(s.liveBytes.Load())
		}
	}
	return
}

func (h *heap) close() error { return h.pool.Close() }
