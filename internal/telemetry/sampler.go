package telemetry

import (
	"github.com/Borislavv/go-seg-cache/internal/store"
	"github.com/Borislavv/go-seg-cache/internal/sweeper"
)

type sampler struct {
	store   *store.Store
	sweeper sweeper.Sweeper
}

func newSampler(s *store.Store, sw sweeper.Sweeper) sampler {
	return sampler{store: s, sweeper: sw}
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	hits   uint64
	misses uint64

	itemsInserted uint64
	itemsDeleted  uint64
	itemsExpired  uint64

	segmentsAllocated uint64
	segmentsEvicted   uint64
	segmentsExpired   uint64
	segmentsMerged    uint64

	sweepPasses   uint64
	sweepHits     uint64
	sweepSegments uint64
}

func (s sampler) snapshot() snapshot {
	st := s.store.Stats()
	passes, hits, segments := s.sweeper.SweeperMetrics()

	return snapshot{
		hits:   uint64(max(s.store.Hits(), 0)),
		misses: uint64(max(s.store.Misses(), 0)),

		itemsInserted: uint64(max(st.ItemsInserted, 0)),
		itemsDeleted:  uint64(max(st.ItemsDeleted, 0)),
		itemsExpired:  uint64(max(st.ItemsExpired, 0)),

		segmentsAllocated: uint64(max(st.SegmentsAllocated, 0)),
		segmentsEvicted:   uint64(max(st.SegmentsEvicted, 0)),
		segmentsExpired:   uint64(max(st.SegmentsExpired, 0)),
		segmentsMerged:    uint64(max(st.SegmentsMerged, 0)),

		sweepPasses:   uint64(max(passes, 0)),
		sweepHits:     uint64(max(hits, 0)),
		sweepSegments: uint64(max(segments, 0)),
	}
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		hits:   delta(prev.hits, cur.hits),
		misses: delta(prev.misses, cur.misses),

		itemsInserted: delta(prev.itemsInserted, cur.itemsInserted),
		itemsDeleted:  delta(prev.itemsDeleted, cur.itemsDeleted),
		itemsExpired:  delta(prev.itemsExpired, cur.itemsExpired),

		segmentsAllocated: delta(prev.segmentsAllocated, cur.segmentsAllocated),
		segmentsEvicted:   delta(prev.segmentsEvicted, cur.segmentsEvicted),
		segmentsExpired:   delta(prev.segmentsExpired, cur.segmentsExpired),
		segmentsMerged:    delta(prev.segmentsMerged, cur.segmentsMerged),

		sweepPasses:   delta(prev.sweepPasses, cur.sweepPasses),
		sweepHits:     delta(prev.sweepHits, cur.sweepHits),
		sweepSegments: delta(prev.sweepSegments, cur.sweepSegments),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
