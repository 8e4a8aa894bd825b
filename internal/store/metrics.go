package store

import (
	metrics "github.com/rcrowley/go-metrics"
)

// Counter names published to the collaborator registry.
const (
	MetricSegmentRequest   = "segments_allocated"
	MetricSegmentReturn    = "segments_returned"
	MetricSegmentEvict     = "segments_evicted"
	MetricSegmentExpire    = "segments_expired"
	MetricSegmentMerge     = "segments_merged"
	MetricItemInsert       = "items_inserted"
	MetricItemReplace      = "items_replaced"
	MetricItemDelete       = "items_deleted"
	MetricItemExpire       = "items_expired"
	MetricHashLookup       = "hash_lookups"
	MetricHashHit          = "hash_hits"
	MetricHashInsert       = "hash_inserts"
	MetricHashRemove       = "hash_removes"
	MetricHashCollision    = "hash_collisions"
	MetricHashOverflow     = "hash_overflow_buckets"
	MetricEvictionFallback = "eviction_fallbacks"
)

// engineMetrics keeps one real counter per event so snapshots work even
// without a registry; a registry, when given, sees the same counters.
type engineMetrics struct {
	segRequest metrics.Counter
	segReturn  metrics.Counter
	segEvict   metrics.Counter
	segExpire  metrics.Counter
	segMerge   metrics.Counter

	itemInsert  metrics.Counter
	itemReplace metrics.Counter
	itemDelete  metrics.Counter
	itemExpire  metrics.Counter

	hashLookup    metrics.Counter
	hashHit       metrics.Counter
	hashInsert    metrics.Counter
	hashRemove    metrics.Counter
	hashCollision metrics.Counter
	hashOverflow  metrics.Counter

	evictFallback metrics.Counter
}

func newEngineMetrics(reg metrics.Registry) *engineMetrics {
	mk := func(name string) metrics.Counter {
		c := metrics.NewCounter()
		if reg != nil {
			// a pre-registered counter of the same name wins
			if err := reg.Register(name, c); err != nil {
				if got, ok := reg.Get(name).(metrics.Counter); ok {
					return got
				}
			}
		}
		return c
	}
	return &engineMetrics{
		segRequest:    mk(MetricSegmentRequest),
		segReturn:     mk(MetricSegmentReturn),
		segEvict:      mk(MetricSegmentEvict),
		segExpire:     mk(MetricSegmentExpire),
		segMerge:      mk(MetricSegmentMerge),
		itemInsert:    mk(MetricItemInsert),
		itemReplace:   mk(MetricItemReplace),
		itemDelete:    mk(MetricItemDelete),
		itemExpire:    mk(MetricItemExpire),
		hashLookup:    mk(MetricHashLookup),
		hashHit:       mk(MetricHashHit),
		hashInsert:    mk(MetricHashInsert),
		hashRemove:    mk(MetricHashRemove),
		hashCollision: mk(MetricHashCollision),
		hashOverflow:  mk(MetricHashOverflow),
		evictFallback: mk(MetricEvictionFallback),
	}
}

// Stats is a point-in-time snapshot of the engine counters and gauges.
type Stats struct {
	SegmentsTotal int64
	SegmentsFree  int64
	ItemsLive     int64
	BytesLive     int64

	SegmentsAllocated int64
	SegmentsReturned  int64
	SegmentsEvicted   int64
	SegmentsExpired   int64
	SegmentsMerged    int64

	ItemsInserted int64
	ItemsReplaced int64
	ItemsDeleted  int64
	ItemsExpired  int64

	HashLookups    int64
	HashHits       int64
	HashInserts    int64
	HashRemoves    int64
	HashCollisions int64
}

func (m *engineMetrics) snapshot() Stats {
	return Stats{
		SegmentsAllocated: m.segRequest.Count(),
		SegmentsReturned:  m.segReturn.Count(),
		SegmentsEvicted:   m.segEvict.Count(),
		SegmentsExpired:   m.segExpire.Count(),
		SegmentsMerged:    m.segMerge.Count(),
		ItemsInserted:     m.itemInsert.Count(),
		ItemsReplaced:     m.itemReplace.Count(),
		ItemsDeleted:      m.itemDelete.Count(),
		ItemsExpired:      m.itemExpire.Count(),
		HashLookups:       m.hashLookup.Count(),
		HashHits:          m.hashHit.Count(),
		HashInserts:       m.hashInsert.Count(),
		HashRemoves:       m.hashRemove.Count(),
		HashCollisions:    m.hashCollision.Count(),
	}
}
