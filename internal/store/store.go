// Package store implements the segment-structured storage engine: a heap
// of fixed-size segments, a TTL bucket index over them, a bucketed
// location table, and the cache verbs on top. Items live inline in
// segments; per-object metadata is amortised into the shared segment
// headers.
package store

import (
	"log/slog"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/Borislavv/go-seg-cache/config"
	"github.com/Borislavv/go-seg-cache/internal/datapool"
)

type reclaimReason int

const (
	reasonExpired reclaimReason = iota
	reasonEvicted
	reasonFlush
)

type Store struct {
	cfg *config.Cache
	log *slog.Logger
	clk clock.Clock
	mtr *engineMetrics

	heap    *heap
	tab     *hashTable
	buckets *ttlBuckets

	policy      config.Policy
	mergeTarget int

	// spare holds the merge policy's destination segment between merges.
	// nilSeg for every other policy.
	spare atomic.Int32

	hits   atomic.Int64
	misses atomic.Int64
}

func New(cfg *config.Cache, logger *slog.Logger, clk clock.Clock, reg metrics.Registry) (*Store, error) {
	pool, err := datapool.Open(cfg.Heap.DatapoolPath, cfg.Heap.SizeBytes, cfg.Heap.Prealloc)
	if err != nil {
		return nil, err
	}

	mtr := newEngineMetrics(reg)
	s := &Store{
		cfg:         cfg,
		log:         logger,
		clk:         clk,
		mtr:         mtr,
		heap:        newHeap(pool, cfg.Heap.SegmentBytes),
		tab:         newHashTable(cfg.Hash.Power, cfg.Hash.OverflowFactor, cfg.Heap.ItemMagic, mtr),
		buckets:     newTTLBuckets(),
		policy:      cfg.Eviction.Policy,
		mergeTarget: cfg.Eviction.MergeTarget,
	}
	s.spare.Store(nilSeg)
	if s.policy == config.PolicyMerge {
		seg, ok := s.heap.popFree()
		if !ok {
			_ = pool.Close()
			return nil, ErrNoFreeSegment
		}
		s.spare.Store(seg.id)
	}

	logger.Info("segment store is ready",
		"segments", s.heap.segments(),
		"segment_size", cfg.Heap.SegmentBytes,
		"hash_power", cfg.Hash.Power,
		"policy", string(s.policy))
	return s, nil
}

func (s *Store) nowSec() int64 { return s.clk.Now().Unix() }

// Get returns the value, flags and CAS of a live item. The returned slice
// is a private copy owned by the caller.
func (s *Store) Get(key []byte) ([]byte, uint32, uint64, error) {
	now := s.nowSec()
	fp := fingerprint(key)
	val, info, ok, stale := s.tab.get(s.heap, key, fp, now)
	if !ok {
		if stale {
			s.tab.purge(s.heap, key, fp, now)
		}
		s.misses.Add(1)
		return nil, 0, 0, ErrNotFound
	}
	s.hits.Add(1)
	s.tab.touch(s.heap, fp, info.loc)
	return val, info.flags, info.cas, nil
}

// Set unconditionally stores key. TTL is in seconds; non-positive means
// the longest supported lifetime.
func (s *Store) Set(key, val []byte, flags uint32, ttl int64) (uint64, error) {
	return s.write(key, val, flags, ttl, condSet, 0)
}

// Add stores key only if it is absent.
func (s *Store) Add(key, val []byte, flags uint32, ttl int64) (uint64, error) {
	return s.write(key, val, flags, ttl, condAdd, 0)
}

// Replace stores key only if it is present.
func (s *Store) Replace(key, val []byte, flags uint32, ttl int64) (uint64, error) {
	return s.write(key, val, flags, ttl, condReplace, 0)
}

// Cas stores key only if its current CAS equals expected.
func (s *Store) Cas(key, val []byte, flags uint32, ttl int64, expected uint64) (uint64, error) {
	return s.write(key, val, flags, ttl, condCas, expected)
}

// Append writes old+extra as a fresh item and tombstones the old one.
// Values never grow in place.
func (s *Store) Append(key, extra []byte) (uint64, error) {
	return s.concat(key, extra, false)
}

// Prepend writes extra+old as a fresh item and tombstones the old one.
func (s *Store) Prepend(key, extra []byte) (uint64, error) {
	return s.concat(key, extra, true)
}

func (s *Store) concat(key, extra []byte, front bool) (uint64, error) {
	now := s.nowSec()
	fp := fingerprint(key)
	old, info, ok, stale := s.tab.get(s.heap, key, fp, now)
	if !ok {
		if stale {
			s.tab.purge(s.heap, key, fp, now)
		}
		return 0, ErrNotFound
	}
	var merged []byte
	if front {
		merged = make([]byte, 0, len(extra)+len(old))
		merged = append(append(merged, extra...), old...)
	} else {
		merged = append(old, extra...)
	}
	return s.write(key, merged, info.flags, info.expireAt-now, condReplace, 0)
}

// Incr parses the value as an unsigned decimal, adds delta (wrapping at
// 2^64) and stores the result back under the remaining TTL.
func (s *Store) Incr(key []byte, delta uint64) (uint64, error) {
	return s.arith(key, delta, false)
}

// Decr subtracts delta, saturating at zero.
func (s *Store) Decr(key []byte, delta uint64) (uint64, error) {
	return s.arith(key, delta, true)
}

func (s *Store) arith(key []byte, delta uint64, sub bool) (uint64, error) {
	now := s.nowSec()
	fp := fingerprint(key)
	old, info, ok, stale := s.tab.get(s.heap, key, fp, now)
	if !ok {
		if stale {
			s.tab.purge(s.heap, key, fp, now)
		}
		return 0, ErrNotFound
	}
	cur, err := strconv.ParseUint(string(old), 10, 64)
	if err != nil {
		return 0, ErrMalformedNumber
	}
	var next uint64
	if sub {
		if delta > cur {
			next = 0
		} else {
			next = cur - delta
		}
	} else {
		next = cur + delta
	}
	buf := strconv.AppendUint(make([]byte, 0, 20), next, 10)
	if _, err := s.write(key, buf, info.flags, info.expireAt-now, condReplace, 0); err != nil {
		return 0, err
	}
	return next, nil
}

// Delete tombstones the current item.
func (s *Store) Delete(key []byte) error {
	if s.tab.remove(s.heap, key, fingerprint(key), s.nowSec()) {
		s.mtr.itemDelete.Inc(1)
		return nil
	}
	return ErrNotFound
}

// Touch rewrites the item under a new TTL, moving it to the bucket the
// TTL maps to.
func (s *Store) Touch(key []byte, ttl int64) error {
	now := s.nowSec()
	fp := fingerprint(key)
	old, info, ok, stale := s.tab.get(s.heap, key, fp, now)
	if !ok {
		if stale {
			s.tab.purge(s.heap, key, fp, now)
		}
		return ErrNotFound
	}
	_, err := s.write(key, old, info.flags, ttl, condReplace, 0)
	return err
}

// Flush reclaims every linked segment and so drops all live data.
func (s *Store) Flush() {
	for i := 0; i < s.heap.segments(); i++ {
		seg := s.heap.seg(int32(i))
		st := seg.state.Load()
		if st == segWritable || st == segSealed {
			s.reclaim(seg, reasonFlush)
		}
	}
}

// ExpireSweep walks every TTL bucket and reclaims expired head segments.
// Work is proportional to the number of expired segments, not items.
func (s *Store) ExpireSweep() (reclaimed int) {
	now := s.nowSec()
	for i := range s.buckets.b {
		tb := &s.buckets.b[i]
		for {
			id := tb.head.Load()
			if id == nilSeg {
				break
			}
			seg := s.heap.seg(id)
			if seg.bucket.Load() != int32(i) || now < seg.expireAt() {
				break
			}
			if !s.reclaim(seg, reasonExpired) {
				break
			}
			reclaimed++
		}
	}
	return reclaimed
}

// Stats snapshots counters and live gauges.
func (s *Store) Stats() Stats {
	st := s.mtr.snapshot()
	st.SegmentsTotal = int64(s.heap.segments())
	st.SegmentsFree = int64(s.heap.freeCount())
	st.ItemsLive, st.BytesLive = s.heap.liveTotals()
	return st
}

// Hits and Misses are engine-level read outcome counters.
func (s *Store) Hits() int64   { return s.hits.Load() }
func (s *Store) Misses() int64 { return s.misses.Load() }

// Len is the number of live items.
func (s *Store) Len() int64 {
	items, _ := s.heap.liveTotals()
	return items
}

// Mem is the number of live item bytes.
func (s *Store) Mem() int64 {
	_, bytes := s.heap.liveTotals()
	return bytes
}

func (s *Store) Close() error {
	return s.heap.close()
}

// write appends the item into its TTL bucket's writable tail and installs
// the hash entry under cond semantics.
func (s *Store) write(key, val []byte, flags uint32, ttl int64, cond condType, expCas uint64) (uint64, error) {
	if len(key) == 0 || len(key) > maxKeyLen || len(val) > maxValueLen {
		return 0, ErrItemOversized
	}
	need := itemSize(len(key), len(val), s.tab.magic)
	if need > s.heap.segSize {
		return 0, ErrItemOversized
	}

	bidx := bucketIndex(ttl)
	tb := s.buckets.bucket(bidx)
	seg, off, err := s.reserve(tb, bidx, need)
	if err != nil {
		return 0, err
	}

	data := s.heap.segData(seg.id)
	cas := seg.casSeq.Add(1)
	encodeItem(data[off:], s.tab.magic, flags, cas, key, val)
	seg.liveBytes.Add(need)
	seg.liveItems.Add(1)

	now := s.nowSec()
	fp := fingerprint(key)
	if err = s.tab.insert(s.heap, key, fp, location{seg: seg.id, off: uint32(off)}, cas, now, cond, expCas); err != nil {
		// orphan the just-written item
		tombstoneItem(data, uint32(off), s.tab.magic)
		seg.liveBytes.Add(-need)
		seg.liveItems.Add(-1)
		seg.release()
		return 0, err
	}
	seg.release()
	s.mtr.itemInsert.Inc(1)
	return cas, nil
}

// reserve finds or creates the bucket's writable tail and claims need
// bytes in it. On success the segment holds a writer reference that the
// caller releases after the hash insert.
func (s *Store) reserve(tb *ttlBucket, bidx int32, need int32) (*segment, int32, error) {
	for {
		if id := tb.tail.Load(); id != nilSeg {
			seg := s.heap.seg(id)
			if seg.bucket.Load() == bidx {
				if off, ok := seg.reserve(need, s.heap.segSize); ok {
					return seg, off, nil
				}
			}
		}

		tb.allocMu.Lock()
		// another writer may have replaced the tail while we waited
		if id := tb.tail.Load(); id != nilSeg {
			seg := s.heap.seg(id)
			if seg.bucket.Load() == bidx && seg.state.Load() == segWritable {
				if off, ok := seg.reserve(need, s.heap.segSize); ok {
					tb.allocMu.Unlock()
					return seg, off, nil
				}
				// full tail: seal it so eviction policies may take it
				seg.state.CompareAndSwap(segWritable, segSealed)
			}
		}
		seg, err := s.allocate(bidx)
		if err != nil {
			tb.allocMu.Unlock()
			return nil, 0, err
		}
		tb.linkTail(s.heap, seg)
		off, ok := seg.reserve(need, s.heap.segSize)
		tb.allocMu.Unlock()
		if ok {
			return seg, off, nil
		}
		// the fresh tail was raced away (reclaimed); go around
	}
}

// allocate produces an initialized writable segment for bucket bidx,
// absorbing expired segments first and falling back to eviction.
func (s *Store) allocate(bidx int32) (*segment, error) {
	limit := 4 * s.heap.segments()
	for attempt := 0; attempt <= limit; attempt++ {
		if seg, ok := s.heap.popFree(); ok {
			seg.initWritable(bidx, bucketWidth(bidx), s.nowSec())
			s.mtr.segRequest.Inc(1)
			return seg, nil
		}
		if s.ExpireSweep() > 0 {
			continue
		}
		if err := s.evictOne(bidx); err != nil {
			return nil, err
		}
	}
	return nil, ErrNoFreeSegment
}

// reclaim transitions a linked segment back to free: gate writers out,
// unlink from the bucket, drop every hash entry into it, advance the
// epoch, and push onto the free stack.
func (s *Store) reclaim(seg *segment, reason reclaimReason) bool {
	if !seg.state.CompareAndSwap(segSealed, segReclaiming) &&
		!seg.state.CompareAndSwap(segWritable, segReclaiming) {
		return false
	}
	for seg.writers.Load() > 0 {
		runtime.Gosched()
	}
	items := int64(seg.liveItems.Load())
	if b := seg.bucket.Load(); b != nilSeg {
		s.buckets.bucket(b).unlink(s.heap, seg)
	}
	s.tab.invalidateSegment(seg.id)
	seg.epoch.Add(1)
	seg.resetFree()
	s.heap.pushFree(seg.id)

	s.mtr.segReturn.Inc(1)
	switch reason {
	case reasonExpired:
		s.mtr.segExpire.Inc(1)
		s.mtr.itemExpire.Inc(items)
	case reasonEvicted:
		s.mtr.segEvict.Inc(1)
	}
	return true
}
