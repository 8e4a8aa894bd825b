package store

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// The location table maps a key fingerprint to the segment and offset of
// the current live item. It is bucketed and lock-striped: one RWMutex per
// primary bucket, eight entry slots per bucket, overflow buckets chained
// off the primary and guarded by the primary's lock. Entries hold no key
// bytes; the full key lives in the segment and is compared on every probe
// that matches a fingerprint.
const slotsPerBucket = 8

type location struct {
	seg int32
	off uint32
}

// itemInfo describes a live item found by a probe. The value bytes are
// copied out by get; everything else is plain metadata.
type itemInfo struct {
	loc      location
	flags    uint32
	cas      uint64
	size     int32
	expireAt int64
}

type hashEntry struct {
	fp   uint64
	seg  int32 // nilSeg marks an empty slot
	off  uint32
	freq uint8
	cas  uint32 // low half of the item CAS, a cheap pre-check only
}

type htBucket struct {
	entries [slotsPerBucket]hashEntry
	next    *htBucket
}

func emptyBucket() htBucket {
	var b htBucket
	for i := range b.entries {
		b.entries[i].seg = nilSeg
	}
	return b
}

type condType int

const (
	condSet condType = iota
	condAdd
	condReplace
	condCas
)

type hashTable struct {
	mask    uint64
	magic   bool
	primary []htBucket
	locks   []sync.RWMutex

	// overflowLeft is the remaining overflow-bucket budget, derived from
	// the overflow factor at construction.
	overflowLeft atomic.Int64

	mtr *engineMetrics
}

func newHashTable(power int, overflowFactor float64, magic bool, mtr *engineMetrics) *hashTable {
	n := 1 << power
	t := &hashTable{
		mask:    uint64(n - 1),
		magic:   magic,
		primary: make([]htBucket, n),
		locks:   make([]sync.RWMutex, n),
		mtr:     mtr,
	}
	for i := range t.primary {
		t.primary[i] = emptyBucket()
	}
	t.overflowLeft.Store(int64(overflowFactor * float64(n)))
	return t
}

func fingerprint(key []byte) uint64 { return xxh3.Hash(key) }

// get probes for key and copies the value out under the shared lock. The
// segment epoch is snapshotted before the item is decoded and re-checked
// after the copy, so a concurrent reclaim turns into a miss instead of a
// torn read. stale reports that a matching but dead/expired entry was
// seen, so the caller can purge it under the exclusive lock.
func (t *hashTable) get(h *heap, key []byte, fp uint64, now int64) (val []byte, info itemInfo, ok, stale bool) {
	t.mtr.hashLookup.Inc(1)
	i := fp & t.mask
	t.locks[i].RLock()
	defer t.locks[i].RUnlock()

	for b := &t.primary[i]; b != nil; b = b.next {
		for s := range b.entries {
			e := &b.entries[s]
			if e.seg == nilSeg || e.fp != fp {
				continue
			}
			seg := h.seg(e.seg)
			epoch := seg.epoch.Load()
			st := seg.state.Load()
			if st != segWritable && st != segSealed {
				stale = true
				continue
			}
			wo := seg.writeOff.Load()
			if int32(e.off) >= wo {
				stale = true
				continue
			}
			it, fits := readItem(h.segData(e.seg), e.off, wo, t.magic)
			if !fits || it.tomb {
				stale = true
				continue
			}
			if !bytes.Equal(it.key, key) {
				t.mtr.hashCollision.Inc(1)
				continue
			}
			if now >= seg.expireAt() {
				stale = true
				continue
			}
			out := make([]byte, len(it.val))
			copy(out, it.val)
			if seg.epoch.Load() != epoch {
				stale = true
				continue
			}
			t.mtr.hashHit.Inc(1)
			return out, itemInfo{
				loc:      location{seg: e.seg, off: e.off},
				flags:    it.flags,
				cas:      it.cas,
				size:     it.size,
				expireAt: seg.expireAt(),
			}, true, stale
		}
	}
	return nil, itemInfo{}, false, stale
}

// touch bumps the access frequency of the entry at loc, re-validating it
// under the exclusive lock first so the byte write cannot land in a
// recycled segment.
func (t *hashTable) touch(h *heap, fp uint64, loc location) {
	i := fp & t.mask
	t.locks[i].Lock()
	defer t.locks[i].Unlock()

	for b := &t.primary[i]; b != nil; b = b.next {
		for s := range b.entries {
			e := &b.entries[s]
			if e.fp != fp || e.seg != loc.seg || e.off != loc.off {
				continue
			}
			seg := h.seg(e.seg)
			st := seg.state.Load()
			if st != segWritable && st != segSealed {
				return
			}
			if e.freq < freqMask {
				e.freq++
			}
			bumpItemFreq(h.segData(e.seg), e.off, t.magic)
			seg.accesses.Add(1)
			return
		}
	}
}

// insert installs a new entry for key under cond semantics. The item must
// already be written at loc. On a conditional failure the caller owns
// rolling the written item back.
func (t *hashTable) insert(h *heap, key []byte, fp uint64, loc location, cas uint64, now int64, cond condType, expCas uint64) error {
	i := fp & t.mask
	t.locks[i].Lock()
	defer t.locks[i].Unlock()

	var (
		existing   *hashEntry
		existingIt itemView
		free       *hashEntry
		last       *htBucket
	)
	for b := &t.primary[i]; b != nil; b = b.next {
		last = b
		for s := range b.entries {
			e := &b.entries[s]
			if e.seg == nilSeg {
				if free == nil {
					free = e
				}
				continue
			}
			if e.fp != fp {
				continue
			}
			it, live := t.liveItem(h, e)
			if !live {
				e.seg = nilSeg
				if free == nil {
					free = e
				}
				continue
			}
			if !bytes.Equal(it.key, key) {
				t.mtr.hashCollision.Inc(1)
				continue
			}
			if now >= h.seg(e.seg).expireAt() {
				t.retireLocked(h, e)
				t.mtr.itemExpire.Inc(1)
				if free == nil {
					free = e
				}
				continue
			}
			existing = e
			existingIt = it
		}
		if existing != nil {
			break
		}
	}

	switch cond {
	case condAdd:
		if existing != nil {
			return ErrExists
		}
	case condReplace:
		if existing == nil {
			return ErrNotFound
		}
	case condCas:
		if existing == nil {
			return ErrNotFound
		}
		if existing.cas != uint32(expCas) || existingIt.cas != expCas {
			return ErrExists
		}
	}

	if existing != nil {
		t.retireLocked(h, existing)
		t.mtr.itemReplace.Inc(1)
		if free == nil {
			free = existing
		}
	}
	if free == nil {
		if t.overflowLeft.Add(-1) < 0 {
			t.overflowLeft.Add(1)
			return ErrHashTableFull
		}
		nb := &htBucket{}
		*nb = emptyBucket()
		last.next = nb
		free = &nb.entries[0]
		t.mtr.hashOverflow.Inc(1)
	}

	*free = hashEntry{fp: fp, seg: loc.seg, off: loc.off, cas: uint32(cas)}
	t.mtr.hashInsert.Inc(1)
	return nil
}

// remove tombstones the live entry for key. Reports whether one existed.
func (t *hashTable) remove(h *heap, key []byte, fp uint64, now int64) bool {
	i := fp & t.mask
	t.locks[i].Lock()
	defer t.locks[i].Unlock()

	for b := &t.primary[i]; b != nil; b = b.next {
		for s := range b.entries {
			e := &b.entries[s]
			if e.seg == nilSeg || e.fp != fp {
				continue
			}
			it, live := t.liveItem(h, e)
			if !live {
				e.seg = nilSeg
				continue
			}
			if !bytes.Equal(it.key, key) {
				t.mtr.hashCollision.Inc(1)
				continue
			}
			expired := now >= h.seg(e.seg).expireAt()
			t.retireLocked(h, e)
			if expired {
				t.mtr.itemExpire.Inc(1)
				return false
			}
			t.mtr.hashRemove.Inc(1)
			return true
		}
	}
	return false
}

// purge clears dead entries for key's chain. Called after a stale get.
func (t *hashTable) purge(h *heap, key []byte, fp uint64, now int64) {
	i := fp & t.mask
	t.locks[i].Lock()
	defer t.locks[i].Unlock()

	for b := &t.primary[i]; b != nil; b = b.next {
		for s := range b.entries {
			e := &b.entries[s]
			if e.seg == nilSeg || e.fp != fp {
				continue
			}
			it, live := t.liveItem(h, e)
			if !live {
				e.seg = nilSeg
				continue
			}
			if bytes.Equal(it.key, key) && now >= h.seg(e.seg).expireAt() {
				t.retireLocked(h, e)
				t.mtr.itemExpire.Inc(1)
			}
		}
	}
}

// relocate repoints the entry at from to to. Used by the merge policy
// after copying a retained item forward. Reports whether the entry still
// pointed at from.
func (t *hashTable) relocate(h *heap, fp uint64, from, to location) bool {
	i := fp & t.mask
	t.locks[i].Lock()
	defer t.locks[i].Unlock()

	for b := &t.primary[i]; b != nil; b = b.next {
		for s := range b.entries {
			e := &b.entries[s]
			if e.fp != fp || e.seg != from.seg || e.off != from.off {
				continue
			}
			e.seg = to.seg
			e.off = to.off
			return true
		}
	}
	return false
}

// invalidateSegment clears every entry pointing into segID. Invoked at
// reclaim, before the segment's epoch advances.
func (t *hashTable) invalidateSegment(segID int32) (cleared int) {
	for i := range t.primary {
		t.locks[i].Lock()
		for b := &t.primary[i]; b != nil; b = b.next {
			for s := range b.entries {
				if b.entries[s].seg == segID {
					b.entries[s].seg = nilSeg
					cleared++
				}
			}
		}
		t.locks[i].Unlock()
	}
	return cleared
}

// liveEntries counts entries that pass full validation. Test/diagnostic
// helper, walks the whole table.
func (t *hashTable) liveEntries(h *heap) (n int64) {
	for i := range t.primary {
		t.locks[i].Lock()
		for b := &t.primary[i]; b != nil; b = b.next {
			for s := range b.entries {
				e := &b.entries[s]
				if e.seg == nilSeg {
					continue
				}
				if _, live := t.liveItem(h, e); live {
					n++
				}
			}
		}
		t.locks[i].Unlock()
	}
	return n
}

// liveItem validates the segment and decodes the item an entry points at.
// It does not check key equality or expiry; callers do.
func (t *hashTable) liveItem(h *heap, e *hashEntry) (itemView, bool) {
	seg := h.seg(e.seg)
	st := seg.state.Load()
	if st != segWritable && st != segSealed {
		return itemView{}, false
	}
	wo := seg.writeOff.Load()
	if int32(e.off) >= wo {
		return itemView{}, false
	}
	it, ok := readItem(h.segData(e.seg), e.off, wo, t.magic)
	if !ok || it.tomb {
		return itemView{}, false
	}
	return it, true
}

// retireLocked tombstones the item an entry points at, rolls the segment
// counters back and clears the slot. Caller holds the bucket lock.
func (t *hashTable) retireLocked(h *heap, e *hashEntry) {
	if it, live := t.liveItem(h, e); live {
		seg := h.seg(e.seg)
		tombstoneItem(h.segData(e.seg), e.off, t.magic)
		seg.liveBytes.Add(-it.size)
		seg.liveItems.Add(-1)
	}
	e.seg = nilSeg
}
