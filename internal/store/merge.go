package store

import "runtime"

// Merge eviction compacts a window of consecutive sealed segments of one
// TTL bucket into a single destination: items worth keeping (by access
// frequency, discounted for sources close to expiry) are copied forward,
// their hash entries repointed, and the sources freed. A merge consumes
// the engine's spare segment as its destination and turns one source into
// the next spare, so a window of N frees N-1 segments net.

// destFillDenominator leaves an eighth of the destination unfilled so
// later merges into the same chain have room.
const destFillDenominator = 8

// mergeOnce merges the preferred bucket if it has a viable window, else
// the fullest bucket. Returns the number of segments pushed to the free
// stack.
func (s *Store) mergeOnce(pref int32) int {
	if freed := s.mergeBucket(pref); freed > 0 {
		return freed
	}
	// fall back to the bucket with the longest chain
	best, bestN := int32(nilSeg), int32(1)
	for i := range s.buckets.b {
		if int32(i) == pref {
			continue
		}
		if n := s.buckets.b[i].nseg.Load(); n > bestN {
			best, bestN = int32(i), n
		}
	}
	if best == nilSeg {
		return 0
	}
	return s.mergeBucket(best)
}

func (s *Store) mergeBucket(bidx int32) int {
	destID := s.spare.Swap(nilSeg)
	if destID == nilSeg {
		// another merge is in flight
		return 0
	}

	tb := s.buckets.bucket(bidx)
	window := s.collectMergeWindow(tb, bidx)
	if len(window) < 2 {
		s.spare.Store(destID)
		return 0
	}

	now := s.nowSec()
	dest := s.heap.seg(destID)
	// the destination inherits the earliest create timestamp so expiry
	// stays monotonic along the chain
	dest.initWritable(bidx, tb.width, window[0].createTS.Load())

	capBytes := s.heap.segSize - s.heap.segSize/destFillDenominator
	perSource := capBytes / int32(len(window))
	for _, src := range window {
		rem := src.expireAt() - now
		if rem <= 0 {
			continue // effectively expired, retain nothing
		}
		budget := int64(perSource)
		if rem < tb.width {
			budget = budget * rem / tb.width
		}
		s.copyRetained(src, dest, int32(budget))
	}

	s.spliceMerged(tb, window, dest)

	freed := 0
	for i, src := range window {
		s.tab.invalidateSegment(src.id)
		src.epoch.Add(1)
		src.resetFree()
		s.mtr.segReturn.Inc(1)
		s.mtr.segEvict.Inc(1)
		if i == 0 {
			// one source becomes the next merge destination
			s.spare.Store(src.id)
			continue
		}
		s.heap.pushFree(src.id)
		freed++
	}
	s.mtr.segMerge.Inc(int64(len(window)))
	return freed
}

// collectMergeWindow gates up to mergeTarget consecutive sealed segments
// starting at the bucket's merge cursor (or head). Gated segments are in
// segReclaiming, drained of writers, and cannot be unlinked by anyone
// else. Returns nil (after rollback) when fewer than two are available.
func (s *Store) collectMergeWindow(tb *ttlBucket, bidx int32) []*segment {
	tb.mu.Lock()
	start := tb.mergeAt.Load()
	if start == nilSeg || s.heap.seg(start).bucket.Load() != bidx {
		start = tb.head.Load()
	}
	var window []*segment
	for id := start; id != nilSeg && len(window) < s.mergeTarget; {
		seg := s.heap.seg(id)
		if !seg.state.CompareAndSwap(segSealed, segReclaiming) {
			break
		}
		window = append(window, seg)
		id = seg.next.Load()
	}
	if len(window) < 2 {
		for _, seg := range window {
			seg.state.Store(segSealed)
		}
		tb.mu.Unlock()
		return nil
	}
	tb.mu.Unlock()

	for _, seg := range window {
		for seg.writers.Load() > 0 {
			runtime.Gosched()
		}
	}
	return window
}

// copyRetained copies the most frequently accessed live items of src into
// dest, up to budget bytes, repointing their hash entries. Two passes: a
// frequency histogram picks the cutoff, then qualifying items are copied
// in order.
func (s *Store) copyRetained(src, dest *segment, budget int32) {
	if budget <= 0 {
		return
	}
	wo := src.writeOff.Load()
	data := s.heap.segData(src.id)
	destData := s.heap.segData(dest.id)

	var histBytes [freqMask + 1]int64
	for off := int32(0); off < wo; {
		it, ok := readItem(data, uint32(off), wo, s.tab.magic)
		if !ok {
			break
		}
		if !it.tomb {
			histBytes[it.freq] += int64(it.size)
		}
		off += it.size
	}

	// retain the hottest frequencies that fit; frequency zero never
	// survives a merge
	cutoff := int(freqMask) + 1
	acc := int64(0)
	for f := int(freqMask); f >= 1; f-- {
		if acc+histBytes[f] > int64(budget) {
			break
		}
		acc += histBytes[f]
		cutoff = f
	}
	if cutoff > int(freqMask) {
		return
	}

	for off := int32(0); off < wo; {
		it, ok := readItem(data, uint32(off), wo, s.tab.magic)
		if !ok {
			break
		}
		if !it.tomb && int(it.freq) >= cutoff {
			doff, fits := dest.reserve(it.size, s.heap.segSize)
			if !fits {
				break
			}
			copy(destData[doff:doff+it.size], data[off:off+it.size])
			dest.release()
			from := location{seg: src.id, off: uint32(off)}
			to := location{seg: dest.id, off: uint32(doff)}
			if s.tab.relocate(s.heap, fingerprint(it.key), from, to) {
				dest.liveBytes.Add(it.size)
				dest.liveItems.Add(1)
				if it.cas >= dest.casSeq.Load() {
					dest.casSeq.Store(it.cas + 1)
				}
			} else {
				// the entry was deleted or replaced mid-copy
				tombstoneItem(destData, uint32(doff), s.tab.magic)
			}
		}
		off += it.size
	}
}

// spliceMerged replaces the window with dest in the bucket chain and
// advances the merge cursor past it.
func (s *Store) spliceMerged(tb *ttlBucket, window []*segment, dest *segment) {
	tb.mu.Lock()
	first, last := window[0], window[len(window)-1]
	p, n := first.prev.Load(), last.next.Load()
	dest.prev.Store(p)
	dest.next.Store(n)
	if p != nilSeg {
		s.heap.seg(p).next.Store(dest.id)
	} else {
		tb.head.Store(dest.id)
	}
	if n != nilSeg {
		s.heap.seg(n).prev.Store(dest.id)
	} else {
		tb.tail.Store(dest.id)
	}
	tb.nseg.Add(int32(1 - len(window)))
	tb.mergeAt.Store(n)
	// the destination is never a write target
	dest.state.CompareAndSwap(segWritable, segSealed)
	tb.mu.Unlock()
}
