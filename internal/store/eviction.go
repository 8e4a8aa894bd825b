package store

import (
	"math/rand/v2"

	"github.com/Borislavv/go-seg-cache/config"
)

// Eviction is triggered by allocate once the expire sweep yields nothing.
// Each call reclaims segments per the configured policy; when a policy
// cannot produce a victim it falls back to a random sealed segment, and
// only then fails.
func (s *Store) evictOne(bidx int32) error {
	if s.policy == config.PolicyNone {
		return ErrNoFreeSegment
	}

	if s.policy == config.PolicyMerge {
		if s.mergeOnce(bidx) > 0 {
			return nil
		}
		s.mtr.evictFallback.Inc(1)
	}

	for attempt := 0; attempt < 3; attempt++ {
		victim := s.pickVictim(attempt)
		if victim == nil {
			return ErrNoFreeSegment
		}
		if s.reclaim(victim, reasonEvicted) {
			return nil
		}
		// lost the race for this victim, pick again
	}
	return ErrNoFreeSegment
}

// pickVictim dispatches on the policy; retries fall back to random so a
// contended first choice does not wedge allocation.
func (s *Store) pickVictim(attempt int) *segment {
	if attempt > 0 {
		return s.randomSealed()
	}
	switch s.policy {
	case config.PolicyRandom, config.PolicyMerge:
		return s.randomSealed()
	case config.PolicyRandomFifo:
		if v := s.randomBucketHead(); v != nil {
			return v
		}
		s.mtr.evictFallback.Inc(1)
		return s.randomSealed()
	case config.PolicyFifo:
		if v := s.minSealed(func(seg *segment) int64 { return seg.createTS.Load() }); v != nil {
			return v
		}
		return s.randomSealed()
	case config.PolicyCte:
		if v := s.minSealed(func(seg *segment) int64 { return seg.expireAt() }); v != nil {
			return v
		}
		return s.randomSealed()
	case config.PolicyUtil:
		if v := s.minSealed(func(seg *segment) int64 { return int64(seg.liveBytes.Load()) }); v != nil {
			return v
		}
		return s.randomSealed()
	}
	return nil
}

// randomSealed scans from a random start and returns the first sealed
// segment.
func (s *Store) randomSealed() *segment {
	n := s.heap.segments()
	if n == 0 {
		return nil
	}
	start := rand.IntN(n)
	for i := 0; i < n; i++ {
		seg := s.heap.seg(int32((start + i) % n))
		if seg.state.Load() == segSealed {
			return seg
		}
	}
	return nil
}

// randomBucketHead picks uniformly among the oldest segments of all
// non-empty TTL buckets, which approximates FIFO globally.
func (s *Store) randomBucketHead() *segment {
	var heads []int32
	for i := range s.buckets.b {
		id := s.buckets.b[i].head.Load()
		if id == nilSeg {
			continue
		}
		if s.heap.seg(id).state.Load() == segSealed {
			heads = append(heads, id)
		}
	}
	if len(heads) == 0 {
		return nil
	}
	return s.heap.seg(heads[rand.IntN(len(heads))])
}

// minSealed returns the sealed segment minimizing score.
func (s *Store) minSealed(score func(*segment) int64) *segment {
	var best *segment
	var bestScore int64
	for i := 0; i < s.heap.segments(); i++ {
		seg := s.heap.seg(int32(i))
		if seg.state.Load() != segSealed {
			continue
		}
		v := score(seg)
		if best == nil || v < bestScore {
			best, bestScore = seg, v
		}
	}
	return best
}
