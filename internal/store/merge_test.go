package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Borislavv/go-seg-cache/config"
)

func mergeCfg(cfg *config.Cache) {
	cfg.Heap.SizeBytes = 6 * 4096
	cfg.Heap.SegmentBytes = 4096
	cfg.Eviction.Policy = config.PolicyMerge
	cfg.Eviction.MergeTarget = 4
}

// 600-byte values pack six items into a 4KiB segment.
func mergeVal(i int) []byte {
	v := make([]byte, 600)
	for j := range v {
		v[j] = byte(i)
	}
	return v
}

func mergeKey(i int) []byte { return []byte(fmt.Sprintf("key-%02d", i)) }

func TestMerge_RetainsHotDropsCold(t *testing.T) {
	s, _ := newTestStore(t, mergeCfg)

	// five usable segments (one is held back as the merge destination),
	// six items each
	for i := 0; i < 30; i++ {
		_, err := s.Set(mergeKey(i), mergeVal(i), 0, 60)
		require.NoError(t, err)
	}
	require.Equal(t, 0, s.heap.freeCount())

	// heat one item per future merge source
	hot := []int{0, 6, 12, 18}
	for _, i := range hot {
		for n := 0; n < 3; n++ {
			_, _, _, err := s.Get(mergeKey(i))
			require.NoError(t, err)
		}
	}

	// pressure: the next write has to merge
	_, err := s.Set(mergeKey(30), mergeVal(30), 0, 60)
	require.NoError(t, err)

	st := s.Stats()
	require.Equal(t, int64(4), st.SegmentsMerged)

	// hot items were copied forward
	for _, i := range hot {
		val, _, _, err := s.Get(mergeKey(i))
		require.NoError(t, err, "hot key %d", i)
		require.Equal(t, mergeVal(i), val)
	}

	// cold items of the merged window are gone
	cold := 0
	for i := 0; i < 24; i++ {
		if _, _, _, err := s.Get(mergeKey(i)); err != nil {
			require.ErrorIs(t, err, ErrNotFound)
			cold++
		}
	}
	require.Equal(t, 20, cold)

	// items outside the window were untouched
	for i := 24; i <= 30; i++ {
		_, _, _, err := s.Get(mergeKey(i))
		require.NoError(t, err, "key %d", i)
	}
}

func TestMerge_FreesNetSegments(t *testing.T) {
	s, _ := newTestStore(t, mergeCfg)

	for i := 0; i < 30; i++ {
		_, err := s.Set(mergeKey(i), mergeVal(i), 0, 60)
		require.NoError(t, err)
	}
	require.Equal(t, 0, s.heap.freeCount())

	_, err := s.Set(mergeKey(30), mergeVal(30), 0, 60)
	require.NoError(t, err)

	// the merge freed the window minus the destination minus the segment
	// the new write went to
	require.Greater(t, s.heap.freeCount(), 0)
	require.LessOrEqual(t, s.Mem(), int64(6*4096))
}

func TestMerge_AllColdBecomesPureEviction(t *testing.T) {
	s, _ := newTestStore(t, mergeCfg)

	for i := 0; i < 30; i++ {
		_, err := s.Set(mergeKey(i), mergeVal(i), 0, 60)
		require.NoError(t, err)
	}

	// nothing was ever read, so nothing has a frequency worth retaining
	_, err := s.Set(mergeKey(30), mergeVal(30), 0, 60)
	require.NoError(t, err)

	for i := 0; i < 24; i++ {
		_, _, _, err := s.Get(mergeKey(i))
		require.ErrorIs(t, err, ErrNotFound, "key %d", i)
	}
}

func TestMerge_CasSurvivesRelocation(t *testing.T) {
	s, _ := newTestStore(t, mergeCfg)

	var casByKey [30]uint64
	for i := 0; i < 30; i++ {
		cas, err := s.Set(mergeKey(i), mergeVal(i), 0, 60)
		require.NoError(t, err)
		casByKey[i] = cas
	}
	for n := 0; n < 3; n++ {
		_, _, _, err := s.Get(mergeKey(6))
		require.NoError(t, err)
	}

	_, err := s.Set(mergeKey(30), mergeVal(30), 0, 60)
	require.NoError(t, err)

	// the relocated item keeps the CAS it was written with
	_, _, cas, err := s.Get(mergeKey(6))
	require.NoError(t, err)
	require.Equal(t, casByKey[6], cas)
}
