package sweeper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSweeperCounters_Snapshot verifies that sweeper counters correctly track metrics.
func TestSweeperCounters_Snapshot(t *testing.T) {
	c := newSweeperCounters()

	passes, hits, segments := c.snapshot()
	require.Equal(t, int64(0), passes)
	require.Equal(t, int64(0), hits)
	require.Equal(t, int64(0), segments)

	c.passes.Add(100)
	c.hits.Add(40)
	c.segments.Add(250)

	passes, hits, segments = c.snapshot()
	require.Equal(t, int64(100), passes)
	require.Equal(t, int64(40), hits)
	require.Equal(t, int64(250), segments)
}

// TestSweeperCounters_Concurrent verifies thread-safety.
func TestSweeperCounters_Concurrent(t *testing.T) {
	c := newSweeperCounters()

	const numGoroutines = 10
	const opsPerGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				c.passes.Add(1)
				c.hits.Add(1)
				c.segments.Add(3)
			}
		}()
	}

	wg.Wait()

	passes, hits, segments := c.snapshot()
	require.Equal(t, int64(numGoroutines*opsPerGoroutine), passes)
	require.Equal(t, int64(numGoroutines*opsPerGoroutine), hits)
	require.Equal(t, int64(numGoroutines*opsPerGoroutine*3), segments)
}
