package sweeper

import "sync/atomic"

type sweeperCounters struct {
	passes   atomic.Int64
	hits     atomic.Int64
	segments atomic.Int64
}

func (c *sweeperCounters) snapshot() (passes, hits, segments int64) {
	return c.passes.Load(), c.hits.Load(), c.segments.Load()
}

func newSweeperCounters() *sweeperCounters {
	return &sweeperCounters{}
}
