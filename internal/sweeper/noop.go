package sweeper

// NoOpSweeper is a no-op implementation of Sweeper used when the
// background sweep is disabled; expiration then happens only on the
// allocation path or via explicit ExpireSweep calls.
type NoOpSweeper struct{}

// SweeperMetrics always returns zero values.
func (NoOpSweeper) SweeperMetrics() (passes, hits, segments int64) {
	return 0, 0, 0
}

// Close does nothing and returns nil.
func (NoOpSweeper) Close() error {
	return nil
}
