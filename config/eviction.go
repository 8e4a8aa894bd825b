package config

// Policy selects how a victim segment is chosen when allocation finds the
// free stack empty after an expire sweep.
type Policy string

const (
	// PolicyNone performs no eviction; writes fail once the heap is full.
	PolicyNone Policy = "none"

	// PolicyRandom reclaims a uniformly random sealed segment.
	PolicyRandom Policy = "random"

	// PolicyRandomFifo reclaims the oldest segment of a uniformly random
	// TTL bucket, approximating FIFO globally.
	PolicyRandomFifo Policy = "random_fifo"

	// PolicyFifo reclaims the globally oldest sealed segment.
	PolicyFifo Policy = "fifo"

	// PolicyCte reclaims the sealed segment closest to expiration.
	PolicyCte Policy = "cte"

	// PolicyUtil reclaims the sealed segment with the fewest live bytes.
	PolicyUtil Policy = "util"

	// PolicyMerge compacts a window of consecutive segments of one TTL
	// bucket into a single destination, retaining items by access
	// frequency, and frees the sources.
	PolicyMerge Policy = "merge"
)

type EvictionCfg struct {
	// Policy is one of none, random, random_fifo, fifo, cte, util, merge.
	Policy Policy `yaml:"policy"`

	// MergeTarget is the window size for the merge policy: how many
	// consecutive segments a single merge pass consumes. A merge frees
	// MergeTarget segments and fills one destination.
	MergeTarget int `yaml:"merge_target"`
}
