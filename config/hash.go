package config

type HashCfg struct {
	// Power is log2 of the primary bucket count. Each bucket holds eight
	// entry slots, so the table addresses 8*2^Power items before chaining.
	Power int `yaml:"hash_power"`

	// OverflowFactor is the extra capacity multiplier for overflow
	// buckets: the table may allocate up to OverflowFactor*2^Power chained
	// buckets before inserts fail with a capacity error.
	OverflowFactor float64 `yaml:"overflow_factor"`
}
