package config

type HeapCfg struct {
	// SizeBytes is the total size of the backing region. It is rounded
	// down to a whole number of segments during init.
	SizeBytes int64 `yaml:"heap_size"`

	// SegmentBytes is the size of one segment. Must be a power of two.
	// Offsets inside a segment are 24-bit, so the ceiling is 16MiB.
	//
	// Typical: 1MiB.
	SegmentBytes int64 `yaml:"segment_size"`

	// DatapoolPath, when set, backs the heap with a memory-mapped file
	// instead of an anonymous mapping. The file is a raw byte arena;
	// restart is a cold start, there is no recovery protocol.
	DatapoolPath string `yaml:"datapool_path"`

	// Prealloc faults every heap page in at startup so the first writes
	// do not pay for page allocation.
	Prealloc bool `yaml:"prealloc"`

	// ItemMagic prefixes every stored item with a constant 8-byte marker
	// that is verified on read. A mismatch means in-memory corruption and
	// panics. It is a debugging aid, not a format guarantee.
	ItemMagic bool `yaml:"item_magic"`
}

// Segments is the number of whole segments the region holds.
func (cfg *HeapCfg) Segments() int64 {
	if cfg.SegmentBytes <= 0 {
		return 0
	}
	return cfg.SizeBytes / cfg.SegmentBytes
}
