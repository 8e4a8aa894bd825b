package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHeapSize     = 64 << 20
	defaultSegmentSize  = 1 << 20
	defaultHashPower    = 16
	defaultOverflow     = 1.0
	defaultMergeTarget  = 4
	defaultStatInterval = time.Minute

	// maxSegmentSize is bound by the 24-bit in-segment offsets.
	maxSegmentSize = 1 << 24
)

// AdjustConfig fills defaults and derived fields. It is called by
// LoadConfig and must be called on hand-built configs before use.
func (cfg *Cache) AdjustConfig() {
	if cfg.Heap.SizeBytes <= 0 {
		cfg.Heap.SizeBytes = defaultHeapSize
	}
	if cfg.Heap.SegmentBytes <= 0 {
		cfg.Heap.SegmentBytes = defaultSegmentSize
	}
	cfg.Heap.SizeBytes -= cfg.Heap.SizeBytes % cfg.Heap.SegmentBytes

	if cfg.Hash.Power <= 0 {
		cfg.Hash.Power = defaultHashPower
	}
	if cfg.Hash.OverflowFactor <= 0 {
		cfg.Hash.OverflowFactor = defaultOverflow
	}

	if cfg.Eviction.Policy == "" {
		cfg.Eviction.Policy = PolicyMerge
	}
	if cfg.Eviction.MergeTarget <= 1 {
		cfg.Eviction.MergeTarget = defaultMergeTarget
	}

	if cfg.Sweep.Enabled() && cfg.Sweep.CallsPerSec <= 0 {
		cfg.Sweep.CallsPerSec = 1
	}

	if cfg.Telemetry.StatLogsIntervalSec > 0 {
		cfg.Telemetry.StatLogsInterval = time.Duration(cfg.Telemetry.StatLogsIntervalSec) * time.Second
	}
	if cfg.Telemetry.StatLogsEnabled && cfg.Telemetry.StatLogsInterval <= 0 {
		cfg.Telemetry.StatLogsInterval = defaultStatInterval
	}
}

// Validate rejects geometries the engine cannot run with.
func (cfg *Cache) Validate() error {
	seg := cfg.Heap.SegmentBytes
	if seg&(seg-1) != 0 {
		return fmt.Errorf("segment_size %d: must be a power of two", seg)
	}
	if seg > maxSegmentSize {
		return fmt.Errorf("segment_size %d: exceeds 24-bit offset ceiling %d", seg, maxSegmentSize)
	}
	minSegments := int64(1)
	if cfg.Eviction.Policy == PolicyMerge {
		// the merge policy keeps one segment aside as its destination
		minSegments = 2
	}
	if n := cfg.Heap.Segments(); n < minSegments {
		return fmt.Errorf("heap_size %d: holds %d segments of %d bytes, need at least %d",
			cfg.Heap.SizeBytes, n, seg, minSegments)
	}
	if cfg.Hash.Power < 2 || cfg.Hash.Power > 28 {
		return fmt.Errorf("hash_power %d: out of range [2, 28]", cfg.Hash.Power)
	}
	switch cfg.Eviction.Policy {
	case PolicyNone, PolicyRandom, PolicyRandomFifo, PolicyFifo, PolicyCte, PolicyUtil, PolicyMerge:
	default:
		return fmt.Errorf("eviction policy %q: unknown", cfg.Eviction.Policy)
	}
	return nil
}

func LoadConfig(path string) (*Cache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Cache
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	cfg.AdjustConfig()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}
