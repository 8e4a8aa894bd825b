package config

type Cache struct {
	// Heap describes the backing byte region and segment geometry.
	Heap HeapCfg `yaml:"heap"`

	// Hash describes the location table.
	Hash HashCfg `yaml:"hash_table"`

	// Eviction selects the reclaim policy used when the heap runs out
	// of free segments.
	Eviction EvictionCfg `yaml:"eviction"`

	// Sweep drives the background expire sweep.
	Sweep *SweepCfg `yaml:"sweep"`

	// Telemetry controls periodic stat logs.
	Telemetry TelemetryCfg `yaml:"telemetry"`
}
