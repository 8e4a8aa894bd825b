package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdjustConfig_FillsDefaults(t *testing.T) {
	cfg := &Cache{}
	cfg.AdjustConfig()

	require.Equal(t, int64(64<<20), cfg.Heap.SizeBytes)
	require.Equal(t, int64(1<<20), cfg.Heap.SegmentBytes)
	require.Equal(t, 16, cfg.Hash.Power)
	require.Equal(t, 1.0, cfg.Hash.OverflowFactor)
	require.Equal(t, PolicyMerge, cfg.Eviction.Policy)
	require.Equal(t, 4, cfg.Eviction.MergeTarget)
	require.NoError(t, cfg.Validate())
}

func TestAdjustConfig_RoundsHeapToWholeSegments(t *testing.T) {
	cfg := &Cache{Heap: HeapCfg{SizeBytes: 4096*3 + 100, SegmentBytes: 4096}}
	cfg.AdjustConfig()

	require.Equal(t, int64(3*4096), cfg.Heap.SizeBytes)
	require.Equal(t, int64(3), cfg.Heap.Segments())
}

func TestValidate_RejectsBadGeometry(t *testing.T) {
	cfg := &Cache{Heap: HeapCfg{SizeBytes: 1 << 20, SegmentBytes: 3000}}
	cfg.AdjustConfig()
	require.Error(t, cfg.Validate())

	cfg = &Cache{Heap: HeapCfg{SizeBytes: 1 << 26, SegmentBytes: 1 << 25}}
	cfg.AdjustConfig()
	require.Error(t, cfg.Validate())

	cfg = &Cache{Hash: HashCfg{Power: 40}}
	cfg.AdjustConfig()
	require.Error(t, cfg.Validate())

	cfg = &Cache{Eviction: EvictionCfg{Policy: "lru"}}
	cfg.AdjustConfig()
	require.Error(t, cfg.Validate())
}

func TestValidate_MergeNeedsTwoSegments(t *testing.T) {
	cfg := &Cache{
		Heap:     HeapCfg{SizeBytes: 4096, SegmentBytes: 4096},
		Eviction: EvictionCfg{Policy: PolicyMerge},
	}
	cfg.AdjustConfig()
	require.Error(t, cfg.Validate())

	cfg.Heap.SizeBytes = 2 * 4096
	cfg.AdjustConfig()
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_YamlRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segcache.yaml")
	raw := `
heap:
  heap_size: 8388608
  segment_size: 65536
  prealloc: true
hash_table:
  hash_power: 12
  overflow_factor: 2.0
eviction:
  policy: util
  merge_target: 6
sweep:
  calls_per_sec: 5
telemetry:
  stat_logs_enabled: true
  stat_logs_interval_sec: 30
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, int64(8388608), cfg.Heap.SizeBytes)
	require.Equal(t, int64(65536), cfg.Heap.SegmentBytes)
	require.True(t, cfg.Heap.Prealloc)
	require.Equal(t, 12, cfg.Hash.Power)
	require.Equal(t, 2.0, cfg.Hash.OverflowFactor)
	require.Equal(t, PolicyUtil, cfg.Eviction.Policy)
	require.Equal(t, 6, cfg.Eviction.MergeTarget)
	require.True(t, cfg.Sweep.Enabled())
	require.Equal(t, 5, cfg.Sweep.CallsPerSec)
	require.True(t, cfg.Telemetry.StatLogsEnabled)
	require.Equal(t, 30*time.Second, cfg.Telemetry.StatLogsInterval)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_InvalidGeometryRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	raw := `
heap:
  heap_size: 1024
  segment_size: 3000
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}
