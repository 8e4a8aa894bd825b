package config

type SweepCfg struct {
	// CallsPerSec defines how many expire-sweep passes the background
	// worker performs per second. One pass walks every TTL bucket and
	// reclaims the expired head segments, so a low single-digit rate is
	// enough for most workloads.
	CallsPerSec int `yaml:"calls_per_sec"`
}

func (cfg *SweepCfg) Enabled() bool {
	return cfg != nil
}
