package config

import "time"

type TelemetryCfg struct {
	// StatLogsEnabled turns the periodic stat log line on.
	StatLogsEnabled bool `yaml:"stat_logs_enabled"`

	// StatLogsIntervalSec is the period between stat log lines in
	// seconds.
	StatLogsIntervalSec int `yaml:"stat_logs_interval_sec"`

	// StatLogsInterval is derived from StatLogsIntervalSec during
	// initialization. It is not read from YAML.
	StatLogsInterval time.Duration `yaml:"-"` // virtual: computed during init
}
