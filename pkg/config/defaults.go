package config

// ApplyDefaults fills any unset fields of cfg with the firmware core's
// stock defaults. Explicit values already present are preserved.
func ApplyDefaults(cfg *FujiConfig) {
	applyGeneralDefaults(&cfg.General)
	applyNetSIODefaults(&cfg.NetSIO)
	applyClockDefaults(&cfg.Clock)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyGeneralDefaults(cfg *GeneralConfig) {
	if cfg.DeviceName == "" {
		cfg.DeviceName = "FUJINET"
	}
	if cfg.BootMode == "" {
		cfg.BootMode = BootConfig
	}
}

func applyNetSIODefaults(cfg *NetSIOConfig) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 9997
	}
}

func applyClockDefaults(cfg *ClockConfig) {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a FujiConfig with all defaults applied and no
// hosts, mounts, or optional devices enabled. Useful for generating a
// starter fujinet.yaml or for running the core with no config file at all.
func GetDefaultConfig() *FujiConfig {
	cfg := &FujiConfig{
		NetSIO: NetSIOConfig{Enabled: true},
		Clock:  ClockConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
