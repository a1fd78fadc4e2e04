package config

import (
	"path/filepath"
	"time"

	"github.com/dcnnt/dcnntd/internal/bytesize"
)

// DefaultPort is the UDP/TCP port dcnntd listens on (spec §4.1/§4.2).
const DefaultPort = 5040

// DefaultConfig returns a configuration with every field set to its
// default value, rooted at configDir.
func DefaultConfig(configDir string) *Config {
	cfg := &Config{
		Network: NetworkConfig{
			BindAddress: "0.0.0.0",
			Port:        DefaultPort,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
	}
	ApplyDefaults(cfg, configDir)
	return cfg
}

// ApplyDefaults fills in zero-valued fields of cfg that depend on
// configDir or otherwise have a non-literal default, without overwriting
// values already set by the config file or environment.
func ApplyDefaults(cfg *Config, configDir string) {
	if cfg.Network.BindAddress == "" {
		cfg.Network.BindAddress = "0.0.0.0"
	}
	if cfg.Network.Port == 0 {
		cfg.Network.Port = DefaultPort
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	if cfg.Devices.Directory == "" {
		cfg.Devices.Directory = filepath.Join(configDir, "devices")
	}
	if cfg.Plugins.Directory == "" {
		cfg.Plugins.Directory = filepath.Join(configDir, "plugins")
	}
	if cfg.Limits.MaxFrameBytes == 0 {
		cfg.Limits.MaxFrameBytes = bytesize.MiB
	}
	if cfg.Limits.IdleTimeout == 0 {
		cfg.Limits.IdleTimeout = 5 * time.Minute
	}
	if cfg.Metrics.BindAddress == "" {
		cfg.Metrics.BindAddress = "127.0.0.1"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9040
	}
	if cfg.PIDFile == "" {
		cfg.PIDFile = filepath.Join(configDir, "dcnntd.pid")
	}
}
