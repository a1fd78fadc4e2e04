// Package config loads the main daemon configuration (conf.json / .yaml)
// using the same viper + mapstructure + go-playground/validator stack the
// teacher uses for its own Config: environment overrides, decode hooks for
// bytesize.ByteSize and time.Duration, struct-tag validation, and
// defaulting for a fresh configuration directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dcnnt/dcnntd/internal/bytesize"
)

// envPrefix is the prefix for environment variable overrides, e.g.
// DCNNTD_NETWORK_PORT.
const envPrefix = "DCNNTD"

// ServerIdentityConfig names the local server device participating in
// every key derivation (spec §3).
type ServerIdentityConfig struct {
	UIN      uint32 `mapstructure:"uin" yaml:"uin" validate:"required,gt=0,lt=268435456"`
	Name     string `mapstructure:"name" yaml:"name" validate:"required,min=1,max=60"`
	Password string `mapstructure:"password" yaml:"password" validate:"max=4096"`
}

// NetworkConfig controls the UDP/TCP listen address and port, shared by
// discovery and the session server (spec §6).
type NetworkConfig struct {
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	Port        int    `mapstructure:"port" yaml:"port" validate:"required,gt=0,lt=65536"`
}

// LoggingConfig controls the internal/logger setup.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DevicesConfig locates the device registry directory.
type DevicesConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory" validate:"required"`
}

// PluginsConfig locates the per-plugin config directory.
type PluginsConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory" validate:"required"`
}

// LimitsConfig bounds the framed channel (spec §4.3).
type LimitsConfig struct {
	MaxFrameBytes bytesize.ByteSize `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
	IdleTimeout   time.Duration     `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// MetricsConfig controls the optional Prometheus metrics listener.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	Port        int    `mapstructure:"port" yaml:"port" validate:"omitempty,gt=0,lt=65536"`
}

// Config is the daemon's main configuration (conf.json / conf.yaml), per
// spec §6.
type Config struct {
	Server  ServerIdentityConfig `mapstructure:"server" yaml:"server"`
	Network NetworkConfig        `mapstructure:"network" yaml:"network"`
	Logging LoggingConfig        `mapstructure:"logging" yaml:"logging"`
	Devices DevicesConfig        `mapstructure:"devices" yaml:"devices"`
	Plugins PluginsConfig        `mapstructure:"plugins" yaml:"plugins"`
	Limits  LimitsConfig         `mapstructure:"limits" yaml:"limits"`
	Metrics MetricsConfig        `mapstructure:"metrics" yaml:"metrics"`
	PIDFile string               `mapstructure:"pid_file" yaml:"pid_file"`
}

// Load loads configuration from defaults, file, and environment, in that
// order of increasing precedence, then validates the result. When no config
// file is found, the defaults are validated and returned as they are.
func Load(configPath, configDir string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath, configDir)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig(configDir)
	if !found {
		return cfg, Validate(cfg)
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(cfg, configDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration, creating a default conf.yaml under
// configDir on first run instead of failing (spec §6: "loader creates
// defaults on first run").
func MustLoad(configPath, configDir string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(configDir, "conf.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig(configDir)
		if err := SaveConfig(cfg, configPath); err != nil {
			return nil, fmt.Errorf("config: write default config: %w", err)
		}
		return cfg, nil
	}

	return Load(configPath, configDir)
}

// SaveConfig writes cfg to path in YAML form with restricted permissions
// (configuration may embed the server password).
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

// Validate runs struct-tag validation via go-playground/validator.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func setupViper(v *viper.Viper, configPath, configDir string) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(configDir)
	v.SetConfigName("conf")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// DefaultConfigDir returns $HOME/.config/dcnnt, per spec §6.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/dcnnt"
	}
	return filepath.Join(home, ".config", "dcnnt")
}
