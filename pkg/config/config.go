// Package config defines the FujiConfig shape: the static, file-backed
// configuration for a running firmware core instance (device identity,
// Wi-Fi credentials, TNFS/SD host definitions, slot mounts, and the
// per-device toggles for the modem, CP/M, printer, NetSIO bridge, and
// clock). It only defines and validates the shape; reading fujinet.yaml
// off a mounted filesystem, watching it for changes, and writing it back
// remain the job of an external collaborator.
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
)

// BootMode selects what the core does on power-up.
type BootMode string

const (
	BootNormal BootMode = "normal"
	BootConfig BootMode = "config"
	BootCPM    BootMode = "cpm"
)

// GeneralConfig holds device identity and boot behavior.
type GeneralConfig struct {
	DeviceName    string   `mapstructure:"device_name" yaml:"device_name" validate:"required"`
	BootMode      BootMode `mapstructure:"boot_mode" yaml:"boot_mode" validate:"required,oneof=normal config cpm"`
	AltConfigFile string   `mapstructure:"alt_config_file" yaml:"alt_config_file,omitempty"`
}

// WifiConfig holds station-mode Wi-Fi credentials.
type WifiConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	SSID       string `mapstructure:"ssid" yaml:"ssid,omitempty"`
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase,omitempty"`
}

// HostType selects the protocol a HostConfig entry speaks.
type HostType string

const (
	HostSD   HostType = "sd"
	HostTNFS HostType = "tnfs"
)

// HostConfig names a storage host (local SD card, or a remote TNFS
// server) that MountConfig entries attach a slot to by ID.
type HostConfig struct {
	ID      int      `mapstructure:"id" yaml:"id" validate:"required"`
	Type    HostType `mapstructure:"type" yaml:"type" validate:"required,oneof=sd tnfs"`
	Name    string   `mapstructure:"name" yaml:"name" validate:"required"`
	Address string   `mapstructure:"address" yaml:"address,omitempty"`
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
}

// MountConfig attaches a disk slot to a host at boot.
type MountConfig struct {
	ID     int    `mapstructure:"id" yaml:"id" validate:"required"`
	HostID int    `mapstructure:"host_id" yaml:"host_id" validate:"required"`
	Path   string `mapstructure:"path" yaml:"path" validate:"required"`
	Mode   string `mapstructure:"mode" yaml:"mode" validate:"required,oneof=r rw"`
}

// ModemConfig toggles the Hayes-compatible modem device and its optional
// command/response sniffer.
type ModemConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	SnifferEnabled bool `mapstructure:"sniffer_enabled" yaml:"sniffer_enabled"`
}

// CPMConfig toggles CP/M coprocessor support.
type CPMConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	CCPImage string `mapstructure:"ccp_image" yaml:"ccp_image,omitempty"`
}

// PrinterConfig toggles the printer emulation device.
type PrinterConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// NetSIOConfig configures the NetSIO UDP relay endpoint the SIO bus
// transport forwards frames through when running off real hardware.
type NetSIOConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    uint16 `mapstructure:"port" yaml:"port" validate:"omitempty,min=1"`
}

// ClockConfig configures the ClockDevice's reporting timezone.
type ClockConfig struct {
	Timezone string `mapstructure:"timezone" yaml:"timezone" validate:"required"`
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
}

// LoggingConfig controls logger output, following the same shape the
// teacher uses for its own log configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// FujiConfig is the unified configuration for a whole firmware core
// instance.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (FUJINET_*) (highest priority)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// No CLI flag overrides individual values; cmd/fujinetd only selects the
// file path (--config).
type FujiConfig struct {
	General GeneralConfig `mapstructure:"general" yaml:"general"`
	Wifi    WifiConfig    `mapstructure:"wifi" yaml:"wifi"`

	Hosts  []HostConfig  `mapstructure:"hosts" yaml:"hosts,omitempty"`
	Mounts []MountConfig `mapstructure:"mounts" yaml:"mounts,omitempty"`

	Modem   ModemConfig   `mapstructure:"modem" yaml:"modem"`
	CPM     CPMConfig     `mapstructure:"cpm" yaml:"cpm"`
	Printer PrinterConfig `mapstructure:"printer" yaml:"printer"`
	NetSIO  NetSIOConfig  `mapstructure:"netsio" yaml:"netsio"`
	Clock   ClockConfig   `mapstructure:"clock" yaml:"clock"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to the YAML config file; empty uses the default
//     location.
//
// Returns the loaded, defaulted, and validated configuration.
func Load(configPath string) (*FujiConfig, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg FujiConfig
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes cfg to path in YAML form.
func SaveConfig(cfg *FujiConfig, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FUJINET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("fujinet")
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
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook lets the modem/netsio timeout-style fields (should
// this shape grow them) accept "30s"-style strings; kept for parity with
// the teacher's own decode hook even though no FujiConfig field is a
// time.Duration today.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
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

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fujinet")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "fujinet")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "fujinet.yaml")
}

var structValidator = validator.New()

// Validate checks cfg against its struct tags and the cross-field
// invariants tags alone can't express (mount slots must reference a
// declared host).
func Validate(cfg *FujiConfig) error {
	if err := structValidator.Struct(cfg); err != nil {
		return err
	}

	hostIDs := make(map[int]bool, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		hostIDs[h.ID] = true
	}
	for _, m := range cfg.Mounts {
		if !hostIDs[m.HostID] {
			return fmt.Errorf("mount %d references unknown host id %d", m.ID, m.HostID)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		return fmt.Errorf("metrics.port must be set when metrics.enabled is true")
	}

	return nil
}
