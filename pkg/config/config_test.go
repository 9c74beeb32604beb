package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "nonexistent.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "FUJINET", cfg.General.DeviceName)
	assert.Equal(t, uint16(9997), cfg.NetSIO.Port)
}

func TestLoad_DefaultsAppliedOverFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fujinet.yaml")
	content := `
general:
  device_name: "MYFUJI"
  boot_mode: normal
wifi:
  enabled: true
  ssid: "home"
hosts:
  - id: 1
    type: sd
    name: "SD"
mounts:
  - id: 1
    host_id: 1
    path: "/disk1.atr"
    mode: rw
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "MYFUJI", cfg.General.DeviceName)
	assert.Equal(t, BootNormal, cfg.General.BootMode)
	assert.Equal(t, "UTC", cfg.Clock.Timezone)
	assert.Equal(t, "localhost", cfg.NetSIO.Host)
	require.Len(t, cfg.Mounts, 1)
	assert.Equal(t, 1, cfg.Mounts[0].HostID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("general: [[[not yaml"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestValidate_ValidDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.NoError(t, Validate(cfg))
}

func TestValidate_InvalidBootMode(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.General.BootMode = "rocketship"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")
}

func TestValidate_MountReferencesUnknownHost(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Mounts = []MountConfig{{ID: 1, HostID: 99, Path: "/x.atr", Mode: "r"}}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown host")
}

func TestValidate_MetricsEnabledRequiresPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 0
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "out", "fujinet.yaml")

	cfg := GetDefaultConfig()
	cfg.General.DeviceName = "ROUNDTRIP"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ROUNDTRIP", loaded.General.DeviceName)
}
