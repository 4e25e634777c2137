// Package config loads the seracc settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Bus kinds.
const (
	BusSim    = "sim"
	BusDAP    = "dap"
	BusDevMem = "devmem"
)

// Config stores persistent tool settings. Command line flags override it.
type Config struct {
	Bus          string      `yaml:"bus"`
	Descriptions []string    `yaml:"descriptions,omitempty"` // empty: embedded STM32G4 description
	Probe        ProbeConfig `yaml:"probe"`
	DevMem       string      `yaml:"devmem"`
	SimIDCode    uint32      `yaml:"sim_idcode,omitempty"`
	SnapshotDir  string      `yaml:"snapshot_dir,omitempty"`
}

// ProbeConfig selects and configures the CMSIS-DAP probe.
type ProbeConfig struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	Serial    string `yaml:"serial,omitempty"`
	ClockHz   uint32 `yaml:"clock_hz"`
	AP        uint8  `yaml:"ap"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Bus: BusSim,
		Probe: ProbeConfig{
			VendorID:  0x2E8A, // Raspberry Pi Debug Probe
			ProductID: 0x000C,
			ClockHz:   1_000_000,
		},
		DevMem: "/dev/mem",
	}
}

// Validate checks the settings for values no command can use.
func (c *Config) Validate() error {
	switch c.Bus {
	case BusSim, BusDAP, BusDevMem:
	default:
		return fmt.Errorf("config: unknown bus %q (want %s, %s or %s)", c.Bus, BusSim, BusDAP, BusDevMem)
	}
	if c.Bus == BusDAP && c.Probe.ClockHz == 0 {
		return errors.New("config: probe.clock_hz must be set")
	}
	return nil
}

// Path returns the default settings file location:
// %APPDATA%\seracc\config.yaml on Windows, otherwise
// $XDG_CONFIG_HOME/seracc/config.yaml or ~/.config/seracc/config.yaml.
func Path() (string, error) {
	if dir := os.Getenv("APPDATA"); dir != "" {
		return filepath.Join(dir, "seracc", "config.yaml"), nil
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "seracc", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "seracc", "config.yaml"), nil
}

// Load reads the settings file at path, or at Path() when path is empty, and
// validates it. A missing file yields Default(). Keys absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that override settings
// before checking them.
func Read(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return Default(), err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory when needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
