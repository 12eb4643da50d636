// Package config handles the gadget's three configuration surfaces
// (SPEC_FULL.md §6): per-gadget settings (INI), persistent runtime state
// (JSON), and engine-level options (YAML). Grounded on the teacher's
// pkg/config/config.go for the default-path search / Load / Validate / Save
// pattern, even though the concrete formats differ.
package config

import (
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default engine config file locations, searched in order when no explicit
// path is given.
var enginePaths = []string{
	"./agt.yaml",
	"./agt.yml",
	"~/.config/agt/agt.yaml",
	"/etc/agt/agt.yaml",
}

// LoggingConfig configures pkg/logger's global instance.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
	Output string `yaml:"output" validate:"omitempty,oneof=stdout file"`
	File   string `yaml:"file"`
}

// TransportConfig carries engine-level overrides for the active Bluetooth
// transport driver.
type TransportConfig struct {
	MTU                int  `yaml:"mtu" validate:"omitempty,min=23,max=512"`
	AdvertisingEnabled bool `yaml:"advertisingEnabled"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listenAddress" validate:"omitempty,hostname_port"`
}

// EngineConfig is the ambient, non-gadget-specific configuration surface.
type EngineConfig struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DefaultEngineConfig returns the configuration used when no file is found.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Transport: TransportConfig{
			MTU:                244,
			AdvertisingEnabled: true,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: "localhost:9090",
		},
	}
}

// LoadEngineConfig loads the engine config from path, or the first default
// location that exists, or DefaultEngineConfig if none do.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	if path != "" {
		return loadEngineFile(path)
	}

	for _, p := range enginePaths {
		if p[0] == '~' {
			home, err := os.UserHomeDir()
			if err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		if _, err := os.Stat(p); err == nil {
			return loadEngineFile(p)
		}
	}

	return DefaultEngineConfig(), nil
}

func loadEngineFile(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultEngineConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := ValidateEngineConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateEngineConfig applies struct-tag validation to cfg.
func ValidateEngineConfig(cfg *EngineConfig) error {
	return validator.New().Struct(cfg)
}

// SaveEngineConfig writes cfg to path, creating parent directories as
// needed.
func SaveEngineConfig(path string, cfg *EngineConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
