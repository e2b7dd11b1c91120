// Package config loads and validates the YAML configuration for
// wtprtu: simulation parameters, fieldbus/dashboard listeners, and
// logging.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the top-level configuration object.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Fieldbus   FieldbusConfig   `yaml:"fieldbus"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Log        LogConfig        `yaml:"log,omitempty"`
}

// SimulationConfig controls the stochastic process generator.
type SimulationConfig struct {
	Speed      float64 `yaml:"speed"`
	Seed       int64   `yaml:"seed"`
	AutoEvents bool    `yaml:"auto-events"`
}

// FieldbusConfig configures the Modbus-TCP-shaped server.
type FieldbusConfig struct {
	Address string `yaml:"address,omitempty"`
	Port    int    `yaml:"port"`
}

// DashboardConfig configures the HTTP/websocket dashboard.
type DashboardConfig struct {
	Address string `yaml:"address,omitempty"`
	Port    int    `yaml:"port"`
}

// LogConfig controls logging verbosity and file rotation.
type LogConfig struct {
	Debug bool   `yaml:"debug,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// Default returns a Config with the same defaults the Tunnel Hill
// bridge ships with: 1x real-time speed, auto events on, fieldbus on
// :5020, dashboard on :8080.
func Default() Config {
	return Config{
		Simulation: SimulationConfig{Speed: 1.0, Seed: 42, AutoEvents: true},
		Fieldbus:   FieldbusConfig{Address: "0.0.0.0", Port: 5020},
		Dashboard:  DashboardConfig{Address: "0.0.0.0", Port: 8080},
	}
}

// Load reads and parses filename over the Default() values, so any
// field the file omits keeps its default; an empty filename returns the
// defaults unchanged.
func Load(filename string) (Config, error) {
	c := Default()
	if filename == "" {
		return c, nil
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return c, nil
}

// Validate checks the configuration for values that would make the
// plant unable to start (a Configuration fault).
func (c Config) Validate() error {
	if c.Simulation.Speed <= 0 {
		return fmt.Errorf("simulation.speed must be positive, got %v", c.Simulation.Speed)
	}
	if c.Fieldbus.Port <= 0 || c.Fieldbus.Port > 65535 {
		return fmt.Errorf("fieldbus.port out of range: %d", c.Fieldbus.Port)
	}
	if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	if c.Fieldbus.Port == c.Dashboard.Port {
		return fmt.Errorf("fieldbus.port and dashboard.port must differ")
	}
	return nil
}
