package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr           string `json:"addr" yaml:"addr" toml:"addr"`
	ExecutablePath string `json:"executable_path" yaml:"executable_path" toml:"executable_path"`
	PortLow        int    `json:"port_low" yaml:"port_low" toml:"port_low"`
	PortHigh       int    `json:"port_high" yaml:"port_high" toml:"port_high"`
	PublicAddress  string `json:"public_address" yaml:"public_address" toml:"public_address"`
	DataDir        string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	AdminPassword  string `json:"admin_password" yaml:"admin_password" toml:"admin_password"`
	IdleTimeoutSec int    `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds" toml:"idle_timeout_seconds"`
	ReadyTimeoutMS int    `json:"ready_timeout_ms" yaml:"ready_timeout_ms" toml:"ready_timeout_ms"`
	LogLevel       string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Validate checks the fields that have no sensible default. A failure here
// is fatal at startup.
func (c Config) Validate() error {
	if c.ExecutablePath == "" {
		return fmt.Errorf("executable_path is required")
	}
	if c.PublicAddress == "" {
		return fmt.Errorf("public_address is required")
	}
	if c.PortLow <= 0 || c.PortHigh <= 0 || c.PortLow > 65535 || c.PortHigh > 65535 {
		return fmt.Errorf("port range must be within 1-65535, got %d-%d", c.PortLow, c.PortHigh)
	}
	if c.PortLow > c.PortHigh {
		return fmt.Errorf("invalid port range: %d-%d", c.PortLow, c.PortHigh)
	}
	return nil
}
