// Package config holds the ambient, deployment-specific knobs spec.md §6
// leaves outside the compile-time device path and TCP port: log level, the
// sensor's identity, and the scavenge/reap cadences.
package config

import (
	"fmt"
	"os"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the ambient configuration surface. DevicePath and TCPPort are
// deliberately absent: spec.md §6 fixes them as compile-time constants
// (/dev/hm11 and 9000), not configuration.
type Config struct {
	LogLevel string `yaml:"log_level" default:"info"`

	// PeerMAC and CharacteristicUUID identify the sensor this deployment
	// talks to; spec.md §4.5's startup orchestration needs both before it
	// can issue ConnectMac/NotifyOn.
	PeerMAC            string `yaml:"peer_mac" default:"0C8CDC32BDEC"`
	CharacteristicUUID string `yaml:"characteristic_uuid" default:"0026"`

	ScavengeIntervalMs int `yaml:"scavenge_interval_ms" default:"2000"`
	ReapIntervalMs     int `yaml:"reap_interval_ms" default:"5000"`
}

// Default returns a Config populated with package defaults.
func Default() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	return c
}

// Load reads path as YAML over top of the defaults. A missing file is not
// an error — callers pass the CLI's --config flag through verbatim, and an
// unset flag means "use defaults".
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// ParseLogLevel resolves the configured level, falling back to Info on an
// unrecognized string rather than failing startup over a typo.
func (c *Config) ParseLogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
