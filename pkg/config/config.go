// Package config loads the daemon's YAML configuration file: the signer
// window, launch-time behavior flags, and the namespace engine's basepath
// settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bastionrun/bastion/pkg/log"
)

// MinCredExpire is the floor below which AuthInfo.CredExpire is clamped.
// Matches the reference implementation's minimum credential lifetime.
const MinCredExpire = 5 * time.Second

// DefaultCredType names the signer provider used when none is configured.
const DefaultCredType = "devsign"

// AuthInfo holds signer-related settings.
type AuthInfo struct {
	CredExpire time.Duration `yaml:"cred_expire"`
}

// LaunchParams holds job-launch behavior flags.
type LaunchParams struct {
	EnableNSS        bool `yaml:"enable_nss"`
	DisableSendGIDs  bool `yaml:"disable_send_gids"`
}

// Namespace holds the per-job filesystem isolation settings.
type Namespace struct {
	Basepath     string `yaml:"basepath"`
	AutoBasepath bool   `yaml:"auto_basepath"`
	InitScript   string `yaml:"initscript"`
}

// Config is the top-level daemon configuration document.
type Config struct {
	AuthInfo     AuthInfo     `yaml:"auth_info"`
	LaunchParams LaunchParams `yaml:"launch_params"`
	CredType     string       `yaml:"cred_type"`
	Namespace    Namespace    `yaml:"namespace"`
}

// Default returns a Config populated with zero-value-safe defaults.
func Default() *Config {
	return &Config{
		AuthInfo: AuthInfo{
			CredExpire: MinCredExpire,
		},
		LaunchParams: LaunchParams{
			EnableNSS:       false,
			DisableSendGIDs: false,
		},
		CredType: DefaultCredType,
		Namespace: Namespace{
			Basepath:     "/var/run/bastion/ns",
			AutoBasepath: true,
		},
	}
}

// Load reads and validates a YAML configuration document at path. Missing
// fields keep their Default() values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// Unmarshal onto the defaulted struct so unset keys retain defaults,
	// rather than onto a zero Config.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.validate()
	return cfg, nil
}

// validate clamps out-of-range values in place, matching
// AuthInfo.CredExpire's "reset to default" behavior for a sub-minimum
// value.
func (c *Config) validate() {
	if c.AuthInfo.CredExpire < MinCredExpire {
		log.Logger.Warn().
			Dur("configured", c.AuthInfo.CredExpire).
			Dur("floor", MinCredExpire).
			Msg("cred_expire below floor, resetting to default")
		c.AuthInfo.CredExpire = MinCredExpire
	}
	if c.CredType == "" {
		c.CredType = DefaultCredType
	}
}
