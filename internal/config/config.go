// Package config loads the fleet controller's configuration: the domain
// document (database URL, bridge secret, per-group policy) from a YAML
// file named on the command line, and a small set of operational knobs
// from the environment.
package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration document (spec.md §3).
type Config struct {
	DatabaseURL  string                 `koanf:"database_url"`
	BridgeSecret string                 `koanf:"bridge_secret"`
	Groups       map[string]GroupConfig `koanf:"groups"`
}

// GroupConfig is the per-allocation-group policy (spec.md §3).
type GroupConfig struct {
	Frontline    int  `koanf:"frontline"`
	MaxFrontline *int `koanf:"max_frontline"`
	Reserve      int  `koanf:"reserve"`

	// OverrideGroup, if set, is passed to deploy scripts as AGROUP instead
	// of the allocation group's own name.
	OverrideGroup string `koanf:"override_group"`

	NoAntiGFW     bool     `koanf:"no_antigfw"`
	TargetMbps    float64  `koanf:"target_mbps"`
	AvgLifetimeHr float64  `koanf:"avg_lifetime_hr"`
	Services      []string `koanf:"services"`

	MaxBandwidthGB *float64 `koanf:"max_bandwidth_gb"`

	ExitCountry        string `koanf:"exit_country"`
	ExitCity           string `koanf:"exit_city"`
	ExitTotalRatelimit string `koanf:"exit_total_ratelimit"`

	Provider ProviderConfig `koanf:"provider"`
}

// ProviderConfig is a tagged variant selecting one concrete cloud driver.
type ProviderConfig struct {
	Type string `koanf:"type"`

	Hetzner   *HetznerConfig   `koanf:"hetzner"`
	Vultr     *VultrConfig     `koanf:"vultr"`
	Scaleway  *ScalewayConfig  `koanf:"scaleway"`
	Lightsail *LightsailConfig `koanf:"lightsail"`
}

// HetznerConfig configures the Hetzner Cloud driver.
type HetznerConfig struct {
	APIToken   string `koanf:"api_token"`
	ServerType string `koanf:"server_type"`
	Location   string `koanf:"location"`
	Image      string `koanf:"image"`
	SSHKeyID   string `koanf:"sshkey_id"`
}

// VultrConfig configures the Vultr driver.
type VultrConfig struct {
	APIKey   string `koanf:"api_key"`
	Region   string `koanf:"region"`
	Plan     string `koanf:"plan"`
	OSID     int    `koanf:"os_id"`
	SSHKeyID string `koanf:"sshkey_id"`
}

// ScalewayConfig configures the Scaleway driver.
type ScalewayConfig struct {
	SecretKey      string `koanf:"secret_key"`
	ProjectID      string `koanf:"project_id"`
	Zone           string `koanf:"zone"`
	CommercialType string `koanf:"commercial_type"`
	Image          string `koanf:"image"`
}

// LightsailConfig configures the AWS Lightsail driver.
type LightsailConfig struct {
	AccessKeyID      string `koanf:"access_key_id"`
	SecretAccessKey  string `koanf:"secret_access_key"`
	Region           string `koanf:"region"`
	AvailabilityZone string `koanf:"availability_zone"`
	BundleID         string `koanf:"bundle_id"`
	KeyPairName      string `koanf:"key_pair_name"`
}

// LoadFile reads and validates the domain configuration document at path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}
