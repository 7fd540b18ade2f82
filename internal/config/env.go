package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvSettings holds the operational knobs that sit outside the domain
// document: logging, and the concurrency/pool bounds from spec.md §5.
// These are environment-driven because they tune the process, not the
// fleet, and operators reasonably expect to flip them per-deployment
// without editing the checked-in fleet policy file.
type EnvSettings struct {
	LogLevel  string `env:"BRIDGE_PHALANX_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"BRIDGE_PHALANX_LOG_FORMAT" envDefault:"json"`

	// SSH executor (C3): process-wide concurrent session cap.
	SSHConcurrency int64 `env:"BRIDGE_PHALANX_SSH_CONCURRENCY" envDefault:"512"`
	// GFW loop (C7): concurrent probe cap.
	GFWConcurrency int64 `env:"BRIDGE_PHALANX_GFW_CONCURRENCY" envDefault:"32"`
	// Onoff loop (C8): per-pass fan-out cap.
	OnoffConcurrency int64 `env:"BRIDGE_PHALANX_ONOFF_CONCURRENCY" envDefault:"64"`
	// Provision loop (C5): per-iteration concurrent-create cap.
	ProvisionConcurrency int64 `env:"BRIDGE_PHALANX_PROVISION_CONCURRENCY" envDefault:"64"`

	DBPoolSize       int           `env:"BRIDGE_PHALANX_DB_POOL_SIZE" envDefault:"6"`
	DBAcquireTimeout time.Duration `env:"BRIDGE_PHALANX_DB_ACQUIRE_TIMEOUT" envDefault:"15s"`
	DBIdleTimeout    time.Duration `env:"BRIDGE_PHALANX_DB_IDLE_TIMEOUT" envDefault:"15s"`
}

// LoadEnv reads the operational settings from the environment.
func LoadEnv() (*EnvSettings, error) {
	s := &EnvSettings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parsing environment settings: %w", err)
	}
	return s, nil
}
