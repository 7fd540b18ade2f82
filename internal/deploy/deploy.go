// Package deploy installs bridge software on a freshly-created server
// over SSH: piping a pinned deploy script into a shell per service
// (spec.md §4.3), mutating the geph5_exit configuration when requested,
// and installing a bandwidth-enforcement script when a group caps
// monthly traffic. Grounded on original_source/src/loop_provision.rs's
// `wget -qO- <url> | env AGROUP=... BSECRET=... sh` pipeline.
package deploy

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// scriptURLs pins one deploy script per supported service (spec.md §3:
// services[] is a subset of {geph4, geph5, earendil, geph5_exit}).
var scriptURLs = map[string]string{
	"geph4":      "https://gist.githubusercontent.com/nullchinchilla/ecf752dfb3ff33635d1f6487b5a87531/raw/deploy-bridge-new.sh",
	"geph5":      "https://gist.githubusercontent.com/nullchinchilla/ecf752dfb3ff33635d1f6487b5a87531/raw/deploy-bridge-geph5.sh",
	"earendil":   "https://gist.githubusercontent.com/nullchinchilla/ecf752dfb3ff33635d1f6487b5a87531/raw/deploy-bridge-earendil.sh",
	"geph5_exit": "https://gist.githubusercontent.com/nullchinchilla/ecf752dfb3ff33635d1f6487b5a87531/raw/deploy-bridge-geph5-exit.sh",
}

const bandwidthScriptURL = "https://gist.githubusercontent.com/nullchinchilla/ecf752dfb3ff33635d1f6487b5a87531/raw/bandwidth-limit.sh"

// Executor is the subset of internal/sshexec.Executor that deploy needs.
type Executor interface {
	Execute(ctx context.Context, host, script string) (string, error)
}

// Installer installs services onto newly-provisioned hosts.
type Installer struct {
	ssh Executor
}

// New creates an Installer backed by the given SSH executor.
func New(ssh Executor) *Installer {
	return &Installer{ssh: ssh}
}

// ExitConfig is the geph5_exit remote config mutation (spec.md §4.3
// step 3): any of these, if non-empty/non-zero, is written to the
// remote config file before the exit service restarts.
type ExitConfig struct {
	Country      string
	City         string
	TotalRatelimit string
}

func (e ExitConfig) empty() bool {
	return e.Country == "" && e.City == "" && e.TotalRatelimit == ""
}

// cacheBuster returns a random query parameter so intermediate caches
// (e.g. the GitHub Gist CDN) never serve a stale deploy script.
func cacheBuster() string {
	return fmt.Sprintf("cb=%d", rand.Uint64())
}

// InstallService pipes one service's deploy script into a root shell on
// host with AGROUP and BSECRET set (spec.md §4.3 step 2).
func (i *Installer) InstallService(ctx context.Context, host, service, agroup, bridgeSecret string) error {
	url, ok := scriptURLs[service]
	if !ok {
		return fmt.Errorf("no deploy script pinned for service %q", service)
	}
	script := fmt.Sprintf("wget -qO- '%s?%s' | env AGROUP=%s BSECRET=%s sh",
		url, cacheBuster(), agroup, bridgeSecret)
	if _, err := i.ssh.Execute(ctx, host, script); err != nil {
		return fmt.Errorf("installing %s on %s: %w", service, host, err)
	}
	return nil
}

// ConfigureExit mutates the geph5_exit remote config file per non-empty
// fields in cfg and restarts the exit service (spec.md §4.3 step 3). A
// no-op if cfg is entirely empty.
func (i *Installer) ConfigureExit(ctx context.Context, host string, cfg ExitConfig) error {
	if cfg.empty() {
		return nil
	}

	script := "set -e\n"
	if cfg.Country != "" {
		script += fmt.Sprintf("sed -i 's/^country = .*/country = \"%s\"/' /etc/geph5-exit/config.yaml\n", cfg.Country)
	}
	if cfg.City != "" {
		script += fmt.Sprintf("sed -i 's/^city = .*/city = \"%s\"/' /etc/geph5-exit/config.yaml\n", cfg.City)
	}
	if cfg.TotalRatelimit != "" {
		script += fmt.Sprintf("sed -i 's/^total_ratelimit = .*/total_ratelimit = \"%s\"/' /etc/geph5-exit/config.yaml\n", cfg.TotalRatelimit)
	}
	script += "systemctl restart geph5-exit"

	if _, err := i.ssh.Execute(ctx, host, script); err != nil {
		return fmt.Errorf("configuring geph5_exit on %s: %w", host, err)
	}
	return nil
}

// InstallBandwidthLimit installs the bandwidth-enforcement script with
// TRAFFIC_LIMIT_GB set to limitGB (spec.md §4.3 step 4).
func (i *Installer) InstallBandwidthLimit(ctx context.Context, host string, limitGB float64) error {
	script := fmt.Sprintf("wget -qO- '%s?%s' | env TRAFFIC_LIMIT_GB=%g sh",
		bandwidthScriptURL, cacheBuster(), limitGB)
	if _, err := i.ssh.Execute(ctx, host, script); err != nil {
		return fmt.Errorf("installing bandwidth limit on %s: %w", host, err)
	}
	return nil
}
