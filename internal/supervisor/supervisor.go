// Package supervisor wires configuration into running control loops
// (spec.md §4.8, C10): one provider driver and one provision, frontline
// and prune loop per allocation group, plus a single instance each of the
// global gfw and onoff loops. Grounded on original_source's
// main.rs fan-out (read via loop_*.rs's shared signatures) and, for the
// "spawn everything, block forever" shape, wisbric-nightowl's
// internal/app.Run.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/deploy"
	"github.com/geph-official/bridge-phalanx/internal/loops"
	"github.com/geph-official/bridge-phalanx/internal/provider"
	"github.com/geph-official/bridge-phalanx/internal/provider/hetzner"
	"github.com/geph-official/bridge-phalanx/internal/provider/ipfresh"
	"github.com/geph-official/bridge-phalanx/internal/provider/lightsail"
	"github.com/geph-official/bridge-phalanx/internal/provider/scaleway"
	"github.com/geph-official/bridge-phalanx/internal/provider/vultr"
	"github.com/geph-official/bridge-phalanx/internal/sshexec"
	"github.com/geph-official/bridge-phalanx/internal/store"
)

// Run builds one provider driver and control-loop set per allocation
// group from cfg, plus the two global loops, and blocks until ctx is
// done. It is the sole entry point cmd/bridge-phalanx/main.go calls.
func Run(ctx context.Context, cfg *config.Config, env *config.EnvSettings, log *slog.Logger) error {
	pool, err := store.NewPool(ctx, cfg.DatabaseURL, env.DBPoolSize, env.DBAcquireTimeout, env.DBIdleTimeout)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	st := store.New(pool)
	ssh := sshexec.New(env.SSHConcurrency)
	installer := deploy.New(ssh)

	var wg sync.WaitGroup
	for name, group := range cfg.Groups {
		prov, err := buildDriver(ctx, group.Provider, st, log.With("alloc_group", name))
		if err != nil {
			return fmt.Errorf("building provider driver for group %s: %w", name, err)
		}

		wg.Add(2)
		go func(name string, group config.GroupConfig) {
			defer wg.Done()
			loops.RunProvision(ctx, name, group, cfg.BridgeSecret, prov, st, installer, log, env.ProvisionConcurrency)
		}(name, group)
		go func(name string, group config.GroupConfig) {
			defer wg.Done()
			loops.RunFrontline(ctx, name, group, ssh, st, log)
		}(name, group)
	}

	wg.Add(2)
	go func() { defer wg.Done(); loops.RunGFW(ctx, cfg.Groups, ssh, st, log, env.GFWConcurrency) }()
	go func() { defer wg.Done(); loops.RunOnoff(ctx, cfg.Groups, ssh, st, log, env.OnoffConcurrency) }()

	for name, group := range cfg.Groups {
		wg.Add(1)
		go func(name string, group config.GroupConfig) {
			defer wg.Done()
			loops.RunPrune(ctx, name, group, st, log)
		}(name, group)
	}

	wg.Wait()
	return nil
}

// ipFreshProviders names the provider types whose servers draw from a
// small enough IP pool that recently-released addresses can be handed
// back out quickly (spec.md §4.8: "wrapping with IP-freshness where its
// provider benefits from IP rotation"). AWS Lightsail's pool is large
// enough in practice that the extra seen-IP round trip isn't worth it.
var ipFreshProviders = map[string]bool{
	"hetzner":  true,
	"vultr":    true,
	"scaleway": true,
}

func buildDriver(ctx context.Context, pc config.ProviderConfig, st *store.Store, log *slog.Logger) (provider.Provider, error) {
	var inner provider.Provider
	switch pc.Type {
	case "hetzner":
		inner = hetzner.New(*pc.Hetzner)
	case "vultr":
		inner = vultr.New(*pc.Vultr)
	case "scaleway":
		inner = scaleway.New(*pc.Scaleway)
	case "lightsail":
		driver, err := lightsail.New(ctx, *pc.Lightsail)
		if err != nil {
			return nil, err
		}
		inner = driver
	default:
		return nil, fmt.Errorf("unrecognized provider type %q", pc.Type)
	}

	if ipFreshProviders[pc.Type] {
		return ipfresh.New(inner, st, log), nil
	}
	return inner, nil
}
