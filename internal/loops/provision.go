// Package loops implements the five cooperating control loops (C5–C9)
// that share the bridge store as their only coordination substrate. Loop
// shape (ticker/jitter + ctx + error-logged-and-continue) is grounded on
// wisbric-nightowl's pkg/roster/worker.go (RunScheduleTopUpLoop) and
// pkg/escalation/engine.go; loop semantics are grounded on
// original_source/src/loop_*.rs.
package loops

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/deploy"
	"github.com/geph-official/bridge-phalanx/internal/idgen"
	"github.com/geph-official/bridge-phalanx/internal/provider"
	"github.com/geph-official/bridge-phalanx/internal/store"
)

const (
	provisionIterTimeout = 3600 * time.Second
	provisionRetryDelay  = time.Second
)

// RunProvision is the provision loop (C5) for one allocation group. It
// blocks until ctx is done. concurrency caps how many servers this
// group creates at once in a single iteration
// (config.EnvSettings.ProvisionConcurrency).
func RunProvision(ctx context.Context, allocGroup string, cfg config.GroupConfig, bridgeSecret string,
	prov provider.Provider, st *store.Store, installer *deploy.Installer, log *slog.Logger, concurrency int64) {

	log.Info("provision loop started", "alloc_group", allocGroup)
	for {
		select {
		case <-ctx.Done():
			log.Info("provision loop stopped", "alloc_group", allocGroup)
			return
		default:
		}

		iterLog := log.With("iteration_id", uuid.NewString())
		if err := provisionOnce(ctx, allocGroup, cfg, bridgeSecret, prov, st, installer, iterLog, concurrency); err != nil {
			iterLog.Warn("provision iteration failed", "alloc_group", allocGroup, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(provisionRetryDelay):
		}
	}
}

func provisionOnce(ctx context.Context, allocGroup string, cfg config.GroupConfig, bridgeSecret string,
	prov provider.Provider, st *store.Store, installer *deploy.Installer, log *slog.Logger, concurrency int64) error {

	// Jitter to desynchronize peers (spec.md §4.3 step 1).
	jitter := time.Duration(rand.Float64() * float64(5*time.Second))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
	}

	ctx, cancel := context.WithTimeout(ctx, provisionIterTimeout)
	defer cancel()

	all, err := st.AllInGroup(ctx, allocGroup)
	if err != nil {
		return fmt.Errorf("loading bridges for group %s: %w", allocGroup, err)
	}
	known := make(map[string]bool, len(all))
	for _, b := range all {
		known[b.BridgeID] = true
	}
	if err := prov.RetainByID(ctx, func(id string) bool { return known[id] }); err != nil {
		return fmt.Errorf("retaining known servers for group %s: %w", allocGroup, err)
	}

	reserveCount, err := st.CountByStatus(ctx, allocGroup, store.StatusReserve)
	if err != nil {
		return fmt.Errorf("counting reserve bridges for group %s: %w", allocGroup, err)
	}
	want := int64(cfg.Reserve) - reserveCount
	if want <= 0 {
		return nil
	}
	if want > concurrency {
		want = concurrency
	}

	group, gctx := errgroup.WithContext(ctx)
	for n := int64(0); n < want; n++ {
		group.Go(func() error {
			return provisionOne(gctx, allocGroup, cfg, bridgeSecret, prov, st, installer)
		})
	}
	return group.Wait()
}

func provisionOne(ctx context.Context, allocGroup string, cfg config.GroupConfig, bridgeSecret string,
	prov provider.Provider, st *store.Store, installer *deploy.Installer) error {

	id := idgen.New()
	addr, err := prov.CreateServer(ctx, id)
	if err != nil {
		return fmt.Errorf("creating server %s: %w", id, err)
	}

	agroup := cfg.AgroupFor(allocGroup)
	for _, service := range cfg.Services {
		if err := installer.InstallService(ctx, addr, service, agroup, bridgeSecret); err != nil {
			return err
		}
		if service == "geph5_exit" {
			exitCfg := deploy.ExitConfig{
				Country:        cfg.ExitCountry,
				City:           cfg.ExitCity,
				TotalRatelimit: cfg.ExitTotalRatelimit,
			}
			if err := installer.ConfigureExit(ctx, addr, exitCfg); err != nil {
				return err
			}
		}
	}

	if cfg.MaxBandwidthGB != nil {
		if err := installer.InstallBandwidthLimit(ctx, addr, *cfg.MaxBandwidthGB); err != nil {
			return err
		}
	}

	if err := st.Insert(ctx, id, addr, allocGroup); err != nil {
		return fmt.Errorf("inserting bridge %s: %w", id, err)
	}
	return nil
}
