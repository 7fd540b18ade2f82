package loops

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/store"
)

const (
	onoffPassTimeout = 120 * time.Second
)

// unitNames maps a configured service to its systemd unit name, generalizing
// the original loop_onoff.rs's single hardcoded "geph4-bridge".
var unitNames = map[string]string{
	"geph4":      "geph4-bridge",
	"geph5":      "geph5-bridge",
	"earendil":   "earendil-bridge",
	"geph5_exit": "geph5-exit",
}

// RunOnoff is the global onoff loop (C8): it reconciles each bridge's
// systemd service state with its database status. Blocks until ctx is
// done. concurrency bounds the per-pass fan-out
// (config.EnvSettings.OnoffConcurrency).
func RunOnoff(ctx context.Context, groups map[string]config.GroupConfig, ssh sshExecutor, st *store.Store, log *slog.Logger, concurrency int64) {
	lastStatus := &sync.Map{}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		iterLog := log.With("iteration_id", uuid.NewString())
		passCtx, cancel := context.WithTimeout(ctx, onoffPassTimeout)
		err := onoffOnce(passCtx, groups, ssh, st, lastStatus, iterLog, concurrency)
		cancel()
		if err != nil {
			iterLog.Warn("onoff iteration failed", "error", err)
		}

		jitter := time.Duration((1 + rand.Float64()) * float64(time.Second))
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter):
		}
	}
}

func onoffOnce(ctx context.Context, groups map[string]config.GroupConfig, ssh sshExecutor,
	st *store.Store, lastStatus *sync.Map, log *slog.Logger, concurrency int64) error {

	bridges, err := st.All(ctx)
	if err != nil {
		return fmt.Errorf("loading bridges: %w", err)
	}
	rand.Shuffle(len(bridges), func(i, j int) { bridges[i], bridges[j] = bridges[j], bridges[i] })

	sem := semaphore.NewWeighted(concurrency)
	group, gctx := errgroup.WithContext(ctx)
	for _, b := range bridges {
		old, ok := lastStatus.Load(b.BridgeID)
		if ok && old.(string) == b.Status {
			continue
		}
		b := b
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)
			if err := onoffTransition(gctx, ssh, groups[b.AllocGroup], b); err != nil {
				log.Warn("onoff transition failed", "alloc_group", b.AllocGroup, "bridge_id", b.BridgeID, "error", err)
				return nil // failures don't update the memo; retried next pass
			}
			lastStatus.Store(b.BridgeID, b.Status)
			return nil
		})
	}
	return group.Wait()
}

func onoffTransition(ctx context.Context, ssh sshExecutor, cfg config.GroupConfig, b store.Bridge) error {
	units := unitsFor(cfg)
	if len(units) == 0 {
		return nil
	}

	switch b.Status {
	case store.StatusFrontline:
		for _, unit := range units {
			script := fmt.Sprintf("systemctl enable %s; (systemctl is-active --quiet %s || systemctl start %s)", unit, unit, unit)
			if _, err := ssh.Execute(ctx, b.IPAddr, script); err != nil {
				return err
			}
		}
	case store.StatusBlocked, store.StatusReserve:
		for _, unit := range units {
			script := fmt.Sprintf("systemctl stop %s; systemctl disable %s", unit, unit)
			if _, err := ssh.Execute(ctx, b.IPAddr, script); err != nil {
				return err
			}
		}
	}
	return nil
}

func unitsFor(cfg config.GroupConfig) []string {
	units := make([]string, 0, len(cfg.Services))
	for _, svc := range cfg.Services {
		if unit, ok := unitNames[svc]; ok {
			units = append(units, unit)
		}
	}
	return units
}
