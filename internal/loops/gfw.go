package loops

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/store"
)

const (
	gfwRetryDelay  = time.Second
	gfwProbeScript = "ping -i 0.1 -W 1 -c 10 10010.com || true"
)

// RunGFW is the global GFW loop (C7): it probes every bridge's
// reachability to a censored destination and flips status between
// blocked and reserve — including healing previously-blocked bridges
// back to reserve, which requires probing blocked rows too, not just
// reserve/frontline ones. Blocks until ctx is done. concurrency bounds
// how many probes run at once (config.EnvSettings.GFWConcurrency).
func RunGFW(ctx context.Context, groups map[string]config.GroupConfig, ssh sshExecutor, st *store.Store, log *slog.Logger, concurrency int64) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		iterLog := log.With("iteration_id", uuid.NewString())
		if err := gfwOnce(ctx, groups, ssh, st, iterLog, concurrency); err != nil {
			iterLog.Warn("gfw iteration failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(gfwRetryDelay):
		}
	}
}

func gfwOnce(ctx context.Context, groups map[string]config.GroupConfig, ssh sshExecutor, st *store.Store, log *slog.Logger, concurrency int64) error {
	bridges, err := st.All(ctx)
	if err != nil {
		return err
	}
	rand.Shuffle(len(bridges), func(i, j int) { bridges[i], bridges[j] = bridges[j], bridges[i] })

	sem := semaphore.NewWeighted(concurrency)
	group, gctx := errgroup.WithContext(ctx)
	for _, b := range bridges {
		if groups[b.AllocGroup].NoAntiGFW {
			continue
		}
		b := b
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)
			if err := probeGFW(gctx, ssh, st, b); err != nil {
				log.Debug("gfw probe failed", "bridge_id", b.BridgeID, "ip_addr", b.IPAddr, "error", err)
			}
			return nil
		})
	}
	return group.Wait()
}

func probeGFW(ctx context.Context, ssh sshExecutor, st *store.Store, b store.Bridge) error {
	out, err := ssh.Execute(ctx, b.IPAddr, gfwProbeScript)
	if err != nil {
		return err
	}
	blocked := strings.Contains(out, "100%")

	switch {
	case blocked && b.Status != store.StatusBlocked:
		return st.SetStatusNoBump(ctx, b.BridgeID, store.StatusBlocked)
	case !blocked && b.Status == store.StatusBlocked:
		return st.SetStatusNoBump(ctx, b.BridgeID, store.StatusReserve)
	}
	return nil
}
