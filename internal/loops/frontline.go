package loops

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/store"
)

const (
	frontlineControlInterval = 600 * time.Second
	frontlineSizeInterval    = time.Second
	throughputProbeScript    = `i1=$(cat /sys/class/net/*/statistics/rx_bytes 2>/dev/null | awk '{s+=$1} END {print s}'); sleep 1; i2=$(cat /sys/class/net/*/statistics/rx_bytes 2>/dev/null | awk '{s+=$1} END {print s}'); echo "scale=1; (($i2-$i1)*8)/1000000" | bc`
)

// frontlineState is the per-group in-memory adjusted target (spec.md
// §4.4), shared between the control and size-reconciliation subloops.
type frontlineState struct {
	adjusted float64
}

// RunFrontline is the frontline loop (C6) for one allocation group. It
// runs the 600s control subloop and the ~1s size-reconciliation subloop
// concurrently and blocks until ctx is done.
func RunFrontline(ctx context.Context, allocGroup string, cfg config.GroupConfig,
	ssh sshExecutor, st *store.Store, log *slog.Logger) {

	currentLive, err := st.CountByStatus(ctx, allocGroup, store.StatusFrontline)
	if err != nil {
		log.Error("frontline loop: initial count failed", "alloc_group", allocGroup, "error", err)
		currentLive = 0
	}
	state := &frontlineState{adjusted: math.Max(float64(cfg.Frontline), float64(currentLive))}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		runFrontlineControl(gctx, allocGroup, cfg, ssh, st, state, log)
		return nil
	})
	group.Go(func() error {
		runFrontlineSizeReconciliation(gctx, allocGroup, cfg, st, state, log)
		return nil
	})
	_ = group.Wait()
}

func runFrontlineControl(ctx context.Context, allocGroup string, cfg config.GroupConfig,
	ssh sshExecutor, st *store.Store, state *frontlineState, log *slog.Logger) {

	ticker := time.NewTicker(frontlineControlInterval)
	defer ticker.Stop()

	for {
		if err := frontlineControlOnce(ctx, allocGroup, cfg, ssh, st, state); err != nil {
			log.Warn("frontline control tick failed", "alloc_group", allocGroup, "error", err)
			select {
			case <-ctx.Done():
				return
			default:
				continue // retry immediately, no sleep (spec.md §4.4 step 7)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func frontlineControlOnce(ctx context.Context, allocGroup string, cfg config.GroupConfig,
	ssh sshExecutor, st *store.Store, state *frontlineState) error {

	if cfg.Frontline == 0 || cfg.TargetMbps == 0 {
		return nil
	}

	currentLive, err := st.CountByStatus(ctx, allocGroup, store.StatusFrontline)
	if err != nil {
		return fmt.Errorf("counting frontline bridges: %w", err)
	}
	if currentLive == 0 {
		return nil
	}

	bridges, err := st.AllInGroup(ctx, allocGroup)
	if err != nil {
		return fmt.Errorf("loading bridges: %w", err)
	}

	var samples []float64
	group, gctx := errgroup.WithContext(ctx)
	sampleCh := make(chan float64, len(bridges))
	for _, b := range bridges {
		if b.Status != store.StatusFrontline {
			continue
		}
		b := b
		group.Go(func() error {
			mbps, err := probeThroughput(gctx, ssh, b.IPAddr)
			if err != nil {
				return nil // a single bridge's probe failure doesn't fail the tick
			}
			if err := st.UpdateMbps(gctx, b.BridgeID, mbps); err != nil {
				return nil
			}
			sampleCh <- mbps
			return nil
		})
	}
	_ = group.Wait()
	close(sampleCh)
	for s := range sampleCh {
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(samples)))
	signalMbps := samples[len(samples)/10]
	overload := signalMbps / cfg.TargetMbps

	delayMs := int64(0)
	if overload > 1.2 {
		delayMs = int64(math.Round((overload - 1.2) * 1000))
	}
	if err := st.UpsertGroupDelay(ctx, allocGroup, delayMs); err != nil {
		return fmt.Errorf("upserting group delay: %w", err)
	}

	ideal := math.Round(float64(currentLive) * overload)
	lower := float64(currentLive) - 1
	upper := 1.2*float64(currentLive) + 1
	ideal = math.Max(lower, math.Min(upper, ideal))

	switch {
	case overload > 1.2:
		adjusted := ideal
		if cfg.MaxFrontline != nil {
			adjusted = math.Min(adjusted, float64(*cfg.MaxFrontline))
		}
		state.adjusted = adjusted
	case overload < 0.8:
		state.adjusted = math.Max(ideal, float64(cfg.Frontline))
	}

	return nil
}

func probeThroughput(ctx context.Context, ssh sshExecutor, host string) (float64, error) {
	out, err := ssh.Execute(ctx, host, throughputProbeScript)
	if err != nil {
		return 0, err
	}
	var mbps float64
	if _, err := fmt.Sscanf(out, "%f", &mbps); err != nil {
		return 0, fmt.Errorf("parsing throughput probe output %q: %w", out, err)
	}
	return mbps, nil
}

func runFrontlineSizeReconciliation(ctx context.Context, allocGroup string, cfg config.GroupConfig,
	st *store.Store, state *frontlineState, log *slog.Logger) {

	ticker := time.NewTicker(frontlineSizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := frontlineSizeOnce(ctx, allocGroup, st, state); err != nil {
			log.Warn("frontline size-reconciliation tick failed", "alloc_group", allocGroup, "error", err)
		}
	}
}

func frontlineSizeOnce(ctx context.Context, allocGroup string, st *store.Store, state *frontlineState) error {
	live, err := st.CountFrontlineAndBlocked(ctx, allocGroup)
	if err != nil {
		return fmt.Errorf("counting frontline+blocked bridges: %w", err)
	}

	target := int64(state.adjusted)
	switch {
	case live < target:
		b, err := st.OneReserve(ctx, allocGroup)
		if err != nil {
			return fmt.Errorf("selecting a reserve bridge: %w", err)
		}
		if b == nil {
			return nil
		}
		if err := st.SetStatus(ctx, b.BridgeID, store.StatusFrontline); err != nil {
			return fmt.Errorf("promoting bridge %s: %w", b.BridgeID, err)
		}
	case live > target:
		b, err := st.OldestFrontline(ctx, allocGroup)
		if err != nil {
			return fmt.Errorf("selecting oldest frontline bridge: %w", err)
		}
		if b == nil {
			return nil
		}
		if err := st.Delete(ctx, b.BridgeID); err != nil {
			return fmt.Errorf("deleting bridge %s: %w", b.BridgeID, err)
		}
	}
	return nil
}
