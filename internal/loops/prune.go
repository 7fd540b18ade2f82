package loops

import (
	"context"
	"log/slog"
	"time"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/store"
)

const pruneMinInterval = time.Second

// RunPrune is the prune loop (C9) for one allocation group: on a cadence
// derived from the group's target average lifetime and size, it deletes
// the oldest still-used-ish bridge row (spec.md §4.7). Blocks until ctx
// is done.
func RunPrune(ctx context.Context, allocGroup string, cfg config.GroupConfig, st *store.Store, log *slog.Logger) {
	total, err := st.CountGroupTotal(ctx, allocGroup)
	if err != nil {
		log.Error("prune loop: initial count failed", "alloc_group", allocGroup, "error", err)
		total = 0
	}
	if total < 1 {
		total = 1
	}

	interval := time.Duration(cfg.AvgLifetimeHr * float64(time.Hour) / float64(total))
	if interval < pruneMinInterval {
		interval = pruneMinInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := pruneOnce(ctx, allocGroup, st); err != nil {
			log.Warn("prune tick failed", "alloc_group", allocGroup, "error", err)
		}
	}
}

func pruneOnce(ctx context.Context, allocGroup string, st *store.Store) error {
	b, err := st.OldestPrunable(ctx, allocGroup)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	return st.Delete(ctx, b.BridgeID)
}
