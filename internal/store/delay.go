package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GroupDelay is the per-group load-shedding delay signal C6 publishes
// (spec.md §4.4 step 5): `delay_ms = max(0, (overload − 1.2) × 1000)`,
// consumed externally by routing to shed load onto a less-overloaded
// group.
type GroupDelay struct {
	AllocGroup string
	DelayMs    int64
	UpdatedAt  time.Time
}

// GroupDelay loads the current delay for a group, defaulting to
// defaultMs if no row exists yet.
func (s *Store) GroupDelay(ctx context.Context, allocGroup string, defaultMs int64) (int64, error) {
	var delay int64
	err := s.pool.QueryRow(ctx,
		`select delay_ms from bridge_group_delays where alloc_group = $1`, allocGroup).Scan(&delay)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaultMs, nil
		}
		return defaultMs, fmt.Errorf("loading delay for group %s: %w", allocGroup, err)
	}
	return delay, nil
}

// UpsertGroupDelay writes a group's current load-shedding delay.
func (s *Store) UpsertGroupDelay(ctx context.Context, allocGroup string, delayMs int64) error {
	_, err := s.pool.Exec(ctx,
		`insert into bridge_group_delays (alloc_group, delay_ms, updated_at) values ($1, $2, now())
		 on conflict (alloc_group) do update set delay_ms = excluded.delay_ms, updated_at = excluded.updated_at`,
		allocGroup, delayMs)
	if err != nil {
		return fmt.Errorf("upserting delay for group %s: %w", allocGroup, err)
	}
	return nil
}
