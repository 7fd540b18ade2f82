package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Bridge status values (spec.md §3).
const (
	StatusReserve   = "reserve"
	StatusFrontline = "frontline"
	StatusBlocked   = "blocked"
)

// Bridge is a single row of the bridges table (spec.md §3).
type Bridge struct {
	BridgeID   string
	IPAddr     string
	AllocGroup string
	Status     string
	ChangeTime time.Time
	LastMbps   float64
}

const bridgeColumns = `bridge_id, ip_addr, alloc_group, status, change_time, last_mbps`

func scanBridge(row pgx.Row) (Bridge, error) {
	var b Bridge
	err := row.Scan(&b.BridgeID, &b.IPAddr, &b.AllocGroup, &b.Status, &b.ChangeTime, &b.LastMbps)
	return b, err
}

func scanBridges(rows pgx.Rows) ([]Bridge, error) {
	defer rows.Close()
	var out []Bridge
	for rows.Next() {
		var b Bridge
		if err := rows.Scan(&b.BridgeID, &b.IPAddr, &b.AllocGroup, &b.Status, &b.ChangeTime, &b.LastMbps); err != nil {
			return nil, fmt.Errorf("scanning bridge row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bridge rows: %w", err)
	}
	return out, nil
}

// Store provides database operations for the bridge fleet.
type Store struct {
	pool dbtx
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// All loads every bridge row (used by C7 and C8's "load every row" step).
func (s *Store) All(ctx context.Context) ([]Bridge, error) {
	rows, err := s.pool.Query(ctx, `select `+bridgeColumns+` from bridges`)
	if err != nil {
		return nil, fmt.Errorf("listing bridges: %w", err)
	}
	return scanBridges(rows)
}

// AllInGroup loads every bridge row for one allocation group.
func (s *Store) AllInGroup(ctx context.Context, allocGroup string) ([]Bridge, error) {
	rows, err := s.pool.Query(ctx, `select `+bridgeColumns+` from bridges where alloc_group = $1`, allocGroup)
	if err != nil {
		return nil, fmt.Errorf("listing bridges for group %s: %w", allocGroup, err)
	}
	return scanBridges(rows)
}

// Insert creates a new bridge row with status reserve and change_time=now
// (spec.md §4.1 lifecycle step 1). Row insertion must follow successful
// provisioning: callers call this only after create_server and SSH
// configuration succeed (spec.md §4.3).
func (s *Store) Insert(ctx context.Context, bridgeID, ipAddr, allocGroup string) error {
	_, err := s.pool.Exec(ctx,
		`insert into bridges (bridge_id, ip_addr, alloc_group, status, change_time) values ($1, $2, $3, $4, now())`,
		bridgeID, ipAddr, allocGroup, StatusReserve)
	if err != nil {
		return fmt.Errorf("inserting bridge %s: %w", bridgeID, err)
	}
	return nil
}

// Delete removes a bridge row by id.
func (s *Store) Delete(ctx context.Context, bridgeID string) error {
	_, err := s.pool.Exec(ctx, `delete from bridges where bridge_id = $1`, bridgeID)
	if err != nil {
		return fmt.Errorf("deleting bridge %s: %w", bridgeID, err)
	}
	return nil
}

// SetStatus transitions a bridge's status and bumps change_time.
func (s *Store) SetStatus(ctx context.Context, bridgeID, status string) error {
	_, err := s.pool.Exec(ctx,
		`update bridges set status = $1, change_time = now() where bridge_id = $2`,
		status, bridgeID)
	if err != nil {
		return fmt.Errorf("setting status of bridge %s to %s: %w", bridgeID, status, err)
	}
	return nil
}

// SetStatusNoBump transitions status without touching change_time — used
// by C7 (spec.md §4.5 describes only a status flip, not a promotion, so
// blocking/unblocking a bridge doesn't reset its age for pruning purposes).
func (s *Store) SetStatusNoBump(ctx context.Context, bridgeID, status string) error {
	_, err := s.pool.Exec(ctx, `update bridges set status = $1 where bridge_id = $2`, status, bridgeID)
	if err != nil {
		return fmt.Errorf("setting status of bridge %s to %s: %w", bridgeID, status, err)
	}
	return nil
}

// UpdateMbps records an observed throughput sample (spec.md §4.4 step 2).
func (s *Store) UpdateMbps(ctx context.Context, bridgeID string, mbps float64) error {
	_, err := s.pool.Exec(ctx, `update bridges set last_mbps = $1 where bridge_id = $2`, mbps, bridgeID)
	if err != nil {
		return fmt.Errorf("updating last_mbps of bridge %s: %w", bridgeID, err)
	}
	return nil
}

// CountByStatus counts rows for a group matching one status.
func (s *Store) CountByStatus(ctx context.Context, allocGroup, status string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`select count(bridge_id) from bridges where alloc_group = $1 and status = $2`,
		allocGroup, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s bridges in group %s: %w", status, allocGroup, err)
	}
	return n, nil
}

// CountFrontlineAndBlocked counts rows in {frontline, blocked} for a group
// — the size-reconciliation subloop's "current_live" measure, which
// intentionally counts blocked bridges too (spec.md §4.4, §9).
func (s *Store) CountFrontlineAndBlocked(ctx context.Context, allocGroup string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`select count(bridge_id) from bridges where alloc_group = $1 and status in ($2, $3)`,
		allocGroup, StatusFrontline, StatusBlocked).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting frontline+blocked bridges in group %s: %w", allocGroup, err)
	}
	return n, nil
}

// CountGroupTotal counts every row in a group, used once at prune-loop
// startup to derive the per-group tick cadence (spec.md §4.7).
func (s *Store) CountGroupTotal(ctx context.Context, allocGroup string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `select count(bridge_id) from bridges where alloc_group = $1`, allocGroup).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting total bridges in group %s: %w", allocGroup, err)
	}
	return n, nil
}

// OneReserve picks one reserve-status row in a group, for promotion.
func (s *Store) OneReserve(ctx context.Context, allocGroup string) (*Bridge, error) {
	row := s.pool.QueryRow(ctx,
		`select `+bridgeColumns+` from bridges where alloc_group = $1 and status = $2 order by bridge_id limit 1`,
		allocGroup, StatusReserve)
	b, err := scanBridge(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting a reserve bridge in group %s: %w", allocGroup, err)
	}
	return &b, nil
}

// OldestFrontline returns the frontline row with the oldest change_time in
// a group, for eviction on shrink (spec.md §4.4). Ties are broken
// deterministically by bridge_id.
func (s *Store) OldestFrontline(ctx context.Context, allocGroup string) (*Bridge, error) {
	row := s.pool.QueryRow(ctx,
		`select `+bridgeColumns+` from bridges where alloc_group = $1 and status = $2
		 order by change_time asc, bridge_id asc limit 1`,
		allocGroup, StatusFrontline)
	b, err := scanBridge(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting oldest frontline bridge in group %s: %w", allocGroup, err)
	}
	return &b, nil
}

// OldestPrunable returns "the oldest row whose observed throughput exceeds
// a low threshold" in a group (spec.md §9's resolution of the ambiguous
// legacy MIN(last_mbps)-vs-change_time ordering): the row with the minimum
// change_time among rows with last_mbps > 1. Ties broken by bridge_id.
func (s *Store) OldestPrunable(ctx context.Context, allocGroup string) (*Bridge, error) {
	row := s.pool.QueryRow(ctx,
		`select `+bridgeColumns+` from bridges where alloc_group = $1 and last_mbps > 1
		 order by change_time asc, bridge_id asc limit 1`,
		allocGroup)
	b, err := scanBridge(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting oldest prunable bridge in group %s: %w", allocGroup, err)
	}
	return &b, nil
}
