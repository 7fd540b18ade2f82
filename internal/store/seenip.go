package store

import (
	"context"
	"fmt"
)

// HasSeenIP reports whether an IP address has ever been assigned to a
// bridge, across the lifetime of the fleet (spec.md §4.3: a freshly
// created server's address must never have been used before, since
// previously-blocked IPs are assumed burned). Grounded on
// original_source/src/provider/ip_fresher.rs's "have we seen this IP"
// ledger check.
func (s *Store) HasSeenIP(ctx context.Context, ipAddr string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `select exists(select 1 from seen_ips where ip_addr = $1)`, ipAddr).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking seen_ips for %s: %w", ipAddr, err)
	}
	return exists, nil
}

// RecordSeenIP adds an address to the seen-IP ledger. Idempotent: a
// duplicate insert is not an error.
func (s *Store) RecordSeenIP(ctx context.Context, ipAddr string) error {
	_, err := s.pool.Exec(ctx,
		`insert into seen_ips (ip_addr, first_seen) values ($1, now()) on conflict (ip_addr) do nothing`,
		ipAddr)
	if err != nil {
		return fmt.Errorf("recording seen ip %s: %w", ipAddr, err)
	}
	return nil
}
