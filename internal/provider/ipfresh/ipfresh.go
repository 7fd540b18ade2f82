// Package ipfresh implements the IP-freshness decorator (C2): given an
// inner provider, CreateServer retries until the returned IP has never
// been recorded in the seen-IP ledger, recording it on success.
// Grounded on original_source/provider/ip_fresher.rs, whose loop has no
// attempt limit — the bound comes from the inner driver's own failure
// surface (spec.md §4.1).
package ipfresh

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geph-official/bridge-phalanx/internal/provider"
)

// Ledger is the seen-IP ledger the decorator consults. Satisfied by
// internal/store.Store.
type Ledger interface {
	HasSeenIP(ctx context.Context, ipAddr string) (bool, error)
	RecordSeenIP(ctx context.Context, ipAddr string) error
}

// Decorator wraps a provider.Provider so every IP it ever returns from
// CreateServer is one the fleet has never used before.
type Decorator struct {
	inner  provider.Provider
	ledger Ledger
	log    *slog.Logger
}

// New wraps inner with the IP-freshness check backed by ledger.
func New(inner provider.Provider, ledger Ledger, log *slog.Logger) *Decorator {
	return &Decorator{inner: inner, ledger: ledger, log: log}
}

// CreateServer delegates to the inner provider, discarding (but not
// deleting — the caller's retain_by_id sweep will reap it) any server
// whose IP has already been seen, and retrying.
func (d *Decorator) CreateServer(ctx context.Context, id string) (string, error) {
	for {
		ip, err := d.inner.CreateServer(ctx, id)
		if err != nil {
			return "", err
		}

		seen, err := d.ledger.HasSeenIP(ctx, ip)
		if err != nil {
			return "", fmt.Errorf("checking ip freshness for %s: %w", ip, err)
		}
		if !seen {
			if err := d.ledger.RecordSeenIP(ctx, ip); err != nil {
				return "", fmt.Errorf("recording seen ip %s: %w", ip, err)
			}
			return ip, nil
		}

		d.log.InfoContext(ctx, "ip already seen, retrying server creation", "ip", ip, "id", id)
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
}

// RetainByID delegates to the inner provider unchanged.
func (d *Decorator) RetainByID(ctx context.Context, keep func(id string) bool) error {
	return d.inner.RetainByID(ctx, keep)
}

// Overload delegates to the inner provider unchanged.
func (d *Decorator) Overload(ctx context.Context) (float64, error) {
	return d.inner.Overload(ctx)
}

var _ provider.Provider = (*Decorator)(nil)
