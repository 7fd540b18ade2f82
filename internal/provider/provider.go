// Package provider defines the cloud provider driver abstraction (C1):
// a small, stable capability set — create, retain, optional overload —
// implemented once per cloud backend (internal/provider/hetzner,
// vultr, scaleway, lightsail) and optionally wrapped by the
// IP-freshness decorator (internal/provider/ipfresh, C2). Grounded on
// original_source/src/provider.rs's Provider trait.
package provider

import "context"

// Provider is one cloud backend's fleet-management surface for a single
// allocation group (spec.md §4.1).
type Provider interface {
	// CreateServer allocates a new server under the given opaque id and
	// blocks until port 22 on its public IPv4 accepts a TCP connection,
	// returning that address. Every driver retries while polling for the
	// new server's address; only the Hetzner driver also retries the
	// create request itself, while the Vultr, Scaleway and Lightsail
	// drivers return an error as soon as their create request fails.
	CreateServer(ctx context.Context, id string) (ipAddr string, err error)

	// RetainByID enumerates the servers this driver owns and deletes every
	// one whose id keep rejects, skipping ids still in the driver's
	// creating registry. Only the Lightsail driver restricts this to names
	// carrying its fleet prefix; the Hetzner and Scaleway drivers consider
	// every server their credentials can list, and the Vultr driver's
	// RetainByID deletes nothing.
	RetainByID(ctx context.Context, keep func(id string) bool) error

	// Overload reports a dimensionless per-host load metric where a
	// value above 1 means the fleet is over capacity. Drivers with no
	// such metric return 0, nil — see NoOverload.
	Overload(ctx context.Context) (float64, error)
}

// NoOverload is embedded by drivers with no native overload metric
// (every driver in this repo; none of the upstream provider APIs expose
// one), satisfying the optional part of the Provider interface.
type NoOverload struct{}

// Overload always reports no signal.
func (NoOverload) Overload(ctx context.Context) (float64, error) { return 0, nil }
