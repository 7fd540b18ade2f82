// Package hetzner implements the Hetzner Cloud provider driver (C1).
// Grounded on original_source/provider/hetzner.rs, translated from
// isahc/smol to net/http and context, in the request-building shape of
// wisbric-nightowl's pkg/bookowl/client.go.
package hetzner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/provider"
)

// apiBase is a var, not a const, so tests can point it at an
// httptest.Server.
var apiBase = "https://api.hetzner.cloud/v1"

// Driver is the Hetzner Cloud provider driver.
type Driver struct {
	provider.NoOverload

	cfg        config.HetznerConfig
	httpClient *http.Client
	creating   *provider.CreatingRegistry
}

// New creates a Hetzner driver from its configuration.
func New(cfg config.HetznerConfig) *Driver {
	return &Driver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		creating:   provider.NewCreatingRegistry(),
	}
}

type createServerReq struct {
	Name       string   `json:"name"`
	ServerType string   `json:"server_type"`
	Image      string   `json:"image"`
	Location   string   `json:"location"`
	SSHKeys    []string `json:"ssh_keys"`
}

type createServerResp struct {
	Server struct {
		PublicNet struct {
			IPv4 struct {
				IP string `json:"ip"`
			} `json:"ipv4"`
		} `json:"public_net"`
	} `json:"server"`
}

// CreateServer allocates a new Hetzner Cloud server (spec.md §4.1).
func (d *Driver) CreateServer(ctx context.Context, id string) (string, error) {
	end := d.creating.Begin(id)
	defer end()

	body, err := json.Marshal(createServerReq{
		Name:       id,
		ServerType: d.cfg.ServerType,
		Image:      d.cfg.Image,
		Location:   d.cfg.Location,
		SSHKeys:    []string{d.cfg.SSHKeyID},
	})
	if err != nil {
		return "", fmt.Errorf("marshalling create-server request: %w", err)
	}

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/servers", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("building create-server request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIToken)

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("hetzner create server: http %d", resp.StatusCode)
		}

		var out createServerResp
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decoding create-server response: %w", err)
		}
		if out.Server.PublicNet.IPv4.IP == "" {
			return "", fmt.Errorf("hetzner create server: no ipv4 address in response")
		}
		return out.Server.PublicNet.IPv4.IP, nil
	}

	ip, err := backoff.Retry(ctx, operation, backoff.WithMaxTries(0))
	if err != nil {
		return "", fmt.Errorf("creating hetzner server %s: %w", id, err)
	}

	provider.WaitReachable(ctx, ip)
	return ip, nil
}

type listServersResp struct {
	Servers []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"servers"`
}

// RetainByID deletes every Hetzner server whose name keep rejects,
// skipping names still in the short-lived creating registry.
func (d *Driver) RetainByID(ctx context.Context, keep func(id string) bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/servers", nil)
	if err != nil {
		return fmt.Errorf("building list-servers request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("listing hetzner servers: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("listing hetzner servers: http %d", resp.StatusCode)
	}

	var list listServersResp
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("decoding list-servers response: %w", err)
	}

	for _, srv := range list.Servers {
		if keep(srv.Name) || d.creating.Contains(srv.Name) {
			continue
		}
		if err := d.deleteServer(ctx, srv.ID); err != nil {
			return fmt.Errorf("deleting hetzner server %s: %w", srv.Name, err)
		}
	}
	return nil
}

func (d *Driver) deleteServer(ctx context.Context, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/servers/%d", apiBase, id), nil)
	if err != nil {
		return fmt.Errorf("building delete-server request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

var _ provider.Provider = (*Driver)(nil)
