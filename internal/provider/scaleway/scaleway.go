// Package scaleway implements the Scaleway provider driver (C1).
// Grounded on original_source/provider/scaleway.rs: create, poweron,
// poll for a public IP, wait for reachability; retain_by_id paginates
// the instance list and protects recently-created names the same way
// the "creating" registry does for every other driver (folding
// scaleway.rs's RECENT_LIST into the generic provider.CreatingRegistry
// rather than keeping a second bespoke implementation).
package scaleway

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

// apiHost is a var, not a const, so tests can point it at an
// httptest.Server.
var apiHost = "https://api.scaleway.com"

func apiBase(zone string) string {
	return fmt.Sprintf("%s/instance/v1/zones/%s/servers", apiHost, zone)
}

// Driver is the Scaleway provider driver.
type Driver struct {
	provider.NoOverload

	cfg        config.ScalewayConfig
	httpClient *http.Client
	creating   *provider.CreatingRegistry
}

// New creates a Scaleway driver from its configuration.
func New(cfg config.ScalewayConfig) *Driver {
	return &Driver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		creating:   provider.NewCreatingRegistry(),
	}
}

func (d *Driver) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Auth-Token", d.cfg.SecretKey)
	return d.httpClient.Do(req)
}

type createServerResp struct {
	Server struct {
		ID string `json:"id"`
	} `json:"server"`
}

type getServerResp struct {
	Server struct {
		PublicIP struct {
			Address string `json:"address"`
		} `json:"public_ip"`
	} `json:"server"`
}

type listServersResp struct {
	Servers []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"servers"`
}

// CreateServer allocates, powers on, and waits for a reachable Scaleway
// instance (spec.md §4.1).
func (d *Driver) CreateServer(ctx context.Context, id string) (string, error) {
	end := d.creating.Begin(id)
	defer end()

	createReq := map[string]any{
		"name":                id,
		"project":             d.cfg.ProjectID,
		"commercial_type":     d.cfg.CommercialType,
		"image":               d.cfg.Image,
		"enable_ipv6":         false,
		"dynamic_ip_required": false,
	}
	body, err := json.Marshal(createReq)
	if err != nil {
		return "", fmt.Errorf("marshalling create-server request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase(d.cfg.Zone), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building create-server request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	resp, err := d.do(req)
	if err != nil {
		return "", fmt.Errorf("creating scaleway server %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("creating scaleway server %s: http %d", id, resp.StatusCode)
	}
	var created createServerResp
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding create-server response: %w", err)
	}

	if err := d.performAction(ctx, created.Server.ID, "poweron"); err != nil {
		return "", fmt.Errorf("powering on scaleway server %s: %w", id, err)
	}

	operation := func() (string, error) {
		addr, err := d.getServerAddr(ctx, created.Server.ID)
		if err != nil {
			return "", err
		}
		if addr == "" {
			return "", fmt.Errorf("scaleway server %s has no public ip yet", id)
		}
		return addr, nil
	}
	ip, err := backoff.Retry(ctx, operation,
		backoff.WithMaxTries(0),
		backoff.WithBackOff(backoff.NewConstantBackOff(time.Second)))
	if err != nil {
		return "", fmt.Errorf("waiting for scaleway server %s ip: %w", id, err)
	}

	provider.WaitReachable(ctx, ip)
	return ip, nil
}

func (d *Driver) getServerAddr(ctx context.Context, serverID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase(d.cfg.Zone)+"/"+serverID, nil)
	if err != nil {
		return "", fmt.Errorf("building get-server request: %w", err)
	}
	resp, err := d.do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}
	var out getServerResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding get-server response: %w", err)
	}
	return out.Server.PublicIP.Address, nil
}

func (d *Driver) performAction(ctx context.Context, serverID, action string) error {
	body, _ := json.Marshal(map[string]string{"action": action})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase(d.cfg.Zone)+"/"+serverID+"/action", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

// RetainByID pages through every Scaleway instance in the zone and
// terminates (falling back to a hard delete) every one whose name keep
// rejects, skipping names still within the creating TTL.
func (d *Driver) RetainByID(ctx context.Context, keep func(id string) bool) error {
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s?per_page=10&page=%d", apiBase(d.cfg.Zone), page)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("building list-servers request: %w", err)
		}
		resp, err := d.do(req)
		if err != nil {
			return fmt.Errorf("listing scaleway servers: %w", err)
		}
		var list listServersResp
		decErr := json.NewDecoder(resp.Body).Decode(&list)
		_ = resp.Body.Close()
		if decErr != nil {
			return fmt.Errorf("decoding list-servers response: %w", decErr)
		}
		if len(list.Servers) == 0 {
			return nil
		}

		for _, srv := range list.Servers {
			if keep(srv.Name) || d.creating.Contains(srv.Name) {
				continue
			}
			if err := d.deleteServer(ctx, srv.ID); err != nil {
				return fmt.Errorf("deleting scaleway server %s: %w", srv.Name, err)
			}
		}
	}
}

func (d *Driver) deleteServer(ctx context.Context, serverID string) error {
	if err := d.performAction(ctx, serverID, "terminate"); err == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, apiBase(d.cfg.Zone)+"/"+serverID, nil)
	if err != nil {
		return fmt.Errorf("building delete-server request: %w", err)
	}
	resp, err := d.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

var _ provider.Provider = (*Driver)(nil)
