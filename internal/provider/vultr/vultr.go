// Package vultr implements the Vultr provider driver (C1). Grounded on
// original_source/provider/vultr.rs.
package vultr

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
var apiBase = "https://api.vultr.com/v2"

// Driver is the Vultr provider driver.
type Driver struct {
	provider.NoOverload

	cfg        config.VultrConfig
	httpClient *http.Client
	creating   *provider.CreatingRegistry
}

// New creates a Vultr driver from its configuration.
func New(cfg config.VultrConfig) *Driver {
	return &Driver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		creating:   provider.NewCreatingRegistry(),
	}
}

func label(id string) string { return "vultr-phalanx-" + id }

type createInstanceReq struct {
	Region  string   `json:"region"`
	Plan    string    `json:"plan"`
	OSID    int      `json:"os_id"`
	Label   string   `json:"label"`
	SSHKeys []string `json:"sshkey_id"`
}

type instanceDescriptor struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Status string `json:"status"`
	MainIP string `json:"main_ip"`
}

type listInstancesResp struct {
	Instances []instanceDescriptor `json:"instances"`
}

func (d *Driver) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return d.httpClient.Do(req)
}

func (d *Driver) listAll(ctx context.Context) ([]instanceDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/instances", nil)
	if err != nil {
		return nil, fmt.Errorf("building list-instances request: %w", err)
	}
	resp, err := d.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("listing vultr instances: http %d", resp.StatusCode)
	}
	var out listInstancesResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding list-instances response: %w", err)
	}
	return out.Instances, nil
}

// CreateServer allocates a new Vultr instance (spec.md §4.1).
func (d *Driver) CreateServer(ctx context.Context, id string) (string, error) {
	end := d.creating.Begin(id)
	defer end()

	body, err := json.Marshal(createInstanceReq{
		Region:  d.cfg.Region,
		Plan:    d.cfg.Plan,
		OSID:    d.cfg.OSID,
		Label:   label(id),
		SSHKeys: []string{d.cfg.SSHKeyID},
	})
	if err != nil {
		return "", fmt.Errorf("marshalling create-instance request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/instances", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building create-instance request: %w", err)
	}
	resp, err := d.do(req)
	if err != nil {
		return "", fmt.Errorf("creating vultr instance %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("creating vultr instance %s: http %d", id, resp.StatusCode)
	}

	// Poll until the instance appears active with an IP address.
	operation := func() (string, error) {
		instances, err := d.listAll(ctx)
		if err != nil {
			return "", err
		}
		for _, inst := range instances {
			if inst.Label == label(id) && inst.MainIP != "" && inst.Status == "active" {
				return inst.MainIP, nil
			}
		}
		return "", fmt.Errorf("vultr instance %s not yet active", id)
	}
	ip, err := backoff.Retry(ctx, operation,
		backoff.WithMaxTries(0),
		backoff.WithBackOff(backoff.NewConstantBackOff(time.Second)))
	if err != nil {
		return "", fmt.Errorf("waiting for vultr instance %s: %w", id, err)
	}

	provider.WaitReachable(ctx, ip)
	return ip, nil
}

// RetainByID is not yet implemented upstream in the original driver
// (original_source/provider/vultr.rs logs a warning and returns
// success); kept as a no-op for parity rather than invented.
func (d *Driver) RetainByID(ctx context.Context, keep func(id string) bool) error {
	return nil
}

var _ provider.Provider = (*Driver)(nil)
