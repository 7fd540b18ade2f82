package deploy

import (
	"context"
	"strings"
	"testing"
)

type fakeExecutor struct {
	calls []string
}

func (f *fakeExecutor) Execute(ctx context.Context, host, script string) (string, error) {
	f.calls = append(f.calls, script)
	return "", nil
}

func TestInstallServiceUnknownService(t *testing.T) {
	i := New(&fakeExecutor{})
	if err := i.InstallService(context.Background(), "203.0.113.1", "unknown-service", "g1", "secret"); err == nil {
		t.Fatalf("expected an error for an unpinned service")
	}
}

func TestInstallServiceBuildsExpectedScript(t *testing.T) {
	exec := &fakeExecutor{}
	i := New(exec)

	if err := i.InstallService(context.Background(), "203.0.113.1", "geph4", "my-group", "s3cr3t"); err != nil {
		t.Fatalf("InstallService() error = %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("expected 1 ssh call, got %d", len(exec.calls))
	}
	script := exec.calls[0]
	if !strings.Contains(script, "AGROUP=my-group") || !strings.Contains(script, "BSECRET=s3cr3t") {
		t.Fatalf("script missing expected env vars: %s", script)
	}
	if !strings.Contains(script, scriptURLs["geph4"]) {
		t.Fatalf("script missing pinned url: %s", script)
	}
}

func TestConfigureExitNoOpWhenEmpty(t *testing.T) {
	exec := &fakeExecutor{}
	i := New(exec)
	if err := i.ConfigureExit(context.Background(), "203.0.113.1", ExitConfig{}); err != nil {
		t.Fatalf("ConfigureExit() error = %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("expected no ssh calls for an empty exit config")
	}
}

func TestConfigureExitAppliesFieldsAndRestarts(t *testing.T) {
	exec := &fakeExecutor{}
	i := New(exec)
	err := i.ConfigureExit(context.Background(), "203.0.113.1", ExitConfig{Country: "US", City: "NYC"})
	if err != nil {
		t.Fatalf("ConfigureExit() error = %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("expected 1 ssh call, got %d", len(exec.calls))
	}
	script := exec.calls[0]
	if !strings.Contains(script, `country = "US"`) || !strings.Contains(script, `city = "NYC"`) {
		t.Fatalf("script missing expected sed mutations: %s", script)
	}
	if !strings.Contains(script, "systemctl restart geph5-exit") {
		t.Fatalf("script missing service restart: %s", script)
	}
}

func TestInstallBandwidthLimit(t *testing.T) {
	exec := &fakeExecutor{}
	i := New(exec)
	if err := i.InstallBandwidthLimit(context.Background(), "203.0.113.1", 500); err != nil {
		t.Fatalf("InstallBandwidthLimit() error = %v", err)
	}
	if !strings.Contains(exec.calls[0], "TRAFFIC_LIMIT_GB=500") {
		t.Fatalf("script missing expected env var: %s", exec.calls[0])
	}
}
