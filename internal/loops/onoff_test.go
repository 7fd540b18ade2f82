package loops

import (
	"context"
	"sync"
	"testing"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/store"
)

func TestOnoffTransitionFrontlineEnablesAndStarts(t *testing.T) {
	ssh := &scriptedExecutor{}
	cfg := config.GroupConfig{Services: []string{"geph4"}}
	b := store.Bridge{BridgeID: "a", IPAddr: "203.0.113.1", Status: store.StatusFrontline}

	if err := onoffTransition(context.Background(), ssh, cfg, b); err != nil {
		t.Fatalf("onoffTransition() error = %v", err)
	}
	if ssh.calls != 1 {
		t.Fatalf("expected 1 ssh call, got %d", ssh.calls)
	}
}

func TestOnoffTransitionBlockedStopsAndDisables(t *testing.T) {
	ssh := &scriptedExecutor{}
	cfg := config.GroupConfig{Services: []string{"geph4", "geph5_exit"}}
	b := store.Bridge{BridgeID: "a", IPAddr: "203.0.113.1", Status: store.StatusBlocked}

	if err := onoffTransition(context.Background(), ssh, cfg, b); err != nil {
		t.Fatalf("onoffTransition() error = %v", err)
	}
	if ssh.calls != 2 {
		t.Fatalf("expected 2 ssh calls (one per configured service), got %d", ssh.calls)
	}
}

func TestOnoffOnceSkipsUnchangedStatus(t *testing.T) {
	mock, st := newTestStore(t)
	mock.ExpectQuery(`select .* from bridges$`).
		WillReturnRows(pgxMockBridgeRows(t).AddRow("a", "203.0.113.1", "geph4-us", store.StatusFrontline, fixedTime(), 0.0))

	ssh := &scriptedExecutor{}
	lastStatus := &sync.Map{}
	lastStatus.Store("a", store.StatusFrontline)
	groups := map[string]config.GroupConfig{"geph4-us": {Services: []string{"geph4"}}}

	if err := onoffOnce(context.Background(), groups, ssh, st, lastStatus, testLogger(), 64); err != nil {
		t.Fatalf("onoffOnce() error = %v", err)
	}
	if ssh.calls != 0 {
		t.Fatalf("expected no ssh calls for an unchanged status, got %d", ssh.calls)
	}
}

func TestOnoffOnceActsOnChangedStatus(t *testing.T) {
	mock, st := newTestStore(t)
	mock.ExpectQuery(`select .* from bridges$`).
		WillReturnRows(pgxMockBridgeRows(t).AddRow("a", "203.0.113.1", "geph4-us", store.StatusFrontline, fixedTime(), 0.0))

	ssh := &scriptedExecutor{}
	lastStatus := &sync.Map{}
	groups := map[string]config.GroupConfig{"geph4-us": {Services: []string{"geph4"}}}

	if err := onoffOnce(context.Background(), groups, ssh, st, lastStatus, testLogger(), 64); err != nil {
		t.Fatalf("onoffOnce() error = %v", err)
	}
	if ssh.calls != 1 {
		t.Fatalf("expected 1 ssh call, got %d", ssh.calls)
	}
	got, ok := lastStatus.Load("a")
	if !ok || got.(string) != store.StatusFrontline {
		t.Fatalf("expected last_status to be updated to frontline, got %v (ok=%v)", got, ok)
	}
}
