package loops

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/store"
)

type scriptedExecutor struct {
	output string
	calls  int
}

func (s *scriptedExecutor) Execute(ctx context.Context, host, script string) (string, error) {
	s.calls++
	return s.output, nil
}

func TestGFWBlocksOnFullLoss(t *testing.T) {
	mock, st := newTestStore(t)
	now := time.Now()

	mock.ExpectQuery(`select .* from bridges$`).
		WillReturnRows(pgxmock.NewRows([]string{"bridge_id", "ip_addr", "alloc_group", "status", "change_time", "last_mbps"}).
			AddRow("alpha-bravo-charlie-delta-echo", "203.0.113.9", "geph4-us", store.StatusReserve, now, 0.0))

	mock.ExpectExec(`update bridges set status = \$1 where bridge_id = \$2`).
		WithArgs(store.StatusBlocked, "alpha-bravo-charlie-delta-echo").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ssh := &scriptedExecutor{output: "10 packets transmitted, 0 received, 100% packet loss"}
	groups := map[string]config.GroupConfig{"geph4-us": {}}

	if err := gfwOnce(context.Background(), groups, ssh, st, testLogger(), 32); err != nil {
		t.Fatalf("gfwOnce() error = %v", err)
	}
	if ssh.calls != 1 {
		t.Fatalf("expected 1 ssh probe, got %d", ssh.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGFWUnblocksOnReachable(t *testing.T) {
	mock, st := newTestStore(t)
	now := time.Now()

	// The query must be unfiltered (spec.md §4.5 step 1: "Load every row")
	// so that blocked rows are probed too and can heal back to reserve —
	// a query scoped to reserve/frontline would never return this row.
	mock.ExpectQuery(`select .* from bridges$`).
		WillReturnRows(pgxmock.NewRows([]string{"bridge_id", "ip_addr", "alloc_group", "status", "change_time", "last_mbps"}).
			AddRow("alpha-bravo-charlie-delta-echo", "203.0.113.9", "geph4-us", store.StatusBlocked, now, 0.0).
			AddRow("foxtrot-golf-hotel-india-juliet", "203.0.113.10", "geph4-us", store.StatusReserve, now, 0.0))

	mock.ExpectExec(`update bridges set status = \$1 where bridge_id = \$2`).
		WithArgs(store.StatusReserve, "alpha-bravo-charlie-delta-echo").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ssh := &scriptedExecutor{output: "10 packets transmitted, 10 received, 0% packet loss"}
	groups := map[string]config.GroupConfig{"geph4-us": {}}

	if err := gfwOnce(context.Background(), groups, ssh, st, testLogger(), 32); err != nil {
		t.Fatalf("gfwOnce() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGFWSkipsNoAntiGFWGroup(t *testing.T) {
	mock, st := newTestStore(t)
	now := time.Now()

	mock.ExpectQuery(`select .* from bridges$`).
		WillReturnRows(pgxmock.NewRows([]string{"bridge_id", "ip_addr", "alloc_group", "status", "change_time", "last_mbps"}).
			AddRow("alpha-bravo-charlie-delta-echo", "203.0.113.9", "geph4-cn", store.StatusReserve, now, 0.0))

	ssh := &scriptedExecutor{output: "100% packet loss"}
	groups := map[string]config.GroupConfig{"geph4-cn": {NoAntiGFW: true}}

	if err := gfwOnce(context.Background(), groups, ssh, st, testLogger(), 32); err != nil {
		t.Fatalf("gfwOnce() error = %v", err)
	}
	if ssh.calls != 0 {
		t.Fatalf("expected no ssh probes for a no_antigfw group, got %d", ssh.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
