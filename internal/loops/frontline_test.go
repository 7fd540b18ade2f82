package loops

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/store"
)

func TestFrontlineSizeOnePromotesWhenUnderTarget(t *testing.T) {
	mock, st := newTestStore(t)

	mock.ExpectQuery(`select count\(bridge_id\) from bridges where alloc_group = \$1 and status in \(\$2, \$3\)`).
		WithArgs("geph4-us", store.StatusFrontline, store.StatusBlocked).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	mock.ExpectQuery(`select .* from bridges where alloc_group = \$1 and status = \$2 order by bridge_id limit 1`).
		WithArgs("geph4-us", store.StatusReserve).
		WillReturnRows(pgxMockBridgeRows(t).AddRow("a", "203.0.113.1", "geph4-us", store.StatusReserve, fixedTime(), 0.0))

	mock.ExpectExec(`update bridges set status = \$1, change_time = now\(\) where bridge_id = \$2`).
		WithArgs(store.StatusFrontline, "a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	state := &frontlineState{adjusted: 5}
	if err := frontlineSizeOnce(context.Background(), "geph4-us", st, state); err != nil {
		t.Fatalf("frontlineSizeOnce() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFrontlineSizeOneEvictsWhenOverTarget(t *testing.T) {
	mock, st := newTestStore(t)

	mock.ExpectQuery(`select count\(bridge_id\) from bridges where alloc_group = \$1 and status in \(\$2, \$3\)`).
		WithArgs("geph4-us", store.StatusFrontline, store.StatusBlocked).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(5)))

	mock.ExpectQuery(`select .* from bridges where alloc_group = \$1 and status = \$2`).
		WithArgs("geph4-us", store.StatusFrontline).
		WillReturnRows(pgxMockBridgeRows(t).AddRow("a", "203.0.113.1", "geph4-us", store.StatusFrontline, fixedTime(), 0.0))

	mock.ExpectExec(`delete from bridges where bridge_id = \$1`).
		WithArgs("a").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	state := &frontlineState{adjusted: 2}
	if err := frontlineSizeOnce(context.Background(), "geph4-us", st, state); err != nil {
		t.Fatalf("frontlineSizeOnce() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFrontlineControlOnceNoopBelowThreshold(t *testing.T) {
	cfg := config.GroupConfig{Frontline: 0, TargetMbps: 0}
	if err := frontlineControlOnce(context.Background(), "geph4-us", cfg, &scriptedExecutor{}, nil, &frontlineState{}); err != nil {
		t.Fatalf("frontlineControlOnce() error = %v", err)
	}
}

func TestProbeThroughputParsesOutput(t *testing.T) {
	ssh := &scriptedExecutor{output: "12.5\n"}
	mbps, err := probeThroughput(context.Background(), ssh, "203.0.113.1")
	if err != nil {
		t.Fatalf("probeThroughput() error = %v", err)
	}
	if mbps != 12.5 {
		t.Fatalf("expected 12.5, got %v", mbps)
	}
}
