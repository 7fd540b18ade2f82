package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("creating mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, &Store{pool: mock}
}

func TestInsertBridge(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectExec(`insert into bridges`).
		WithArgs("word-word-word-word-word", "203.0.113.5", "geph4-us", StatusReserve).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.Insert(context.Background(), "word-word-word-word-word", "203.0.113.5", "geph4-us"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOneReserveNoRows(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectQuery(`select .* from bridges where alloc_group = \$1 and status = \$2`).
		WithArgs("geph4-us", StatusReserve).
		WillReturnRows(pgxmock.NewRows([]string{"bridge_id", "ip_addr", "alloc_group", "status", "change_time", "last_mbps"}))

	b, err := s.OneReserve(context.Background(), "geph4-us")
	if err != nil {
		t.Fatalf("OneReserve() error = %v", err)
	}
	if b != nil {
		t.Fatalf("expected nil bridge on empty result, got %+v", b)
	}
}

func TestOneReserveFound(t *testing.T) {
	mock, s := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`select .* from bridges where alloc_group = \$1 and status = \$2`).
		WithArgs("geph4-us", StatusReserve).
		WillReturnRows(pgxmock.NewRows([]string{"bridge_id", "ip_addr", "alloc_group", "status", "change_time", "last_mbps"}).
			AddRow("alpha-bravo-charlie-delta-echo", "203.0.113.9", "geph4-us", StatusReserve, now, 0.0))

	b, err := s.OneReserve(context.Background(), "geph4-us")
	if err != nil {
		t.Fatalf("OneReserve() error = %v", err)
	}
	if b == nil || b.BridgeID != "alpha-bravo-charlie-delta-echo" {
		t.Fatalf("unexpected result: %+v", b)
	}
}

func TestCountFrontlineAndBlocked(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectQuery(`select count\(bridge_id\) from bridges where alloc_group = \$1 and status in \(\$2, \$3\)`).
		WithArgs("geph4-us", StatusFrontline, StatusBlocked).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := s.CountFrontlineAndBlocked(context.Background(), "geph4-us")
	if err != nil {
		t.Fatalf("CountFrontlineAndBlocked() error = %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
}

func TestSetStatus(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectExec(`update bridges set status = \$1, change_time = now\(\) where bridge_id = \$2`).
		WithArgs(StatusFrontline, "alpha-bravo-charlie-delta-echo").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := s.SetStatus(context.Background(), "alpha-bravo-charlie-delta-echo", StatusFrontline); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
}

func TestHasSeenIP(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectQuery(`select exists\(select 1 from seen_ips where ip_addr = \$1\)`).
		WithArgs("203.0.113.9").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	seen, err := s.HasSeenIP(context.Background(), "203.0.113.9")
	if err != nil {
		t.Fatalf("HasSeenIP() error = %v", err)
	}
	if !seen {
		t.Fatalf("expected seen=true")
	}
}
