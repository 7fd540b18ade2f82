package loops

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedTime() time.Time {
	return fixedNow
}

func pgxMockBridgeRows(t *testing.T) *pgxmock.Rows {
	t.Helper()
	return pgxmock.NewRows([]string{"bridge_id", "ip_addr", "alloc_group", "status", "change_time", "last_mbps"})
}
