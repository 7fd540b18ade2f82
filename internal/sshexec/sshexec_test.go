package sshexec

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

// This test needs no reachable host: it points the real ssh binary at a
// TEST-NET-3 address where nothing answers, under a 2-second context,
// and asserts that Execute returns *an* error rather than hanging.
func TestExecuteFailsFast(t *testing.T) {
	if _, err := exec.LookPath("ssh"); err != nil {
		t.Skip("ssh binary not available in test environment")
	}

	e := New(4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := e.Execute(ctx, "203.0.113.1", "echo hi")
	if err == nil {
		t.Fatalf("expected an error connecting to a reserved test-net address")
	}
}

func TestNewDefaultsConcurrency(t *testing.T) {
	e := New(0)
	if e.sem == nil {
		t.Fatalf("expected a non-nil semaphore")
	}
}
