package provider

import (
	"context"
	"testing"
	"time"
)

func TestWaitReachableReturnsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// TEST-NET-3, nothing listens on port 22 there.
		WaitReachable(ctx, "203.0.113.1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("WaitReachable did not return after context cancellation")
	}
}
