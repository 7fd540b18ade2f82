package provider

import (
	"context"
	"net"
	"time"
)

const (
	reachableDialTimeout = 3 * time.Second
	reachablePollDelay   = 1 * time.Second
)

// WaitReachable blocks until port 22 on ipAddr accepts a TCP connection
// or ctx is done. Every concrete driver's CreateServer calls this before
// returning (spec.md §4.1: "returns as soon as port 22 on the public
// IPv4 accepts TCP").
func WaitReachable(ctx context.Context, ipAddr string) {
	for {
		dialer := net.Dialer{Timeout: reachableDialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ipAddr, "22"))
		if err == nil {
			conn.Close()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reachablePollDelay):
		}
	}
}
