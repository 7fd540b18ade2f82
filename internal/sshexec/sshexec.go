// Package sshexec implements the SSH executor (C3): running a remote
// shell command on a host as root, with bounded process-wide concurrency
// and a hard wall-clock timeout. Grounded on
// original_source/src/ssh.rs, which shells out to the ssh binary with a
// fixed set of flags behind a semol::lock::Semaphore(512).
package sshexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"golang.org/x/sync/semaphore"
)

// Timeout is the hard wall-clock ceiling on a single SSH invocation
// (spec.md §4.2, §5).
const Timeout = 300 * time.Second

// Executor runs commands over SSH with a process-wide concurrency bound.
type Executor struct {
	sem *semaphore.Weighted
}

// New creates an Executor allowing at most concurrency sessions in flight
// at once (spec.md §5: "a process-global semaphore caps concurrent
// sessions (~512)").
func New(concurrency int64) *Executor {
	if concurrency <= 0 {
		concurrency = 512
	}
	return &Executor{sem: semaphore.NewWeighted(concurrency)}
}

// Execute runs script as root@host over SSH, returning stdout. It fails if
// the remote exit status is non-zero or if the call exceeds Timeout.
//
// Callers must not hold this guard across long external waits unrelated
// to SSH (spec.md §4.2) — Execute itself only ever holds the semaphore for
// the duration of one ssh invocation, never longer.
func (e *Executor) Execute(ctx context.Context, host, script string) (string, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquiring ssh session slot: %w", err)
	}
	defer e.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ssh",
		"-C",
		"-o", "ConnectTimeout=300",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		fmt.Sprintf("root@%s", host),
		script,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("ssh %s: timed out after %s", host, Timeout)
		}
		return "", fmt.Errorf("ssh %s: %w (stderr: %s)", host, err, stderr.String())
	}

	return stdout.String(), nil
}
