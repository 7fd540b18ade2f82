package loops

import "context"

// sshExecutor is the subset of internal/sshexec.Executor the control
// loops need. Depending on this narrow interface instead of the concrete
// type lets tests substitute a fake without a real SSH binary.
type sshExecutor interface {
	Execute(ctx context.Context, host, script string) (string, error)
}
