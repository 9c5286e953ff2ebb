package builder

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// Runner executes the external build tool
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands as child processes
type ExecRunner struct{}

// Run starts name in dir and waits for it, capturing both output streams.
// The process is killed when ctx is done.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 10 * time.Second

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
