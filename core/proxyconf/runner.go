package proxyconf

import (
	"context"
	"os/exec"
)

// CommandRunner executes external commands. The indirection exists so tests
// can exercise validation and reload flows without a real nginx binary.
type CommandRunner interface {
	// Run executes the command and returns its combined output. The context
	// bounds execution; an exceeded deadline kills the process.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
