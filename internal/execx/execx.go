package execx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner abstracts external tool invocation so tests can substitute fakes
// and assert on invocation order and arguments.
type Runner interface {
	// Run executes name with args in dir (empty dir means the current
	// working directory) and returns the combined stdout/stderr output.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
	// LookPath reports the full path of name if it is present on PATH.
	LookPath(name string) (string, error)
}

// ShellRunner implements Runner by executing real processes
type ShellRunner struct{}

// NewShellRunner creates a runner backed by os/exec
func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// Run executes the command and returns an error with the captured output on failure
func (r *ShellRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// LookPath reports whether name resolves on PATH
func (r *ShellRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// ExitCode extracts the exit status of the failed process wrapped in err.
// It returns 0 for a nil error and 1 for errors that carry no exit status,
// so the orchestrator can surface the underlying tool's exit code unmodified.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
