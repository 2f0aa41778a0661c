package backup

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// CommandSpec describes one external tool invocation
type CommandSpec struct {
	Name       string
	Args       []string
	Env        []string // appended to the process environment
	StdoutFile string   // when set, stdout is written to this file
	Timeout    time.Duration
}

// CommandResult carries the observable outcome of a command
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Ok reports whether the command ran and exited zero
func (r CommandResult) Ok() bool {
	return r.ExitCode == 0
}

// CommandRunner runs external dump and transport tools. The production
// implementation shells out; tests substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) (CommandResult, error)
}

// execRunner is the os/exec backed CommandRunner
type execRunner struct{}

// NewCommandRunner returns the default os/exec backed runner
func NewCommandRunner() CommandRunner {
	return execRunner{}
}

// Run executes the command, bounded by spec.Timeout when set. A non-zero
// exit is reported through CommandResult, not as an error; the returned
// error covers start failures, timeouts, and stdout-file issues.
func (execRunner) Run(ctx context.Context, spec CommandSpec) (CommandResult, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	var outFile *os.File
	if spec.StdoutFile != "" {
		f, err := os.Create(spec.StdoutFile)
		if err != nil {
			return CommandResult{ExitCode: -1}, err
		}
		outFile = f
		cmd.Stdout = f
	}

	runErr := cmd.Run()
	if outFile != nil {
		if closeErr := outFile.Close(); closeErr != nil && runErr == nil {
			runErr = closeErr
		}
	}

	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, runErr
	}

	return result, nil
}
