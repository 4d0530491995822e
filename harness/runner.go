package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Report captures one external command run by a check.
type Report struct {
	Command    string `json:"command"`
	WorkDir    string `json:"work_dir"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMS int64  `json:"duration_ms"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// Output returns combined stdout and stderr, trimmed.
func (r Report) Output() string {
	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

// NotFound reports whether the command itself was missing rather than
// failing; shells signal this with exit code 127.
func (r Report) NotFound() bool {
	return r.ExitCode == 127
}

// Runner executes check commands through a shell in a fixed directory.
type Runner struct {
	Timeout time.Duration
}

// NewRunner returns a runner with the given per-command timeout.
// A zero timeout defaults to five minutes.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{Timeout: timeout}
}

// Run executes cmdline under sh -lc in dir and always returns a Report,
// even on failure; the error is non-nil only when the process could not be
// started at all.
func (r *Runner) Run(ctx context.Context, dir, cmdline string) (Report, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-lc", cmdline)
	cmd.Dir = dir
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	report := Report{
		Command:    cmdline,
		WorkDir:    dir,
		DurationMS: duration.Milliseconds(),
		Stdout:     stdoutBuf.String(),
		Stderr:     stderrBuf.String(),
	}

	if runErr == nil {
		return report, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		report.ExitCode = exitErr.ExitCode()
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			report.TimedOut = true
		}
		return report, nil
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		report.ExitCode = -1
		report.TimedOut = true
		return report, nil
	}

	report.ExitCode = -1
	return report, fmt.Errorf("run %q: %w", cmdline, runErr)
}
