package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/martinemde/codebench/agent"
)

// BehaviorCheck matches the task's success criteria against the target
// file's text: required substrings present (with optional minimum
// occurrence counts), forbidden substrings absent.
type BehaviorCheck struct{}

func NewBehaviorCheck() *BehaviorCheck { return &BehaviorCheck{} }

func (c *BehaviorCheck) Name() string { return CheckBehavior }

func (c *BehaviorCheck) Run(ctx context.Context, repoDir string, task agent.Task) CheckResult {
	if task.Criteria.Empty() {
		return CheckResult{Name: c.Name(), Passed: true, Notes: "no criteria defined"}
	}
	if task.TargetFile == "" {
		return CheckResult{Name: c.Name(), Passed: false, Notes: "criteria defined but task names no target file"}
	}

	data, err := os.ReadFile(filepath.Join(repoDir, filepath.FromSlash(task.TargetFile)))
	if err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Notes: fmt.Sprintf("target file missing: %v", err)}
	}
	text := string(data)

	var failures []string
	for _, pattern := range task.Criteria.MustContain {
		want := 1
		if min, ok := task.Criteria.MinOccurrences[pattern]; ok && min > want {
			want = min
		}
		if got := strings.Count(text, pattern); got < want {
			failures = append(failures, fmt.Sprintf("%q found %d time(s), need %d", pattern, got, want))
		}
	}
	for pattern, want := range task.Criteria.MinOccurrences {
		if containsString(task.Criteria.MustContain, pattern) {
			continue
		}
		if got := strings.Count(text, pattern); got < want {
			failures = append(failures, fmt.Sprintf("%q found %d time(s), need %d", pattern, got, want))
		}
	}
	for _, pattern := range task.Criteria.MustNotContain {
		if strings.Contains(text, pattern) {
			failures = append(failures, fmt.Sprintf("forbidden %q present", pattern))
		}
	}

	if len(failures) > 0 {
		return CheckResult{Name: c.Name(), Passed: false, Notes: strings.Join(failures, "; ")}
	}
	return CheckResult{Name: c.Name(), Passed: true}
}

// DiffSummary returns a short git description of what a session changed,
// for inclusion in evaluation notes. Returns "" when the repository is not
// a git work tree or nothing changed.
func DiffSummary(ctx context.Context, runner *Runner, repoDir string) string {
	report, err := runner.Run(ctx, repoDir, "git diff --stat HEAD")
	if err != nil || report.ExitCode != 0 {
		return ""
	}
	return strings.TrimSpace(report.Stdout)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// shellQuote wraps s in single quotes for sh -c, escaping embedded quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// firstLines returns at most n lines of s.
func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + "\n..."
}
