package harness

import (
	"context"
	"fmt"
	"regexp"

	"github.com/martinemde/codebench/agent"
)

// CheckResult is the boolean outcome of one check plus diagnostic text.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Notes  string `json:"notes,omitempty"`
}

// Check is a single independent evaluation step. Checks must be
// deterministic for identical repository content and must not mutate the
// repository; failures are recorded, never raised.
type Check interface {
	Name() string
	Run(ctx context.Context, repoDir string, task agent.Task) CheckResult
}

const (
	CheckCompile  = "compile"
	CheckStatic   = "static"
	CheckTests    = "tests"
	CheckBehavior = "behavior"
)

// parseScript syntax-checks Python sources via ast.parse, which unlike
// py_compile leaves no bytecode behind.
const parseScript = `import ast,sys
for p in sys.argv[1:]:
    ast.parse(open(p,encoding="utf-8").read(),filename=p)`

const parseAllScript = `import ast,pathlib
for p in pathlib.Path(".").rglob("*.py"):
    if ".git" in p.parts: continue
    ast.parse(p.read_text(encoding="utf-8"),filename=str(p))`

// CompileCheck verifies the target file (or every Python file when the task
// names none) parses without error.
type CompileCheck struct {
	runner *Runner
}

func NewCompileCheck(runner *Runner) *CompileCheck { return &CompileCheck{runner: runner} }

func (c *CompileCheck) Name() string { return CheckCompile }

func (c *CompileCheck) Run(ctx context.Context, repoDir string, task agent.Task) CheckResult {
	var cmdline string
	if task.TargetFile != "" {
		cmdline = fmt.Sprintf("python3 -c %s %s", shellQuote(parseScript), shellQuote(task.TargetFile))
	} else {
		cmdline = fmt.Sprintf("python3 -c %s", shellQuote(parseAllScript))
	}

	report, err := c.runner.Run(ctx, repoDir, cmdline)
	if err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Notes: err.Error()}
	}
	if report.ExitCode != 0 {
		return CheckResult{Name: c.Name(), Passed: false, Notes: firstLines(report.Output(), 10)}
	}
	return CheckResult{Name: c.Name(), Passed: true}
}

// StaticCheck runs a linter over the target. It prefers ruff and falls back
// to flake8 when ruff is not installed.
type StaticCheck struct {
	runner *Runner
}

func NewStaticCheck(runner *Runner) *StaticCheck { return &StaticCheck{runner: runner} }

func (c *StaticCheck) Name() string { return CheckStatic }

func (c *StaticCheck) Run(ctx context.Context, repoDir string, task agent.Task) CheckResult {
	target := "."
	if task.TargetFile != "" {
		target = shellQuote(task.TargetFile)
	}

	report, err := c.runner.Run(ctx, repoDir, "ruff check --no-cache --quiet "+target)
	if err == nil && report.NotFound() {
		report, err = c.runner.Run(ctx, repoDir, "flake8 --max-line-length=120 "+target)
	}
	if err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Notes: err.Error()}
	}
	if report.NotFound() {
		return CheckResult{Name: c.Name(), Passed: false, Notes: "no linter available: tried ruff, flake8"}
	}
	if report.ExitCode != 0 {
		return CheckResult{Name: c.Name(), Passed: false, Notes: firstLines(report.Output(), 10)}
	}
	return CheckResult{Name: c.Name(), Passed: true}
}

var testSummaryRe = regexp.MustCompile(`(\d+) (passed|failed|error)`)

// TestCheck runs the repository's test suite. The disqualifying condition
// is a crash of the runner itself, not a failing assertion: pytest exits 0
// on success, 1 on test failures, and 5 when nothing was collected, all of
// which count as a completed run. Higher exit codes and timeouts fail.
type TestCheck struct {
	runner *Runner
}

func NewTestCheck(runner *Runner) *TestCheck { return &TestCheck{runner: runner} }

func (c *TestCheck) Name() string { return CheckTests }

func (c *TestCheck) Run(ctx context.Context, repoDir string, task agent.Task) CheckResult {
	cmdline := "PYTHONDONTWRITEBYTECODE=1 python3 -m pytest -q -p no:cacheprovider"
	report, err := c.runner.Run(ctx, repoDir, cmdline)
	if err != nil {
		return CheckResult{Name: c.Name(), Passed: false, Notes: err.Error()}
	}

	notes := ""
	if m := testSummaryRe.FindAllString(report.Output(), -1); len(m) > 0 {
		notes = fmt.Sprintf("%v", m)
	}

	if report.TimedOut {
		return CheckResult{Name: c.Name(), Passed: false, Notes: "test run timed out"}
	}
	switch report.ExitCode {
	case 0, 1, 5:
		return CheckResult{Name: c.Name(), Passed: true, Notes: notes}
	default:
		return CheckResult{Name: c.Name(), Passed: false,
			Notes: fmt.Sprintf("test runner crashed with exit code %d: %s", report.ExitCode, firstLines(report.Output(), 5))}
	}
}
