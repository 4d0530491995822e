// Package harness evaluates the repository state left behind by an agent
// session. Each check is independent: a failure in one never blocks the
// others, so a single evaluation yields the full diagnostic picture.
package harness

import (
	"context"
	"time"

	"github.com/martinemde/codebench/agent"
)

// EvalResult aggregates all check outcomes for one task.
type EvalResult struct {
	TaskID   string    `json:"task_id"`
	Compile  bool      `json:"compile"`
	Static   bool      `json:"static"`
	Tests    bool      `json:"tests"`
	Behavior bool      `json:"behavior"`
	Steps    int       `json:"steps"`
	Notes    []string  `json:"notes,omitempty"`
	Overall  bool      `json:"overall"`
	When     time.Time `json:"when"`
}

// Harness runs the full check pipeline against a repository.
type Harness struct {
	runner *Runner
	checks []Check
}

// New creates a harness with the standard check pipeline.
func New(runner *Runner) *Harness {
	if runner == nil {
		runner = NewRunner(0)
	}
	return &Harness{
		runner: runner,
		checks: []Check{
			NewCompileCheck(runner),
			NewStaticCheck(runner),
			NewTestCheck(runner),
			NewBehaviorCheck(),
		},
	}
}

// NewWithChecks creates a harness running exactly the given checks.
func NewWithChecks(runner *Runner, checks ...Check) *Harness {
	if runner == nil {
		runner = NewRunner(0)
	}
	return &Harness{runner: runner, checks: checks}
}

// mandatedChecks maps a task category to the checks its success requires.
// Every check still runs; the mapping only controls the overall verdict.
func mandatedChecks(category string) map[string]bool {
	switch category {
	case "behavior":
		return map[string]bool{CheckBehavior: true}
	default:
		// "" and "code" require the full pipeline.
		return map[string]bool{CheckCompile: true, CheckStatic: true, CheckTests: true, CheckBehavior: true}
	}
}

// Evaluate runs every check against repoDir and aggregates the outcome.
// steps is the step count the session consumed, carried into the record.
func (h *Harness) Evaluate(ctx context.Context, repoDir string, task agent.Task, steps int) EvalResult {
	result := EvalResult{
		TaskID: task.ID,
		Steps:  steps,
		When:   time.Now().UTC(),
	}

	mandated := mandatedChecks(task.Category)
	result.Overall = true

	for _, check := range h.checks {
		outcome := check.Run(ctx, repoDir, task)
		switch outcome.Name {
		case CheckCompile:
			result.Compile = outcome.Passed
		case CheckStatic:
			result.Static = outcome.Passed
		case CheckTests:
			result.Tests = outcome.Passed
		case CheckBehavior:
			result.Behavior = outcome.Passed
		}
		if outcome.Notes != "" {
			result.Notes = append(result.Notes, outcome.Name+": "+outcome.Notes)
		}
		if mandated[outcome.Name] && !outcome.Passed {
			result.Overall = false
		}
	}

	if summary := DiffSummary(ctx, h.runner, repoDir); summary != "" {
		result.Notes = append(result.Notes, "diff: "+summary)
	}
	return result
}
