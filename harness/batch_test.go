package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinemde/codebench/agent"
)

func TestRunBatchIsolatesRepositoryCopies(t *testing.T) {
	template := t.TempDir()
	writeRepoFile(t, template, "app.py", "VERSION = \"1.0\"\n")

	tasks := []agent.Task{
		{
			ID: "a", Description: "x", Category: "behavior", TargetFile: "app.py",
			Criteria: agent.SuccessCriteria{MustContain: []string{"alpha"}},
		},
		{
			ID: "b", Description: "x", Category: "behavior", TargetFile: "app.py",
			Criteria: agent.SuccessCriteria{MustContain: []string{"beta"}, MustNotContain: []string{"alpha"}},
		},
	}

	// Each session writes task-specific content; if the copies shared a
	// work tree, one task's write would leak into the other's evaluation.
	run := func(ctx context.Context, task agent.Task, repoDir string) (agent.RunResult, error) {
		content := "VERSION = \"alpha\"\n"
		if task.ID == "b" {
			content = "VERSION = \"beta\"\n"
		}
		err := os.WriteFile(filepath.Join(repoDir, "app.py"), []byte(content), 0644)
		return agent.RunResult{Reason: agent.ReasonCompleted, StepsUsed: 2, Completed: true}, err
	}

	h := NewWithChecks(nil, NewBehaviorCheck())
	results, err := h.RunBatch(context.Background(), tasks, template, run, BatchConfig{Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, "a", results[0].TaskID)
	require.True(t, results[0].Overall, results[0].Notes)
	require.Equal(t, "b", results[1].TaskID)
	require.True(t, results[1].Overall, results[1].Notes)

	// The template itself is untouched.
	data, err := os.ReadFile(filepath.Join(template, "app.py"))
	require.NoError(t, err)
	require.Equal(t, "VERSION = \"1.0\"\n", string(data))
}

func TestRunBatchRecordsSessionFailure(t *testing.T) {
	template := t.TempDir()
	writeRepoFile(t, template, "app.py", "VERSION = \"2.0\"\n")

	task := agent.Task{
		ID: "t", Description: "x", Category: "behavior", TargetFile: "app.py",
		Criteria: agent.SuccessCriteria{MustContain: []string{`"2.0"`}},
	}

	run := func(ctx context.Context, task agent.Task, repoDir string) (agent.RunResult, error) {
		return agent.RunResult{Reason: agent.ReasonMaxSteps, StepsUsed: 3}, nil
	}

	h := NewWithChecks(nil, NewBehaviorCheck())
	results, err := h.RunBatch(context.Background(), []agent.Task{task}, template, run, BatchConfig{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Evaluation still ran against the truncated session's repository.
	require.True(t, results[0].Behavior)
	require.Equal(t, 3, results[0].Steps)
	require.Contains(t, results[0].Notes, "termination: max_steps")
}

func TestWriteReports(t *testing.T) {
	results := []EvalResult{
		{TaskID: "a", Compile: true, Static: true, Tests: true, Behavior: true, Steps: 4, Overall: true},
		{TaskID: "b", Compile: false, Steps: 9, Notes: []string{"compile: syntax error"}},
	}

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "out", "results.json")
	csvPath := filepath.Join(dir, "out", "results.csv")

	require.NoError(t, WriteJSON(jsonPath, results))
	require.NoError(t, WriteCSV(csvPath, results))

	jsonData, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.Contains(t, string(jsonData), `"task_id": "a"`)

	csvData, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	require.Contains(t, string(csvData), "task_id,compile,static,tests,behavior,steps,overall,notes")
	require.Contains(t, string(csvData), "b,false,false,false,false,9,false,compile: syntax error")

	require.Equal(t, "1/2 tasks passed", Summary(results))
}
