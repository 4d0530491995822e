package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinemde/codebench/agent"
)

func writeRepoFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestBehaviorCheckVersionChange(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "app.py", "VERSION = \"2.0\"\n")

	task := agent.Task{
		ID:         "version-bump",
		TargetFile: "app.py",
		Criteria: agent.SuccessCriteria{
			MustContain:    []string{`"2.0"`},
			MustNotContain: []string{`"1.0"`},
		},
	}

	result := NewBehaviorCheck().Run(context.Background(), dir, task)
	require.True(t, result.Passed, result.Notes)
}

func TestBehaviorCheckForbiddenPattern(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "app.py", "VERSION = \"2.0\"  # was \"1.0\"\n")

	task := agent.Task{
		ID:         "version-bump",
		TargetFile: "app.py",
		Criteria: agent.SuccessCriteria{
			MustContain:    []string{`"2.0"`},
			MustNotContain: []string{`"1.0"`},
		},
	}

	result := NewBehaviorCheck().Run(context.Background(), dir, task)
	require.False(t, result.Passed)
	require.Contains(t, result.Notes, "forbidden")
}

func TestBehaviorCheckMinOccurrences(t *testing.T) {
	task := agent.Task{
		ID:         "write-tests",
		TargetFile: "test_colors.py",
		Criteria: agent.SuccessCriteria{
			MustContain:    []string{"def test_", "get_fore_color"},
			MinOccurrences: map[string]int{"def test_": 2},
		},
	}

	dir := t.TempDir()
	writeRepoFile(t, dir, "test_colors.py",
		"from colors import get_fore_color\n\ndef test_default():\n    assert get_fore_color() == \"black\"\n")

	result := NewBehaviorCheck().Run(context.Background(), dir, task)
	require.False(t, result.Passed)
	require.Contains(t, result.Notes, "def test_")

	writeRepoFile(t, dir, "test_colors.py",
		"from colors import get_fore_color\n\ndef test_default():\n    assert get_fore_color() == \"black\"\n\ndef test_custom():\n    assert get_fore_color(1)\n")

	result = NewBehaviorCheck().Run(context.Background(), dir, task)
	require.True(t, result.Passed, result.Notes)
}

func TestBehaviorCheckMissingTargetFile(t *testing.T) {
	task := agent.Task{
		ID:         "t",
		TargetFile: "missing.py",
		Criteria:   agent.SuccessCriteria{MustContain: []string{"x"}},
	}
	result := NewBehaviorCheck().Run(context.Background(), t.TempDir(), task)
	require.False(t, result.Passed)
	require.Contains(t, result.Notes, "missing")
}

func TestBehaviorCheckNoCriteria(t *testing.T) {
	result := NewBehaviorCheck().Run(context.Background(), t.TempDir(), agent.Task{ID: "t"})
	require.True(t, result.Passed)
}
