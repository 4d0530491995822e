package agent

import (
	"encoding/json"
	"testing"

	"github.com/martinemde/codebench/llm"
	"github.com/stretchr/testify/require"
)

func callNamed(name, args string) llm.ToolCall {
	return llm.ToolCall{ID: "c1", Name: name, Arguments: json.RawMessage(args)}
}

func TestRepeatTrackerFlagsIdenticalNoProgressCalls(t *testing.T) {
	tracker := newRepeatTracker(3)
	calls := []llm.ToolCall{callNamed("run_command", `{"command":"pytest"}`)}

	require.False(t, tracker.observe(calls, "fp1"))
	require.False(t, tracker.observe(calls, "fp1"))
	require.False(t, tracker.observe(calls, "fp1"))
	require.True(t, tracker.observe(calls, "fp1"))
}

func TestRepeatTrackerResetsOnRepositoryChange(t *testing.T) {
	tracker := newRepeatTracker(2)
	calls := []llm.ToolCall{callNamed("run_command", `{"command":"pytest"}`)}

	require.False(t, tracker.observe(calls, "fp1"))
	require.False(t, tracker.observe(calls, "fp1"))
	// An edit landed between runs; rerunning the same command is progress.
	require.False(t, tracker.observe(calls, "fp2"))
	require.False(t, tracker.observe(calls, "fp2"))
	require.True(t, tracker.observe(calls, "fp2"))
}

func TestRepeatTrackerResetsOnDifferentCall(t *testing.T) {
	tracker := newRepeatTracker(2)
	pytest := []llm.ToolCall{callNamed("run_command", `{"command":"pytest"}`)}
	read := []llm.ToolCall{callNamed("read_file", `{"path":"main.py"}`)}

	require.False(t, tracker.observe(pytest, "fp1"))
	require.False(t, tracker.observe(pytest, "fp1"))
	require.False(t, tracker.observe(read, "fp1"))
	require.False(t, tracker.observe(pytest, "fp1"))
}

func TestRepeatTrackerDistinguishesArguments(t *testing.T) {
	tracker := newRepeatTracker(1)
	a := []llm.ToolCall{callNamed("read_file", `{"path":"a.py"}`)}
	b := []llm.ToolCall{callNamed("read_file", `{"path":"b.py"}`)}

	require.False(t, tracker.observe(a, "fp1"))
	require.False(t, tracker.observe(b, "fp1"))
	require.False(t, tracker.observe(a, "fp1"))
}

func TestRepeatTrackerDisabled(t *testing.T) {
	tracker := newRepeatTracker(0)
	calls := []llm.ToolCall{callNamed("run_command", `{"command":"pytest"}`)}
	for i := 0; i < 10; i++ {
		require.False(t, tracker.observe(calls, "fp1"))
	}
}

func TestRepeatTrackerResetClearsState(t *testing.T) {
	tracker := newRepeatTracker(1)
	calls := []llm.ToolCall{callNamed("run_command", `{"command":"pytest"}`)}

	require.False(t, tracker.observe(calls, "fp1"))
	require.True(t, tracker.observe(calls, "fp1"))
	tracker.reset()
	require.False(t, tracker.observe(calls, "fp1"))
}
