package agent

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/martinemde/codebench/llm"
	"github.com/stretchr/testify/require"
)

func TestConversationAppendAssignsSequence(t *testing.T) {
	conv := NewConversation(DefaultTruncationPolicy())
	conv.Append(NewTaskTurn("change the version string"))
	conv.Append(NewAssistantTurn("reading the file", nil, llm.Usage{}))
	conv.Append(NewSystemTurn("note"))

	history := conv.History()
	require.Len(t, history, 3)
	for i, turn := range history {
		require.Equal(t, i, turn.Seq)
	}
}

func TestConversationSnapshotWithoutTruncation(t *testing.T) {
	conv := NewConversation(TruncationPolicy{KeepRecent: 10})
	conv.Append(NewTaskTurn("task"))
	conv.Append(NewAssistantTurn("a", nil, llm.Usage{}))

	snapshot := conv.Snapshot()
	require.Len(t, snapshot, 2)
	require.Equal(t, TurnTask, snapshot[0].Kind)
}

func TestConversationSnapshotPreservesTaskTurn(t *testing.T) {
	conv := NewConversation(TruncationPolicy{KeepRecent: 5})
	conv.Append(NewTaskTurn("the original task"))
	for i := 0; i < 20; i++ {
		conv.Append(NewAssistantTurn(fmt.Sprintf("step %d", i), nil, llm.Usage{}))
	}

	snapshot := conv.Snapshot()
	require.Len(t, snapshot, 6)
	require.Equal(t, TurnTask, snapshot[0].Kind)
	require.Equal(t, "the original task", snapshot[0].TextContent())
	require.Equal(t, "step 19", snapshot[len(snapshot)-1].TextContent())

	// Stored history is untouched.
	require.Equal(t, 21, conv.Len())
}

func TestConversationSnapshotDoesNotMutateHistory(t *testing.T) {
	conv := NewConversation(TruncationPolicy{KeepRecent: 2})
	conv.Append(NewTaskTurn("task"))
	for i := 0; i < 10; i++ {
		conv.Append(NewAssistantTurn(fmt.Sprintf("step %d", i), nil, llm.Usage{}))
	}

	before := conv.Len()
	_ = conv.Snapshot()
	_ = conv.Snapshot()
	require.Equal(t, before, conv.Len())

	history := conv.History()
	require.Equal(t, "task", history[0].TextContent())
	require.Equal(t, "step 0", history[1].TextContent())
}

func TestConversationSaveAndLoad(t *testing.T) {
	conv := NewConversation(DefaultTruncationPolicy())
	conv.Append(NewTaskTurn("task"))
	conv.Append(NewAssistantTurn("done", nil, llm.Usage{}))

	path := filepath.Join(t.TempDir(), "transcripts", "run.json")
	require.NoError(t, conv.Save(path))

	loaded, err := LoadConversation(path, DefaultTruncationPolicy())
	require.NoError(t, err)
	history := loaded.History()
	require.Len(t, history, 2)
	require.Equal(t, TurnTask, history[0].Kind)
	require.Equal(t, "done", history[1].TextContent())
}
