package agent

import (
	"time"

	"github.com/martinemde/codebench/llm"
)

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnTask        TurnKind = "task"
	TurnAssistant   TurnKind = "assistant"
	TurnToolResults TurnKind = "tool_results"
	TurnSystem      TurnKind = "system"
)

// Turn is a single entry in the conversation history. Seq is assigned by
// the Conversation on append and is strictly monotonic.
type Turn struct {
	Kind        TurnKind         `json:"kind"`
	Seq         int              `json:"seq"`
	Timestamp   time.Time        `json:"timestamp"`
	Task        *TaskTurn        `json:"task,omitempty"`
	Assistant   *AssistantTurn   `json:"assistant,omitempty"`
	ToolResults *ToolResultsTurn `json:"tool_results,omitempty"`
	System      *SystemTurn      `json:"system,omitempty"`
}

// TaskTurn holds the task-issuer's input.
type TaskTurn struct {
	Content string `json:"content"`
}

// AssistantTurn holds the model's response.
type AssistantTurn struct {
	Content   string         `json:"content"`
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`
	Usage     llm.Usage      `json:"usage"`
}

// ToolResultsTurn holds tool execution results.
type ToolResultsTurn struct {
	Results []ToolResult `json:"results"`
}

// SystemTurn holds a system or corrective message.
type SystemTurn struct {
	Content string `json:"content"`
}

// NewTaskTurn creates a Turn wrapping the task description.
func NewTaskTurn(content string) Turn {
	return Turn{
		Kind:      TurnTask,
		Timestamp: time.Now(),
		Task:      &TaskTurn{Content: content},
	}
}

// NewAssistantTurn creates a Turn wrapping a model response.
func NewAssistantTurn(content string, toolCalls []llm.ToolCall, usage llm.Usage) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantTurn{Content: content, ToolCalls: toolCalls, Usage: usage},
	}
}

// NewToolResultsTurn creates a Turn wrapping tool results.
func NewToolResultsTurn(results []ToolResult) Turn {
	return Turn{
		Kind:        TurnToolResults,
		Timestamp:   time.Now(),
		ToolResults: &ToolResultsTurn{Results: results},
	}
}

// NewSystemTurn creates a Turn wrapping a system message.
func NewSystemTurn(content string) Turn {
	return Turn{
		Kind:      TurnSystem,
		Timestamp: time.Now(),
		System:    &SystemTurn{Content: content},
	}
}

// TextContent returns the text content of a turn regardless of its kind.
func (t Turn) TextContent() string {
	switch t.Kind {
	case TurnTask:
		if t.Task != nil {
			return t.Task.Content
		}
	case TurnAssistant:
		if t.Assistant != nil {
			return t.Assistant.Content
		}
	case TurnSystem:
		if t.System != nil {
			return t.System.Content
		}
	}
	return ""
}

// ConvertTurnsToMessages converts a turn sequence into model messages.
func ConvertTurnsToMessages(turns []Turn) []llm.Message {
	var messages []llm.Message
	for _, turn := range turns {
		switch turn.Kind {
		case TurnTask:
			if turn.Task != nil {
				messages = append(messages, llm.UserMessage(turn.Task.Content))
			}
		case TurnAssistant:
			if turn.Assistant != nil {
				msg := llm.AssistantMessage(turn.Assistant.Content)
				for _, tc := range turn.Assistant.ToolCalls {
					msg.Content = append(msg.Content, llm.ToolCallPart(tc.ID, tc.Name, tc.Arguments))
				}
				messages = append(messages, msg)
			}
		case TurnToolResults:
			if turn.ToolResults != nil {
				for _, result := range turn.ToolResults.Results {
					messages = append(messages,
						llm.ToolResultMessage(result.CallID, result.Output, !result.Success))
				}
			}
		case TurnSystem:
			if turn.System != nil {
				messages = append(messages, llm.SystemMessage(turn.System.Content))
			}
		}
	}
	return messages
}
