package agent

import (
	"context"
	"fmt"

	"github.com/martinemde/codebench/llm"
)

// ActionKind identifies what the model decided to do next.
type ActionKind string

const (
	// ActionToolCalls requests one or more tool invocations.
	ActionToolCalls ActionKind = "tool_calls"
	// ActionMessage is a plain text response with no tool calls.
	ActionMessage ActionKind = "message"
)

// Action is a single decision produced by an ActionProvider.
type Action struct {
	Kind      ActionKind
	Text      string
	ToolCalls []llm.ToolCall
	Usage     llm.Usage
}

// ActionProvider produces the next action given the conversation so far.
// Implementations other than ModelProvider exist mainly for testing.
type ActionProvider interface {
	NextAction(ctx context.Context, turns []Turn) (Action, error)
}

// ModelProvider asks an LLM for the next action.
type ModelProvider struct {
	client       *llm.Client
	model        string
	provider     string
	systemPrompt string
	tools        []llm.ToolDefinition
	maxTokens    int
}

// ModelProviderConfig configures a ModelProvider.
type ModelProviderConfig struct {
	Model        string
	Provider     string
	SystemPrompt string
	MaxTokens    int
}

// NewModelProvider creates a provider over client using the registry's
// current tool definitions.
func NewModelProvider(client *llm.Client, registry *ToolRegistry, config ModelProviderConfig) *ModelProvider {
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	return &ModelProvider{
		client:       client,
		model:        config.Model,
		provider:     config.Provider,
		systemPrompt: config.SystemPrompt,
		tools:        registry.Definitions(),
		maxTokens:    maxTokens,
	}
}

// NextAction sends the conversation to the model and classifies the reply.
func (p *ModelProvider) NextAction(ctx context.Context, turns []Turn) (Action, error) {
	messages := []llm.Message{llm.SystemMessage(p.systemPrompt)}
	messages = append(messages, ConvertTurnsToMessages(turns)...)

	maxTokens := p.maxTokens
	request := llm.Request{
		Model:     p.model,
		Provider:  p.provider,
		Messages:  messages,
		ToolDefs:  p.tools,
		MaxTokens: &maxTokens,
	}
	if len(p.tools) > 0 {
		request.ToolChoice = &llm.ToolChoice{Mode: "auto"}
	}

	response, err := p.client.Complete(ctx, request)
	if err != nil {
		return Action{}, fmt.Errorf("model request: %w", err)
	}

	action := Action{
		Kind:  ActionMessage,
		Text:  response.Text(),
		Usage: response.Usage,
	}
	if calls := response.ToolCalls(); len(calls) > 0 {
		action.Kind = ActionToolCalls
		action.ToolCalls = calls
	}
	return action, nil
}
