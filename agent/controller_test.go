package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/martinemde/codebench/llm"
)

// scriptedProvider replays a fixed sequence of actions. When the script is
// exhausted it repeats the last action.
type scriptedProvider struct {
	actions []Action
	err     error
	calls   int
}

func (p *scriptedProvider) NextAction(ctx context.Context, turns []Turn) (Action, error) {
	p.calls++
	if p.err != nil {
		return Action{}, p.err
	}
	idx := p.calls - 1
	if idx >= len(p.actions) {
		idx = len(p.actions) - 1
	}
	return p.actions[idx], nil
}

func toolCallAction(name, args string) Action {
	return Action{
		Kind: ActionToolCalls,
		ToolCalls: []llm.ToolCall{
			{ID: fmt.Sprintf("call-%s", name), Name: name, Arguments: json.RawMessage(args)},
		},
	}
}

func newTestController(t *testing.T, config ControllerConfig, provider ActionProvider) (*Controller, *Conversation) {
	t.Helper()
	env := testEnv(t)
	registry := NewToolRegistry()
	RegisterCoreTools(registry)
	toolConfig := DefaultToolClientConfig()
	toolConfig.DefaultTimeout = 5 * time.Second
	tools := NewToolClient(registry, env, toolConfig, nil)
	conv := NewConversation(config.Truncation)
	conv.Append(NewTaskTurn("do the work"))
	return NewController(config, provider, tools, env, conv, nil), conv
}

func TestControllerCompletesOnTextAnswer(t *testing.T) {
	provider := &scriptedProvider{actions: []Action{
		toolCallAction("list_files", `{}`),
		{Kind: ActionMessage, Text: "All done: the file was updated."},
	}}
	ctrl, conv := newTestController(t, DefaultControllerConfig(), provider)

	result := ctrl.Run(context.Background())
	require.Equal(t, ReasonCompleted, result.Reason)
	require.True(t, result.Completed)
	require.Equal(t, 2, result.StepsUsed)
	require.Equal(t, "All done: the file was updated.", result.FinalText)

	// task, assistant, tool results, assistant
	require.Equal(t, 4, conv.Len())
}

func TestControllerStepBudgetExhaustion(t *testing.T) {
	config := DefaultControllerConfig()
	config.StepBudget = 3
	config.LoopThreshold = 0

	provider := &scriptedProvider{actions: []Action{toolCallAction("list_files", `{}`)}}
	ctrl, _ := newTestController(t, config, provider)

	result := ctrl.Run(context.Background())
	require.Equal(t, ReasonMaxSteps, result.Reason)
	require.False(t, result.Completed)
	require.Equal(t, 3, result.StepsUsed)
	require.Equal(t, 3, provider.calls)
}

func TestControllerModelRequestError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("provider unreachable")}
	ctrl, _ := newTestController(t, DefaultControllerConfig(), provider)

	result := ctrl.Run(context.Background())
	require.Equal(t, ReasonError, result.Reason)
	require.Equal(t, 1, result.StepsUsed)
	require.ErrorContains(t, result.Err, "provider unreachable")
	require.ErrorContains(t, result.Err, string(ErrModelRequest))
}

func TestControllerMalformedActionClarifications(t *testing.T) {
	config := DefaultControllerConfig()
	config.MaxClarifications = 2

	provider := &scriptedProvider{actions: []Action{{Kind: ActionMessage, Text: "   "}}}
	ctrl, conv := newTestController(t, config, provider)

	result := ctrl.Run(context.Background())
	require.Equal(t, ReasonError, result.Reason)
	require.ErrorIs(t, result.Err, ErrMalformedAction)
	// Two clarification prompts were injected before giving up.
	prompts := 0
	for _, turn := range conv.History() {
		if turn.Kind == TurnSystem {
			prompts++
		}
	}
	require.Equal(t, 2, prompts)
}

func TestControllerClarificationsResetAfterValidAction(t *testing.T) {
	config := DefaultControllerConfig()
	config.MaxClarifications = 2
	config.LoopThreshold = 0

	// Empty responses separated by productive steps never accumulate past
	// the limit.
	provider := &scriptedProvider{actions: []Action{
		{Kind: ActionMessage},
		toolCallAction("list_files", `{}`),
		{Kind: ActionMessage},
		toolCallAction("list_files", `{}`),
		{Kind: ActionMessage},
		{Kind: ActionMessage, Text: "Finished."},
	}}
	ctrl, _ := newTestController(t, config, provider)

	result := ctrl.Run(context.Background())
	require.Equal(t, ReasonCompleted, result.Reason)
	require.Equal(t, "Finished.", result.FinalText)
	require.Equal(t, 6, result.StepsUsed)
}

func TestControllerLoopDetectionInjectsCorrectiveTurn(t *testing.T) {
	config := DefaultControllerConfig()
	config.StepBudget = 10
	config.LoopThreshold = 2

	// list_files never changes the repository, so the same call repeats
	// without progress until the corrective turn fires; afterwards the
	// script has advanced to the final answer.
	actions := []Action{
		toolCallAction("list_files", `{}`),
		toolCallAction("list_files", `{}`),
		toolCallAction("list_files", `{}`),
		toolCallAction("list_files", `{}`),
		{Kind: ActionMessage, Text: "stopping"},
	}
	provider := &scriptedProvider{actions: actions}
	ctrl, conv := newTestController(t, config, provider)

	result := ctrl.Run(context.Background())
	require.Equal(t, ReasonCompleted, result.Reason)

	corrective := 0
	dispatched := 0
	for _, turn := range conv.History() {
		switch turn.Kind {
		case TurnSystem:
			corrective++
		case TurnToolResults:
			dispatched++
		}
	}
	require.Equal(t, 1, corrective)
	// The flagged call was not dispatched.
	require.Equal(t, 3, dispatched)
}

func TestControllerAbort(t *testing.T) {
	provider := &scriptedProvider{actions: []Action{toolCallAction("list_files", `{}`)}}
	ctrl, _ := newTestController(t, DefaultControllerConfig(), provider)

	ctrl.Abort()
	result := ctrl.Run(context.Background())
	require.Equal(t, ReasonAborted, result.Reason)
	require.Equal(t, 0, result.StepsUsed)
	require.Equal(t, 0, provider.calls)
}

func TestControllerContextCancellation(t *testing.T) {
	provider := &scriptedProvider{actions: []Action{toolCallAction("list_files", `{}`)}}
	ctrl, _ := newTestController(t, DefaultControllerConfig(), provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := ctrl.Run(ctx)
	require.Equal(t, ReasonAborted, result.Reason)
}
