package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// TerminationReason says why a session run stopped.
type TerminationReason string

const (
	ReasonCompleted TerminationReason = "completed"
	ReasonMaxSteps  TerminationReason = "max_steps"
	ReasonError     TerminationReason = "error"
	ReasonAborted   TerminationReason = "aborted"
)

// ControllerConfig holds the loop parameters.
type ControllerConfig struct {
	// StepBudget caps the number of model requests in a run. Every request
	// consumes one unit whether or not it leads to a tool dispatch.
	StepBudget int `json:"step_budget"`
	// MaxClarifications bounds how many times a malformed action (no text,
	// no tool calls) is answered with a retry prompt before the run fails.
	MaxClarifications int `json:"max_clarifications"`
	// LoopThreshold is how many consecutive identical no-progress tool call
	// batches are tolerated before a corrective turn is injected. 0 disables
	// loop detection.
	LoopThreshold int `json:"loop_threshold"`
	// Truncation bounds the conversation view sent to the model.
	Truncation TruncationPolicy `json:"truncation"`
}

// DefaultControllerConfig returns the standard loop parameters.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		StepBudget:        30,
		MaxClarifications: 2,
		LoopThreshold:     3,
		Truncation:        DefaultTruncationPolicy(),
	}
}

// RunResult summarizes a finished session run.
type RunResult struct {
	Reason    TerminationReason `json:"reason"`
	StepsUsed int               `json:"steps_used"`
	FinalText string            `json:"final_text,omitempty"`
	Completed bool              `json:"completed"`
	Err       error             `json:"-"`
}

// Controller drives the agent loop: request an action, dispatch it, repeat
// until the model finishes or the step budget runs out.
type Controller struct {
	config   ControllerConfig
	provider ActionProvider
	tools    *ToolClient
	env      RepoEnvironment
	conv     *Conversation
	events   *EventEmitter
	tracker  *repeatTracker
	aborted  atomic.Bool
}

// NewController creates a controller over an already seeded conversation.
func NewController(config ControllerConfig, provider ActionProvider, tools *ToolClient, env RepoEnvironment, conv *Conversation, events *EventEmitter) *Controller {
	return &Controller{
		config:   config,
		provider: provider,
		tools:    tools,
		env:      env,
		conv:     conv,
		events:   events,
		tracker:  newRepeatTracker(config.LoopThreshold),
	}
}

// Abort requests termination. The controller honors it at the top of the
// next loop iteration; in-flight tool calls run to completion or timeout.
func (c *Controller) Abort() {
	c.aborted.Store(true)
}

// Run executes the loop until termination. The returned result always
// reflects a terminal state; Err is set only for ReasonError.
func (c *Controller) Run(ctx context.Context) RunResult {
	steps := 0
	clarifications := 0

	for {
		if c.aborted.Load() {
			return RunResult{Reason: ReasonAborted, StepsUsed: steps}
		}
		select {
		case <-ctx.Done():
			return RunResult{Reason: ReasonAborted, StepsUsed: steps}
		default:
		}

		if steps >= c.config.StepBudget {
			c.conv.Append(NewSystemTurn(fmt.Sprintf("Step budget of %d exhausted; the session is ending.", c.config.StepBudget)))
			c.events.emit(Event{Kind: EventBudgetWarning, Step: steps, Message: "step budget exhausted"})
			return RunResult{Reason: ReasonMaxSteps, StepsUsed: steps}
		}

		steps++
		c.events.emit(Event{Kind: EventStepStart, Step: steps})

		action, err := c.requestAction(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return RunResult{Reason: ReasonAborted, StepsUsed: steps}
			}
			c.events.emit(Event{Kind: EventError, Step: steps, Message: err.Error()})
			return RunResult{
				Reason:    ReasonError,
				StepsUsed: steps,
				Err:       fmt.Errorf("%s: %w", ErrModelRequest, err),
			}
		}

		c.conv.Append(NewAssistantTurn(action.Text, action.ToolCalls, action.Usage))
		c.events.emit(Event{Kind: EventModelResponse, Step: steps, Message: action.Text})

		if action.Kind != ActionToolCalls {
			if strings.TrimSpace(action.Text) == "" {
				clarifications++
				if clarifications > c.config.MaxClarifications {
					return RunResult{
						Reason:    ReasonError,
						StepsUsed: steps,
						Err:       fmt.Errorf("%s: %w after %d clarification attempts", ErrModelRequest, ErrMalformedAction, clarifications),
					}
				}
				c.conv.Append(NewSystemTurn("The previous response contained neither tool calls nor text. Call a tool to continue working, or reply with a summary of the completed work."))
				continue
			}
			return RunResult{
				Reason:    ReasonCompleted,
				StepsUsed: steps,
				FinalText: action.Text,
				Completed: true,
			}
		}

		clarifications = 0

		fingerprint, fpErr := c.env.Fingerprint()
		if fpErr == nil && c.tracker.observe(action.ToolCalls, fingerprint) {
			c.tracker.reset()
			warning := fmt.Sprintf("The same tool call has been repeated %d times without changing the repository. Take a different approach, or summarize what has been accomplished.", c.config.LoopThreshold+1)
			c.conv.Append(NewSystemTurn(warning))
			c.events.emit(Event{Kind: EventLoopDetected, Step: steps, Message: warning})
			continue
		}

		results := c.tools.InvokeAll(ctx, action.ToolCalls)
		c.conv.Append(NewToolResultsTurn(results))
	}
}

func (c *Controller) requestAction(ctx context.Context) (Action, error) {
	c.events.emit(Event{Kind: EventModelRequest})
	return c.provider.NextAction(ctx, c.conv.Snapshot())
}
