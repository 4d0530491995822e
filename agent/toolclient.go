package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/martinemde/codebench/llm"
	"github.com/martinemde/codebench/udiff"
)

// ToolResult is the outcome of a single tool invocation, keyed back to the
// model's call ID.
type ToolResult struct {
	CallID    string        `json:"call_id"`
	ToolName  string        `json:"tool_name"`
	Success   bool          `json:"success"`
	Output    string        `json:"output"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// ToolClientConfig controls tool dispatch behavior.
type ToolClientConfig struct {
	// DefaultTimeout bounds a single tool execution. Zero means no limit.
	DefaultTimeout time.Duration
	// Truncation limits tool output size before it enters the conversation.
	Truncation TruncationConfig
}

// DefaultToolClientConfig returns the standard dispatch configuration.
func DefaultToolClientConfig() ToolClientConfig {
	return ToolClientConfig{
		DefaultTimeout: 120 * time.Second,
		Truncation:     DefaultTruncationConfig(),
	}
}

// ToolClient dispatches model-requested tool calls against a registry.
// A lookup miss, a timeout, and an executor error each produce a failed
// ToolResult with a distinct error kind; the client itself only returns
// results, never errors, so a bad call degrades into conversation feedback
// instead of killing the run.
type ToolClient struct {
	registry *ToolRegistry
	env      RepoEnvironment
	config   ToolClientConfig
	events   *EventEmitter
}

// NewToolClient creates a client over registry and env.
func NewToolClient(registry *ToolRegistry, env RepoEnvironment, config ToolClientConfig, events *EventEmitter) *ToolClient {
	return &ToolClient{
		registry: registry,
		env:      env,
		config:   config,
		events:   events,
	}
}

// Invoke executes a single tool call and returns its result. The executor
// runs in its own goroutine; on timeout the context is cancelled and the
// result reports tool_timeout even if the executor is still winding down.
func (c *ToolClient) Invoke(ctx context.Context, call llm.ToolCall) ToolResult {
	start := time.Now()
	c.events.emit(Event{
		Kind:     EventToolStart,
		ToolName: call.Name,
		CallID:   call.ID,
	})

	result := c.invoke(ctx, call)
	result.Duration = time.Since(start)
	result.Output = truncateToolOutput(call.Name, result.Output, c.config.Truncation)

	c.events.emit(Event{
		Kind:     EventToolEnd,
		ToolName: call.Name,
		CallID:   call.ID,
		Message:  result.Output,
		Success:  result.Success,
	})
	return result
}

// InvokeAll executes calls in order, stopping early only on context
// cancellation.
func (c *ToolClient) InvokeAll(ctx context.Context, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		if ctx.Err() != nil {
			results = append(results, ToolResult{
				CallID:    call.ID,
				ToolName:  call.Name,
				Success:   false,
				Output:    "tool call aborted: " + ctx.Err().Error(),
				ErrorKind: ErrToolExecution,
			})
			continue
		}
		results = append(results, c.Invoke(ctx, call))
	}
	return results
}

func (c *ToolClient) invoke(ctx context.Context, call llm.ToolCall) ToolResult {
	tool := c.registry.Get(call.Name)
	if tool == nil {
		return ToolResult{
			CallID:    call.ID,
			ToolName:  call.Name,
			Success:   false,
			Output:    fmt.Sprintf("tool %q is not registered; available tools: %v", call.Name, c.registry.Names()),
			ErrorKind: ErrToolNotFound,
		}
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if c.config.DefaultTimeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, c.config.DefaultTimeout)
		defer cancel()
	}

	type execOutcome struct {
		output string
		err    error
	}
	done := make(chan execOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execOutcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		output, err := tool.Executor(execCtx, call.Arguments, c.env)
		done <- execOutcome{output: output, err: err}
	}()

	select {
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return ToolResult{
				CallID:    call.ID,
				ToolName:  call.Name,
				Success:   false,
				Output:    fmt.Sprintf("tool %q timed out after %s", call.Name, c.config.DefaultTimeout),
				ErrorKind: ErrToolTimeout,
			}
		}
		return ToolResult{
			CallID:    call.ID,
			ToolName:  call.Name,
			Success:   false,
			Output:    "tool call aborted: " + execCtx.Err().Error(),
			ErrorKind: ErrToolExecution,
		}
	case outcome := <-done:
		if outcome.err != nil {
			if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
				return ToolResult{
					CallID:    call.ID,
					ToolName:  call.Name,
					Success:   false,
					Output:    fmt.Sprintf("tool %q timed out after %s", call.Name, c.config.DefaultTimeout),
					ErrorKind: ErrToolTimeout,
				}
			}
			kind := ErrToolExecution
			var conflict *udiff.ConflictError
			if errors.As(outcome.err, &conflict) {
				kind = ErrDiffApplyConflict
			}
			return ToolResult{
				CallID:    call.ID,
				ToolName:  call.Name,
				Success:   false,
				Output:    outcome.err.Error(),
				ErrorKind: kind,
			}
		}
		return ToolResult{
			CallID:   call.ID,
			ToolName: call.Name,
			Success:  true,
			Output:   outcome.output,
		}
	}
}
