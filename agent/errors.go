package agent

import "errors"

// ErrorKind classifies failures that surface inside a session. Tool-level
// kinds travel back into the conversation as tool result turns so the model
// can attempt recovery; the session-level kinds terminate the loop.
type ErrorKind string

const (
	ErrToolNotFound       ErrorKind = "tool_not_found"
	ErrToolTimeout        ErrorKind = "tool_timeout"
	ErrToolExecution      ErrorKind = "tool_execution_error"
	ErrDiffApplyConflict  ErrorKind = "diff_apply_conflict"
	ErrStepBudgetExceeded ErrorKind = "step_budget_exceeded"
	ErrModelRequest       ErrorKind = "model_request_error"
)

// ErrAborted is returned when an external abort signal stops the loop.
var ErrAborted = errors.New("session aborted")

// ErrMalformedAction marks a model action the controller could not
// interpret (empty tool name, invalid argument JSON).
var ErrMalformedAction = errors.New("malformed model action")
