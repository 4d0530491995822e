package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SessionState represents the lifecycle state of a session.
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateRunning SessionState = "running"
	StateClosed  SessionState = "closed"
)

// SessionConfig holds everything a session needs beyond its task and
// environment. The zero value is not usable; start from
// DefaultSessionConfig.
type SessionConfig struct {
	Controller ControllerConfig `json:"controller"`
	ToolClient ToolClientConfig `json:"tool_client"`
	// TranscriptPath, when set, receives the full conversation as JSON
	// after the run ends.
	TranscriptPath string `json:"transcript_path,omitempty"`
	EventBuffer    int    `json:"event_buffer,omitempty"`
}

// DefaultSessionConfig returns the standard session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Controller:  DefaultControllerConfig(),
		ToolClient:  DefaultToolClientConfig(),
		EventBuffer: 256,
	}
}

// DefaultSystemPrompt is the instruction block sent before the task when no
// override is configured.
const DefaultSystemPrompt = `You are a software engineering agent working inside a single repository.

Work on the task described in the next message. Use the provided tools to
inspect and modify files; prefer apply_unified_diff for targeted edits and
write_file only for new files. When the task is done, reply with a short
summary of the changes instead of calling more tools. Every step costs
budget, so do not re-read files you have already seen or re-run commands
whose inputs have not changed.`

// Session owns one conversation, one step budget, and one reference to the
// target repository. Nothing persists past Close except repository
// mutations and the optional transcript.
type Session struct {
	id         string
	task       Task
	env        RepoEnvironment
	conv       *Conversation
	controller *Controller
	emitter    *EventEmitter
	config     SessionConfig

	mu    sync.Mutex
	state SessionState
}

// NewSession creates a session for task. The provider decides actions; the
// registry supplies the tools those actions may call.
func NewSession(task Task, provider ActionProvider, registry *ToolRegistry, env RepoEnvironment, config SessionConfig) (*Session, error) {
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	id := uuid.New().String()
	emitter := NewEventEmitter(id, config.EventBuffer)
	conv := NewConversation(config.Controller.Truncation)
	tools := NewToolClient(registry, env, config.ToolClient, emitter)

	conv.Append(NewTaskTurn(taskPrompt(task)))

	s := &Session{
		id:         id,
		task:       task,
		env:        env,
		conv:       conv,
		controller: NewController(config.Controller, provider, tools, env, conv, emitter),
		emitter:    emitter,
		config:     config,
		state:      StateIdle,
	}
	return s, nil
}

// taskPrompt renders the task description plus its target file so the model
// does not have to guess where the change belongs.
func taskPrompt(task Task) string {
	var sb strings.Builder
	sb.WriteString(task.Description)
	if task.TargetFile != "" {
		fmt.Fprintf(&sb, "\n\nThe change belongs in %s.", task.TargetFile)
	}
	return sb.String()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Task returns the task this session was created for.
func (s *Session) Task() Task { return s.task }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the event channel for the host application.
func (s *Session) Events() <-chan Event {
	return s.emitter.Events()
}

// History returns a copy of the full conversation history.
func (s *Session) History() []Turn {
	return s.conv.History()
}

// Abort requests the controller stop at the next loop iteration.
func (s *Session) Abort() {
	s.controller.Abort()
}

// Run executes the agent loop to termination. A session runs at most once.
func (s *Session) Run(ctx context.Context) (RunResult, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return RunResult{}, fmt.Errorf("session is %s, expected idle", state)
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.emitter.emit(Event{Kind: EventSessionStart, Message: s.task.ID})
	result := s.controller.Run(ctx)
	s.emitter.emit(Event{Kind: EventSessionEnd, Message: string(result.Reason), Step: result.StepsUsed})

	if s.config.TranscriptPath != "" {
		if err := s.conv.Save(s.config.TranscriptPath); err != nil {
			s.emitter.emit(Event{Kind: EventWarning, Message: "transcript save failed: " + err.Error()})
		}
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	return result, result.Err
}

// Close releases the event channel. Safe to call after Run.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.emitter.Close()
}
