package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/martinemde/codebench/llm"
)

// remoteRequest is one line on the subprocess's stdin.
type remoteRequest struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// remoteResponse is one line on the subprocess's stdout, paired by ID.
type remoteResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// listToolsRequest is the reserved tool name a server answers with a JSON
// array of tool definitions.
const listToolsRequest = "list_tools"

// RemoteToolTransport runs tools in an external process over a JSON-line
// pipe. A single reader goroutine owns the process's stdout and dispatches
// responses to waiting calls by ID, so a call abandoned on timeout never
// steals or blocks a later call's response.
type RemoteToolTransport struct {
	mu      sync.Mutex // guards pending, readErr, closed
	writeMu sync.Mutex // serializes request lines on stdin
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pending map[string]chan remoteResponse
	readErr error
	closed  bool
}

// StartRemoteToolTransport launches command with args and wires its pipes.
func StartRemoteToolTransport(command string, args ...string) (*RemoteToolTransport, error) {
	cmd := exec.Command(command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("remote tool transport: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("remote tool transport: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("remote tool transport: start %s: %w", command, err)
	}

	t := newRemoteToolTransport(stdin, stdout)
	t.cmd = cmd
	return t, nil
}

// newRemoteToolTransport wires a transport over raw pipes and starts the
// reader. Used directly in tests; production code goes through
// StartRemoteToolTransport.
func newRemoteToolTransport(stdin io.WriteCloser, stdout io.Reader) *RemoteToolTransport {
	t := &RemoteToolTransport{
		stdin:   stdin,
		pending: make(map[string]chan remoteResponse),
	}
	go t.readLoop(stdout)
	return t
}

// readLoop is the sole reader of the process's stdout. It runs until the
// pipe closes, then fails every outstanding and future call.
func (t *RemoteToolTransport) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		var resp remoteResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			// A malformed line means the framing is broken; stop trusting
			// the stream.
			t.failAll(fmt.Errorf("decode remote response: %w", err))
			return
		}
		t.mu.Lock()
		ch, ok := t.pending[resp.ID]
		if ok {
			delete(t.pending, resp.ID)
		}
		t.mu.Unlock()
		if ok {
			ch <- resp
		}
		// No waiter: response to a call abandoned on timeout; drop it.
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	t.failAll(fmt.Errorf("remote tool process: %w", err))
}

func (t *RemoteToolTransport) failAll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr == nil {
		t.readErr = err
	}
	for id, ch := range t.pending {
		delete(t.pending, id)
		ch <- remoteResponse{ID: id, Success: false, Error: err.Error()}
	}
}

// Call sends one request and blocks until its matching response arrives or
// ctx is done. Calls are safe to issue concurrently.
func (t *RemoteToolTransport) Call(ctx context.Context, tool string, arguments json.RawMessage) (string, error) {
	req := remoteRequest{
		ID:        uuid.New().String(),
		Tool:      tool,
		Arguments: arguments,
	}
	line, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode remote request: %w", err)
	}

	ch := make(chan remoteResponse, 1)
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return "", fmt.Errorf("remote tool transport is closed")
	}
	if t.readErr != nil {
		err := t.readErr
		t.mu.Unlock()
		return "", err
	}
	t.pending[req.ID] = ch
	t.mu.Unlock()

	t.writeMu.Lock()
	_, err = t.stdin.Write(append(line, '\n'))
	t.writeMu.Unlock()
	if err != nil {
		t.abandon(req.ID)
		return "", fmt.Errorf("write remote request: %w", err)
	}

	select {
	case <-ctx.Done():
		t.abandon(req.ID)
		return "", ctx.Err()
	case resp := <-ch:
		if !resp.Success {
			return "", fmt.Errorf("remote tool %s: %s", tool, resp.Error)
		}
		return resp.Output, nil
	}
}

func (t *RemoteToolTransport) abandon(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// ListTools asks the server which tools it offers. The reserved request
// name "list_tools" must answer with a JSON array of tool definitions.
func (t *RemoteToolTransport) ListTools(ctx context.Context) ([]llm.ToolDefinition, error) {
	output, err := t.Call(ctx, listToolsRequest, nil)
	if err != nil {
		return nil, err
	}
	var defs []llm.ToolDefinition
	if err := json.Unmarshal([]byte(output), &defs); err != nil {
		return nil, fmt.Errorf("decode tool list: %w", err)
	}
	return defs, nil
}

// Close shuts down the subprocess.
func (t *RemoteToolTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	_ = t.stdin.Close()
	if t.cmd == nil {
		return nil
	}
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	return t.cmd.Wait()
}

// RegisterRemoteTools registers definitions on reg, each dispatching through
// transport. The repository environment is not exposed to remote tools.
func RegisterRemoteTools(reg *ToolRegistry, transport *RemoteToolTransport, definitions []llm.ToolDefinition) {
	for _, def := range definitions {
		reg.Register(RegisteredTool{
			Definition: def,
			Executor: func(ctx context.Context, arguments json.RawMessage, _ RepoEnvironment) (string, error) {
				return transport.Call(ctx, def.Name, arguments)
			},
		})
	}
}
