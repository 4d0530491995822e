package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/martinemde/codebench/llm"
)

// toolCallSignature computes a deterministic signature for a tool call
// (name + hash of arguments).
func toolCallSignature(name string, arguments json.RawMessage) string {
	h := sha256.Sum256(arguments)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// repeatTracker notices when the model keeps issuing the same tool calls
// while the repository content stays unchanged. Repeats that do change the
// repository reset the count: rerunning a test after an edit is progress,
// rerunning it on an identical tree is not.
type repeatTracker struct {
	threshold   int
	lastSig     string
	lastPrint   string
	consecutive int
}

// newRepeatTracker creates a tracker that flags after threshold identical,
// no-progress observations. A threshold of 0 or less disables tracking.
func newRepeatTracker(threshold int) *repeatTracker {
	return &repeatTracker{threshold: threshold}
}

// observe records one batch of tool calls against the current repository
// fingerprint and reports whether the loop threshold has been reached.
func (t *repeatTracker) observe(calls []llm.ToolCall, fingerprint string) bool {
	if t.threshold <= 0 || len(calls) == 0 {
		return false
	}

	sig := ""
	for _, call := range calls {
		sig += toolCallSignature(call.Name, call.Arguments) + ";"
	}

	if sig == t.lastSig && fingerprint == t.lastPrint {
		t.consecutive++
	} else {
		t.consecutive = 1
	}
	t.lastSig = sig
	t.lastPrint = fingerprint

	return t.consecutive > t.threshold
}

// reset clears the tracked state, used after a corrective intervention so
// the same warning does not fire again immediately.
func (t *repeatTracker) reset() {
	t.lastSig = ""
	t.lastPrint = ""
	t.consecutive = 0
}
