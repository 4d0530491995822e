package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TruncationPolicy bounds the view returned by Conversation.Snapshot.
// KeepRecent is the number of most recent turns retained alongside the
// original task turn; 0 keeps everything.
type TruncationPolicy struct {
	KeepRecent int `json:"keep_recent"`
}

// DefaultTruncationPolicy returns the default context window policy.
func DefaultTruncationPolicy() TruncationPolicy {
	return TruncationPolicy{KeepRecent: 40}
}

// Conversation holds the ordered, append-only turn history for a session.
// Stored turns are never mutated or reordered; truncation only affects the
// view produced by Snapshot.
type Conversation struct {
	mu      sync.Mutex
	turns   []Turn
	nextSeq int
	policy  TruncationPolicy
}

// NewConversation creates an empty Conversation with the given policy.
func NewConversation(policy TruncationPolicy) *Conversation {
	return &Conversation{policy: policy}
}

// Append adds a turn to the history, assigning its sequence index.
// It never fails.
func (c *Conversation) Append(turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	turn.Seq = c.nextSeq
	c.nextSeq++
	c.turns = append(c.turns, turn)
}

// Len returns the number of stored turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// History returns a copy of the full stored history.
func (c *Conversation) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := make([]Turn, len(c.turns))
	copy(h, c.turns)
	return h
}

// Snapshot returns the ordered turns currently within the context policy:
// the first task turn is always included, followed by the KeepRecent most
// recent turns. Stored history is not modified.
func (c *Conversation) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	keep := c.policy.KeepRecent
	if keep <= 0 || len(c.turns) <= keep {
		h := make([]Turn, len(c.turns))
		copy(h, c.turns)
		return h
	}

	cut := len(c.turns) - keep

	var view []Turn
	// Preserve the original task turn (and any system turns preceding it)
	// even when the window has moved past them.
	for _, t := range c.turns[:cut] {
		if t.Kind == TurnTask || t.Kind == TurnSystem {
			view = append(view, t)
			if t.Kind == TurnTask {
				break
			}
		}
	}
	view = append(view, c.turns[cut:]...)
	return view
}

// Serialize returns the full history as JSON for transcript persistence.
func (c *Conversation) Serialize() ([]byte, error) {
	return json.MarshalIndent(c.History(), "", "  ")
}

// Save writes the transcript to a file, creating parent directories.
func (c *Conversation) Save(path string) error {
	data, err := c.Serialize()
	if err != nil {
		return fmt.Errorf("serialize conversation: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create transcript directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadConversation reads a transcript written by Save. The loaded turns are
// re-appended so sequence indexes stay consistent with the policy.
func LoadConversation(path string, policy TruncationPolicy) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}

	c := NewConversation(policy)
	for _, t := range turns {
		c.Append(t)
	}
	return c, nil
}
