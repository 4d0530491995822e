// Package llm provides a provider-agnostic model client used by the agent
// loop. It wraps gollm behind a small ProviderAdapter interface so concrete
// backends are swappable implementations of a single blocking operation:
// given a conversation, produce the next response.
//
// The package owns the error taxonomy for the model channel (retryable vs
// terminal) and applies a retry policy with exponential backoff before an
// error is surfaced to the caller.
package llm
