// Package agent implements a bounded autonomous coding loop.
//
// A Session pairs a language model with a set of repository tools and runs
// a strictly sequential loop: request the next action, dispatch any tool
// calls, append results to the conversation, repeat. Every model request
// consumes one unit of a fixed step budget, so a session always terminates
// within a known number of iterations.
//
// The package is organized around these concepts:
//
//   - Session: owns one conversation, one step budget, and one target
//     repository; runs at most once.
//   - Controller: the state machine driving request, dispatch, and
//     termination, including repeat detection for unproductive loops.
//   - ActionProvider: the source of next actions; ModelProvider backs it
//     with an llm.Client, tests back it with scripted fakes.
//   - ToolClient and ToolRegistry: name-based dispatch of tool calls with
//     per-call timeouts and typed error kinds.
//   - RepoEnvironment: filesystem and process access scoped to one
//     repository root.
//
// # Quick Start
//
//	env, _ := agent.NewLocalRepoEnvironment("/path/to/repo")
//	registry := agent.NewToolRegistry()
//	agent.RegisterCoreTools(registry)
//	provider := agent.NewModelProvider(client, registry, agent.ModelProviderConfig{Model: "gpt-4o"})
//	session, _ := agent.NewSession(task, provider, registry, env, agent.DefaultSessionConfig())
//	defer session.Close()
//
//	result, err := session.Run(ctx)
package agent
