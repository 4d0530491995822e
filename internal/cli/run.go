package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/martinemde/codebench/agent"
	"github.com/martinemde/codebench/harness"
	"github.com/martinemde/codebench/llm"
)

var (
	runRepo       string
	runTasksFile  string
	runTaskID     string
	runModel      string
	runProvider   string
	runSteps      int
	runTranscript string
	runToolServer string
	runTimeout    time.Duration
	runEvaluate   bool
	runVerbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one agent session against a repository",
	Long: `Loads a task from the tasks file, runs the agent loop against the
repository until completion or step budget exhaustion, then optionally
evaluates the result.

Example:
  codebench run --repo ./target --tasks tasks.yaml --task version-bump --model gpt-4o`,
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := selectTask(runTasksFile, runTaskID)
		if err != nil {
			return err
		}

		env, err := agent.NewLocalRepoEnvironment(runRepo)
		if err != nil {
			return err
		}

		registry := agent.NewToolRegistry()
		agent.RegisterCoreTools(registry)

		if runToolServer != "" {
			transport, err := startToolServer(cmd.Context(), registry, runToolServer)
			if err != nil {
				return err
			}
			defer transport.Close()
		}

		client := llm.NewClientFromEnv()
		provider := agent.NewModelProvider(client, registry, agent.ModelProviderConfig{
			Model:    runModel,
			Provider: runProvider,
		})

		config := agent.DefaultSessionConfig()
		if runSteps > 0 {
			config.Controller.StepBudget = runSteps
		}
		if runTimeout > 0 {
			config.ToolClient.DefaultTimeout = runTimeout
		}
		config.TranscriptPath = runTranscript

		session, err := agent.NewSession(task, provider, registry, env, config)
		if err != nil {
			return err
		}
		defer session.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for event := range session.Events() {
				printEvent(cmd, event)
			}
		}()

		result, err := session.Run(ctx)
		session.Close()
		<-done
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "session %s: %s after %d step(s)\n", task.ID, result.Reason, result.StepsUsed)
		if result.FinalText != "" {
			fmt.Fprintln(cmd.OutOrStdout(), result.FinalText)
		}

		if runEvaluate {
			h := harness.New(harness.NewRunner(0))
			eval := h.Evaluate(ctx, env.Root(), task, result.StepsUsed)
			printEvalResult(cmd, eval)
		}
		return nil
	},
}

// startToolServer launches the external tool process named by cmdline,
// asks it which tools it offers, and registers them alongside the core
// tools.
func startToolServer(ctx context.Context, registry *agent.ToolRegistry, cmdline string) (*agent.RemoteToolTransport, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("--tool-server is empty")
	}
	transport, err := agent.StartRemoteToolTransport(fields[0], fields[1:]...)
	if err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	definitions, err := transport.ListTools(listCtx)
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("tool server %s: %w", fields[0], err)
	}
	agent.RegisterRemoteTools(registry, transport, definitions)
	return transport, nil
}

func selectTask(path, id string) (agent.Task, error) {
	tasks, err := agent.LoadTasks(path)
	if err != nil {
		return agent.Task{}, err
	}
	if len(tasks) == 0 {
		return agent.Task{}, fmt.Errorf("no tasks in %s", path)
	}
	if id == "" {
		if len(tasks) == 1 {
			return tasks[0], nil
		}
		return agent.Task{}, fmt.Errorf("%s holds %d tasks; pick one with --task", path, len(tasks))
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return agent.Task{}, fmt.Errorf("task %q not found in %s", id, path)
}

func printEvent(cmd *cobra.Command, event agent.Event) {
	switch event.Kind {
	case agent.EventToolEnd:
		status := "ok"
		if !event.Success {
			status = "failed"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[tool] %s %s\n", event.ToolName, status)
	case agent.EventLoopDetected, agent.EventBudgetWarning, agent.EventWarning, agent.EventError:
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", event.Kind, event.Message)
	default:
		if runVerbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", event.Kind, event.Message)
		}
	}
}

func printEvalResult(cmd *cobra.Command, result harness.EvalResult) {
	verdict := func(passed bool) string {
		if passed {
			return "pass"
		}
		return "FAIL"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "compile: %s  static: %s  tests: %s  behavior: %s  overall: %s\n",
		verdict(result.Compile), verdict(result.Static), verdict(result.Tests),
		verdict(result.Behavior), verdict(result.Overall))
	for _, note := range result.Notes {
		fmt.Fprintf(out, "  %s\n", note)
	}
}

func init() {
	runCmd.Flags().StringVar(&runRepo, "repo", "", "path to the target repository (required)")
	runCmd.Flags().StringVar(&runTasksFile, "tasks", "tasks.yaml", "path to the tasks YAML file")
	runCmd.Flags().StringVar(&runTaskID, "task", "", "task id to run (required when the file holds several)")
	runCmd.Flags().StringVar(&runModel, "model", "gpt-4o", "model identifier")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "provider name (defaults to the client's default)")
	runCmd.Flags().IntVar(&runSteps, "steps", 0, "step budget override")
	runCmd.Flags().StringVar(&runTranscript, "transcript", "", "write the conversation transcript to this path")
	runCmd.Flags().StringVar(&runToolServer, "tool-server", "", "command to launch an external tool server; its tools register alongside the core tools")
	runCmd.Flags().DurationVar(&runTimeout, "tool-timeout", 0, "per-tool execution timeout override")
	runCmd.Flags().BoolVar(&runEvaluate, "eval", false, "evaluate the repository after the session")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print every session event")
	_ = runCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(runCmd)
}
