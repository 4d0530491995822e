package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/martinemde/codebench/agent"
	"github.com/martinemde/codebench/harness"
	"github.com/martinemde/codebench/llm"
)

var (
	evalRepo        string
	evalTasksFile   string
	evalModel       string
	evalProvider    string
	evalSteps       int
	evalConcurrency int
	evalJSONOut     string
	evalCSVOut      string
	evalWorkDir     string
	evalKeep        bool
	evalCheckOnly   bool
	evalTimeout     time.Duration
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run every task against isolated repository copies and score them",
	Long: `For each task in the tasks file, copies the repository, runs an agent
session against the copy, and evaluates the outcome. Sessions run
concurrently; each has a private work tree.

With --check-only no sessions run and the checks score the repository
as it stands, which is useful for baselining a task set.

Example:
  codebench eval --repo ./target --tasks tasks.yaml --json results.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := agent.LoadTasks(evalTasksFile)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return fmt.Errorf("no tasks in %s", evalTasksFile)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h := harness.New(harness.NewRunner(evalTimeout))

		var runner harness.SessionRunner
		if evalCheckOnly {
			runner = func(ctx context.Context, task agent.Task, repoDir string) (agent.RunResult, error) {
				return agent.RunResult{Reason: agent.ReasonCompleted, Completed: true}, nil
			}
		} else {
			client := llm.NewClientFromEnv()
			runner = newSessionRunner(client, evalModel, evalProvider, evalSteps)
		}

		results, err := h.RunBatch(ctx, tasks, evalRepo, runner, harness.BatchConfig{
			Concurrency: evalConcurrency,
			WorkDir:     evalWorkDir,
			KeepCopies:  evalKeep,
		})
		if err != nil {
			return err
		}

		for _, result := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ", result.TaskID)
			printEvalResult(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), harness.Summary(results))

		if evalJSONOut != "" {
			if err := harness.WriteJSON(evalJSONOut, results); err != nil {
				return err
			}
		}
		if evalCSVOut != "" {
			if err := harness.WriteCSV(evalCSVOut, results); err != nil {
				return err
			}
		}
		return nil
	},
}

// newSessionRunner builds the per-task session execution used by RunBatch.
func newSessionRunner(client *llm.Client, model, provider string, steps int) harness.SessionRunner {
	return func(ctx context.Context, task agent.Task, repoDir string) (agent.RunResult, error) {
		env, err := agent.NewLocalRepoEnvironment(repoDir)
		if err != nil {
			return agent.RunResult{}, err
		}

		registry := agent.NewToolRegistry()
		agent.RegisterCoreTools(registry)

		actionProvider := agent.NewModelProvider(client, registry, agent.ModelProviderConfig{
			Model:    model,
			Provider: provider,
		})

		config := agent.DefaultSessionConfig()
		if steps > 0 {
			config.Controller.StepBudget = steps
		}

		session, err := agent.NewSession(task, actionProvider, registry, env, config)
		if err != nil {
			return agent.RunResult{}, err
		}
		defer session.Close()

		go func() {
			for range session.Events() {
			}
		}()
		return session.Run(ctx)
	}
}

func init() {
	evalCmd.Flags().StringVar(&evalRepo, "repo", "", "path to the template repository (required)")
	evalCmd.Flags().StringVar(&evalTasksFile, "tasks", "tasks.yaml", "path to the tasks YAML file")
	evalCmd.Flags().StringVar(&evalModel, "model", "gpt-4o", "model identifier")
	evalCmd.Flags().StringVar(&evalProvider, "provider", "", "provider name (defaults to the client's default)")
	evalCmd.Flags().IntVar(&evalSteps, "steps", 0, "step budget override per session")
	evalCmd.Flags().IntVar(&evalConcurrency, "concurrency", 4, "maximum concurrent sessions")
	evalCmd.Flags().StringVar(&evalJSONOut, "json", "", "write results to this JSON file")
	evalCmd.Flags().StringVar(&evalCSVOut, "csv", "", "write results to this CSV file")
	evalCmd.Flags().StringVar(&evalWorkDir, "work-dir", "", "directory for per-task repository copies")
	evalCmd.Flags().BoolVar(&evalKeep, "keep", false, "keep per-task repository copies after evaluation")
	evalCmd.Flags().BoolVar(&evalCheckOnly, "check-only", false, "skip agent sessions and only run the checks")
	evalCmd.Flags().DurationVar(&evalTimeout, "check-timeout", 0, "per-check command timeout")
	_ = evalCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(evalCmd)
}
