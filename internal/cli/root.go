package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "codebench",
	Short: "Run and evaluate autonomous coding sessions against a repository",
	Long: `Codebench pairs a language model with repository tools, runs a
bounded agent loop against a task, and scores the resulting repository
state with compile, lint, test, and behavior checks.`,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("codebench version {{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
