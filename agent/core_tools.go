package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/martinemde/codebench/llm"
	"github.com/martinemde/codebench/udiff"
)

// RegisterCoreTools registers the built-in workspace tools on reg.
func RegisterCoreTools(reg *ToolRegistry) {
	registerListFiles(reg)
	registerReadFile(reg)
	registerWriteFile(reg)
	registerApplyUnifiedDiff(reg)
	registerRunCommand(reg)
	registerRunGit(reg)
}

func registerListFiles(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "list_files",
			Description: "List files and directories under a path in the repository. Paths are relative to the repository root.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Directory to list, relative to the repository root. Default: the root.",
					},
					"recursive": map[string]interface{}{
						"type":        "boolean",
						"description": "Recurse into subdirectories. Default: false.",
					},
				},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage, env RepoEnvironment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			path, _ := GetStringArg(args, "path")
			recursive, _ := GetBoolArg(args, "recursive")

			var names []string
			if recursive {
				names, err = listRecursive(env, path)
			} else {
				var entries []DirEntry
				entries, err = env.ListDirectory(path)
				for _, entry := range entries {
					name := entry.Name
					if entry.IsDir {
						name += "/"
					}
					names = append(names, name)
				}
			}
			if err != nil {
				return "", err
			}
			if len(names) == 0 {
				return "Directory is empty.", nil
			}
			sort.Strings(names)
			return strings.Join(names, "\n"), nil
		},
	})
}

func listRecursive(env RepoEnvironment, path string) ([]string, error) {
	entries, err := env.ListDirectory(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		full := entry.Name
		if path != "" && path != "." {
			full = filepath.ToSlash(filepath.Join(path, entry.Name))
		}
		if entry.IsDir {
			names = append(names, full+"/")
			sub, err := listRecursive(env, full)
			if err != nil {
				return nil, err
			}
			names = append(names, sub...)
		} else {
			names = append(names, full)
		}
	}
	return names, nil
}

func registerReadFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "read_file",
			Description: "Read a file from the repository. Returns the full file content.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "File path relative to the repository root.",
					},
				},
				"required": []string{"path"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage, env RepoEnvironment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			return env.ReadFile(path)
		},
	})
}

func registerWriteFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name: "write_file",
			Description: "Write content to a file, creating parent directories as needed. " +
				"Refuses to overwrite an existing file unless overwrite is true.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "File path relative to the repository root.",
					},
					"content": map[string]interface{}{
						"type":        "string",
						"description": "The full file content to write.",
					},
					"overwrite": map[string]interface{}{
						"type":        "boolean",
						"description": "Allow replacing an existing file. Default: false.",
					},
				},
				"required": []string{"path", "content"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage, env RepoEnvironment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			content, ok := GetStringArg(args, "content")
			if !ok {
				return "", fmt.Errorf("content is required")
			}
			overwrite, _ := GetBoolArg(args, "overwrite")

			if env.FileExists(path) {
				if !overwrite {
					return "", fmt.Errorf("file %s already exists; set overwrite=true to replace it, or use apply_unified_diff for targeted edits", path)
				}
				existing, err := env.ReadFile(path)
				if err == nil && len(existing) > 1000 && len(content) < len(existing)/10 {
					return "", fmt.Errorf("refusing to shrink %s from %d to %d bytes; if the deletion is intentional, apply it as a diff", path, len(existing), len(content))
				}
			}

			if err := env.WriteFile(path, content); err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
		},
	})
}

func registerApplyUnifiedDiff(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name: "apply_unified_diff",
			Description: "Apply a unified diff to a file in the repository. Hunk context must match the " +
				"current file content exactly; on any mismatch nothing is written and the first " +
				"conflicting line is reported.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "File to patch, relative to the repository root.",
					},
					"diff": map[string]interface{}{
						"type":        "string",
						"description": "Unified diff text with @@ hunk headers.",
					},
				},
				"required": []string{"path", "diff"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage, env RepoEnvironment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			path, ok := GetStringArg(args, "path")
			if !ok || path == "" {
				return "", fmt.Errorf("path is required")
			}
			diff, ok := GetStringArg(args, "diff")
			if !ok || diff == "" {
				return "", fmt.Errorf("diff is required")
			}

			target := filepath.Join(env.Root(), filepath.FromSlash(path))
			rel, relErr := filepath.Rel(env.Root(), target)
			if relErr != nil || strings.HasPrefix(rel, "..") {
				return "", fmt.Errorf("path %q escapes the repository root", path)
			}

			patch, err := udiff.Parse(diff)
			if err != nil {
				return "", err
			}
			if err := patch.ApplyToFile(target); err != nil {
				return "", err
			}
			return fmt.Sprintf("Applied %d hunk(s) to %s", len(patch.Hunks), path), nil
		},
	})
}

func registerRunCommand(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "run_command",
			Description: "Execute a shell command in the repository root. Returns stdout, stderr, and exit code.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"command": map[string]interface{}{
						"type":        "string",
						"description": "The command to run.",
					},
					"timeout_seconds": map[string]interface{}{
						"type":        "integer",
						"description": "Command timeout in seconds. Default: 60, maximum: 300.",
					},
				},
				"required": []string{"command"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage, env RepoEnvironment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			command, ok := GetStringArg(args, "command")
			if !ok || command == "" {
				return "", fmt.Errorf("command is required")
			}
			timeoutSec, _ := GetIntArg(args, "timeout_seconds")
			if timeoutSec <= 0 {
				timeoutSec = 60
			}
			if timeoutSec > 300 {
				timeoutSec = 300
			}

			result, err := env.ExecCommand(ctx, command, time.Duration(timeoutSec)*time.Second)
			if err != nil {
				return "", err
			}
			return formatExecResult(result, timeoutSec), nil
		},
	})
}

var allowedGitSubcommands = map[string]bool{
	"status": true,
	"diff":   true,
	"log":    true,
	"show":   true,
	"add":    true,
	"commit": true,
	"stash":  true,
	"branch": true,
}

func registerRunGit(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name: "run_git",
			Description: "Run a git subcommand in the repository. Allowed subcommands: " +
				"status, diff, log, show, add, commit, stash, branch.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"args": map[string]interface{}{
						"type":        "string",
						"description": "Arguments to pass to git, starting with the subcommand (e.g. \"diff --stat\").",
					},
				},
				"required": []string{"args"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage, env RepoEnvironment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			gitArgs, ok := GetStringArg(args, "args")
			if !ok || strings.TrimSpace(gitArgs) == "" {
				return "", fmt.Errorf("args is required")
			}
			fields := strings.Fields(gitArgs)
			if !allowedGitSubcommands[fields[0]] {
				return "", fmt.Errorf("git subcommand %q is not allowed", fields[0])
			}

			result, err := env.ExecCommand(ctx, "git "+gitArgs, 30*time.Second)
			if err != nil {
				return "", err
			}
			return formatExecResult(result, 30), nil
		},
	})
}

func formatExecResult(result *ExecResult, timeoutSec int) string {
	var sb strings.Builder
	sb.WriteString(result.Output())
	if result.TimedOut {
		fmt.Fprintf(&sb, "\n\n[ERROR: Command timed out after %ds. Partial output is shown above.]", timeoutSec)
	} else if result.ExitCode != 0 {
		fmt.Fprintf(&sb, "\n\n[Exit code: %d]", result.ExitCode)
	}
	return sb.String()
}
