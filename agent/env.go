package agent

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"
)

// ExecResult holds the result of a command execution.
type ExecResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
}

// Output returns combined stdout and stderr.
func (r ExecResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// DirEntry represents a filesystem directory entry.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// RepoEnvironment abstracts the target repository a session mutates. All
// paths are relative to the repository root; escaping the root is rejected.
type RepoEnvironment interface {
	Root() string

	ReadFile(path string) (string, error)
	WriteFile(path, content string) error
	FileExists(path string) bool
	ListDirectory(path string) ([]DirEntry, error)

	ExecCommand(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error)

	// Fingerprint returns a deterministic digest of the repository content,
	// used by loop detection to decide whether repeated tool calls are
	// making progress.
	Fingerprint() (string, error)
}

// LocalRepoEnvironment runs against a repository on the local filesystem.
type LocalRepoEnvironment struct {
	root string
}

// NewLocalRepoEnvironment creates a local environment rooted at root.
func NewLocalRepoEnvironment(root string) (*LocalRepoEnvironment, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve repository root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("repository root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository root %s is not a directory", abs)
	}
	return &LocalRepoEnvironment{root: abs}, nil
}

// Root returns the absolute repository root.
func (e *LocalRepoEnvironment) Root() string { return e.root }

// resolve joins path to the root and rejects escapes.
func (e *LocalRepoEnvironment) resolve(path string) (string, error) {
	if path == "" {
		path = "."
	}
	joined := filepath.Join(e.root, path)
	rel, err := filepath.Rel(e.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the repository root", path)
	}
	return joined, nil
}

func (e *LocalRepoEnvironment) ReadFile(path string) (string, error) {
	resolved, err := e.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	return string(data), nil
}

func (e *LocalRepoEnvironment) WriteFile(path, content string) error {
	resolved, err := e.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Errorf("write_file: create directory: %w", err)
	}
	return os.WriteFile(resolved, []byte(content), 0644)
}

func (e *LocalRepoEnvironment) FileExists(path string) bool {
	resolved, err := e.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolved)
	return err == nil
}

func (e *LocalRepoEnvironment) ListDirectory(path string) ([]DirEntry, error) {
	resolved, err := e.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("list_directory: %w", err)
	}

	var result []DirEntry
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		de := DirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if info, err := entry.Info(); err == nil {
			de.Size = info.Size()
		}
		result = append(result, de)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (e *LocalRepoEnvironment) ExecCommand(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shell := "/bin/bash"
	shellArg := "-c"
	if runtime.GOOS == "windows" {
		shell = "cmd.exe"
		shellArg = "/c"
	}

	cmd := exec.CommandContext(ctx, shell, shellArg, command)
	cmd.Dir = e.root
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.ExitCode = -1
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("exec_command: %w", err)
		}
	}

	return result, nil
}

// Fingerprint hashes every tracked file's path and content. The .git
// directory is skipped so metadata-only git operations do not mask an
// unchanged working tree.
func (e *LocalRepoEnvironment) Fingerprint() (string, error) {
	h := sha256.New()

	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(e.root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(h, "%s\x00%d\x00", rel, len(data))
		h.Write(data)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
