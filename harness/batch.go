package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/martinemde/codebench/agent"
)

// SessionRunner executes one agent session against an isolated repository
// copy and reports how many steps it used. Implementations typically wrap
// agent.Session; tests substitute direct file edits.
type SessionRunner func(ctx context.Context, task agent.Task, repoDir string) (agent.RunResult, error)

// BatchConfig controls batch evaluation.
type BatchConfig struct {
	// Concurrency caps simultaneous sessions. Sessions never share a work
	// tree, so the cap only bounds resource use.
	Concurrency int
	// WorkDir receives the per-task repository copies. Empty uses the
	// system temp directory.
	WorkDir string
	// KeepCopies leaves the per-task repository copies on disk for
	// inspection instead of removing them.
	KeepCopies bool
}

// RunBatch copies templateDir once per task, runs each session against its
// private copy, and evaluates the result. Results come back in task order
// regardless of completion order.
func (h *Harness) RunBatch(ctx context.Context, tasks []agent.Task, templateDir string, run SessionRunner, config BatchConfig) ([]EvalResult, error) {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	results := make([]EvalResult, len(tasks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			repoDir, err := os.MkdirTemp(config.WorkDir, "codebench-"+task.ID+"-")
			if err != nil {
				return fmt.Errorf("task %s: %w", task.ID, err)
			}
			if !config.KeepCopies {
				defer os.RemoveAll(repoDir)
			}
			if err := copyTree(templateDir, repoDir); err != nil {
				return fmt.Errorf("task %s: copy repository: %w", task.ID, err)
			}

			runResult, runErr := run(gctx, task, repoDir)
			// The harness evaluates whatever state exists, even after a
			// failed or truncated session.
			result := h.Evaluate(gctx, repoDir, task, runResult.StepsUsed)
			if runErr != nil {
				result.Notes = append(result.Notes, "session: "+runErr.Error())
				result.Overall = false
			}
			if runResult.Reason != "" && runResult.Reason != agent.ReasonCompleted {
				result.Notes = append(result.Notes, "termination: "+string(runResult.Reason))
			}

			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// copyTree duplicates src into dst, preserving file modes. The .git
// directory is copied too so git-based tools work in the copy.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
