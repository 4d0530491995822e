package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SuccessCriteria holds the pattern-based definition of a solved task.
// MinOccurrences maps a pattern to the minimum number of times it must
// appear; patterns listed only in MustContain need a single occurrence.
type SuccessCriteria struct {
	MustContain    []string       `yaml:"must_contain,omitempty" json:"must_contain,omitempty"`
	MustNotContain []string       `yaml:"must_not_contain,omitempty" json:"must_not_contain,omitempty"`
	MinOccurrences map[string]int `yaml:"min_occurrences,omitempty" json:"min_occurrences,omitempty"`
}

// Empty reports whether no patterns are defined at all.
func (c SuccessCriteria) Empty() bool {
	return len(c.MustContain) == 0 && len(c.MustNotContain) == 0 && len(c.MinOccurrences) == 0
}

// Task describes one unit of work for a session. Immutable once loaded.
type Task struct {
	ID          string          `yaml:"id" json:"id"`
	Description string          `yaml:"description" json:"description"`
	Category    string          `yaml:"category,omitempty" json:"category,omitempty"`
	TargetFile  string          `yaml:"target_file,omitempty" json:"target_file,omitempty"`
	Criteria    SuccessCriteria `yaml:"criteria,omitempty" json:"criteria,omitempty"`
}

// Validate checks the task has the minimum required fields.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task has no id")
	}
	if t.Description == "" {
		return fmt.Errorf("task %s has no description", t.ID)
	}
	return nil
}

// LoadTasks reads a YAML file containing a list of tasks.
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}

	var tasks []Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parse tasks file %s: %w", path, err)
	}

	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}
