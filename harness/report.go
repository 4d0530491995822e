package harness

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteJSON writes results to path as an indented JSON array.
func WriteJSON(path string, results []EvalResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// WriteCSV writes results to path as a CSV table with a header row.
func WriteCSV(path string, results []EvalResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"task_id", "compile", "static", "tests", "behavior", "steps", "overall", "notes"}); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.TaskID,
			strconv.FormatBool(r.Compile),
			strconv.FormatBool(r.Static),
			strconv.FormatBool(r.Tests),
			strconv.FormatBool(r.Behavior),
			strconv.Itoa(r.Steps),
			strconv.FormatBool(r.Overall),
			strings.Join(r.Notes, " | "),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Summary returns a one-line pass count over results.
func Summary(results []EvalResult) string {
	passed := 0
	for _, r := range results {
		if r.Overall {
			passed++
		}
	}
	return fmt.Sprintf("%d/%d tasks passed", passed, len(results))
}
