package agent

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized tool output is cut.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// TruncationConfig holds per-tool output limits.
type TruncationConfig struct {
	CharLimits  map[string]int
	LineLimits  map[string]int
	Modes       map[string]TruncationMode
	DefaultChar int
}

// DefaultTruncationConfig returns the standard per-tool limits.
func DefaultTruncationConfig() TruncationConfig {
	return TruncationConfig{
		CharLimits: map[string]int{
			"read_file":          50000,
			"run_command":        30000,
			"run_git":            20000,
			"list_files":         20000,
			"apply_unified_diff": 10000,
			"write_file":         1000,
		},
		LineLimits: map[string]int{
			"run_command": 256,
			"list_files":  500,
		},
		Modes: map[string]TruncationMode{
			"read_file":          TruncateHeadTail,
			"run_command":        TruncateHeadTail,
			"run_git":            TruncateTail,
			"list_files":         TruncateTail,
			"apply_unified_diff": TruncateTail,
			"write_file":         TruncateTail,
		},
		DefaultChar: 30000,
	}
}

// TruncateOutput applies character-based truncation to output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
				"Re-run the tool with more targeted parameters if you need the removed portion.]\n\n", removed) +
			output[len(output)-half:]
	}
}

// TruncateLines applies line-based truncation using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// truncateToolOutput applies character truncation first, then line
// truncation, using the limits configured for toolName.
func truncateToolOutput(toolName, output string, config TruncationConfig) string {
	maxChars, ok := config.CharLimits[toolName]
	if !ok {
		maxChars = config.DefaultChar
	}
	if maxChars <= 0 {
		return output
	}

	mode, ok := config.Modes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)

	if maxLines, ok := config.LineLimits[toolName]; ok && maxLines > 0 {
		result = TruncateLines(result, maxLines)
	}
	return result
}
