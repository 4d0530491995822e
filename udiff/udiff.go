// Package udiff parses unified-diff text and applies it to a single file.
//
// Application is strict and all-or-nothing: every hunk's context and
// deletion lines must match the current file content at the offsets the
// hunk header claims, otherwise the whole patch is rejected and the file is
// left untouched. Successful application writes the new content with
// temp-file-then-rename semantics so a crash mid-write cannot leave a
// half-written file.
package udiff

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Line is a single line within a hunk.
type Line struct {
	Op   byte   // ' ' = context, '-' = delete, '+' = add
	Text string // line content without the prefix
}

// Hunk is one contiguous change region.
type Hunk struct {
	OldStart int // 1-based line number in the original file
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Patch is a parsed unified diff for one file.
type Patch struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// ConflictError reports the first hunk that failed to match the file.
type ConflictError struct {
	HunkIndex int    // 1-based index of the mismatching hunk
	LineNum   int    // 1-based line number in the file where the mismatch occurred
	Expected  string // line the hunk claims is present
	Actual    string // line actually found (empty past end of file)
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("hunk %d: context mismatch at line %d: expected %q, found %q",
		e.HunkIndex, e.LineNum, e.Expected, e.Actual)
}

// ParseError reports malformed diff text.
type ParseError struct {
	LineNum int
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid diff at line %d: %s", e.LineNum, e.Reason)
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse parses unified-diff text into a Patch. The "--- " / "+++ " file
// headers are optional; at least one hunk is required.
func Parse(text string) (*Patch, error) {
	patch := &Patch{}
	lines := strings.Split(text, "\n")

	var current *Hunk
	for i, raw := range lines {
		lineNum := i + 1
		switch {
		case strings.HasPrefix(raw, "--- "):
			if current != nil {
				return nil, &ParseError{LineNum: lineNum, Reason: "file header inside hunk"}
			}
			patch.OldPath = strings.TrimSpace(strings.TrimPrefix(raw, "--- "))
		case strings.HasPrefix(raw, "+++ "):
			if current != nil {
				return nil, &ParseError{LineNum: lineNum, Reason: "file header inside hunk"}
			}
			patch.NewPath = strings.TrimSpace(strings.TrimPrefix(raw, "+++ "))
		case strings.HasPrefix(raw, "@@"):
			m := hunkHeaderRe.FindStringSubmatch(raw)
			if m == nil {
				return nil, &ParseError{LineNum: lineNum, Reason: "malformed hunk header"}
			}
			h := Hunk{
				OldStart: atoiDefault(m[1], 0),
				OldLines: atoiDefault(m[2], 1),
				NewStart: atoiDefault(m[3], 0),
				NewLines: atoiDefault(m[4], 1),
			}
			patch.Hunks = append(patch.Hunks, h)
			current = &patch.Hunks[len(patch.Hunks)-1]
		case len(raw) > 0 && (raw[0] == ' ' || raw[0] == '-' || raw[0] == '+'):
			if current == nil {
				// Stray content before the first hunk (e.g. a "diff --git"
				// preamble); ignore.
				continue
			}
			current.Lines = append(current.Lines, Line{Op: raw[0], Text: raw[1:]})
		case raw == "":
			// Blank line: inside a hunk this is an empty context line that
			// lost its leading space in transit; trailing blanks are ignored.
			if current != nil && hunkNeedsMoreLines(current) {
				current.Lines = append(current.Lines, Line{Op: ' ', Text: ""})
			}
		case strings.HasPrefix(raw, `\ No newline`):
			// Marker only; no content change.
		default:
			if current != nil {
				return nil, &ParseError{LineNum: lineNum, Reason: fmt.Sprintf("unexpected line %q in hunk", raw)}
			}
		}
	}

	if len(patch.Hunks) == 0 {
		return nil, &ParseError{LineNum: 1, Reason: "no hunks found"}
	}

	for i, h := range patch.Hunks {
		oldCount, newCount := 0, 0
		for _, l := range h.Lines {
			switch l.Op {
			case ' ':
				oldCount++
				newCount++
			case '-':
				oldCount++
			case '+':
				newCount++
			}
		}
		if oldCount != h.OldLines || newCount != h.NewLines {
			return nil, &ParseError{
				LineNum: 1,
				Reason: fmt.Sprintf("hunk %d line counts disagree with header: header says -%d,+%d but body has -%d,+%d",
					i+1, h.OldLines, h.NewLines, oldCount, newCount),
			}
		}
	}

	return patch, nil
}

func hunkNeedsMoreLines(h *Hunk) bool {
	oldCount, newCount := 0, 0
	for _, l := range h.Lines {
		switch l.Op {
		case ' ':
			oldCount++
			newCount++
		case '-':
			oldCount++
		case '+':
			newCount++
		}
	}
	return oldCount < h.OldLines || newCount < h.NewLines
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Apply applies the patch to content and returns the new content. Hunks are
// validated against the claimed offsets before any output is produced; the
// first mismatch aborts the whole application with a ConflictError.
func (p *Patch) Apply(content string) (string, error) {
	hadTrailingNewline := strings.HasSuffix(content, "\n")
	fileLines := strings.Split(content, "\n")
	if hadTrailingNewline {
		fileLines = fileLines[:len(fileLines)-1]
	}
	if content == "" {
		fileLines = nil
	}

	// Validate every hunk before mutating anything.
	for i, h := range p.Hunks {
		pos := h.OldStart - 1
		if h.OldLines == 0 {
			// Pure insertion: OldStart names the line the insertion follows.
			pos = h.OldStart
		}
		for _, l := range h.Lines {
			if l.Op == '+' {
				continue
			}
			if pos >= len(fileLines) {
				return "", &ConflictError{HunkIndex: i + 1, LineNum: pos + 1, Expected: l.Text, Actual: ""}
			}
			if fileLines[pos] != l.Text {
				return "", &ConflictError{HunkIndex: i + 1, LineNum: pos + 1, Expected: l.Text, Actual: fileLines[pos]}
			}
			pos++
		}
	}

	// All hunks match; build the output. Hunks apply in order, tracking the
	// shift introduced by earlier hunks.
	var out []string
	srcPos := 0
	for _, h := range p.Hunks {
		hunkStart := h.OldStart - 1
		if h.OldLines == 0 {
			hunkStart = h.OldStart
		}
		if hunkStart < srcPos {
			return "", &ParseError{LineNum: 1, Reason: "hunks overlap or are out of order"}
		}
		out = append(out, fileLines[srcPos:hunkStart]...)
		srcPos = hunkStart
		for _, l := range h.Lines {
			switch l.Op {
			case ' ':
				out = append(out, fileLines[srcPos])
				srcPos++
			case '-':
				srcPos++
			case '+':
				out = append(out, l.Text)
			}
		}
	}
	out = append(out, fileLines[srcPos:]...)

	result := strings.Join(out, "\n")
	if hadTrailingNewline && len(out) > 0 {
		result += "\n"
	}
	return result, nil
}

// ApplyToFile parses diffText and applies it to the file at path, writing
// the result atomically. A rejected patch leaves the file byte-identical to
// its pre-application state.
func ApplyToFile(path, diffText string) error {
	patch, err := Parse(diffText)
	if err != nil {
		return err
	}
	return patch.ApplyToFile(path)
}

// ApplyToFile applies an already-parsed patch to the file at path, writing
// the result atomically. A rejected patch leaves the file byte-identical to
// its pre-application state.
func (p *Patch) ApplyToFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	updated, err := p.Apply(string(data))
	if err != nil {
		return err
	}

	return writeFileAtomic(path, []byte(updated), info.Mode())
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
