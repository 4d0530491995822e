package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTasks(t *testing.T) {
	yaml := `
- id: version-bump
  description: Change the version string from "1.0" to "2.0".
  category: code
  target_file: app.py
  criteria:
    must_contain: ["\"2.0\""]
    must_not_contain: ["\"1.0\""]
- id: write-tests
  description: Add tests covering get_fore_color.
  category: behavior
  target_file: test_colors.py
  criteria:
    must_contain: ["def test_", "get_fore_color"]
    min_occurrences:
      "def test_": 2
`
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	tasks, err := LoadTasks(path)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	require.Equal(t, "version-bump", tasks[0].ID)
	require.Equal(t, "app.py", tasks[0].TargetFile)
	require.Equal(t, []string{`"2.0"`}, tasks[0].Criteria.MustContain)
	require.Equal(t, []string{`"1.0"`}, tasks[0].Criteria.MustNotContain)

	require.Equal(t, "behavior", tasks[1].Category)
	require.Equal(t, 2, tasks[1].Criteria.MinOccurrences["def test_"])
	require.False(t, tasks[1].Criteria.Empty())
}

func TestLoadTasksRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: \"\"\n  description: no id\n"), 0644))

	_, err := LoadTasks(path)
	require.Error(t, err)
}

func TestSuccessCriteriaEmpty(t *testing.T) {
	require.True(t, SuccessCriteria{}.Empty())
	require.False(t, SuccessCriteria{MustContain: []string{"x"}}.Empty())
}
