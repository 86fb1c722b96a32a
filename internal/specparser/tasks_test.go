package specparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTasksFile_RecognizesAllCheckboxMarkers(t *testing.T) {
	content := []byte(`# Tasks

- [ ] 1 Not started
- [x] 2 Completed
- [X] 3 Completed (capital X)
- [~] 4 Queued
- [>] 5 In progress
`)
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)
	require.Len(t, tasks, 5)

	assert.Equal(t, "not_started", tasks[0].status)
	assert.Equal(t, "completed", tasks[1].status)
	assert.Equal(t, "completed", tasks[2].status)
	assert.Equal(t, "queued", tasks[3].status)
	assert.Equal(t, "in_progress", tasks[4].status)
}

func TestParseTasksFile_OptionalStarAndTrailingPeriod(t *testing.T) {
	content := []byte(`# Tasks

- [ ]* 1. Optional task with trailing period
- [ ] 2 Regular task
`)
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "1", tasks[0].id)
	assert.True(t, tasks[0].optional)
	assert.Equal(t, "Optional task with trailing period", tasks[0].description)

	assert.Equal(t, "2", tasks[1].id)
	assert.False(t, tasks[1].optional)
}

func TestParseTasksFile_AcceptsBulletVariants(t *testing.T) {
	content := []byte(`# Tasks

- [ ] 1 Dash bullet
* [ ] 2 Star bullet
+ [ ] 3 Plus bullet
`)
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "-", tasks[0].bullet)
	assert.Equal(t, "*", tasks[1].bullet)
	assert.Equal(t, "+", tasks[2].bullet)
}

func TestParseTasksFile_SkipsNarrativeAndBlankLines(t *testing.T) {
	content := []byte(`# Tasks

Some narrative text explaining the plan.

- [ ] 1 Implement the thing

<!-- a comment that is not a task -->
`)
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "1", tasks[0].id)
}

func TestParseTasksFile_NoTaskLinesIsAnError(t *testing.T) {
	content := []byte("# Tasks\n\nNothing here but narrative text.\n")
	_, err := ParseTasksFile(TasksFile, content)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, TasksFile, perr.File)
}

func TestParseTasksFile_RequirementsAnnotation(t *testing.T) {
	content := []byte("# Tasks\n\n- [ ] 1 Build the thing _Requirements: 1.2, 3_\n")
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, []string{"1.2", "3"}, tasks[0].requirementRefs)
	assert.Equal(t, "Build the thing", tasks[0].description)
}

func TestParseTasksFile_ValidatesRequirementsAnnotationPopulatesPropertyRefs(t *testing.T) {
	content := []byte("# Tasks\n\n- [ ] 1 Enforce the invariant _Validates: Requirements 5_\n")
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, []string{"5"}, tasks[0].propertyRefs)
}

func TestParseTasksFile_BarePropertyTagOutsideValidatesWrapper(t *testing.T) {
	content := []byte("# Tasks\n\n- [ ] 1 See Property 7 for the invariant\n")
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, []string{"7"}, tasks[0].propertyRefs)
}

func TestParseTasksFile_HierarchyFromIndentation(t *testing.T) {
	content := []byte(`# Tasks

- [ ] 1 Parent
  - [ ] 1.1 Child one
  - [ ] 1.2 Child two
    - [ ] 1.2.1 Grandchild
- [ ] 2 Sibling
`)
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)

	parents, children := buildHierarchy(tasks)
	assert.Equal(t, "1", parents["1.1"])
	assert.Equal(t, "1", parents["1.2"])
	assert.Equal(t, "1.2", parents["1.2.1"])
	_, isRoot := parents["1"]
	assert.False(t, isRoot)
	assert.ElementsMatch(t, []string{"1.1", "1.2"}, children["1"])
	assert.Equal(t, []string{"1.2.1"}, children["1.2"])
}

func TestParseTasksFile_TabIndentCountsAsOneLevel(t *testing.T) {
	content := []byte("# Tasks\n\n- [ ] 1 Parent\n\t- [ ] 1.1 Child\n")
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, 0, tasks[0].indentLevel)
	assert.Equal(t, 1, tasks[1].indentLevel)
}

func TestParseTasksFile_StripsTrailingCarriageReturn(t *testing.T) {
	content := []byte("# Tasks\r\n\r\n- [ ] 1 Implement the thing\r\n")
	tasks, err := ParseTasksFile(TasksFile, content)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Implement the thing", tasks[0].description)
}
