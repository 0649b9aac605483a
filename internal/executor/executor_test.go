package executor

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtnmerc/buildbox-agent/internal/metrics"
	"github.com/mtnmerc/buildbox-agent/internal/plan"
	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

func newExecutor() *Executor {
	return New(metrics.New(), zerolog.Nop())
}

func strptr(s string) *string { return &s }

func TestExecute_CreateEditDelete(t *testing.T) {
	store := workspace.NewStore([]workspace.FileRecord{
		workspace.NewRecord("src/app.js", "let x = 1;"),
		workspace.NewRecord("src/old.css", "body{}"),
	})

	p := &plan.Plan{
		Goal: "restyle",
		Files: []plan.FileChange{
			{Filename: "src/theme.css", Action: plan.ActionCreate, Content: strptr(".dark{}")},
			{Filename: "src/app.js", Action: plan.ActionEdit, Content: strptr("let x = 2;")},
			{Filename: "src/old.css", Action: plan.ActionDelete},
		},
	}

	records, err := newExecutor().Execute(p, store)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, LevelApplied, r.Level)
	}

	created, ok := store.Get("src/theme.css")
	require.True(t, ok)
	assert.True(t, created.IsNew)
	assert.Equal(t, ".dark{}", created.Content)

	edited, _ := store.Get("src/app.js")
	assert.True(t, edited.IsModified)
	assert.Equal(t, "let x = 2;", edited.Content)

	_, ok = store.Get("src/old.css")
	assert.False(t, ok)
}

func TestExecute_CreateOverExistingOverwrites(t *testing.T) {
	store := workspace.NewStore([]workspace.FileRecord{
		workspace.NewRecord("a.txt", "original"),
	})
	p := &plan.Plan{Goal: "g", Files: []plan.FileChange{
		{Filename: "a.txt", Action: plan.ActionCreate, Content: strptr("replacement")},
	}}

	records, err := newExecutor().Execute(p, store)
	require.NoError(t, err)
	assert.Equal(t, LevelApplied, records[0].Level)

	r, _ := store.Get("a.txt")
	assert.Equal(t, "replacement", r.Content)
	assert.True(t, r.IsModified)
	assert.False(t, r.IsNew)
}

func TestExecute_MissingTargetsWarnAndContinue(t *testing.T) {
	store := workspace.NewStore([]workspace.FileRecord{
		workspace.NewRecord("keep.txt", "keep"),
	})
	p := &plan.Plan{Goal: "g", Files: []plan.FileChange{
		{Filename: "ghost.txt", Action: plan.ActionEdit, Content: strptr("x")},
		{Filename: "ghost2.txt", Action: plan.ActionDelete},
		{Filename: "new.txt", Action: plan.ActionCreate, Content: strptr("n")},
	}}

	records, err := newExecutor().Execute(p, store)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, LevelWarning, records[0].Level)
	assert.Equal(t, LevelWarning, records[1].Level)
	assert.Equal(t, LevelApplied, records[2].Level)

	_, ok := store.Get("new.txt")
	assert.True(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestExecute_EditWithoutContentMarksModified(t *testing.T) {
	store := workspace.NewStore([]workspace.FileRecord{
		workspace.NewRecord("a.txt", "unchanged"),
	})
	p := &plan.Plan{Goal: "g", Files: []plan.FileChange{
		{Filename: "a.txt", Action: plan.ActionEdit},
	}}

	_, err := newExecutor().Execute(p, store)
	require.NoError(t, err)
	r, _ := store.Get("a.txt")
	assert.Equal(t, "unchanged", r.Content)
	assert.True(t, r.IsModified)
}

func TestExecute_LastWriteWins(t *testing.T) {
	store := workspace.NewStore(nil)
	p := &plan.Plan{Goal: "g", Files: []plan.FileChange{
		{Filename: "a.txt", Action: plan.ActionCreate, Content: strptr("first")},
		{Filename: "a.txt", Action: plan.ActionEdit, Content: strptr("second")},
	}}

	records, err := newExecutor().Execute(p, store)
	require.NoError(t, err)
	assert.Equal(t, LevelApplied, records[1].Level, "edit sees the file created earlier in the same plan")

	r, _ := store.Get("a.txt")
	assert.Equal(t, "second", r.Content)
}

func TestExecute_CreateThenDeleteSamePlan(t *testing.T) {
	store := workspace.NewStore(nil)
	p := &plan.Plan{Goal: "g", Files: []plan.FileChange{
		{Filename: "tmp.txt", Action: plan.ActionCreate, Content: strptr("t")},
		{Filename: "tmp.txt", Action: plan.ActionDelete},
	}}

	_, err := newExecutor().Execute(p, store)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestExecute_NoopPlan(t *testing.T) {
	store := workspace.NewStore([]workspace.FileRecord{
		workspace.NewRecord("a.txt", "a"),
	})
	p := &plan.Plan{Goal: "just advice"}

	records, err := newExecutor().Execute(p, store)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, LevelInfo, records[0].Level)
	assert.Equal(t, 1, store.Len())
}

func TestExecute_UnknownActionLeavesStoreUntouched(t *testing.T) {
	store := workspace.NewStore([]workspace.FileRecord{
		workspace.NewRecord("a.txt", "a"),
	})
	p := &plan.Plan{Goal: "g", Files: []plan.FileChange{
		{Filename: "b.txt", Action: plan.ActionCreate, Content: strptr("b")},
		{Filename: "a.txt", Action: plan.Action("truncate")},
	}}

	_, err := newExecutor().Execute(p, store)
	require.Error(t, err)

	// First change must not have leaked.
	_, ok := store.Get("b.txt")
	assert.False(t, ok)
	r, _ := store.Get("a.txt")
	assert.Equal(t, "a", r.Content)
}

func TestExecute_CreateWithoutContentWritesEmptyFile(t *testing.T) {
	store := workspace.NewStore(nil)
	p := &plan.Plan{Goal: "g", Files: []plan.FileChange{
		{Filename: "empty.txt", Action: plan.ActionCreate},
	}}

	_, err := newExecutor().Execute(p, store)
	require.NoError(t, err)
	r, ok := store.Get("empty.txt")
	require.True(t, ok)
	assert.Equal(t, "", r.Content)
	assert.True(t, r.IsNew)
}
