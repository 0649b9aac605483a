package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtnmerc/buildbox-agent/internal/convlog"
	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
	"github.com/mtnmerc/buildbox-agent/internal/metrics"
	"github.com/mtnmerc/buildbox-agent/internal/plan"
	"github.com/mtnmerc/buildbox-agent/internal/store"
	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

type fakePersistence struct {
	records map[string]*store.SessionRecord
	expired int
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{records: make(map[string]*store.SessionRecord)}
}

func (f *fakePersistence) SaveSession(_ context.Context, rec *store.SessionRecord) error {
	f.records[rec.ID] = rec
	return nil
}

func (f *fakePersistence) TouchSession(_ context.Context, id string) error {
	if rec, ok := f.records[id]; ok {
		rec.LastUsed = time.Now().UnixMilli()
	}
	return nil
}

func (f *fakePersistence) DeleteSession(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakePersistence) ListSessions(_ context.Context) ([]*store.SessionRecord, error) {
	out := make([]*store.SessionRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakePersistence) DeleteExpiredSessions(_ context.Context, _ time.Duration) (int, error) {
	return f.expired, nil
}

func newManager() (*Manager, *fakePersistence) {
	fp := newFakePersistence()
	return NewManager(fp, convlog.NewMemoryStorage(), metrics.New(), 24*time.Hour, zerolog.Nop()), fp
}

func newIdleSession(t *testing.T) *Session {
	t.Helper()
	m, _ := newManager()
	s, err := m.Create(context.Background(), "mtnmerc", "demo", "main",
		[]workspace.FileRecord{workspace.NewRecord("a.txt", "a")})
	require.NoError(t, err)
	return s
}

func TestManager_CreateGetDelete(t *testing.T) {
	m, fp := newManager()
	ctx := context.Background()

	s, err := m.Create(ctx, "mtnmerc", "demo", "main", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateIdle, s.State())
	assert.Contains(t, fp.records, s.ID)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, berrors.ErrSessionNotFound)

	require.NoError(t, m.Delete(ctx, s.ID))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, berrors.ErrSessionNotFound)
	assert.NotContains(t, fp.records, s.ID)

	assert.ErrorIs(t, m.Delete(ctx, s.ID), berrors.ErrSessionNotFound)
}

func TestSession_GenerateLifecycle(t *testing.T) {
	s := newIdleSession(t)

	token, err := s.BeginGenerate()
	require.NoError(t, err)
	assert.Equal(t, StateGenerating, s.State())

	p := &plan.Plan{Goal: "g"}
	assert.True(t, s.FinishGenerate(token, p))
	assert.Equal(t, StatePendingReview, s.State())

	pending, ok := s.PendingPlan()
	require.True(t, ok)
	assert.Same(t, p, pending)
}

func TestSession_StaleGenerationIsDiscarded(t *testing.T) {
	s := newIdleSession(t)

	first, err := s.BeginGenerate()
	require.NoError(t, err)

	// A second submission supersedes the first while it is still in flight.
	second, err := s.BeginGenerate()
	require.NoError(t, err)

	stale := &plan.Plan{Goal: "stale"}
	assert.False(t, s.FinishGenerate(first, stale), "older result must not land")
	assert.Equal(t, StateGenerating, s.State())
	_, ok := s.PendingPlan()
	assert.False(t, ok)

	fresh := &plan.Plan{Goal: "fresh"}
	assert.True(t, s.FinishGenerate(second, fresh))
	pending, _ := s.PendingPlan()
	assert.Equal(t, "fresh", pending.Goal)

	// A stale failure must not knock the fresh plan out either.
	assert.False(t, s.FailGenerate(first))
	assert.Equal(t, StatePendingReview, s.State())
}

func TestSession_FailGenerate(t *testing.T) {
	s := newIdleSession(t)
	token, _ := s.BeginGenerate()
	assert.True(t, s.FailGenerate(token))
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_RegenerateDiscardsPending(t *testing.T) {
	s := newIdleSession(t)
	token, _ := s.BeginGenerate()
	s.FinishGenerate(token, &plan.Plan{Goal: "old"})

	_, err := s.BeginGenerate()
	require.NoError(t, err)
	_, ok := s.PendingPlan()
	assert.False(t, ok, "regeneration discards the pending plan")
}

func TestSession_ExecuteLifecycle(t *testing.T) {
	s := newIdleSession(t)

	_, err := s.BeginExecute()
	assert.ErrorIs(t, err, berrors.ErrNoPendingPlan)

	token, _ := s.BeginGenerate()
	s.FinishGenerate(token, &plan.Plan{Goal: "g"})

	p, err := s.BeginExecute()
	require.NoError(t, err)
	assert.Equal(t, "g", p.Goal)
	assert.Equal(t, StateExecuting, s.State())

	// No generation may start mid-execution.
	_, err = s.BeginGenerate()
	assert.Error(t, err)

	s.FinishExecute()
	assert.Equal(t, StateIdle, s.State())
	_, ok := s.PendingPlan()
	assert.False(t, ok)
}

func TestSession_CancelPlan(t *testing.T) {
	s := newIdleSession(t)
	assert.False(t, s.CancelPlan())

	token, _ := s.BeginGenerate()
	s.FinishGenerate(token, &plan.Plan{Goal: "g"})
	assert.True(t, s.CancelPlan())
	assert.Equal(t, StateIdle, s.State())
	_, ok := s.PendingPlan()
	assert.False(t, ok)
}

func TestSession_PushLifecycle(t *testing.T) {
	s := newIdleSession(t)
	require.NoError(t, s.BeginPush())
	assert.Equal(t, StatePushing, s.State())
	assert.Error(t, s.BeginPush())
	_, err := s.BeginGenerate()
	assert.Error(t, err)
	s.FinishPush()
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_DirectEditBlockedDuringExecution(t *testing.T) {
	s := newIdleSession(t)
	token, _ := s.BeginGenerate()
	s.FinishGenerate(token, &plan.Plan{Goal: "g"})
	_, err := s.BeginExecute()
	require.NoError(t, err)

	err = s.DirectEdit(func(files *workspace.Store) {
		files.Put("a.txt", "clobbered")
	})
	assert.Error(t, err)
	rec, _ := s.Files.Get("a.txt")
	assert.Equal(t, "a", rec.Content)

	s.FinishExecute()
	require.NoError(t, s.DirectEdit(func(files *workspace.Store) {
		files.Put("a.txt", "edited")
	}))
	rec, _ = s.Files.Get("a.txt")
	assert.Equal(t, "edited", rec.Content)
}

func TestSession_DirectEditBlockedDuringPush(t *testing.T) {
	s := newIdleSession(t)
	require.NoError(t, s.BeginPush())
	assert.Error(t, s.DirectEdit(func(files *workspace.Store) {
		files.Put("b.txt", "b")
	}))
	s.FinishPush()
	assert.NoError(t, s.DirectEdit(func(files *workspace.Store) {
		files.Put("b.txt", "b")
	}))
}

func TestManager_RestoreAfterRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	db, err := store.New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	m1 := NewManager(db, db, metrics.New(), 24*time.Hour, zerolog.Nop())

	s, err := m1.Create(ctx, "mtnmerc", "demo", "main",
		[]workspace.FileRecord{workspace.NewRecord("a.txt", "a")})
	require.NoError(t, err)
	s.Log.Append(ctx, convlog.KindUser, "add a readme")
	require.NoError(t, db.Close())

	// Simulated restart: fresh store and manager over the same file.
	db2, err := store.New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer db2.Close()
	m2 := NewManager(db2, db2, metrics.New(), 24*time.Hour, zerolog.Nop())

	n, err := m2.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m2.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "mtnmerc", got.Owner)
	assert.Equal(t, "demo", got.Repo)
	assert.Equal(t, "main", got.Branch)
	assert.Equal(t, StateIdle, got.State())

	entries := got.Log.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "add a readme", entries[0].Text)

	// File contents are not persisted; the working copy awaits a re-seed.
	assert.Empty(t, got.Files.List())
}

func TestManager_RestoreSkipsLiveSessions(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	s, err := m.Create(ctx, "o", "r", "main",
		[]workspace.FileRecord{workspace.NewRecord("a.txt", "a")})
	require.NoError(t, err)

	n, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got, "a live session must not be replaced")
	assert.NotEmpty(t, got.Files.List())
}

func TestManager_ListNewestFirst(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	a, _ := m.Create(ctx, "o", "r", "main", nil)
	b, _ := m.Create(ctx, "o", "r2", "main", nil)
	b.CreatedAt = a.CreatedAt.Add(time.Second)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestManager_SweepEvictsExpired(t *testing.T) {
	m, fp := newManager()
	ctx := context.Background()

	s, _ := m.Create(ctx, "o", "r", "main", nil)
	fp.expired = 1
	delete(fp.records, s.ID)

	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, berrors.ErrSessionNotFound)
}
