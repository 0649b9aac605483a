package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mtnmerc/buildbox-agent/internal/convlog"
	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
	"github.com/mtnmerc/buildbox-agent/internal/metrics"
	"github.com/mtnmerc/buildbox-agent/internal/store"
	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

// Persistence is the slice of the store the manager needs.
type Persistence interface {
	SaveSession(ctx context.Context, rec *store.SessionRecord) error
	TouchSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]*store.SessionRecord, error)
	DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int, error)
}

// Manager tracks live sessions and their persistence.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	persist Persistence
	logs    convlog.Storage
	metrics *metrics.Metrics
	logger  zerolog.Logger
	ttl     time.Duration
}

// NewManager creates a Manager. ttl bounds how long an idle session survives
// a sweep.
func NewManager(persist Persistence, logs convlog.Storage, m *metrics.Metrics, ttl time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		persist:  persist,
		logs:     logs,
		metrics:  m,
		logger:   logger.With().Str("component", "sessions").Logger(),
		ttl:      ttl,
	}
}

// Create registers a new session over the given working copy.
func (m *Manager) Create(ctx context.Context, owner, repo, branch string, files []workspace.FileRecord) (*Session, error) {
	id := uuid.New().String()

	log, err := convlog.Open(ctx, id, m.logs, m.logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id,
		Owner:     owner,
		Repo:      repo,
		Branch:    branch,
		Files:     workspace.NewStore(files),
		Log:       log,
		CreatedAt: time.Now().UTC(),
		state:     StateIdle,
	}

	if err := m.persist.SaveSession(ctx, &store.SessionRecord{
		ID: id, Owner: owner, Repo: repo, Branch: branch,
	}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.metrics.SessionsActive.Inc()

	m.logger.Info().Str("session_id", id).Str("repo", owner+"/"+repo).Str("branch", branch).Msg("session created")
	return s, nil
}

// Restore brings persisted sessions back into the manager after a restart.
// File contents are not persisted, so restored working copies start empty
// and are re-seeded by direct edits or a fresh repository fetch. Sessions
// already live in memory are left alone.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	recs, err := m.persist.ListSessions(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, rec := range recs {
		m.mu.RLock()
		_, live := m.sessions[rec.ID]
		m.mu.RUnlock()
		if live {
			continue
		}

		log, err := convlog.Open(ctx, rec.ID, m.logs, m.logger)
		if err != nil {
			m.logger.Warn().Err(err).Str("session_id", rec.ID).Msg("failed to restore conversation, skipping session")
			continue
		}

		s := &Session{
			ID:        rec.ID,
			Owner:     rec.Owner,
			Repo:      rec.Repo,
			Branch:    rec.Branch,
			Files:     workspace.NewStore(nil),
			Log:       log,
			CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
			state:     StateIdle,
		}

		m.mu.Lock()
		m.sessions[rec.ID] = s
		m.mu.Unlock()
		m.metrics.SessionsActive.Inc()
		restored++
	}

	if restored > 0 {
		m.logger.Info().Int("sessions", restored).Msg("restored persisted sessions")
	}
	return restored, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, berrors.ErrSessionNotFound
	}
	return s, nil
}

// List returns all live sessions, newest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Touch records activity on a session.
func (m *Manager) Touch(ctx context.Context, id string) {
	if err := m.persist.TouchSession(ctx, id); err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("failed to touch session")
	}
}

// Delete removes a session and its persisted conversation.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return berrors.ErrSessionNotFound
	}
	m.metrics.SessionsActive.Dec()

	if err := m.persist.DeleteSession(ctx, id); err != nil {
		return err
	}
	m.logger.Info().Str("session_id", id).Msg("session deleted")
	return nil
}

// Sweep expires sessions idle past the TTL. Live sessions whose records were
// expired are evicted too.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.persist.DeleteExpiredSessions(ctx, m.ttl)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	alive, err := m.persist.ListSessions(ctx)
	if err != nil {
		return n, err
	}
	keep := make(map[string]bool, len(alive))
	for _, rec := range alive {
		keep[rec.ID] = true
	}

	m.mu.Lock()
	for id := range m.sessions {
		if !keep[id] {
			delete(m.sessions, id)
			m.metrics.SessionsActive.Dec()
		}
	}
	m.mu.Unlock()

	m.logger.Info().Int("expired", n).Msg("session sweep complete")
	return n, nil
}
