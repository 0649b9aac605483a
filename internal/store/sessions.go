package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is the persisted identity of a session. File contents and
// pending plans are deliberately not persisted; a restored session re-pulls
// its repository.
type SessionRecord struct {
	ID        string
	Owner     string
	Repo      string
	Branch    string
	CreatedAt int64
	LastUsed  int64
}

// SaveSession inserts or replaces a session record.
func (s *Store) SaveSession(ctx context.Context, rec *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	if rec.LastUsed == 0 {
		rec.LastUsed = time.Now().UnixMilli()
	}

	query := `
	INSERT OR REPLACE INTO sessions (id, owner, repo, branch, created_at, last_used)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Owner, rec.Repo, rec.Branch, rec.CreatedAt, rec.LastUsed,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session record by ID. Returns (nil, nil) when the
// session does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := &SessionRecord{}
	query := `SELECT id, owner, repo, branch, created_at, last_used FROM sessions WHERE id = ?`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Owner, &rec.Repo, &rec.Branch, &rec.CreatedAt, &rec.LastUsed,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return rec, nil
}

// ListSessions returns all session records, most recently used first.
func (s *Store) ListSessions(ctx context.Context) ([]*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, owner, repo, branch, created_at, last_used FROM sessions ORDER BY last_used DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		rec := &SessionRecord{}
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.Repo, &rec.Branch, &rec.CreatedAt, &rec.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TouchSession updates the last_used timestamp.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_used = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

// DeleteSession removes a session and its conversation entries.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_entries WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete conversation entries: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions idle longer than ttl, along with
// their conversations. Returns the number of sessions removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl).UnixMilli()

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM conversation_entries WHERE session_id IN (
			SELECT id FROM sessions WHERE last_used < ?
		)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete expired conversations: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_used < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}
