package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mtnmerc/buildbox-agent/internal/convlog"
)

// AppendEntry persists one conversation entry. Implements convlog.Storage.
func (s *Store) AppendEntry(ctx context.Context, sessionID string, e convlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var planJSON sql.NullString
	if e.Plan != nil {
		data, err := json.Marshal(e.Plan)
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		planJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
	INSERT OR REPLACE INTO conversation_entries (session_id, entry_id, kind, text, plan_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sessionID, e.ID, string(e.Kind), e.Text, planJSON, e.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

// LoadEntries restores a session's conversation in entry order. Rows that
// cannot be restored are handled rather than failing the load: an unknown
// kind drops the row, and an unreadable plan payload downgrades the entry to
// an error so the user can see something went missing.
func (s *Store) LoadEntries(ctx context.Context, sessionID string) ([]convlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT entry_id, kind, text, plan_json, created_at
	FROM conversation_entries WHERE session_id = ? ORDER BY entry_id
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	var out []convlog.Entry
	for rows.Next() {
		var (
			e         convlog.Entry
			kind      string
			planJSON  sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.Text, &planJSON, &createdAt); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("discarding unreadable conversation row")
			continue
		}
		e.Kind = convlog.Kind(kind)
		if !e.Kind.Valid() {
			s.logger.Warn().Str("session_id", sessionID).Str("kind", kind).Msg("discarding conversation row with unknown kind")
			continue
		}
		e.Timestamp = time.UnixMilli(createdAt).UTC()

		if planJSON.Valid {
			p, err := convlog.DecodeStoredPlan(planJSON.String)
			if err != nil {
				s.logger.Warn().Err(err).Int64("entry_id", e.ID).Msg("stored plan unreadable, downgrading entry")
				e.Kind = convlog.KindError
				e.Plan = nil
				if e.Text == "" {
					e.Text = "a previously generated plan could not be restored"
				}
			} else {
				e.Plan = p
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearEntries removes a session's conversation. Implements convlog.Storage.
func (s *Store) ClearEntries(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_entries WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	return nil
}
