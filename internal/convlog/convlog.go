// Package convlog is the append-only conversation record of a session:
// every user goal, generated plan, execution report, and error lands here in
// order. Entries persist as they are appended so a restarted agent can
// restore the conversation.
package convlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mtnmerc/buildbox-agent/internal/plan"
)

// Kind classifies a conversation entry.
type Kind string

const (
	KindUser    Kind = "user"
	KindPlan    Kind = "plan"
	KindSystem  Kind = "system"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Valid reports whether k is a known entry kind.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindPlan, KindSystem, KindSuccess, KindError:
		return true
	}
	return false
}

// Entry is one conversation item. IDs are strictly increasing within a
// session, which keeps ordering deterministic even when timestamps collide.
type Entry struct {
	ID        int64      `json:"id"`
	Kind      Kind       `json:"kind"`
	Text      string     `json:"text,omitempty"`
	Plan      *plan.Plan `json:"plan,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Storage persists conversation entries per session.
type Storage interface {
	AppendEntry(ctx context.Context, sessionID string, e Entry) error
	LoadEntries(ctx context.Context, sessionID string) ([]Entry, error)
	ClearEntries(ctx context.Context, sessionID string) error
}

// DecodeStoredPlan recovers a plan payload from storage. Old records
// sometimes hold the plan as a JSON-encoded string rather than an object, so
// the decoder tries the canonical shape first and then the string form.
func DecodeStoredPlan(raw string) (*plan.Plan, error) {
	var p plan.Plan
	if err := json.Unmarshal([]byte(raw), &p); err == nil && p.Goal != "" {
		return &p, nil
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		if parsed, _, err := plan.Decode(s); err == nil {
			return parsed, nil
		}
		return nil, fmt.Errorf("stored plan string is not a plan")
	}
	if parsed, _, err := plan.Decode(raw); err == nil {
		return parsed, nil
	}
	return nil, fmt.Errorf("stored plan payload is not a plan")
}

// Log is the in-memory conversation for one session, backed by Storage.
// Appends are persisted best-effort; a storage failure is logged and the
// in-memory log stays authoritative for the life of the process.
type Log struct {
	mu        sync.Mutex
	sessionID string
	storage   Storage
	logger    zerolog.Logger
	entries   []Entry
	nextID    int64
}

// Open loads the persisted conversation for sessionID. Entries that cannot
// be restored have already been discarded or downgraded by the storage layer.
func Open(ctx context.Context, sessionID string, storage Storage, logger zerolog.Logger) (*Log, error) {
	entries, err := storage.LoadEntries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	l := &Log{
		sessionID: sessionID,
		storage:   storage,
		logger:    logger.With().Str("component", "convlog").Str("session_id", sessionID).Logger(),
		entries:   entries,
		nextID:    1,
	}
	for _, e := range entries {
		if e.ID >= l.nextID {
			l.nextID = e.ID + 1
		}
	}
	return l, nil
}

// Append adds a text entry.
func (l *Log) Append(ctx context.Context, kind Kind, text string) Entry {
	return l.append(ctx, Entry{Kind: kind, Text: text})
}

// AppendPlan adds a plan entry. The text carries the plan's explanation for
// transcript rendering.
func (l *Log) AppendPlan(ctx context.Context, p *plan.Plan) Entry {
	return l.append(ctx, Entry{Kind: KindPlan, Text: p.Explanation, Plan: p})
}

func (l *Log) append(ctx context.Context, e Entry) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.ID = l.nextID
	l.nextID++
	e.Timestamp = time.Now().UTC()
	l.entries = append(l.entries, e)

	if err := l.storage.AppendEntry(ctx, l.sessionID, e); err != nil {
		l.logger.Warn().Err(err).Int64("entry_id", e.ID).Msg("failed to persist conversation entry")
	}
	return e
}

// All returns a copy of the conversation in append order.
func (l *Log) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops the conversation, in memory and in storage. IDs keep counting
// from where they were so old and new entries never collide.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	if err := l.storage.ClearEntries(ctx, l.sessionID); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}
