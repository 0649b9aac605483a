// Package session owns the lifecycle of editing sessions. A session binds a
// repository working copy, its conversation, and at most one pending plan,
// and moves through a small state machine that serializes the
// generate/review/execute/push workflow.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/mtnmerc/buildbox-agent/internal/convlog"
	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
	"github.com/mtnmerc/buildbox-agent/internal/plan"
	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

// State is the session workflow state.
type State string

const (
	StateIdle          State = "idle"
	StateGenerating    State = "generating"
	StatePendingReview State = "pending_review"
	StateExecuting     State = "executing"
	StatePushing       State = "pushing"
)

// Session is one live editing session.
type Session struct {
	ID        string
	Owner     string
	Repo      string
	Branch    string
	Files     *workspace.Store
	Log       *convlog.Log
	CreatedAt time.Time

	mu      sync.Mutex
	state   State
	pending *plan.Plan
	seq     uint64
}

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingPlan returns the plan awaiting review, if any.
func (s *Session) PendingPlan() (*plan.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.pending != nil
}

// BeginGenerate moves the session into generating and returns a sequence
// token for the attempt. Starting a new generation while a plan is pending
// discards that plan; only the result carrying the newest token will ever be
// accepted, so an older in-flight generation can no longer clobber state.
func (s *Session) BeginGenerate() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle, StatePendingReview, StateGenerating:
	default:
		return 0, fmt.Errorf("cannot generate while %s", s.state)
	}
	s.pending = nil
	s.state = StateGenerating
	s.seq++
	return s.seq, nil
}

// FinishGenerate installs the generated plan as pending, unless the token is
// stale. Stale results are dropped without touching state.
func (s *Session) FinishGenerate(token uint64, p *plan.Plan) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.seq {
		return false
	}
	s.pending = p
	s.state = StatePendingReview
	return true
}

// FailGenerate returns the session to idle after a failed attempt, unless a
// newer attempt has already taken over.
func (s *Session) FailGenerate(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.seq {
		return false
	}
	s.pending = nil
	s.state = StateIdle
	return true
}

// BeginExecute claims the pending plan for execution.
func (s *Session) BeginExecute() (*plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePendingReview || s.pending == nil {
		return nil, berrors.ErrNoPendingPlan
	}
	s.state = StateExecuting
	return s.pending, nil
}

// FinishExecute clears the pending plan and returns to idle, whatever the
// execution outcome. A failed run left the working copy untouched, so the
// user regenerates from a clean state rather than re-running a suspect plan.
func (s *Session) FinishExecute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.state = StateIdle
}

// CancelPlan discards the pending plan. A no-op when nothing is pending.
func (s *Session) CancelPlan() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePendingReview && s.pending == nil {
		return false
	}
	had := s.pending != nil
	s.pending = nil
	if s.state == StatePendingReview {
		s.state = StateIdle
	}
	return had
}

// DirectEdit applies fn to the working copy, unless an execution or push is
// consuming it. The session lock held here is the same one state transitions
// take, so an accepted edit is fully visible to the next executor snapshot
// and can never be clobbered by a concurrent publish.
func (s *Session) DirectEdit(fn func(files *workspace.Store)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateExecuting || s.state == StatePushing {
		return fmt.Errorf("cannot edit files while %s", s.state)
	}
	fn(s.Files)
	return nil
}

// BeginPush moves an idle session into pushing.
func (s *Session) BeginPush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("cannot push while %s", s.state)
	}
	s.state = StatePushing
	return nil
}

// FinishPush returns the session to idle.
func (s *Session) FinishPush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
}
