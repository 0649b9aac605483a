// Package executor applies an approved plan to a workspace store. Execution
// is all-or-nothing at the store level: changes accumulate against a
// snapshot and the store only ever observes the fully-applied result.
package executor

import (
	"fmt"

	"github.com/rs/zerolog"

	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
	"github.com/mtnmerc/buildbox-agent/internal/metrics"
	"github.com/mtnmerc/buildbox-agent/internal/plan"
	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

// Record levels. Warnings do not fail the run.
const (
	LevelApplied = "applied"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// ActionRecord describes the outcome of one plan entry, in plan order.
type ActionRecord struct {
	Index    int    `json:"index"`
	Filename string `json:"filename,omitempty"`
	Action   string `json:"action,omitempty"`
	Level    string `json:"level"`
	Message  string `json:"message"`
}

// Executor applies plans to workspace stores.
type Executor struct {
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func New(m *metrics.Metrics, logger zerolog.Logger) *Executor {
	return &Executor{
		metrics: m,
		logger:  logger.With().Str("component", "executor").Logger(),
	}
}

// Execute applies p to store. Changes apply in plan order against a private
// snapshot; later entries touching the same path see earlier results, and the
// last write wins. Missing edit or delete targets produce warnings and the
// run continues. Only a successful run publishes to the store.
func (e *Executor) Execute(p *plan.Plan, store *workspace.Store) (records []ActionRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.RecordExecution("error")
			e.logger.Error().Interface("panic", r).Msg("plan execution aborted")
			records = nil
			err = &berrors.ExecutionError{ChangeIndex: -1, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if p.IsNoop() {
		e.metrics.RecordExecution("noop")
		e.logger.Info().Str("goal", p.Goal).Msg("plan has no file changes")
		return []ActionRecord{{Index: 0, Level: LevelInfo, Message: "plan contained no file changes"}}, nil
	}

	next := store.Snapshot()
	records = make([]ActionRecord, 0, len(p.Files))

	for i, change := range p.Files {
		rec := ActionRecord{Index: i, Filename: change.Filename, Action: string(change.Action)}

		switch change.Action {
		case plan.ActionCreate:
			content := ""
			if change.Content != nil {
				content = *change.Content
			}
			if existing, ok := next[change.Filename]; ok {
				// Create over an existing path behaves as an edit.
				existing.Content = content
				existing.IsModified = true
				next[change.Filename] = existing
				rec.Level = LevelApplied
				rec.Message = "created (overwrote existing file)"
			} else {
				r := workspace.NewRecord(change.Filename, content)
				r.IsNew = true
				next[change.Filename] = r
				rec.Level = LevelApplied
				rec.Message = "created"
			}

		case plan.ActionEdit:
			existing, ok := next[change.Filename]
			if !ok {
				rec.Level = LevelWarning
				rec.Message = "skipped: file not found"
				break
			}
			if change.Content != nil {
				existing.Content = *change.Content
			}
			existing.IsModified = true
			next[change.Filename] = existing
			rec.Level = LevelApplied
			if change.Content == nil {
				rec.Message = "marked modified (no content supplied)"
			} else {
				rec.Message = "edited"
			}

		case plan.ActionDelete:
			if _, ok := next[change.Filename]; !ok {
				rec.Level = LevelWarning
				rec.Message = "skipped: file not found"
				break
			}
			delete(next, change.Filename)
			rec.Level = LevelApplied
			rec.Message = "deleted"

		default:
			// Decode drops unknown actions, so this is an internal fault.
			e.metrics.RecordExecution("error")
			return nil, &berrors.ExecutionError{
				ChangeIndex: i,
				Err:         fmt.Errorf("unknown action %q", change.Action),
			}
		}

		e.metrics.RecordFileAction(string(change.Action), rec.Level)
		if rec.Level == LevelWarning {
			e.logger.Warn().Str("path", change.Filename).Str("action", string(change.Action)).Msg(rec.Message)
		}
		records = append(records, rec)
	}

	store.Replace(next)
	e.metrics.RecordExecution("success")
	e.logger.Info().Str("goal", p.Goal).Int("changes", len(p.Files)).Msg("plan executed")
	return records, nil
}
