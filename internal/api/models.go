// Package api exposes the agent's HTTP surface: session lifecycle, file
// access, plan generation and review, direct edits, pushes, and the
// conversation log.
package api

import (
	"time"

	"github.com/mtnmerc/buildbox-agent/internal/convlog"
	"github.com/mtnmerc/buildbox-agent/internal/executor"
	"github.com/mtnmerc/buildbox-agent/internal/plan"
	"github.com/mtnmerc/buildbox-agent/internal/session"
	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

// --- Request DTOs ---

// CreateSessionRequest is the payload for POST /api/v1/sessions. Files may
// seed the working copy directly when no repository pull is wanted.
type CreateSessionRequest struct {
	Owner  string     `json:"owner,omitempty"`
	Repo   string     `json:"repo,omitempty"`
	Branch string     `json:"branch,omitempty"`
	Files  []SeedFile `json:"files,omitempty"`
}

// SeedFile is an inline file for sessions created without a repository.
type SeedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// GenerateRequest is the payload for POST /api/v1/sessions/:id/plan.
type GenerateRequest struct {
	Goal         string `json:"goal"`
	SelectedFile string `json:"selected_file,omitempty"`
}

// EditFileRequest is the payload for POST /api/v1/sessions/:id/edit.
type EditFileRequest struct {
	Path        string `json:"path"`
	Instruction string `json:"instruction"`
}

// PutFileRequest is the payload for PUT /api/v1/sessions/:id/files.
type PutFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// PushRequest is the payload for POST /api/v1/sessions/:id/push.
type PushRequest struct {
	Message string `json:"message,omitempty"`
}

// --- Response DTOs ---

// SessionResponse describes one session.
type SessionResponse struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner,omitempty"`
	Repo        string        `json:"repo,omitempty"`
	Branch      string        `json:"branch,omitempty"`
	State       session.State `json:"state"`
	FileCount   int           `json:"file_count"`
	HasPending  bool          `json:"has_pending_plan"`
	CreatedAt   time.Time     `json:"created_at"`
}

// SessionListResponse wraps the session list.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

// FileListResponse wraps a session's files.
type FileListResponse struct {
	Files []workspace.FileRecord `json:"files"`
	Total int                    `json:"total"`
}

// PlanResponse carries a generated plan plus any decoder warnings.
type PlanResponse struct {
	Plan     *plan.Plan `json:"plan"`
	Warnings []string   `json:"warnings,omitempty"`
}

// ExecuteResponse reports an execution run.
type ExecuteResponse struct {
	Records []executor.ActionRecord `json:"records"`
	Applied int                     `json:"applied"`
	Skipped int                     `json:"skipped"`
}

// EditFileResponse reports a direct single-file edit.
type EditFileResponse struct {
	Explanation string               `json:"explanation"`
	File        workspace.FileRecord `json:"file"`
}

// PushResponse reports a push.
type PushResponse struct {
	CommitSHA string `json:"commit_sha"`
	Files     int    `json:"files"`
}

// LogResponse wraps a session's conversation.
type LogResponse struct {
	Entries []convlog.Entry `json:"entries"`
	Total   int             `json:"total"`
}

// SuggestionsResponse lists canned prompts for the two edit modes.
type SuggestionsResponse struct {
	File    []string `json:"file"`
	Project []string `json:"project"`
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
