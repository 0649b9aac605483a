package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mtnmerc/buildbox-agent/internal/convlog"
	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
	"github.com/mtnmerc/buildbox-agent/internal/executor"
	"github.com/mtnmerc/buildbox-agent/internal/health"
	"github.com/mtnmerc/buildbox-agent/internal/plan"
	"github.com/mtnmerc/buildbox-agent/internal/planner"
	"github.com/mtnmerc/buildbox-agent/internal/session"
	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

// PlanService generates plans and single-file edits.
type PlanService interface {
	Generate(ctx context.Context, goal string, files []workspace.FileRecord, selected string) (*plan.Plan, []string, error)
	EditFile(ctx context.Context, file workspace.FileRecord, instruction string) (*planner.EditResult, error)
}

// RepoService pulls and pushes repository contents. Nil when no GitHub
// credentials are configured.
type RepoService interface {
	Fetch(ctx context.Context, owner, repo, branch string) ([]workspace.FileRecord, string, error)
	Push(ctx context.Context, owner, repo, branch, message string, files []workspace.FileRecord) (string, error)
}

// Defaults is the fallback repository locator for sessions that omit one.
type Defaults struct {
	Owner  string
	Repo   string
	Branch string
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	sessions *session.Manager
	plans    PlanService
	exec     *executor.Executor
	repo     RepoService
	checker  *health.Checker
	defaults Defaults
	logger   zerolog.Logger
}

// NewHandlers creates a Handlers instance. repo may be nil.
func NewHandlers(sessions *session.Manager, plans PlanService, exec *executor.Executor, repo RepoService, checker *health.Checker, defaults Defaults, logger zerolog.Logger) *Handlers {
	return &Handlers{
		sessions: sessions,
		plans:    plans,
		exec:     exec,
		repo:     repo,
		checker:  checker,
		defaults: defaults,
		logger:   logger.With().Str("component", "handlers").Logger(),
	}
}

func sessionResponse(s *session.Session) SessionResponse {
	_, pending := s.PendingPlan()
	return SessionResponse{
		ID:         s.ID,
		Owner:      s.Owner,
		Repo:       s.Repo,
		Branch:     s.Branch,
		State:      s.State(),
		FileCount:  s.Files.Len(),
		HasPending: pending,
		CreatedAt:  s.CreatedAt,
	}
}

// CreateSession handles POST /api/v1/sessions.
func (h *Handlers) CreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if req.Owner == "" {
		req.Owner = h.defaults.Owner
	}
	if req.Repo == "" {
		req.Repo = h.defaults.Repo
	}
	if req.Branch == "" {
		req.Branch = h.defaults.Branch
	}

	var files []workspace.FileRecord
	switch {
	case len(req.Files) > 0:
		files = make([]workspace.FileRecord, 0, len(req.Files))
		for _, f := range req.Files {
			if f.Path == "" {
				return problemResponse(c, fiber.StatusBadRequest,
					"missing_path", "Bad Request",
					"Seed file is missing a path")
			}
			files = append(files, workspace.NewRecord(f.Path, f.Content))
		}
	case req.Owner != "" && req.Repo != "":
		if h.repo == nil {
			return problemResponse(c, fiber.StatusServiceUnavailable,
				"github_disabled", "Service Unavailable",
				"No GitHub credentials configured; seed the session with files instead")
		}
		var err error
		files, _, err = h.repo.Fetch(c.Context(), req.Owner, req.Repo, req.Branch)
		if err != nil {
			return h.serviceProblem(c, err)
		}
	}

	s, err := h.sessions.Create(c.Context(), req.Owner, req.Repo, req.Branch, files)
	if err != nil {
		return h.serviceProblem(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sessionResponse(s))
}

// ListSessions handles GET /api/v1/sessions.
func (h *Handlers) ListSessions(c *fiber.Ctx) error {
	live := h.sessions.List()
	out := make([]SessionResponse, 0, len(live))
	for _, s := range live {
		out = append(out, sessionResponse(s))
	}
	return c.JSON(SessionListResponse{Sessions: out, Total: len(out)})
}

// GetSession handles GET /api/v1/sessions/:id.
func (h *Handlers) GetSession(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}
	return c.JSON(sessionResponse(s))
}

// DeleteSession handles DELETE /api/v1/sessions/:id.
func (h *Handlers) DeleteSession(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.Context(), c.Params("id")); err != nil {
		return h.serviceProblem(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListFiles handles GET /api/v1/sessions/:id/files.
func (h *Handlers) ListFiles(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}
	files := s.Files.List()
	return c.JSON(FileListResponse{Files: files, Total: len(files)})
}

// GetFile handles GET /api/v1/sessions/:id/file?path=...
func (h *Handlers) GetFile(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}
	path := c.Query("path")
	if path == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_path", "Bad Request", "path query parameter is required")
	}
	rec, ok := s.Files.Get(path)
	if !ok {
		return problemResponse(c, fiber.StatusNotFound,
			"file_not_found", "Not Found", "File not found: "+path)
	}
	return c.JSON(rec)
}

// PutFile handles PUT /api/v1/sessions/:id/files.
func (h *Handlers) PutFile(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}
	var req PutFileRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.Path == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_path", "Bad Request", "path is required")
	}
	var rec workspace.FileRecord
	if err := s.DirectEdit(func(files *workspace.Store) {
		rec = files.Put(req.Path, req.Content)
	}); err != nil {
		return problemResponse(c, fiber.StatusConflict,
			"invalid_state", "Conflict", err.Error())
	}
	h.sessions.Touch(c.Context(), s.ID)
	return c.JSON(rec)
}

// GeneratePlan handles POST /api/v1/sessions/:id/plan.
func (h *Handlers) GeneratePlan(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}

	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	goal := strings.TrimSpace(req.Goal)
	if goal == "" {
		// Rejected before any state change or conversation entry.
		return problemResponse(c, fiber.StatusBadRequest,
			"empty_goal", "Bad Request", "goal is required")
	}

	token, err := s.BeginGenerate()
	if err != nil {
		return problemResponse(c, fiber.StatusConflict,
			"invalid_state", "Conflict", err.Error())
	}
	s.Log.Append(c.Context(), convlog.KindUser, goal)

	p, warnings, err := h.plans.Generate(c.Context(), goal, s.Files.List(), req.SelectedFile)
	if err != nil {
		if s.FailGenerate(token) {
			s.Log.Append(c.Context(), convlog.KindError, err.Error())
		}
		return h.serviceProblem(c, err)
	}

	if !s.FinishGenerate(token, p) {
		// A newer request superseded this one while it was in flight.
		return problemResponse(c, fiber.StatusConflict,
			"superseded", "Conflict", "A newer plan request superseded this one")
	}

	s.Log.AppendPlan(c.Context(), p)
	for _, w := range warnings {
		s.Log.Append(c.Context(), convlog.KindSystem, w)
	}
	h.sessions.Touch(c.Context(), s.ID)
	return c.JSON(PlanResponse{Plan: p, Warnings: warnings})
}

// GetPlan handles GET /api/v1/sessions/:id/plan.
func (h *Handlers) GetPlan(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}
	p, ok := s.PendingPlan()
	if !ok {
		return problemResponse(c, fiber.StatusNotFound,
			"no_pending_plan", "Not Found", "No plan is awaiting review")
	}
	return c.JSON(PlanResponse{Plan: p})
}

// ExecutePlan handles POST /api/v1/sessions/:id/plan/execute.
func (h *Handlers) ExecutePlan(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}

	p, err := s.BeginExecute()
	if err != nil {
		return problemResponse(c, fiber.StatusConflict,
			"no_pending_plan", "Conflict", "No plan is awaiting review")
	}

	records, err := h.exec.Execute(p, s.Files)
	s.FinishExecute()
	if err != nil {
		s.Log.Append(c.Context(), convlog.KindError, err.Error())
		return h.serviceProblem(c, err)
	}

	applied, skipped := 0, 0
	for _, r := range records {
		switch r.Level {
		case executor.LevelApplied:
			applied++
		case executor.LevelWarning:
			skipped++
		}
	}
	s.Log.Append(c.Context(), convlog.KindSuccess, executionSummary(p, applied, skipped))
	h.sessions.Touch(c.Context(), s.ID)
	return c.JSON(ExecuteResponse{Records: records, Applied: applied, Skipped: skipped})
}

func executionSummary(p *plan.Plan, applied, skipped int) string {
	if p.IsNoop() {
		return "Plan contained no file changes"
	}
	msg := fmt.Sprintf("Applied %d change(s)", applied)
	if skipped > 0 {
		msg += fmt.Sprintf(", skipped %d", skipped)
	}
	return msg
}

// CancelPlan handles DELETE /api/v1/sessions/:id/plan.
func (h *Handlers) CancelPlan(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}
	if !s.CancelPlan() {
		return problemResponse(c, fiber.StatusNotFound,
			"no_pending_plan", "Not Found", "No plan is awaiting review")
	}
	s.Log.Append(c.Context(), convlog.KindSystem, "Plan cancelled")
	return c.SendStatus(fiber.StatusNoContent)
}

// EditFile handles POST /api/v1/sessions/:id/edit, the single-file fast path
// that bypasses plan review.
func (h *Handlers) EditFile(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}

	var req EditFileRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	rec, ok := s.Files.Get(req.Path)
	if !ok {
		return problemResponse(c, fiber.StatusNotFound,
			"file_not_found", "Not Found", "File not found: "+req.Path)
	}

	result, err := h.plans.EditFile(c.Context(), rec, req.Instruction)
	if err != nil {
		s.Log.Append(c.Context(), convlog.KindError, err.Error())
		return h.serviceProblem(c, err)
	}

	var updated workspace.FileRecord
	if err := s.DirectEdit(func(files *workspace.Store) {
		updated = files.Put(req.Path, result.ModifiedContent)
	}); err != nil {
		return problemResponse(c, fiber.StatusConflict,
			"invalid_state", "Conflict", err.Error())
	}
	s.Log.Append(c.Context(), convlog.KindSuccess, "Edited "+req.Path+": "+result.Explanation)
	h.sessions.Touch(c.Context(), s.ID)
	return c.JSON(EditFileResponse{Explanation: result.Explanation, File: updated})
}

// Push handles POST /api/v1/sessions/:id/push.
func (h *Handlers) Push(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}
	if h.repo == nil {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"github_disabled", "Service Unavailable", "No GitHub credentials configured")
	}

	var req PushRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	if err := s.BeginPush(); err != nil {
		return problemResponse(c, fiber.StatusConflict,
			"invalid_state", "Conflict", err.Error())
	}
	defer s.FinishPush()

	files := s.Files.Modified()
	if len(files) == 0 {
		return problemResponse(c, fiber.StatusBadRequest,
			"nothing_to_push", "Bad Request", "No modified files to push")
	}

	sha, err := h.repo.Push(c.Context(), s.Owner, s.Repo, s.Branch, req.Message, files)
	if err != nil {
		s.Log.Append(c.Context(), convlog.KindError, err.Error())
		return h.serviceProblem(c, err)
	}

	s.Files.MarkSynced()
	s.Log.Append(c.Context(), convlog.KindSuccess,
		fmt.Sprintf("Pushed %d file(s) to %s/%s@%s (%s)", len(files), s.Owner, s.Repo, s.Branch, shortSHA(sha)))
	h.sessions.Touch(c.Context(), s.ID)
	return c.JSON(PushResponse{CommitSHA: sha, Files: len(files)})
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// GetLog handles GET /api/v1/sessions/:id/log.
func (h *Handlers) GetLog(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}
	entries := s.Log.All()
	if entries == nil {
		entries = []convlog.Entry{}
	}
	return c.JSON(LogResponse{Entries: entries, Total: len(entries)})
}

// ClearLog handles DELETE /api/v1/sessions/:id/log. Clearing the
// conversation also discards any plan awaiting review.
func (h *Handlers) ClearLog(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.serviceProblem(c, err)
	}
	s.CancelPlan()
	if err := s.Log.Clear(c.Context()); err != nil {
		return h.serviceProblem(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Suggestions handles GET /api/v1/suggestions.
func (h *Handlers) Suggestions(c *fiber.Ctx) error {
	return c.JSON(SuggestionsResponse{File: filePrompts, Project: projectPrompts})
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// serviceProblem maps domain errors onto problem responses.
func (h *Handlers) serviceProblem(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, berrors.ErrSessionNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"session_not_found", "Not Found", "Session not found")
	case errors.Is(err, berrors.ErrEmptyGoal):
		return problemResponse(c, fiber.StatusBadRequest,
			"empty_goal", "Bad Request", "goal is required")
	case errors.Is(err, berrors.ErrNoPendingPlan):
		return problemResponse(c, fiber.StatusConflict,
			"no_pending_plan", "Conflict", "No plan is awaiting review")
	case errors.Is(err, berrors.ErrTimeout):
		return problemResponse(c, fiber.StatusGatewayTimeout,
			"upstream_timeout", "Gateway Timeout", err.Error())
	}

	var fmtErr *berrors.PlanFormatError
	if errors.As(err, &fmtErr) {
		return problemResponse(c, fiber.StatusBadGateway,
			"plan_format", "Bad Gateway",
			"The completion service returned an unusable plan")
	}

	var svcErr *berrors.ServiceError
	if errors.As(err, &svcErr) {
		return problemResponse(c, fiber.StatusBadGateway,
			"upstream_error", "Bad Gateway", svcErr.Error())
	}

	var execErr *berrors.ExecutionError
	if errors.As(err, &execErr) {
		return problemResponse(c, fiber.StatusInternalServerError,
			"execution_failed", "Internal Server Error", execErr.Error())
	}

	h.logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled handler error")
	return problemResponse(c, fiber.StatusInternalServerError,
		"internal_error", "Internal Server Error", "An internal error occurred")
}
