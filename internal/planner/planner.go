// Package planner turns user goals into reviewable edit plans by prompting
// the completion service and decoding its response. It never retries a
// completion call; a failed generation is reported once and the user decides
// whether to ask again.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
	"github.com/mtnmerc/buildbox-agent/internal/llm"
	"github.com/mtnmerc/buildbox-agent/internal/metrics"
	"github.com/mtnmerc/buildbox-agent/internal/plan"
	"github.com/mtnmerc/buildbox-agent/internal/workspace"
)

// Planner generates plans and single-file edits.
type Planner struct {
	provider llm.Provider
	metrics  *metrics.Metrics
	timeout  time.Duration
	logger   zerolog.Logger
}

// New creates a Planner. timeout bounds each completion call.
func New(provider llm.Provider, m *metrics.Metrics, timeout time.Duration, logger zerolog.Logger) *Planner {
	return &Planner{
		provider: provider,
		metrics:  m,
		timeout:  timeout,
		logger:   logger.With().Str("component", "planner").Logger(),
	}
}

// Generate produces a plan for goal against the given working copy. The
// empty-goal check runs before any completion traffic so a blank submission
// costs nothing. Warnings describe file entries the decoder dropped.
func (p *Planner) Generate(ctx context.Context, goal string, files []workspace.FileRecord, selected string) (*plan.Plan, []string, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, nil, berrors.ErrEmptyGoal
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: planSystemPrompt,
		UserPrompt:   buildPlanPrompt(goal, files, selected),
	})
	p.metrics.ObserveCompletion(time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordPlan("error")
		return nil, nil, err
	}

	parsed, warnings, err := plan.Decode(resp.Text)
	if err != nil {
		p.metrics.RecordPlan("format_error")
		p.metrics.PlanFormatErrors.Inc()
		p.logger.Warn().Err(err).Msg("completion response is not a valid plan")
		return nil, nil, err
	}
	for _, w := range warnings {
		p.logger.Warn().Str("goal", goal).Msg(w)
	}

	p.metrics.RecordPlan("success")
	p.logger.Info().
		Str("goal", goal).
		Int("files", len(parsed.Files)).
		Dur("elapsed", time.Since(start)).
		Msg("plan generated")
	return parsed, warnings, nil
}

// EditResult is the outcome of a single-file edit.
type EditResult struct {
	Explanation     string `json:"explanation"`
	ModifiedContent string `json:"modifiedContent"`
}

// EditFile rewrites one file per the instruction, bypassing the plan review
// flow. The caller applies the returned content itself.
func (p *Planner) EditFile(ctx context.Context, file workspace.FileRecord, instruction string) (*EditResult, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, berrors.ErrEmptyGoal
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: editSystemPrompt,
		UserPrompt:   buildEditPrompt(file, instruction),
	})
	p.metrics.ObserveCompletion(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	text := plan.StripFences(resp.Text)
	var result EditResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, berrors.NewPlanFormatError(text, err)
	}
	if result.ModifiedContent == "" {
		return nil, berrors.NewPlanFormatError(text, fmt.Errorf("modifiedContent missing or empty"))
	}

	p.logger.Info().
		Str("path", file.Path).
		Dur("elapsed", time.Since(start)).
		Msg("file edited")
	return &result, nil
}
