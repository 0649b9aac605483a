package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/mtnmerc/buildbox-agent/internal/errors"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAnthropicProvider("sk-ant-test", zerolog.Nop(), WithBaseURL(srv.URL))
}

func TestComplete_Success(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "you are a planner", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, RoleUser, req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": `{"goal":"x"}`}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	})

	resp, err := p.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "you are a planner",
		UserPrompt:   "do the thing",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"goal":"x"}`, resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 10, resp.InputTokens)
}

func TestComplete_ConcatenatesTextBlocks(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "hello "},
				{"type": "text", "text": "world"},
			},
			"stop_reason": "end_turn",
		})
	})

	resp, err := p.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Text)
}

func TestComplete_APIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "authentication_error", "message": "invalid x-api-key"},
		})
	})

	_, err := p.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	var svcErr *berrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, 401, svcErr.StatusCode)
	assert.Contains(t, svcErr.Message, "invalid x-api-key")
}

func TestComplete_RateLimited(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "rate_limit_error", "message": "overloaded"},
		})
	})

	_, err := p.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	var svcErr *berrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, 429, svcErr.StatusCode)
}

func TestComplete_Timeout(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, CompletionRequest{UserPrompt: "hi"})
	var svcErr *berrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.ErrorIs(t, err, berrors.ErrTimeout)
}

func TestComplete_ModelOverride(t *testing.T) {
	var gotModel string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": "ok"}},
			"stop_reason": "end_turn",
		})
	})

	_, err := p.Complete(context.Background(), CompletionRequest{UserPrompt: "hi", Model: "claude-haiku-4"})
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4", gotModel)
	assert.Equal(t, defaultModel, p.ModelID())
}
