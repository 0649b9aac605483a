package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_New(t *testing.T) {
	m := New()
	assert.NotNil(t, m.PlansGenerated)
	assert.NotNil(t, m.PlanFormatErrors)
	assert.NotNil(t, m.ExecutionsTotal)
	assert.NotNil(t, m.FileActionsTotal)
	assert.NotNil(t, m.CompletionDuration)
	assert.NotNil(t, m.PushesTotal)
	assert.NotNil(t, m.SessionsActive)
}

func TestMetrics_RecordPlan(t *testing.T) {
	m := New()
	m.RecordPlan("ok")
	m.RecordPlan("ok")
	m.RecordPlan("format_error")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `buildbox_plans_generated_total{outcome="ok"} 2`)
	assert.Contains(t, body, `buildbox_plans_generated_total{outcome="format_error"} 1`)
}

func TestMetrics_RecordFileAction(t *testing.T) {
	m := New()
	m.RecordFileAction("create", "success")
	m.RecordFileAction("edit", "warning")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `buildbox_file_actions_total{action="create",level="success"} 1`)
	assert.Contains(t, body, `buildbox_file_actions_total{action="edit",level="warning"} 1`)
}

func TestMetrics_RecordExecutionAndPush(t *testing.T) {
	m := New()
	m.RecordExecution("ok")
	m.RecordPush("error")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `buildbox_executions_total{outcome="ok"} 1`)
	assert.Contains(t, body, `buildbox_pushes_total{outcome="error"} 1`)
}

func TestMetrics_ObserveCompletion(t *testing.T) {
	m := New()
	m.ObserveCompletion(1.5)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, "buildbox_completion_duration_seconds")
}

func TestMetrics_SessionsActive(t *testing.T) {
	m := New()
	m.SessionsActive.Set(3)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, "buildbox_sessions_active 3")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	handler := m.Handler()
	assert.NotNil(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func getMetricsBody(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	return strings.TrimSpace(string(body))
}
