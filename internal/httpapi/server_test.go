package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/taskflow/internal/orchestrator"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

var testNow = time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC)

type stubHandler struct {
	instruction string
	caller      string
}

func (h *stubHandler) Handle(ctx context.Context, instruction string) *models.OutcomeReport {
	h.instruction = instruction
	h.caller = orchestrator.CallerFrom(ctx)
	return &models.OutcomeReport{
		ID:          "r1",
		Instruction: instruction,
		Caller:      h.caller,
		Status:      models.OutcomeOK,
		Steps:       []models.StepResult{{Index: 0, Tool: "list_tasks", Status: models.StepSucceeded, Summary: "Found 0 tasks."}},
		Summary:     "Found 0 tasks.",
	}
}

func newTestServer(t *testing.T, h Handler, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	srv := httptest.NewServer(New(h, registry.MustLoad(), opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestChat(t *testing.T) {
	h := &stubHandler{}
	srv := newTestServer(t, h)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", strings.NewReader(`{"message":"list all tasks"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CallerHeader, "alice")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "list all tasks", h.instruction)
	assert.Equal(t, "alice", h.caller)
	assert.Equal(t, "Found 0 tasks.", body.Response)
	assert.Equal(t, "2025-10-14T09:30:00Z", body.Timestamp)
	require.NotNil(t, body.Report)
	assert.Equal(t, models.OutcomeOK, body.Report.Status)
	assert.Len(t, body.Report.Steps, 1)
}

func TestChat_BadRequests(t *testing.T) {
	srv := newTestServer(t, &stubHandler{})

	for _, payload := range []string{`not json`, `{"message":"   "}`, `{}`} {
		resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
		assert.NotEmpty(t, body.Error)
	}
}

func TestTools(t *testing.T) {
	srv := newTestServer(t, &stubHandler{})

	resp, err := http.Get(srv.URL + "/api/tools?server=notify")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Tools []toolView `json:"tools"`
		Count int        `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 6, body.Count)
	for _, tool := range body.Tools {
		assert.Equal(t, "notify", tool.Server)
	}

	resp2, err := http.Get(srv.URL + "/api/tools?server=nope")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := orchestrator.NewMetrics("test")
	srv := newTestServer(t, &stubHandler{}, WithMetrics(metrics.Handler()))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(13), health["tools"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test_instructions_in_flight")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &stubHandler{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
