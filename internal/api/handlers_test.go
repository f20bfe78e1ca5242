package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/appdotbuild/agent/internal/config"
	"github.com/appdotbuild/agent/pkg/agentsession"
	"github.com/appdotbuild/agent/pkg/appfsm"
	"github.com/appdotbuild/agent/pkg/fsm"
	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/toolprocessor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuilder struct{}

func (fakeBuilder) New(ctx context.Context) (toolprocessor.App, error) {
	return &refusingApp{ctx: appfsm.NewApplicationContext("")}, nil
}
func (fakeBuilder) Restore(ctx context.Context, cp fsm.Checkpoint) (toolprocessor.App, error) {
	return &refusingApp{ctx: appfsm.NewApplicationContext("")}, nil
}

// refusingApp never activates, so every Run call ends in a single
// RefinementRequest event — enough to exercise the SSE wire format
// without standing up real actors.
type refusingApp struct {
	ctx *appfsm.ApplicationContext
}

func (a *refusingApp) IsActive() bool                                         { return false }
func (a *refusingApp) CurrentState() string                                   { return "IDLE" }
func (a *refusingApp) Context() *appfsm.ApplicationContext                    { return a.ctx }
func (a *refusingApp) IsTerminalCompletion() bool                             { return false }
func (a *refusingApp) IsFailed() bool                                         { return false }
func (a *refusingApp) Dump() (fsm.Checkpoint, error)                          { return fsm.Checkpoint{}, nil }
func (a *refusingApp) Start(ctx context.Context, d string) error              { return nil }
func (a *refusingApp) Confirm(ctx context.Context) error                      { return nil }
func (a *refusingApp) ProvideFeedback(ctx context.Context, f, c string) error  { return nil }
func (a *refusingApp) Complete(ctx context.Context) (*appfsm.ApplicationContext, error) {
	return a.ctx, nil
}

type fakeNames struct{}

func (fakeNames) GenerateAppName(ctx context.Context, userPrompt string) (string, error) {
	return "", nil
}
func (fakeNames) GenerateCommitMessage(ctx context.Context, diff string) (string, error) {
	return "", nil
}

type noopLLM struct{}

func (noopLLM) Completion(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (llm.Completion, error) {
	return llm.Completion{Content: []llm.ContentBlock{llm.TextRaw{Text: "no tool call"}}, StopReason: llm.StopEndTurn}, nil
}

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.APIKey = apiKey
	cfg.API.AllowedOrigins = []string{"*"}

	snapshots, err := agentsession.NewSnapshotStore("")
	require.NoError(t, err)

	sessions := NewSessionManager(noopLLM{}, fakeBuilder{}, fakeNames{}, snapshots)
	return NewServer(cfg, sessions, nil)
}

func TestHandleHealth_ReportsOK(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleWorkspaceHealth_UnknownWithoutPinger(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health/workspace", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp WorkspaceHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unknown", resp.Status)
}

func TestBearerAuth_RejectsMissingToken(t *testing.T) {
	s := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(`{"traceId":"t1"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuth_AllowsHealthWithoutToken(t *testing.T) {
	s := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMessage_StreamsSSEEvents(t *testing.T) {
	s := newTestServer(t, "")
	body := `{"traceId":"t1","applicationId":"a1","allFiles":{}}`
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "data: ")
}

func TestHandleMessage_RejectsMissingTraceID(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSmokeCheck_RejectsMissingURL(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/smoke-check", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
