package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/appdotbuild/agent/pkg/agentsession"
)

// version is set via -ldflags at build time.
var version = "dev"

// SetVersion sets the version string (called from main).
func SetVersion(v string) {
	version = v
}

// HealthResponse is the response for /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// WorkspaceHealthResponse is the response for /health/workspace.
type WorkspaceHealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the response for /version.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// ErrorResponse wraps a failed request's message.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sessions: s.sessions.Count()})
}

func (s *Server) handleWorkspaceHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger == nil {
		writeJSON(w, http.StatusOK, WorkspaceHealthResponse{Status: "unknown"})
		return
	}
	if err := s.pinger.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, WorkspaceHealthResponse{Status: "unreachable: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, WorkspaceHealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: version, Service: "agent-server"})
}

// handleMessage is the spec's single operation surface: POST /message
// decodes an AgentRequest, finds or creates the session for its
// (applicationId, traceId) pair, and streams the resulting events back
// as SSE, one `data: <json>\n\n` frame per agentsession.Event.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req agentsession.AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TraceID == "" {
		writeError(w, http.StatusBadRequest, "traceId is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	session := s.sessions.Get(req.ApplicationID, req.TraceID)
	events := session.Run(r.Context(), req)

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// SmokeCheckRequest names the preview URL to visually verify, once the
// caller has exposed the built frontend (the workspace sandbox itself
// has no public port).
type SmokeCheckRequest struct {
	URL string `json:"url"`
}

// SmokeCheckResponse reports whether the page rendered without
// JavaScript errors, plus a base64-encoded PNG for manual inspection.
type SmokeCheckResponse struct {
	Passed        bool     `json:"passed"`
	ConsoleErrors []string `json:"console_errors,omitempty"`
	ScreenshotB64 string   `json:"screenshot_base64,omitempty"`
}

// handleSmokeCheck drives a headless browser against a built frontend's
// preview URL, the optional post-Frontend-actor visual check: it
// catches a blank page or a thrown exception that static analysis of
// the generated code would miss.
func (s *Server) handleSmokeCheck(w http.ResponseWriter, r *http.Request) {
	var req SmokeCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := s.smoke.Check(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "smoke check failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SmokeCheckResponse{
		Passed:        result.Passed,
		ConsoleErrors: result.ConsoleErrors,
		ScreenshotB64: base64.StdEncoding.EncodeToString(result.Screenshot),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
