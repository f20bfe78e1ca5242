// Package mcp exposes the FSM lifecycle — the same start_fsm/
// confirm_state/provide_feedback/complete_fsm operations the driving
// LLM calls inside an AgentSession — directly to an MCP client, so a
// human operator or IDE can step an application's generation by hand
// without going through the HTTP/SSE surface.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/appdotbuild/agent/pkg/agentsession"
	"github.com/appdotbuild/agent/pkg/toolprocessor"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps a mark3labs/mcp-go server exposing the four FSM tools
// against a registry of in-flight Apps keyed by an opaque session id,
// mirroring SessionManager's keying on the HTTP side but operating on
// the lower-level toolprocessor.App rather than a full AgentSession,
// since MCP tool calls are synchronous request/response rather than
// an SSE stream.
type Server struct {
	mcpServer *server.MCPServer
	builder   agentsession.AppBuilder

	mu   sync.Mutex
	apps map[string]toolprocessor.App
}

// NewServer builds an MCP server backed by builder for constructing Apps.
func NewServer(builder agentsession.AppBuilder) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("agent-server", "1.0.0", server.WithToolCapabilities(true)),
		builder:   builder,
		apps:      map[string]toolprocessor.App{},
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("start_fsm",
			mcp.WithDescription("Start a new interactive FSM session for application generation"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Opaque id identifying this FSM session"),
			),
			mcp.WithString("app_description",
				mcp.Required(),
				mcp.Description("Description of the application to generate"),
			),
		),
		s.handleStartFSM,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("confirm_state",
			mcp.WithDescription("Accept the current FSM state output and advance to the next state"),
			mcp.WithString("session_id", mcp.Required()),
		),
		s.handleConfirmState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("provide_feedback",
			mcp.WithDescription("Submit feedback for the current FSM state and trigger revision"),
			mcp.WithString("session_id", mcp.Required()),
			mcp.WithString("feedback", mcp.Required()),
			mcp.WithString("component_name",
				mcp.Description("Optional component name for handler-specific feedback"),
			),
		),
		s.handleProvideFeedback,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("complete_fsm",
			mcp.WithDescription("Finalize and return all generated artifacts from the FSM"),
			mcp.WithString("session_id", mcp.Required()),
		),
		s.handleCompleteFSM,
	)
}

func (s *Server) handleStartFSM(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	description := request.GetString("app_description", "")
	if description == "" {
		return mcp.NewToolResultError("app_description parameter is required"), nil
	}

	app, err := s.builder.New(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build app: %v", err)), nil
	}
	if err := app.Start(ctx, description); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("start: %v", err)), nil
	}

	s.put(sessionID, app)
	return stateResult(app)
}

func (s *Server) handleConfirmState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	app, ok := s.get(sessionID)
	if !ok {
		return mcp.NewToolResultError("no active FSM session for " + sessionID), nil
	}
	if err := app.Confirm(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("confirm: %v", err)), nil
	}
	return stateResult(app)
}

func (s *Server) handleProvideFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	feedback := request.GetString("feedback", "")
	if feedback == "" {
		return mcp.NewToolResultError("feedback parameter is required"), nil
	}
	componentName := request.GetString("component_name", "")

	app, ok := s.get(sessionID)
	if !ok {
		return mcp.NewToolResultError("no active FSM session for " + sessionID), nil
	}
	if err := app.ProvideFeedback(ctx, feedback, componentName); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("provide_feedback: %v", err)), nil
	}
	return stateResult(app)
}

func (s *Server) handleCompleteFSM(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	app, ok := s.get(sessionID)
	if !ok {
		return mcp.NewToolResultError("no active FSM session for " + sessionID), nil
	}
	appCtx, err := app.Complete(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("complete: %v", err)), nil
	}
	s.delete(sessionID)

	payload, err := json.Marshal(appCtx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func stateResult(app toolprocessor.App) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(map[string]any{
		"state":  app.CurrentState(),
		"active": app.IsActive(),
		"failed": app.IsFailed(),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) put(sessionID string, app toolprocessor.App) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[sessionID] = app
}

func (s *Server) get(sessionID string) (toolprocessor.App, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[sessionID]
	return app, ok
}

func (s *Server) delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apps, sessionID)
}

// ServeStdio runs the MCP server over stdio, for IDE/CLI integration.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
