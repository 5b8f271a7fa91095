// Package mcp exposes a small tool surface over the workflow engine for
// MCP-speaking agents.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"worktrail/backend/internal/repository"
	"worktrail/backend/internal/services"
	"worktrail/backend/pkg/models"
)

type Server struct {
	mcpServer  *server.MCPServer
	workflows  *services.WorkflowService
	executions *services.ExecutionService
	repo       repository.Repository
}

func NewServer(workflows *services.WorkflowService, executions *services.ExecutionService, repo repository.Repository) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Worktrail",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		workflows:  workflows,
		executions: executions,
		repo:       repo,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List the workflows of a user"),
			mcp.WithString("user_email", mcp.Required(), mcp.Description("Email of the acting user")),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"start_execution",
			mcp.WithDescription("Start an execution of a workflow"),
			mcp.WithString("user_email", mcp.Required(), mcp.Description("Email of the acting user")),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow to run")),
			mcp.WithString("title", mcp.Description("Optional title for the execution")),
		),
		s.handleStartExecution,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"execution_status",
			mcp.WithDescription("Get the status and step records of an execution"),
			mcp.WithString("user_email", mcp.Required(), mcp.Description("Email of the acting user")),
			mcp.WithString("execution_id", mcp.Required(), mcp.Description("The ID of the execution")),
		),
		s.handleExecutionStatus,
	)
}

// resolveUser turns the user_email argument into the acting user.
func (s *Server) resolveUser(ctx context.Context, args map[string]interface{}) (*models.User, *mcp.CallToolResult) {
	email, ok := args["user_email"].(string)
	if !ok || email == "" {
		return nil, mcp.NewToolResultError("Missing required parameter: user_email")
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Unknown user: %s", email))
	}
	return user, nil
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	user, errResult := s.resolveUser(ctx, args)
	if errResult != nil {
		return errResult, nil
	}

	workflows, err := s.workflows.List(ctx, user)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflows)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleStartExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	user, errResult := s.resolveUser(ctx, args)
	if errResult != nil {
		return errResult, nil
	}

	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}
	title, _ := args["title"].(string)

	exec, err := s.executions.Start(ctx, user, services.StartExecutionInput{
		WorkflowID: workflowID,
		Title:      title,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start execution: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(exec)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleExecutionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	user, errResult := s.resolveUser(ctx, args)
	if errResult != nil {
		return errResult, nil
	}

	executionID, ok := args["execution_id"].(string)
	if !ok || executionID == "" {
		return mcp.NewToolResultError("Missing required parameter: execution_id"), nil
	}

	exec, err := s.executions.Get(ctx, user, executionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get execution: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(exec)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MountHTTPHandlers wires the MCP endpoints into a plain http mux.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// SSE server covers /mcp/sse and /mcp/message; direct POSTs hit /mcp
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
