package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/auth"
	"worktrail/backend/internal/services"
)

// handleListWorkflows returns the caller's workflows with their steps.
// (GET /api/workflows)
func (s *Server) handleListWorkflows(c echo.Context) error {
	workflows, err := s.Workflows.List(c.Request().Context(), auth.CurrentUser(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, workflows)
}

// handleCreateWorkflow creates a workflow with its steps.
// (POST /api/workflows)
func (s *Server) handleCreateWorkflow(c echo.Context) error {
	var in services.WorkflowInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}

	wf, err := s.Workflows.Create(c.Request().Context(), auth.CurrentUser(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, wf)
}

// handleGetWorkflow returns one workflow.
// (GET /api/workflows/:id)
func (s *Server) handleGetWorkflow(c echo.Context) error {
	wf, err := s.Workflows.Get(c.Request().Context(), auth.CurrentUser(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, wf)
}

// handleUpdateWorkflow updates a workflow; replacing steps is refused once
// executions exist.
// (PUT /api/workflows/:id)
func (s *Server) handleUpdateWorkflow(c echo.Context) error {
	var in services.WorkflowInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}

	wf, err := s.Workflows.Update(c.Request().Context(), auth.CurrentUser(c), c.Param("id"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, wf)
}

// handleDeleteWorkflow deletes a workflow without executions.
// (DELETE /api/workflows/:id)
func (s *Server) handleDeleteWorkflow(c echo.Context) error {
	if err := s.Workflows.Delete(c.Request().Context(), auth.CurrentUser(c), c.Param("id")); err != nil {
		return err
	}
	return respondMsg(c, http.StatusOK, nil, "workflow deleted")
}
