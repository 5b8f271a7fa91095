package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/auth"
	"worktrail/backend/internal/services"
	"worktrail/backend/pkg/models"
)

// handleStartExecution creates an execution of a workflow with one record
// per step. Passing "draft": true leaves it pending.
// (POST /api/executions)
func (s *Server) handleStartExecution(c echo.Context) error {
	var in services.StartExecutionInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}

	exec, err := s.Executions.Start(c.Request().Context(), auth.CurrentUser(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, exec)
}

// handleListExecutions pages over the caller's executions.
// (GET /api/executions)
func (s *Server) handleListExecutions(c echo.Context) error {
	filter, page, err := parseExecutionQuery(c)
	if err != nil {
		return err
	}

	executions, pagination, err := s.Executions.List(c.Request().Context(), auth.CurrentUser(c), filter, page)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]any{
		"executions": executions,
		"pagination": pagination,
	})
}

// handleGetExecution returns one execution with its step records.
// (GET /api/executions/:id)
func (s *Server) handleGetExecution(c echo.Context) error {
	exec, err := s.Executions.Get(c.Request().Context(), auth.CurrentUser(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, exec)
}

// handleDeleteExecution removes an execution, its records and attachments.
// (DELETE /api/executions/:id)
func (s *Server) handleDeleteExecution(c echo.Context) error {
	if err := s.Executions.Delete(c.Request().Context(), auth.CurrentUser(c), c.Param("id")); err != nil {
		return err
	}
	return respondMsg(c, http.StatusOK, nil, "execution deleted")
}

// lifecycle transitions

func (s *Server) handleExecutionStart(c echo.Context) error {
	return s.transition(c, s.Executions.StartPending)
}

func (s *Server) handleExecutionPause(c echo.Context) error {
	return s.transition(c, s.Executions.Pause)
}

func (s *Server) handleExecutionResume(c echo.Context) error {
	return s.transition(c, s.Executions.Resume)
}

func (s *Server) handleExecutionComplete(c echo.Context) error {
	return s.transition(c, s.Executions.Complete)
}

func (s *Server) handleExecutionCancel(c echo.Context) error {
	return s.transition(c, s.Executions.Cancel)
}

type transitionFunc func(ctx context.Context, user *models.User, id string) (*models.Execution, error)

func (s *Server) transition(c echo.Context, fn transitionFunc) error {
	exec, err := fn(c.Request().Context(), auth.CurrentUser(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, exec)
}

// step records

type stepActionBody struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func (s *Server) bindStepAction(c echo.Context) stepActionBody {
	var body stepActionBody
	// the body is optional on step actions
	_ = c.Bind(&body)
	return body
}

// handleStartStep moves a record to in progress, subject to the
// dependency gate.
// (POST /api/executions/:id/records/:recordId/start)
func (s *Server) handleStartStep(c echo.Context) error {
	rec, err := s.Executions.StartStep(c.Request().Context(), auth.CurrentUser(c),
		c.Param("id"), c.Param("recordId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, rec)
}

// handleCompleteStep finishes a record; this may auto-complete the
// execution.
// (POST /api/executions/:id/records/:recordId/complete)
func (s *Server) handleCompleteStep(c echo.Context) error {
	body := s.bindStepAction(c)
	rec, err := s.Executions.CompleteStep(c.Request().Context(), auth.CurrentUser(c),
		c.Param("id"), c.Param("recordId"), body.Notes)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, rec)
}

// handleSkipStep marks a record skipped with a reason.
// (POST /api/executions/:id/records/:recordId/skip)
func (s *Server) handleSkipStep(c echo.Context) error {
	body := s.bindStepAction(c)
	rec, err := s.Executions.SkipStep(c.Request().Context(), auth.CurrentUser(c),
		c.Param("id"), c.Param("recordId"), body.Reason)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, rec)
}

// handleFailStep marks a record failed, which fails the execution too.
// (POST /api/executions/:id/records/:recordId/fail)
func (s *Server) handleFailStep(c echo.Context) error {
	body := s.bindStepAction(c)
	rec, err := s.Executions.FailStep(c.Request().Context(), auth.CurrentUser(c),
		c.Param("id"), c.Param("recordId"), body.Reason)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, rec)
}

// handleUpdateStep applies a partial update to a record.
// (PUT /api/executions/:id/records/:recordId)
func (s *Server) handleUpdateStep(c echo.Context) error {
	var in services.UpdateStepInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}

	rec, err := s.Executions.UpdateStep(c.Request().Context(), auth.CurrentUser(c),
		c.Param("id"), c.Param("recordId"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, rec)
}
