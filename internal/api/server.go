// Package api contains the HTTP handlers for the worktrail service.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/auth"
	"worktrail/backend/internal/logging"
	"worktrail/backend/internal/repository"
	"worktrail/backend/internal/services"
)

// Server holds the dependencies for the API server.
type Server struct {
	Auth        *auth.Auth
	Workflows   *services.WorkflowService
	Executions  *services.ExecutionService
	Attachments *services.AttachmentService
	Reviews     *services.ReviewService
	History     *services.HistoryService
	Repo        repository.Repository
	Logger      *logging.Logger
}

// NewServer creates a new Server.
func NewServer(
	a *auth.Auth,
	workflows *services.WorkflowService,
	executions *services.ExecutionService,
	attachments *services.AttachmentService,
	reviews *services.ReviewService,
	history *services.HistoryService,
	repo repository.Repository,
	logger *logging.Logger,
) *Server {
	return &Server{
		Auth:        a,
		Workflows:   workflows,
		Executions:  executions,
		Attachments: attachments,
		Reviews:     reviews,
		History:     history,
		Repo:        repo,
		Logger:      logger,
	}
}

// envelope is the uniform response shape.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func respondMsg(c echo.Context, status int, data any, msg string) error {
	return c.JSON(status, envelope{Success: true, Data: data, Message: msg})
}

// ErrorHandler is the echo HTTPErrorHandler: every failure becomes the
// uniform error envelope, internal causes stay in the logs.
func (s *Server) ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := apperr.CodeInternal
	message := "internal error"
	status := http.StatusInternalServerError

	var appErr *apperr.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		status = apperr.HTTPStatus(code)
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if status == http.StatusNotFound {
			code = apperr.CodeNotFound
			message = "resource not found"
		} else if m, ok := httpErr.Message.(string); ok {
			message = m
		}
	}

	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed method=%s path=%s: %v", c.Request().Method, c.Path(), err)
	}

	if writeErr := c.JSON(status, envelope{
		Success: false,
		Error:   &errorBody{Code: string(code), Message: message},
	}); writeErr != nil {
		s.Logger.Error("failed to write error response: %v", writeErr)
	}
}

// handleHealth reports service and database health.
func (s *Server) handleHealth(c echo.Context) error {
	checks := map[string]string{"database": "ok"}
	status := http.StatusOK
	if err := s.Repo.Ping(c.Request().Context()); err != nil {
		checks["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, envelope{Success: status == http.StatusOK, Data: map[string]any{
		"service": "worktrail",
		"checks":  checks,
	}})
}
