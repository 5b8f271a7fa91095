package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/auth"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister creates a local account.
// (POST /api/auth/register)
func (s *Server) handleRegister(c echo.Context) error {
	var in auth.RegisterInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}

	user, token, err := s.Auth.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, map[string]any{"user": user, "token": token})
}

// handleLogin verifies credentials and issues a bearer token.
// (POST /api/auth/login)
func (s *Server) handleLogin(c echo.Context) error {
	var in credentials
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}

	user, token, err := s.Auth.Login(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]any{"user": user, "token": token})
}

// handleMe returns the calling user.
// (GET /api/auth/me)
func (s *Server) handleMe(c echo.Context) error {
	return respond(c, http.StatusOK, auth.CurrentUser(c))
}
