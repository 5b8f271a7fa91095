package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/auth"
	"worktrail/backend/internal/services"
)

// handleCreateReview writes the single review of a finished execution.
// (POST /api/reviews)
func (s *Server) handleCreateReview(c echo.Context) error {
	var in services.ReviewInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}

	rev, err := s.Reviews.Create(c.Request().Context(), auth.CurrentUser(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, rev)
}

// handleListReviews returns the caller's reviews plus public ones.
// (GET /api/reviews)
func (s *Server) handleListReviews(c echo.Context) error {
	reviews, err := s.Reviews.List(c.Request().Context(), auth.CurrentUser(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, reviews)
}

// handleGetReview returns one review with its attachments.
// (GET /api/reviews/:id)
func (s *Server) handleGetReview(c echo.Context) error {
	rev, err := s.Reviews.Get(c.Request().Context(), auth.CurrentUser(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, rev)
}

// handleUpdateReview edits a review.
// (PUT /api/reviews/:id)
func (s *Server) handleUpdateReview(c echo.Context) error {
	var in services.ReviewInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}

	rev, err := s.Reviews.Update(c.Request().Context(), auth.CurrentUser(c), c.Param("id"), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, rev)
}

// handleDeleteReview removes a review with its attachments.
// (DELETE /api/reviews/:id)
func (s *Server) handleDeleteReview(c echo.Context) error {
	if err := s.Reviews.Delete(c.Request().Context(), auth.CurrentUser(c), c.Param("id")); err != nil {
		return err
	}
	return respondMsg(c, http.StatusOK, nil, "review deleted")
}
