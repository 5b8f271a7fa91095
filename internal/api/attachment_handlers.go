package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/auth"
	"worktrail/backend/internal/services"
)

// formUpload extracts the multipart file plus the optional metadata
// fields.
func formUpload(c echo.Context) (services.FileUpload, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return services.FileUpload{}, nil, apperr.Validation("no file provided")
	}
	f, err := fh.Open()
	if err != nil {
		return services.FileUpload{}, nil, apperr.Internal(err)
	}

	var tags []string
	if raw := c.FormValue("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	up := services.FileUpload{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
		Description: c.FormValue("description"),
		Tags:        tags,
	}
	return up, func() { _ = f.Close() }, nil
}

// handleUploadToRecord attaches a file to an execution record.
// (POST /api/records/:recordId/attachments)
func (s *Server) handleUploadToRecord(c echo.Context) error {
	up, closeFn, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closeFn()

	att, err := s.Attachments.UploadToRecord(c.Request().Context(), auth.CurrentUser(c),
		c.Param("recordId"), up)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, att)
}

// handleUploadToReview attaches a file to a review.
// (POST /api/reviews/:id/attachments)
func (s *Server) handleUploadToReview(c echo.Context) error {
	up, closeFn, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closeFn()

	att, err := s.Attachments.UploadToReview(c.Request().Context(), auth.CurrentUser(c),
		c.Param("id"), up)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, att)
}

// handleListRecordAttachments lists the attachments of a record.
// (GET /api/records/:recordId/attachments)
func (s *Server) handleListRecordAttachments(c echo.Context) error {
	attachments, err := s.Attachments.ListByRecord(c.Request().Context(), auth.CurrentUser(c),
		c.Param("recordId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, attachments)
}

// handleGetAttachment returns attachment metadata.
// (GET /api/attachments/:id)
func (s *Server) handleGetAttachment(c echo.Context) error {
	att, err := s.Attachments.Get(c.Request().Context(), auth.CurrentUser(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, att)
}

// handleDownloadAttachment streams the file back under its original name.
// (GET /api/attachments/:id/download)
func (s *Server) handleDownloadAttachment(c echo.Context) error {
	att, rc, err := s.Attachments.Open(c.Request().Context(), auth.CurrentUser(c), c.Param("id"))
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", att.OriginalName))
	return c.Stream(http.StatusOK, att.MimeType, rc)
}

// handleDeleteAttachment removes an attachment and its stored file.
// (DELETE /api/attachments/:id)
func (s *Server) handleDeleteAttachment(c echo.Context) error {
	if err := s.Attachments.Delete(c.Request().Context(), auth.CurrentUser(c), c.Param("id")); err != nil {
		return err
	}
	return respondMsg(c, http.StatusOK, nil, "attachment deleted")
}

// handleBatchDeleteAttachments removes several attachments in one call.
// (POST /api/attachments/batch-delete)
func (s *Server) handleBatchDeleteAttachments(c echo.Context) error {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	if len(body.IDs) == 0 {
		return apperr.Validation("ids is required")
	}

	deleted, err := s.Attachments.BatchDelete(c.Request().Context(), auth.CurrentUser(c), body.IDs)
	if err != nil {
		// partial progress still matters to the caller
		s.Logger.Warn("batch delete stopped early after %d: %v", deleted, err)
		return err
	}
	return respond(c, http.StatusOK, map[string]any{"deleted": deleted})
}
