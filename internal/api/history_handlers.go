package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"worktrail/backend/internal/auth"
)

// handleHistory pages over execution history with derived durations and
// completion rates.
// (GET /api/history/executions)
func (s *Server) handleHistory(c echo.Context) error {
	filter, page, err := parseExecutionQuery(c)
	if err != nil {
		return err
	}

	entries, pagination, err := s.History.List(c.Request().Context(), auth.CurrentUser(c), filter, page)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]any{
		"executions": entries,
		"pagination": pagination,
	})
}

// handleHistoryStats aggregates the caller's executions by status and
// workflow.
// (GET /api/history/stats)
func (s *Server) handleHistoryStats(c echo.Context) error {
	stats, err := s.History.Stats(c.Request().Context(), auth.CurrentUser(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, stats)
}

// handleHistoryTrends buckets executions per calendar month or week.
// (GET /api/history/trends?interval=month|week)
func (s *Server) handleHistoryTrends(c echo.Context) error {
	buckets, err := s.History.Trends(c.Request().Context(), auth.CurrentUser(c), c.QueryParam("interval"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, buckets)
}

// handleHistoryExport streams the filtered history as CSV or JSON.
// (GET /api/history/export?format=csv|json)
func (s *Server) handleHistoryExport(c echo.Context) error {
	filter, _, err := parseExecutionQuery(c)
	if err != nil {
		return err
	}

	data, contentType, err := s.History.Export(c.Request().Context(), auth.CurrentUser(c),
		filter, c.QueryParam("format"))
	if err != nil {
		return err
	}

	ext := "json"
	if contentType == "text/csv" {
		ext = "csv"
	}
	name := "executions-" + time.Now().Format("2006-01-02") + "." + ext
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, contentType, data)
}
