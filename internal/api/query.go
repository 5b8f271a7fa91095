package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/pkg/models"
)

// parseExecutionQuery reads the shared list/history query parameters.
func parseExecutionQuery(c echo.Context) (models.ExecutionFilter, models.PageRequest, error) {
	filter := models.ExecutionFilter{
		OwnerID:    c.QueryParam("owner_id"),
		WorkflowID: c.QueryParam("workflow_id"),
		Status:     models.ExecutionStatus(c.QueryParam("status")),
		Priority:   models.Priority(c.QueryParam("priority")),
		Search:     c.QueryParam("search"),
	}

	if v := c.QueryParam("has_review"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, models.PageRequest{}, apperr.Validation("has_review must be a boolean")
		}
		filter.HasReview = &b
	}

	var err error
	if filter.From, err = parseDate(c.QueryParam("from")); err != nil {
		return filter, models.PageRequest{}, err
	}
	if filter.To, err = parseDate(c.QueryParam("to")); err != nil {
		return filter, models.PageRequest{}, err
	}

	page := models.PageRequest{
		Page:      intParam(c, "page"),
		Limit:     intParam(c, "limit"),
		SortBy:    c.QueryParam("sort_by"),
		SortOrder: c.QueryParam("sort_order"),
	}
	return filter, page, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("invalid date %q, expected RFC 3339 or YYYY-MM-DD", v)
}

func intParam(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}
