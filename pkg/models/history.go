package models

import (
	"time"
)

// ExecutionFilter narrows history queries. Zero values mean "no constraint".
type ExecutionFilter struct {
	OwnerID    string
	WorkflowID string
	Status     ExecutionStatus
	Priority   Priority
	HasReview  *bool
	From       *time.Time
	To         *time.Time
	Search     string
}

// PageRequest is shared pagination/sorting input.
type PageRequest struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string // asc|desc
}

// Normalize clamps a page request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
	return p
}

// Offset returns the row offset for the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the metadata returned with every paged response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// HistoryEntry is an execution enriched with the derived reporting fields.
type HistoryEntry struct {
	Execution
	DurationMs     *int64  `json:"duration_ms,omitempty"`
	CompletionRate float64 `json:"completion_rate"`
	HasReview      bool    `json:"has_review"`
}

// StatusCount is one bucket of a grouped aggregation.
type StatusCount struct {
	Status ExecutionStatus `json:"status"`
	Count  int             `json:"count"`
}

// WorkflowCount aggregates executions per workflow.
type WorkflowCount struct {
	WorkflowID   string `json:"workflow_id"`
	WorkflowName string `json:"workflow_name"`
	Count        int    `json:"count"`
	Completed    int    `json:"completed"`
}

// TrendBucket aggregates executions per calendar month or week.
type TrendBucket struct {
	Bucket         string  `json:"bucket"` // e.g. 2026-08 or 2026-W34
	Count          int     `json:"count"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// ExecutionStats is the payload of the history stats endpoint.
type ExecutionStats struct {
	Total          int             `json:"total"`
	ByStatus       []StatusCount   `json:"by_status"`
	ByWorkflow     []WorkflowCount `json:"by_workflow"`
	CompletionRate float64         `json:"completion_rate"`
}
