package models

import (
	"time"
)

// ExecutionStatus is the lifecycle state of an execution.
//
// pending -> in_progress <-> paused
// in_progress -> completed | cancelled | failed
// completed and cancelled are terminal.
type ExecutionStatus string

const (
	ExecutionPending    ExecutionStatus = "pending"
	ExecutionInProgress ExecutionStatus = "in_progress"
	ExecutionPaused     ExecutionStatus = "paused"
	ExecutionCompleted  ExecutionStatus = "completed"
	ExecutionCancelled  ExecutionStatus = "cancelled"
	ExecutionFailed     ExecutionStatus = "failed"
)

// ValidExecutionStatus reports whether s is a known execution status.
func ValidExecutionStatus(s ExecutionStatus) bool {
	switch s {
	case ExecutionPending, ExecutionInProgress, ExecutionPaused,
		ExecutionCompleted, ExecutionCancelled, ExecutionFailed:
		return true
	}
	return false
}

// Priority ranks an execution for the owner's attention.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// RecordStatus is the state of one step within one execution.
type RecordStatus string

const (
	RecordPending    RecordStatus = "pending"
	RecordInProgress RecordStatus = "in_progress"
	RecordCompleted  RecordStatus = "completed"
	RecordSkipped    RecordStatus = "skipped"
	RecordFailed     RecordStatus = "failed"
)

// ValidRecordStatus reports whether s is a known record status.
func ValidRecordStatus(s RecordStatus) bool {
	switch s {
	case RecordPending, RecordInProgress, RecordCompleted, RecordSkipped, RecordFailed:
		return true
	}
	return false
}

// Execution is one run instance of a workflow, with its own status and
// per-step records.
type Execution struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	WorkflowID  string            `json:"workflow_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      ExecutionStatus   `json:"status"`
	Priority    Priority          `json:"priority"`
	Progress    int               `json:"progress"`
	Tags        []string          `json:"tags,omitempty"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	ReviewNotes *string           `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time        `json:"reviewed_at,omitempty"`
	Records     []ExecutionRecord `json:"records,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ExecutionRecord tracks the state of one workflow step within one
// execution. Exactly one record exists per (execution, step) pair.
type ExecutionRecord struct {
	ID              string         `json:"id"`
	ExecutionID     string         `json:"execution_id"`
	StepID          string         `json:"step_id"`
	Status          RecordStatus   `json:"status"`
	Notes           string         `json:"notes"`
	Result          map[string]any `json:"result,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	ActualDuration  *int           `json:"actual_duration,omitempty"` // minutes
	ReviewNotes     *string        `json:"review_notes,omitempty"`
	Step            *WorkflowStep  `json:"step,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
