package repository

import (
	"context"
	"errors"

	"worktrail/backend/pkg/models"
)

// ErrNotFound is returned when a row does not exist. Services translate it
// into their own not-found/no-permission phrasing.
var ErrNotFound = errors.New("not found")

// HistoryRow is an execution plus the per-execution counts the reporting
// service derives its fields from.
type HistoryRow struct {
	Execution        models.Execution
	TotalRecords     int
	CompletedRecords int
	HasReview        bool
}

// TrendInterval selects the calendar bucketing for trend aggregation.
type TrendInterval string

const (
	TrendByMonth TrendInterval = "month"
	TrendByWeek  TrendInterval = "week"
)

// Repository is the persistence contract. All durable state lives behind
// it; multi-row writes are transactional inside the implementation.
type Repository interface {
	Ping(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Workflows
	CreateWorkflow(ctx context.Context, wf *models.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, ownerID string) ([]*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
	// ReplaceWorkflowSteps swaps the workflow's step set atomically.
	ReplaceWorkflowSteps(ctx context.Context, workflowID string, steps []models.WorkflowStep) error
	CountExecutionsByWorkflow(ctx context.Context, workflowID string) (int, error)

	// Executions
	// CreateExecutionWithRecords inserts the execution and all its step
	// records in one transaction (all-or-nothing).
	CreateExecutionWithRecords(ctx context.Context, exec *models.Execution, records []models.ExecutionRecord) error
	GetExecution(ctx context.Context, id string) (*models.Execution, error)
	UpdateExecution(ctx context.Context, exec *models.Execution) error
	DeleteExecution(ctx context.Context, id string) error
	ListExecutions(ctx context.Context, filter models.ExecutionFilter, page models.PageRequest) ([]*models.Execution, int, error)

	// Execution records
	GetExecutionRecord(ctx context.Context, id string) (*models.ExecutionRecord, error)
	ListExecutionRecords(ctx context.Context, executionID string) ([]models.ExecutionRecord, error)
	UpdateExecutionRecord(ctx context.Context, rec *models.ExecutionRecord) error

	// Attachments
	CreateAttachment(ctx context.Context, att *models.Attachment) error
	GetAttachment(ctx context.Context, id string) (*models.Attachment, error)
	ListAttachmentsByRecord(ctx context.Context, recordID string) ([]models.Attachment, error)
	ListAttachmentsByReview(ctx context.Context, reviewID string) ([]models.Attachment, error)
	// ListAttachmentsByExecution returns attachments of every record of the
	// execution, for cascade deletes.
	ListAttachmentsByExecution(ctx context.Context, executionID string) ([]models.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error

	// Reviews
	CreateReview(ctx context.Context, rev *models.Review) error
	GetReview(ctx context.Context, id string) (*models.Review, error)
	GetReviewByExecution(ctx context.Context, executionID string) (*models.Review, error)
	ListReviews(ctx context.Context, ownerID string, includePublic bool) ([]*models.Review, error)
	UpdateReview(ctx context.Context, rev *models.Review) error
	DeleteReview(ctx context.Context, id string) error

	// History / reporting
	ListHistory(ctx context.Context, filter models.ExecutionFilter, page models.PageRequest) ([]HistoryRow, int, error)
	CountByStatus(ctx context.Context, ownerID string) ([]models.StatusCount, error)
	CountByWorkflow(ctx context.Context, ownerID string) ([]models.WorkflowCount, error)
	Trends(ctx context.Context, ownerID string, interval TrendInterval) ([]models.TrendBucket, error)
}
