package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/observability"
	"worktrail/backend/internal/repository"
	"worktrail/backend/internal/storage"
	"worktrail/backend/pkg/models"
)

// ExecutionService owns the execution/step lifecycle: starting a workflow
// run, the status state machine, the per-step records, the dependency gate
// and the auto-completion check.
type ExecutionService struct {
	repo    repository.Repository
	files   storage.FileStore
	metrics observability.Sink
	now     func() time.Time
}

// NewExecutionService creates an ExecutionService.
func NewExecutionService(repo repository.Repository, files storage.FileStore, metrics observability.Sink) *ExecutionService {
	return &ExecutionService{
		repo:    repo,
		files:   files,
		metrics: metrics,
		now:     time.Now,
	}
}

func mapRepoErr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return apperr.Internal(err)
}

// StartExecutionInput is the validated payload for starting a run.
type StartExecutionInput struct {
	WorkflowID  string          `json:"workflow_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
	Tags        []string        `json:"tags"`
	DueDate     *time.Time      `json:"due_date"`
	// Draft creates the execution in pending without starting the clock.
	Draft bool `json:"draft"`
}

// Start creates an execution of the workflow plus one pending record per
// step, atomically. The workflow must exist, belong to the caller, be
// active and have at least one step.
func (s *ExecutionService) Start(ctx context.Context, user *models.User, in StartExecutionInput) (*models.Execution, error) {
	if in.WorkflowID == "" {
		return nil, apperr.Validation("workflow_id is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(in.Priority) {
		return nil, apperr.Validation("unknown priority %q", in.Priority)
	}

	wf, err := s.repo.GetWorkflow(ctx, in.WorkflowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("workflow not found or disabled")
		}
		return nil, apperr.Internal(err)
	}
	if !user.CanAccess(wf.OwnerID) {
		return nil, apperr.AccessDenied("workflow does not belong to you")
	}
	if !wf.Active {
		return nil, apperr.NotFound("workflow not found or disabled")
	}
	if len(wf.Steps) == 0 {
		return nil, apperr.Validation("workflow has no steps")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = wf.Name
	}

	exec := &models.Execution{
		ID:          uuid.New().String(),
		OwnerID:     user.ID,
		WorkflowID:  wf.ID,
		Title:       title,
		Description: in.Description,
		Status:      models.ExecutionInProgress,
		Priority:    in.Priority,
		Tags:        in.Tags,
		DueDate:     in.DueDate,
	}
	if in.Draft {
		exec.Status = models.ExecutionPending
	} else {
		now := s.now()
		exec.StartedAt = &now
	}

	records := make([]models.ExecutionRecord, 0, len(wf.Steps))
	for _, step := range wf.Steps {
		records = append(records, models.ExecutionRecord{
			ID:          uuid.New().String(),
			ExecutionID: exec.ID,
			StepID:      step.ID,
			Status:      models.RecordPending,
		})
	}

	if err := s.repo.CreateExecutionWithRecords(ctx, exec, records); err != nil {
		return nil, apperr.Internal(err)
	}
	s.metrics.ExecutionStarted(ctx)

	exec.Records = records
	return exec, nil
}

// Get returns the execution with its records, ownership-checked.
func (s *ExecutionService) Get(ctx context.Context, user *models.User, id string) (*models.Execution, error) {
	return s.getOwned(ctx, user, id)
}

func (s *ExecutionService) getOwned(ctx context.Context, user *models.User, id string) (*models.Execution, error) {
	exec, err := s.repo.GetExecution(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "execution")
	}
	if !user.CanAccess(exec.OwnerID) {
		return nil, apperr.AccessDenied("execution does not belong to you")
	}
	return exec, nil
}

// List pages over the caller's executions. Admins may pass an explicit
// owner filter; everyone else is pinned to their own.
func (s *ExecutionService) List(ctx context.Context, user *models.User, filter models.ExecutionFilter, page models.PageRequest) ([]*models.Execution, models.Pagination, error) {
	if filter.Status != "" && !models.ValidExecutionStatus(filter.Status) {
		return nil, models.Pagination{}, apperr.Validation("unknown status %q", filter.Status)
	}
	if filter.Priority != "" && !models.ValidPriority(filter.Priority) {
		return nil, models.Pagination{}, apperr.Validation("unknown priority %q", filter.Priority)
	}
	if user.Role != models.RoleAdmin || filter.OwnerID == "" {
		filter.OwnerID = user.ID
	}

	page = page.Normalize()
	executions, total, err := s.repo.ListExecutions(ctx, filter, page)
	if err != nil {
		return nil, models.Pagination{}, apperr.Internal(err)
	}
	return executions, paginationFor(page, total), nil
}

func paginationFor(page models.PageRequest, total int) models.Pagination {
	totalPages := (total + page.Limit - 1) / page.Limit
	return models.Pagination{Page: page.Page, Limit: page.Limit, Total: total, TotalPages: totalPages}
}

// StartPending moves a draft execution to in progress and starts the
// clock.
func (s *ExecutionService) StartPending(ctx context.Context, user *models.User, id string) (*models.Execution, error) {
	exec, err := s.getOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if exec.Status != models.ExecutionPending {
		return nil, apperr.InvalidTransition("cannot start execution in status %s", exec.Status)
	}
	now := s.now()
	exec.Status = models.ExecutionInProgress
	exec.StartedAt = &now
	return s.saveExecution(ctx, exec)
}

// Pause transitions a running execution to paused.
func (s *ExecutionService) Pause(ctx context.Context, user *models.User, id string) (*models.Execution, error) {
	exec, err := s.getOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if exec.Status != models.ExecutionInProgress {
		return nil, apperr.InvalidTransition("cannot pause execution in status %s", exec.Status)
	}
	exec.Status = models.ExecutionPaused
	return s.saveExecution(ctx, exec)
}

// Resume transitions a paused execution back to in progress.
func (s *ExecutionService) Resume(ctx context.Context, user *models.User, id string) (*models.Execution, error) {
	exec, err := s.getOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if exec.Status != models.ExecutionPaused {
		return nil, apperr.InvalidTransition("cannot resume execution in status %s", exec.Status)
	}
	exec.Status = models.ExecutionInProgress
	return s.saveExecution(ctx, exec)
}

// Cancel terminates a running or paused execution. Cancelled executions
// never resume or complete.
func (s *ExecutionService) Cancel(ctx context.Context, user *models.User, id string) (*models.Execution, error) {
	exec, err := s.getOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if exec.Status != models.ExecutionInProgress && exec.Status != models.ExecutionPaused {
		return nil, apperr.InvalidTransition("cannot cancel execution in status %s", exec.Status)
	}
	exec.Status = models.ExecutionCancelled
	return s.saveExecution(ctx, exec)
}

// Complete finishes a running execution, provided every required step's
// record is completed. Otherwise it reports how many are outstanding.
func (s *ExecutionService) Complete(ctx context.Context, user *models.User, id string) (*models.Execution, error) {
	exec, err := s.getOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if exec.Status != models.ExecutionInProgress {
		return nil, apperr.InvalidTransition("cannot complete execution in status %s", exec.Status)
	}

	outstanding := 0
	for _, rec := range exec.Records {
		if rec.Step != nil && rec.Step.Required && rec.Status != models.RecordCompleted {
			outstanding++
		}
	}
	if outstanding > 0 {
		return nil, apperr.IncompleteRequiredSteps(outstanding)
	}

	now := s.now()
	exec.Status = models.ExecutionCompleted
	exec.CompletedAt = &now
	exec.Progress = 100
	updated, err := s.saveExecution(ctx, exec)
	if err != nil {
		return nil, err
	}
	s.metrics.ExecutionCompleted(ctx)
	return updated, nil
}

// Delete removes the execution, its records and their attachments. The
// attachments' files are removed from storage first; a file already gone
// is not an error.
func (s *ExecutionService) Delete(ctx context.Context, user *models.User, id string) error {
	exec, err := s.getOwned(ctx, user, id)
	if err != nil {
		return err
	}

	attachments, err := s.repo.ListAttachmentsByExecution(ctx, exec.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	for _, att := range attachments {
		if err := s.files.Remove(att.StoredPath); err != nil {
			return apperr.Internal(err)
		}
	}

	if err := s.repo.DeleteExecution(ctx, exec.ID); err != nil {
		return mapRepoErr(err, "execution")
	}
	return nil
}

func (s *ExecutionService) saveExecution(ctx context.Context, exec *models.Execution) (*models.Execution, error) {
	if err := s.repo.UpdateExecution(ctx, exec); err != nil {
		return nil, mapRepoErr(err, "execution")
	}
	return exec, nil
}

// ----- step records -----

// UpdateStepInput is the payload for the generic record update. Nil fields
// are left untouched.
type UpdateStepInput struct {
	Status         *models.RecordStatus `json:"status"`
	Notes          *string              `json:"notes"`
	Result         map[string]any       `json:"result"`
	ActualDuration *int                 `json:"actual_duration"`
	ReviewNotes    *string              `json:"review_notes"`
}

// findRecord locates a record of the execution by id.
func findRecord(exec *models.Execution, recordID string) *models.ExecutionRecord {
	for i := range exec.Records {
		if exec.Records[i].ID == recordID {
			return &exec.Records[i]
		}
	}
	return nil
}

// getOwnedRecord loads the execution (ownership-checked) and the addressed
// record, refusing mutations on terminal executions.
func (s *ExecutionService) getOwnedRecord(ctx context.Context, user *models.User, executionID, recordID string) (*models.Execution, *models.ExecutionRecord, error) {
	exec, err := s.getOwned(ctx, user, executionID)
	if err != nil {
		return nil, nil, err
	}
	switch exec.Status {
	case models.ExecutionCompleted, models.ExecutionCancelled, models.ExecutionFailed:
		return nil, nil, apperr.InvalidTransition("execution is %s; its steps can no longer change", exec.Status)
	}
	rec := findRecord(exec, recordID)
	if rec == nil {
		return nil, nil, apperr.NotFound("execution record not found")
	}
	return exec, rec, nil
}

// UpdateStep applies a partial update to a record. A status change to
// completed stamps completed_at and derives the actual duration; every
// update re-evaluates the parent execution afterwards.
func (s *ExecutionService) UpdateStep(ctx context.Context, user *models.User, executionID, recordID string, in UpdateStepInput) (*models.ExecutionRecord, error) {
	exec, rec, err := s.getOwnedRecord(ctx, user, executionID, recordID)
	if err != nil {
		return nil, err
	}

	if in.Status != nil {
		if !models.ValidRecordStatus(*in.Status) {
			return nil, apperr.Validation("unknown record status %q", *in.Status)
		}
		if *in.Status == models.RecordInProgress && !dependenciesSatisfied(exec, rec) {
			return nil, apperr.DependencyNotSatisfied("step has incomplete dependency steps")
		}
		rec.Status = *in.Status
		switch rec.Status {
		case models.RecordCompleted:
			if rec.CompletedAt == nil {
				now := s.now()
				rec.CompletedAt = &now
				if rec.StartedAt != nil && in.ActualDuration == nil {
					d := ComputeDurationMinutes(*rec.StartedAt, now)
					rec.ActualDuration = &d
				}
			}
		case models.RecordSkipped, models.RecordFailed:
		default:
			// moved back to an open state: completion data no longer holds
			rec.CompletedAt = nil
			rec.ActualDuration = nil
		}
	}
	if in.Notes != nil {
		rec.Notes = *in.Notes
	}
	if in.Result != nil {
		rec.Result = in.Result
	}
	if in.ActualDuration != nil {
		rec.ActualDuration = in.ActualDuration
	}
	if in.ReviewNotes != nil {
		rec.ReviewNotes = in.ReviewNotes
	}

	if err := s.repo.UpdateExecutionRecord(ctx, rec); err != nil {
		return nil, mapRepoErr(err, "execution record")
	}
	if err := s.reevaluateExecutionStatus(ctx, exec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// StartStep moves a record to in progress, provided every declared
// dependency step is completed.
func (s *ExecutionService) StartStep(ctx context.Context, user *models.User, executionID, recordID string) (*models.ExecutionRecord, error) {
	exec, rec, err := s.getOwnedRecord(ctx, user, executionID, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.RecordPending {
		return nil, apperr.InvalidTransition("cannot start step in status %s", rec.Status)
	}
	if !dependenciesSatisfied(exec, rec) {
		return nil, apperr.DependencyNotSatisfied("step has incomplete dependency steps")
	}

	now := s.now()
	rec.Status = models.RecordInProgress
	rec.StartedAt = &now
	if err := s.repo.UpdateExecutionRecord(ctx, rec); err != nil {
		return nil, mapRepoErr(err, "execution record")
	}
	return rec, nil
}

// CompleteStep finishes a record and re-evaluates the execution, which may
// auto-complete it.
func (s *ExecutionService) CompleteStep(ctx context.Context, user *models.User, executionID, recordID string, notes string) (*models.ExecutionRecord, error) {
	exec, rec, err := s.getOwnedRecord(ctx, user, executionID, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status == models.RecordCompleted {
		return nil, apperr.InvalidTransition("step is already completed")
	}

	now := s.now()
	rec.Status = models.RecordCompleted
	rec.CompletedAt = &now
	if notes != "" {
		rec.Notes = notes
	}
	if rec.StartedAt != nil {
		d := ComputeDurationMinutes(*rec.StartedAt, now)
		rec.ActualDuration = &d
	}
	if err := s.repo.UpdateExecutionRecord(ctx, rec); err != nil {
		return nil, mapRepoErr(err, "execution record")
	}
	if err := s.reevaluateExecutionStatus(ctx, exec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// SkipStep marks a record skipped with a reason. A skipped required step
// still blocks completion.
func (s *ExecutionService) SkipStep(ctx context.Context, user *models.User, executionID, recordID string, reason string) (*models.ExecutionRecord, error) {
	exec, rec, err := s.getOwnedRecord(ctx, user, executionID, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status == models.RecordCompleted || rec.Status == models.RecordSkipped {
		return nil, apperr.InvalidTransition("cannot skip step in status %s", rec.Status)
	}

	now := s.now()
	rec.Status = models.RecordSkipped
	rec.CompletedAt = &now
	if reason != "" {
		rec.Notes = "skipped: " + reason
	}
	if err := s.repo.UpdateExecutionRecord(ctx, rec); err != nil {
		return nil, mapRepoErr(err, "execution record")
	}
	if err := s.reevaluateExecutionStatus(ctx, exec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// FailStep marks a record failed and drives the parent execution into
// failed as well.
func (s *ExecutionService) FailStep(ctx context.Context, user *models.User, executionID, recordID string, reason string) (*models.ExecutionRecord, error) {
	exec, rec, err := s.getOwnedRecord(ctx, user, executionID, recordID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec.Status = models.RecordFailed
	rec.CompletedAt = &now
	if reason != "" {
		rec.Notes = "failed: " + reason
	}
	if err := s.repo.UpdateExecutionRecord(ctx, rec); err != nil {
		return nil, mapRepoErr(err, "execution record")
	}

	if exec.Status != models.ExecutionFailed {
		exec.Status = models.ExecutionFailed
		if err := s.repo.UpdateExecution(ctx, exec); err != nil {
			return nil, mapRepoErr(err, "execution")
		}
		s.metrics.ExecutionFailed(ctx)
	}
	return rec, nil
}

// dependenciesSatisfied reports whether every dependency step of the
// record's step has a completed record within the same execution.
func dependenciesSatisfied(exec *models.Execution, rec *models.ExecutionRecord) bool {
	if rec.Step == nil || len(rec.Step.Dependencies) == 0 {
		return true
	}
	byStep := make(map[string]models.RecordStatus, len(exec.Records))
	for _, r := range exec.Records {
		byStep[r.StepID] = r.Status
	}
	for _, dep := range rec.Step.Dependencies {
		if byStep[dep] != models.RecordCompleted {
			return false
		}
	}
	return true
}

// reevaluateExecutionStatus recomputes progress and, when every required
// step is completed, auto-completes a running execution. This is the one
// side-effecting transition a caller never requests directly.
func (s *ExecutionService) reevaluateExecutionStatus(ctx context.Context, executionID string) error {
	exec, err := s.repo.GetExecution(ctx, executionID)
	if err != nil {
		return mapRepoErr(err, "execution")
	}

	totalRequired, completedRequired := 0, 0
	for _, rec := range exec.Records {
		if rec.Step == nil || !rec.Step.Required {
			continue
		}
		totalRequired++
		if rec.Status == models.RecordCompleted {
			completedRequired++
		}
	}

	progress := ComputeProgress(completedRequired, totalRequired)
	changed := progress != exec.Progress
	exec.Progress = progress

	if exec.Status == models.ExecutionInProgress && totalRequired > 0 && completedRequired == totalRequired {
		now := s.now()
		exec.Status = models.ExecutionCompleted
		exec.CompletedAt = &now
		exec.Progress = 100
		changed = true
		defer s.metrics.ExecutionCompleted(ctx)
	}

	if !changed {
		return nil
	}
	if err := s.repo.UpdateExecution(ctx, exec); err != nil {
		return mapRepoErr(err, "execution")
	}
	return nil
}
