package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/observability"
	"worktrail/backend/internal/repository"
	"worktrail/backend/pkg/models"
)

var testNow = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

func newTestExecutionService(repo repository.Repository, files *FakeFileStore) *ExecutionService {
	s := NewExecutionService(repo, files, observability.Noop{})
	s.now = func() time.Time { return testNow }
	return s
}

func testUser() *models.User {
	return &models.User{ID: "user-1", Email: "user@example.com", Role: models.RoleUser}
}

// twoStepWorkflow returns a workflow with two required steps, the second
// depending on the first.
func twoStepWorkflow(ownerID string) *models.Workflow {
	wf := &models.Workflow{
		ID:      "wf-1",
		OwnerID: ownerID,
		Name:    "Deploy",
		Active:  true,
	}
	wf.Steps = []models.WorkflowStep{
		{ID: "step-1", WorkflowID: wf.ID, Name: "Build", Order: 1, Required: true, Type: models.StepTypeManual},
		{ID: "step-2", WorkflowID: wf.ID, Name: "Ship", Order: 2, Required: true, Type: models.StepTypeManual,
			Dependencies: []string{"step-1"}},
	}
	return wf
}

// runningExecution returns an in-progress execution of twoStepWorkflow with
// pending records carrying their step definitions.
func runningExecution(ownerID string) *models.Execution {
	wf := twoStepWorkflow(ownerID)
	exec := &models.Execution{
		ID:         "exec-1",
		OwnerID:    ownerID,
		WorkflowID: wf.ID,
		Title:      "Deploy v2",
		Status:     models.ExecutionInProgress,
		Priority:   models.PriorityMedium,
	}
	exec.Records = []models.ExecutionRecord{
		{ID: "rec-1", ExecutionID: exec.ID, StepID: "step-1", Status: models.RecordPending, Step: &wf.Steps[0]},
		{ID: "rec-2", ExecutionID: exec.ID, StepID: "step-2", Status: models.RecordPending, Step: &wf.Steps[1]},
	}
	return exec
}

func TestStartExecution(t *testing.T) {
	ctx := context.Background()
	user := testUser()

	t.Run("creates one pending record per step", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		mockRepo.On("GetWorkflow", mock.Anything, "wf-1").Return(twoStepWorkflow(user.ID), nil)
		mockRepo.On("CreateExecutionWithRecords", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		exec, err := svc.Start(ctx, user, StartExecutionInput{WorkflowID: "wf-1", Title: "Deploy v2"})
		assert.NoError(t, err)
		assert.Equal(t, models.ExecutionInProgress, exec.Status)
		assert.NotNil(t, exec.StartedAt)
		assert.Len(t, exec.Records, 2)
		for _, rec := range exec.Records {
			assert.Equal(t, models.RecordPending, rec.Status)
		}
		mockRepo.AssertExpectations(t)
	})

	t.Run("draft stays pending without a start time", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		mockRepo.On("GetWorkflow", mock.Anything, "wf-1").Return(twoStepWorkflow(user.ID), nil)
		mockRepo.On("CreateExecutionWithRecords", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		exec, err := svc.Start(ctx, user, StartExecutionInput{WorkflowID: "wf-1", Draft: true})
		assert.NoError(t, err)
		assert.Equal(t, models.ExecutionPending, exec.Status)
		assert.Nil(t, exec.StartedAt)
	})

	t.Run("inactive workflow reads as not found", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		wf := twoStepWorkflow(user.ID)
		wf.Active = false
		mockRepo.On("GetWorkflow", mock.Anything, "wf-1").Return(wf, nil)

		_, err := svc.Start(ctx, user, StartExecutionInput{WorkflowID: "wf-1"})
		assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	})

	t.Run("workflow without steps is rejected", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		wf := twoStepWorkflow(user.ID)
		wf.Steps = nil
		mockRepo.On("GetWorkflow", mock.Anything, "wf-1").Return(wf, nil)

		_, err := svc.Start(ctx, user, StartExecutionInput{WorkflowID: "wf-1"})
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})

	t.Run("someone else's workflow is denied", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		mockRepo.On("GetWorkflow", mock.Anything, "wf-1").Return(twoStepWorkflow("other-user"), nil)

		_, err := svc.Start(ctx, user, StartExecutionInput{WorkflowID: "wf-1"})
		assert.Equal(t, apperr.CodeAccessDenied, apperr.CodeOf(err))
	})
}

func TestExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	user := testUser()

	t.Run("pause and resume", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecution", mock.Anything, mock.Anything).Return(nil)

		paused, err := svc.Pause(ctx, user, "exec-1")
		assert.NoError(t, err)
		assert.Equal(t, models.ExecutionPaused, paused.Status)

		resumed, err := svc.Resume(ctx, user, "exec-1")
		assert.NoError(t, err)
		assert.Equal(t, models.ExecutionInProgress, resumed.Status)
	})

	t.Run("pausing a pending execution fails", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		exec.Status = models.ExecutionPending
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)

		_, err := svc.Pause(ctx, user, "exec-1")
		assert.Equal(t, apperr.CodeInvalidStateTransition, apperr.CodeOf(err))
	})

	t.Run("cancelled execution cannot resume", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		exec.Status = models.ExecutionCancelled
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)

		_, err := svc.Resume(ctx, user, "exec-1")
		assert.Equal(t, apperr.CodeInvalidStateTransition, apperr.CodeOf(err))
	})

	t.Run("start moves a draft to in progress", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		exec.Status = models.ExecutionPending
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecution", mock.Anything, mock.Anything).Return(nil)

		started, err := svc.StartPending(ctx, user, "exec-1")
		assert.NoError(t, err)
		assert.Equal(t, models.ExecutionInProgress, started.Status)
		assert.Equal(t, testNow, *started.StartedAt)
	})

	t.Run("complete refuses outstanding required steps", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		exec.Records[0].Status = models.RecordCompleted
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)

		_, err := svc.Complete(ctx, user, "exec-1")
		assert.Equal(t, apperr.CodeIncompleteRequiredSteps, apperr.CodeOf(err))
		assert.Contains(t, apperr.MessageOf(err), "1 required step(s)")
	})

	t.Run("complete succeeds when every required step is done", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		exec.Records[0].Status = models.RecordCompleted
		exec.Records[1].Status = models.RecordCompleted
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecution", mock.Anything, mock.MatchedBy(func(e *models.Execution) bool {
			return e.Status == models.ExecutionCompleted && e.Progress == 100 && e.CompletedAt != nil
		})).Return(nil)

		done, err := svc.Complete(ctx, user, "exec-1")
		assert.NoError(t, err)
		assert.Equal(t, models.ExecutionCompleted, done.Status)
		mockRepo.AssertExpectations(t)
	})
}

func TestStepRecords(t *testing.T) {
	ctx := context.Background()
	user := testUser()

	t.Run("dependency gate blocks start", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)

		// rec-2 depends on step-1, whose record is still pending
		_, err := svc.StartStep(ctx, user, "exec-1", "rec-2")
		assert.Equal(t, apperr.CodeDependencyNotSatisfied, apperr.CodeOf(err))
	})

	t.Run("dependency gate also blocks update to in progress", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)

		status := models.RecordInProgress
		_, err := svc.UpdateStep(ctx, user, "exec-1", "rec-2", UpdateStepInput{Status: &status})
		assert.Equal(t, apperr.CodeDependencyNotSatisfied, apperr.CodeOf(err))
		mockRepo.AssertNotCalled(t, "UpdateExecutionRecord", mock.Anything, mock.Anything)
	})

	t.Run("start succeeds once dependencies are completed", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		exec.Records[0].Status = models.RecordCompleted
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecutionRecord", mock.Anything, mock.Anything).Return(nil)

		rec, err := svc.StartStep(ctx, user, "exec-1", "rec-2")
		assert.NoError(t, err)
		assert.Equal(t, models.RecordInProgress, rec.Status)
		assert.Equal(t, testNow, *rec.StartedAt)
	})

	t.Run("completing the last required step auto-completes the execution", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		exec.Records[0].Status = models.RecordCompleted
		exec.Progress = 50
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecutionRecord", mock.Anything, mock.MatchedBy(func(r *models.ExecutionRecord) bool {
			return r.ID == "rec-2" && r.Status == models.RecordCompleted
		})).Return(nil)
		mockRepo.On("UpdateExecution", mock.Anything, mock.MatchedBy(func(e *models.Execution) bool {
			return e.Status == models.ExecutionCompleted && e.Progress == 100
		})).Return(nil)

		rec, err := svc.CompleteStep(ctx, user, "exec-1", "rec-2", "done")
		assert.NoError(t, err)
		assert.Equal(t, models.RecordCompleted, rec.Status)
		assert.Equal(t, "done", rec.Notes)
		mockRepo.AssertExpectations(t)
	})

	t.Run("completing one of two required steps updates progress only", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecutionRecord", mock.Anything, mock.Anything).Return(nil)
		mockRepo.On("UpdateExecution", mock.Anything, mock.MatchedBy(func(e *models.Execution) bool {
			return e.Status == models.ExecutionInProgress && e.Progress == 50
		})).Return(nil)

		_, err := svc.CompleteStep(ctx, user, "exec-1", "rec-1", "")
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("a skipped required step never satisfies completion", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		exec.Records[0].Status = models.RecordCompleted
		exec.Progress = 50
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecutionRecord", mock.Anything, mock.Anything).Return(nil)

		rec, err := svc.SkipStep(ctx, user, "exec-1", "rec-2", "not needed this time")
		assert.NoError(t, err)
		assert.Equal(t, models.RecordSkipped, rec.Status)
		assert.Equal(t, "skipped: not needed this time", rec.Notes)
		// progress unchanged, status unchanged: no execution update expected
		mockRepo.AssertNotCalled(t, "UpdateExecution", mock.Anything, mock.Anything)
	})

	t.Run("failing a step fails the execution", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecutionRecord", mock.Anything, mock.MatchedBy(func(r *models.ExecutionRecord) bool {
			return r.Status == models.RecordFailed
		})).Return(nil)
		mockRepo.On("UpdateExecution", mock.Anything, mock.MatchedBy(func(e *models.Execution) bool {
			return e.Status == models.ExecutionFailed
		})).Return(nil)

		rec, err := svc.FailStep(ctx, user, "exec-1", "rec-1", "broken build")
		assert.NoError(t, err)
		assert.Equal(t, models.RecordFailed, rec.Status)
		assert.Equal(t, "failed: broken build", rec.Notes)
		mockRepo.AssertExpectations(t)
	})

	t.Run("records of a terminal execution are frozen", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		exec.Status = models.ExecutionCompleted
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)

		_, err := svc.CompleteStep(ctx, user, "exec-1", "rec-1", "")
		assert.Equal(t, apperr.CodeInvalidStateTransition, apperr.CodeOf(err))
	})

	t.Run("completion via update stamps time and duration", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		started := testNow.Add(-30 * time.Minute)
		exec.Records[0].Status = models.RecordInProgress
		exec.Records[0].StartedAt = &started
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecutionRecord", mock.Anything, mock.Anything).Return(nil)
		mockRepo.On("UpdateExecution", mock.Anything, mock.Anything).Return(nil)

		status := models.RecordCompleted
		rec, err := svc.UpdateStep(ctx, user, "exec-1", "rec-1", UpdateStepInput{Status: &status})
		assert.NoError(t, err)
		assert.Equal(t, testNow, *rec.CompletedAt)
		assert.Equal(t, 30, *rec.ActualDuration)
	})

	t.Run("reopening a completed record clears its completion data", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := newTestExecutionService(mockRepo, NewFakeFileStore())

		exec := runningExecution(user.ID)
		completed := testNow.Add(-10 * time.Minute)
		duration := 20
		exec.Records[0].Status = models.RecordCompleted
		exec.Records[0].CompletedAt = &completed
		exec.Records[0].ActualDuration = &duration
		exec.Progress = 50
		mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
		mockRepo.On("UpdateExecutionRecord", mock.Anything, mock.Anything).Return(nil)
		mockRepo.On("UpdateExecution", mock.Anything, mock.MatchedBy(func(e *models.Execution) bool {
			return e.Status == models.ExecutionInProgress && e.Progress == 0
		})).Return(nil)

		status := models.RecordPending
		rec, err := svc.UpdateStep(ctx, user, "exec-1", "rec-1", UpdateStepInput{Status: &status})
		assert.NoError(t, err)
		assert.Nil(t, rec.CompletedAt)
		assert.Nil(t, rec.ActualDuration)
		mockRepo.AssertExpectations(t)
	})
}

func TestDeleteExecution(t *testing.T) {
	ctx := context.Background()
	user := testUser()

	mockRepo := new(MockRepository)
	files := NewFakeFileStore()
	svc := newTestExecutionService(mockRepo, files)

	exec := runningExecution(user.ID)
	recID := "rec-1"
	mockRepo.On("GetExecution", mock.Anything, "exec-1").Return(exec, nil)
	mockRepo.On("ListAttachmentsByExecution", mock.Anything, "exec-1").Return([]models.Attachment{
		{ID: "att-1", ExecutionRecordID: &recID, StoredPath: "2026/08/25/abc_report.pdf"},
	}, nil)
	mockRepo.On("DeleteExecution", mock.Anything, "exec-1").Return(nil)

	err := svc.Delete(ctx, user, "exec-1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"2026/08/25/abc_report.pdf"}, files.Removed)
	mockRepo.AssertExpectations(t)
}
