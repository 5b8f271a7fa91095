package services

import (
	"bytes"
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"worktrail/backend/internal/repository"
	"worktrail/backend/pkg/models"
)

// MockRepository satisfies repository.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error { return nil }

func (m *MockRepository) CreateUser(ctx context.Context, user *models.User) error { return nil }
func (m *MockRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, nil
}
func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func (m *MockRepository) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	args := m.Called(ctx, wf)
	return args.Error(0)
}

func (m *MockRepository) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockRepository) ListWorkflows(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockRepository) UpdateWorkflow(ctx context.Context, wf *models.Workflow) error {
	args := m.Called(ctx, wf)
	return args.Error(0)
}

func (m *MockRepository) DeleteWorkflow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ReplaceWorkflowSteps(ctx context.Context, workflowID string, steps []models.WorkflowStep) error {
	args := m.Called(ctx, workflowID, steps)
	return args.Error(0)
}

func (m *MockRepository) CountExecutionsByWorkflow(ctx context.Context, workflowID string) (int, error) {
	args := m.Called(ctx, workflowID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) CreateExecutionWithRecords(ctx context.Context, exec *models.Execution, records []models.ExecutionRecord) error {
	args := m.Called(ctx, exec, records)
	return args.Error(0)
}

func (m *MockRepository) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockRepository) UpdateExecution(ctx context.Context, exec *models.Execution) error {
	args := m.Called(ctx, exec)
	return args.Error(0)
}

func (m *MockRepository) DeleteExecution(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListExecutions(ctx context.Context, filter models.ExecutionFilter, page models.PageRequest) ([]*models.Execution, int, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Execution), args.Int(1), args.Error(2)
}

func (m *MockRepository) GetExecutionRecord(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExecutionRecord), args.Error(1)
}

func (m *MockRepository) ListExecutionRecords(ctx context.Context, executionID string) ([]models.ExecutionRecord, error) {
	return nil, nil
}

func (m *MockRepository) UpdateExecutionRecord(ctx context.Context, rec *models.ExecutionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRepository) CreateAttachment(ctx context.Context, att *models.Attachment) error {
	args := m.Called(ctx, att)
	return args.Error(0)
}

func (m *MockRepository) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

func (m *MockRepository) ListAttachmentsByRecord(ctx context.Context, recordID string) ([]models.Attachment, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

func (m *MockRepository) ListAttachmentsByReview(ctx context.Context, reviewID string) ([]models.Attachment, error) {
	args := m.Called(ctx, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

func (m *MockRepository) ListAttachmentsByExecution(ctx context.Context, executionID string) ([]models.Attachment, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

func (m *MockRepository) DeleteAttachment(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) CreateReview(ctx context.Context, rev *models.Review) error {
	args := m.Called(ctx, rev)
	return args.Error(0)
}

func (m *MockRepository) GetReview(ctx context.Context, id string) (*models.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockRepository) GetReviewByExecution(ctx context.Context, executionID string) (*models.Review, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockRepository) ListReviews(ctx context.Context, ownerID string, includePublic bool) ([]*models.Review, error) {
	args := m.Called(ctx, ownerID, includePublic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Review), args.Error(1)
}

func (m *MockRepository) UpdateReview(ctx context.Context, rev *models.Review) error {
	args := m.Called(ctx, rev)
	return args.Error(0)
}

func (m *MockRepository) DeleteReview(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListHistory(ctx context.Context, filter models.ExecutionFilter, page models.PageRequest) ([]repository.HistoryRow, int, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]repository.HistoryRow), args.Int(1), args.Error(2)
}

func (m *MockRepository) CountByStatus(ctx context.Context, ownerID string) ([]models.StatusCount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StatusCount), args.Error(1)
}

func (m *MockRepository) CountByWorkflow(ctx context.Context, ownerID string) ([]models.WorkflowCount, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WorkflowCount), args.Error(1)
}

func (m *MockRepository) Trends(ctx context.Context, ownerID string, interval repository.TrendInterval) ([]models.TrendBucket, error) {
	args := m.Called(ctx, ownerID, interval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TrendBucket), args.Error(1)
}

// FakeFileStore keeps saved files in memory and records removals.
type FakeFileStore struct {
	Files   map[string][]byte
	Removed []string
	SaveErr error
}

func NewFakeFileStore() *FakeFileStore {
	return &FakeFileStore{Files: make(map[string][]byte)}
}

func (f *FakeFileStore) Save(name string, r io.Reader) (string, int64, error) {
	if f.SaveErr != nil {
		return "", 0, f.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	f.Files[name] = data
	return name, int64(len(data)), nil
}

func (f *FakeFileStore) Remove(path string) error {
	delete(f.Files, path)
	f.Removed = append(f.Removed, path)
	return nil
}

func (f *FakeFileStore) Open(path string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Files[path])), nil
}
