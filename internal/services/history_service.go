package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/repository"
	"worktrail/backend/pkg/models"
)

// exportCap bounds how many rows an export walks, regardless of filter.
const exportCap = 10000

// HistoryService is the read-only reporting path: filtered pages of
// executions with derived fields, grouped stats, calendar trends and
// exports. It never mutates state.
type HistoryService struct {
	repo repository.Repository
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(repo repository.Repository) *HistoryService {
	return &HistoryService{repo: repo}
}

func (s *HistoryService) pin(user *models.User, filter models.ExecutionFilter) (models.ExecutionFilter, error) {
	if filter.Status != "" && !models.ValidExecutionStatus(filter.Status) {
		return filter, apperr.Validation("unknown status %q", filter.Status)
	}
	if filter.Priority != "" && !models.ValidPriority(filter.Priority) {
		return filter, apperr.Validation("unknown priority %q", filter.Priority)
	}
	if user.Role != models.RoleAdmin || filter.OwnerID == "" {
		filter.OwnerID = user.ID
	}
	return filter, nil
}

// List pages over execution history with duration and completion rate
// derived per entry.
func (s *HistoryService) List(ctx context.Context, user *models.User, filter models.ExecutionFilter, page models.PageRequest) ([]models.HistoryEntry, models.Pagination, error) {
	filter, err := s.pin(user, filter)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	page = page.Normalize()
	rows, total, err := s.repo.ListHistory(ctx, filter, page)
	if err != nil {
		return nil, models.Pagination{}, apperr.Internal(err)
	}

	entries := make([]models.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.HistoryEntry{
			Execution:      row.Execution,
			DurationMs:     ComputeDuration(row.Execution.StartedAt, row.Execution.CompletedAt),
			CompletionRate: ComputeCompletionRate(row.CompletedRecords, row.TotalRecords),
			HasReview:      row.HasReview,
		})
	}
	return entries, paginationFor(page, total), nil
}

// Stats aggregates the caller's executions by status and by workflow.
func (s *HistoryService) Stats(ctx context.Context, user *models.User) (*models.ExecutionStats, error) {
	byStatus, err := s.repo.CountByStatus(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	byWorkflow, err := s.repo.CountByWorkflow(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	total, completed := 0, 0
	for _, c := range byStatus {
		total += c.Count
		if c.Status == models.ExecutionCompleted {
			completed = c.Count
		}
	}

	return &models.ExecutionStats{
		Total:          total,
		ByStatus:       byStatus,
		ByWorkflow:     byWorkflow,
		CompletionRate: ComputeCompletionRate(completed, total),
	}, nil
}

// Trends buckets the caller's executions per calendar month or week.
func (s *HistoryService) Trends(ctx context.Context, user *models.User, interval string) ([]models.TrendBucket, error) {
	var iv repository.TrendInterval
	switch interval {
	case "", "month":
		iv = repository.TrendByMonth
	case "week":
		iv = repository.TrendByWeek
	default:
		return nil, apperr.Validation("unknown trend interval %q", interval)
	}

	buckets, err := s.repo.Trends(ctx, user.ID, iv)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return buckets, nil
}

// Export renders the filtered history as CSV or JSON. It walks pages up to
// a fixed cap.
func (s *HistoryService) Export(ctx context.Context, user *models.User, filter models.ExecutionFilter, format string) ([]byte, string, error) {
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		return nil, "", apperr.Validation("unknown export format %q", format)
	}

	filter, err := s.pin(user, filter)
	if err != nil {
		return nil, "", err
	}

	var entries []models.HistoryEntry
	page := models.PageRequest{Page: 1, Limit: 100, SortBy: "started_at", SortOrder: "asc"}
	for len(entries) < exportCap {
		rows, total, err := s.repo.ListHistory(ctx, filter, page)
		if err != nil {
			return nil, "", apperr.Internal(err)
		}
		for _, row := range rows {
			entries = append(entries, models.HistoryEntry{
				Execution:      row.Execution,
				DurationMs:     ComputeDuration(row.Execution.StartedAt, row.Execution.CompletedAt),
				CompletionRate: ComputeCompletionRate(row.CompletedRecords, row.TotalRecords),
				HasReview:      row.HasReview,
			})
		}
		if len(entries) >= total || len(rows) == 0 {
			break
		}
		page.Page++
	}

	if format == "json" {
		data, err := json.Marshal(entries)
		if err != nil {
			return nil, "", apperr.Internal(err)
		}
		return data, "application/json", nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "workflow_id", "title", "status", "priority", "progress",
		"started_at", "completed_at", "duration_ms", "completion_rate", "has_review"})
	for _, e := range entries {
		row := []string{e.ID, e.WorkflowID, e.Title, string(e.Status), string(e.Priority),
			strconv.Itoa(e.Progress), timeStr(e.StartedAt), timeStr(e.CompletedAt),
			int64PtrStr(e.DurationMs),
			strconv.FormatFloat(e.CompletionRate, 'f', 2, 64),
			strconv.FormatBool(e.HasReview)}
		if err := w.Write(row); err != nil {
			return nil, "", apperr.Internal(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", apperr.Internal(err)
	}
	return buf.Bytes(), "text/csv", nil
}
