package repository

import (
	"context"
	"fmt"

	"worktrail/backend/pkg/models"
)

// ListHistory pages over executions with the record counts and review flag
// the reporting service needs for its derived fields.
func (s *PostgresStore) ListHistory(ctx context.Context, filter models.ExecutionFilter, page models.PageRequest) ([]HistoryRow, int, error) {
	page = page.Normalize()
	where, args := buildFilter(filter, nil)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM executions e`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT `+executionColumns+`,
		   (SELECT count(*) FROM execution_records r WHERE r.execution_id = e.id) AS total_records,
		   (SELECT count(*) FROM execution_records r WHERE r.execution_id = e.id AND r.status = 'completed') AS completed_records,
		   EXISTS (SELECT 1 FROM reviews v WHERE v.execution_id = e.id) AS has_review
		 FROM executions e%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		where, sortColumn(page.SortBy), page.SortOrder, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []HistoryRow
	for rows.Next() {
		var hr HistoryRow
		e := &hr.Execution
		err := rows.Scan(&e.ID, &e.OwnerID, &e.WorkflowID, &e.Title, &e.Description, &e.Status,
			&e.Priority, &e.Progress, &e.Tags, &e.DueDate, &e.StartedAt, &e.CompletedAt,
			&e.ReviewNotes, &e.ReviewedAt, &e.CreatedAt, &e.UpdatedAt,
			&hr.TotalRecords, &hr.CompletedRecords, &hr.HasReview)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, hr)
	}
	return result, total, rows.Err()
}

func (s *PostgresStore) CountByStatus(ctx context.Context, ownerID string) ([]models.StatusCount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT status, count(*) FROM executions WHERE owner_id = $1 GROUP BY status ORDER BY status`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.StatusCount
	for rows.Next() {
		var c models.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *PostgresStore) CountByWorkflow(ctx context.Context, ownerID string) ([]models.WorkflowCount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT w.id, w.name, count(e.id),
		        count(e.id) FILTER (WHERE e.status = 'completed')
		 FROM executions e
		 JOIN workflows w ON w.id = e.workflow_id
		 WHERE e.owner_id = $1
		 GROUP BY w.id, w.name
		 ORDER BY count(e.id) DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.WorkflowCount
	for rows.Next() {
		var c models.WorkflowCount
		if err := rows.Scan(&c.WorkflowID, &c.WorkflowName, &c.Count, &c.Completed); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Trends buckets executions by calendar month or ISO week of their start
// time. Executions that never started are excluded.
func (s *PostgresStore) Trends(ctx context.Context, ownerID string, interval TrendInterval) ([]models.TrendBucket, error) {
	format := `YYYY-MM`
	if interval == TrendByWeek {
		format = `IYYY-"W"IW`
	}

	rows, err := s.db.Query(ctx,
		`SELECT to_char(started_at, $2) AS bucket, count(*),
		        count(*) FILTER (WHERE status = 'completed')
		 FROM executions
		 WHERE owner_id = $1 AND started_at IS NOT NULL
		 GROUP BY bucket
		 ORDER BY bucket`, ownerID, format)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []models.TrendBucket
	for rows.Next() {
		var b models.TrendBucket
		if err := rows.Scan(&b.Bucket, &b.Count, &b.Completed); err != nil {
			return nil, err
		}
		if b.Count > 0 {
			b.CompletionRate = float64(b.Completed) / float64(b.Count) * 100
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
