package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"worktrail/backend/pkg/models"
)

const executionColumns = `e.id, e.owner_id, e.workflow_id, e.title, e.description, e.status,
	e.priority, e.progress, e.tags, e.due_date, e.started_at, e.completed_at,
	e.review_notes, e.reviewed_at, e.created_at, e.updated_at`

func scanExecution(row pgx.Row) (*models.Execution, error) {
	var e models.Execution
	err := row.Scan(&e.ID, &e.OwnerID, &e.WorkflowID, &e.Title, &e.Description, &e.Status,
		&e.Priority, &e.Progress, &e.Tags, &e.DueDate, &e.StartedAt, &e.CompletedAt,
		&e.ReviewNotes, &e.ReviewedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &e, nil
}

// CreateExecutionWithRecords inserts the execution and one record per step
// in a single transaction, so a failure inserts nothing.
func (s *PostgresStore) CreateExecutionWithRecords(ctx context.Context, exec *models.Execution, records []models.ExecutionRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO executions
		 (id, owner_id, workflow_id, title, description, status, priority, progress, tags, due_date, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		exec.ID, exec.OwnerID, exec.WorkflowID, exec.Title, exec.Description,
		exec.Status, exec.Priority, exec.Progress, orEmpty(exec.Tags), exec.DueDate, exec.StartedAt,
	).Scan(&exec.CreatedAt, &exec.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range records {
		rec := &records[i]
		result, err := encodeJSON(rec.Result)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO execution_records (id, execution_id, step_id, status, notes, result)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING created_at, updated_at`,
			rec.ID, rec.ExecutionID, rec.StepID, rec.Status, rec.Notes, result,
		).Scan(&rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	exec, err := scanExecution(s.db.QueryRow(ctx,
		`SELECT `+executionColumns+` FROM executions e WHERE e.id = $1`, id))
	if err != nil {
		return nil, err
	}

	records, err := s.ListExecutionRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	exec.Records = records
	return exec, nil
}

func (s *PostgresStore) UpdateExecution(ctx context.Context, exec *models.Execution) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE executions SET
		   title = $1, description = $2, status = $3, priority = $4, progress = $5,
		   tags = $6, due_date = $7, started_at = $8, completed_at = $9,
		   review_notes = $10, reviewed_at = $11, updated_at = now()
		 WHERE id = $12`,
		exec.Title, exec.Description, exec.Status, exec.Priority, exec.Progress,
		orEmpty(exec.Tags), exec.DueDate, exec.StartedAt, exec.CompletedAt,
		exec.ReviewNotes, exec.ReviewedAt, exec.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExecution removes the execution row; records and attachments go
// with it via ON DELETE CASCADE. Attachment files on disk are the
// service's job.
func (s *PostgresStore) DeleteExecution(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM executions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListExecutions(ctx context.Context, filter models.ExecutionFilter, page models.PageRequest) ([]*models.Execution, int, error) {
	page = page.Normalize()
	where, args := buildFilter(filter, nil)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM executions e`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT `+executionColumns+` FROM executions e%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		where, sortColumn(page.SortBy), page.SortOrder, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var executions []*models.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, 0, err
		}
		executions = append(executions, exec)
	}
	return executions, total, rows.Err()
}

// ----- execution records -----

const recordColumns = `r.id, r.execution_id, r.step_id, r.status, r.notes, r.result,
	r.started_at, r.completed_at, r.actual_duration, r.review_notes, r.created_at, r.updated_at`

func scanRecord(row pgx.Row) (*models.ExecutionRecord, error) {
	var rec models.ExecutionRecord
	var result []byte
	err := row.Scan(&rec.ID, &rec.ExecutionID, &rec.StepID, &rec.Status, &rec.Notes, &result,
		&rec.StartedAt, &rec.CompletedAt, &rec.ActualDuration, &rec.ReviewNotes,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if rec.Result, err = decodeJSON(result); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) GetExecutionRecord(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	return scanRecord(s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM execution_records r WHERE r.id = $1`, id))
}

// ListExecutionRecords returns the execution's records with their step
// definitions joined in, ordered by step order.
func (s *PostgresStore) ListExecutionRecords(ctx context.Context, executionID string) ([]models.ExecutionRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+`,
		        st.id, st.workflow_id, st.name, st.description, st.step_order, st.required,
		        st.step_type, st.dependencies, st.metadata, st.created_at, st.updated_at
		 FROM execution_records r
		 JOIN workflow_steps st ON st.id = r.step_id
		 WHERE r.execution_id = $1
		 ORDER BY st.step_order`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ExecutionRecord
	for rows.Next() {
		var rec models.ExecutionRecord
		var result, meta []byte
		var st models.WorkflowStep
		err := rows.Scan(&rec.ID, &rec.ExecutionID, &rec.StepID, &rec.Status, &rec.Notes, &result,
			&rec.StartedAt, &rec.CompletedAt, &rec.ActualDuration, &rec.ReviewNotes,
			&rec.CreatedAt, &rec.UpdatedAt,
			&st.ID, &st.WorkflowID, &st.Name, &st.Description, &st.Order, &st.Required,
			&st.Type, &st.Dependencies, &meta, &st.CreatedAt, &st.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if rec.Result, err = decodeJSON(result); err != nil {
			return nil, err
		}
		if st.Metadata, err = decodeJSON(meta); err != nil {
			return nil, err
		}
		rec.Step = &st
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) UpdateExecutionRecord(ctx context.Context, rec *models.ExecutionRecord) error {
	result, err := encodeJSON(rec.Result)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE execution_records SET
		   status = $1, notes = $2, result = $3, started_at = $4, completed_at = $5,
		   actual_duration = $6, review_notes = $7, updated_at = now()
		 WHERE id = $8`,
		rec.Status, rec.Notes, result, rec.StartedAt, rec.CompletedAt,
		rec.ActualDuration, rec.ReviewNotes, rec.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
