package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"worktrail/backend/pkg/models"
)

// PostgresStore is the PostgreSQL implementation of the Repository
// interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// orEmpty keeps NOT NULL array columns happy when the slice is nil.
func orEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func encodeJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func decodeJSON(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ----- users -----

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO users (id, email, name, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

const userColumns = `id, email, name, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// ----- workflows -----

// CreateWorkflow inserts the workflow and its steps in one transaction.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO workflows (id, owner_id, name, description, active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		wf.ID, wf.OwnerID, wf.Name, wf.Description, wf.Active,
	).Scan(&wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range wf.Steps {
		if err := insertStep(ctx, tx, &wf.Steps[i]); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertStep(ctx context.Context, tx pgx.Tx, step *models.WorkflowStep) error {
	meta, err := encodeJSON(step.Metadata)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx,
		`INSERT INTO workflow_steps
		 (id, workflow_id, name, description, step_order, required, step_type, dependencies, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		step.ID, step.WorkflowID, step.Name, step.Description, step.Order,
		step.Required, step.Type, orEmpty(step.Dependencies), meta,
	).Scan(&step.CreatedAt, &step.UpdatedAt)
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var wf models.Workflow
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, name, description, active, created_at, updated_at
		 FROM workflows WHERE id = $1`, id,
	).Scan(&wf.ID, &wf.OwnerID, &wf.Name, &wf.Description, &wf.Active, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}

	steps, err := s.listSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	wf.Steps = steps
	return &wf, nil
}

func (s *PostgresStore) listSteps(ctx context.Context, workflowID string) ([]models.WorkflowStep, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_id, name, description, step_order, required, step_type,
		        dependencies, metadata, created_at, updated_at
		 FROM workflow_steps WHERE workflow_id = $1 ORDER BY step_order`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []models.WorkflowStep
	for rows.Next() {
		var st models.WorkflowStep
		var meta []byte
		err := rows.Scan(&st.ID, &st.WorkflowID, &st.Name, &st.Description, &st.Order,
			&st.Required, &st.Type, &st.Dependencies, &meta, &st.CreatedAt, &st.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if st.Metadata, err = decodeJSON(meta); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *PostgresStore) ListWorkflows(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, name, description, active, created_at, updated_at
		 FROM workflows WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		var wf models.Workflow
		err := rows.Scan(&wf.ID, &wf.OwnerID, &wf.Name, &wf.Description, &wf.Active, &wf.CreatedAt, &wf.UpdatedAt)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, &wf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, wf := range workflows {
		steps, err := s.listSteps(ctx, wf.ID)
		if err != nil {
			return nil, err
		}
		wf.Steps = steps
	}
	return workflows, nil
}

func (s *PostgresStore) UpdateWorkflow(ctx context.Context, wf *models.Workflow) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE workflows SET name = $1, description = $2, active = $3, updated_at = now()
		 WHERE id = $4`,
		wf.Name, wf.Description, wf.Active, wf.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceWorkflowSteps swaps the workflow's step set atomically.
func (s *PostgresStore) ReplaceWorkflowSteps(ctx context.Context, workflowID string, steps []models.WorkflowStep) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM workflow_steps WHERE workflow_id = $1`, workflowID); err != nil {
		return err
	}
	for i := range steps {
		if err := insertStep(ctx, tx, &steps[i]); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE workflows SET updated_at = now() WHERE id = $1`, workflowID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) CountExecutionsByWorkflow(ctx context.Context, workflowID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM executions WHERE workflow_id = $1`, workflowID).Scan(&n)
	return n, err
}

// buildFilter renders an ExecutionFilter as a WHERE clause over alias e.
func buildFilter(filter models.ExecutionFilter, args []any) (string, []any) {
	where := ` WHERE 1=1`
	add := func(clause string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}

	if filter.OwnerID != "" {
		add(` AND e.owner_id = $%d`, filter.OwnerID)
	}
	if filter.WorkflowID != "" {
		add(` AND e.workflow_id = $%d`, filter.WorkflowID)
	}
	if filter.Status != "" {
		add(` AND e.status = $%d`, filter.Status)
	}
	if filter.Priority != "" {
		add(` AND e.priority = $%d`, filter.Priority)
	}
	if filter.From != nil {
		add(` AND e.started_at >= $%d`, *filter.From)
	}
	if filter.To != nil {
		add(` AND e.started_at <= $%d`, *filter.To)
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		n := len(args)
		where += fmt.Sprintf(` AND (e.title ILIKE '%%' || $%d || '%%' OR e.description ILIKE '%%' || $%d || '%%')`, n, n)
	}
	if filter.HasReview != nil {
		if *filter.HasReview {
			where += ` AND EXISTS (SELECT 1 FROM reviews v WHERE v.execution_id = e.id)`
		} else {
			where += ` AND NOT EXISTS (SELECT 1 FROM reviews v WHERE v.execution_id = e.id)`
		}
	}
	return where, args
}

// sortColumn maps API sort keys onto real columns, defaulting to created_at.
func sortColumn(key string) string {
	switch key {
	case "started_at", "completed_at", "due_date", "priority", "status", "title", "progress":
		return "e." + key
	default:
		return "e.created_at"
	}
}
