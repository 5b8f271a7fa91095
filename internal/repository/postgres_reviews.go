package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"worktrail/backend/pkg/models"
)

const reviewColumns = `id, owner_id, execution_id, title, content, rating,
	lessons, improvements, tags, public, created_at, updated_at`

func scanReview(row pgx.Row) (*models.Review, error) {
	var r models.Review
	err := row.Scan(&r.ID, &r.OwnerID, &r.ExecutionID, &r.Title, &r.Content, &r.Rating,
		&r.Lessons, &r.Improvements, &r.Tags, &r.Public, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &r, nil
}

func (s *PostgresStore) CreateReview(ctx context.Context, rev *models.Review) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO reviews (id, owner_id, execution_id, title, content, rating, lessons, improvements, tags, public)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		rev.ID, rev.OwnerID, rev.ExecutionID, rev.Title, rev.Content, rev.Rating,
		rev.Lessons, rev.Improvements, orEmpty(rev.Tags), rev.Public,
	).Scan(&rev.CreatedAt, &rev.UpdatedAt)
}

func (s *PostgresStore) GetReview(ctx context.Context, id string) (*models.Review, error) {
	return scanReview(s.db.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
}

func (s *PostgresStore) GetReviewByExecution(ctx context.Context, executionID string) (*models.Review, error) {
	return scanReview(s.db.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE execution_id = $1`, executionID))
}

func (s *PostgresStore) ListReviews(ctx context.Context, ownerID string, includePublic bool) ([]*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE owner_id = $1`
	if includePublic {
		query += ` OR public`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rev)
	}
	return reviews, rows.Err()
}

func (s *PostgresStore) UpdateReview(ctx context.Context, rev *models.Review) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE reviews SET title = $1, content = $2, rating = $3, lessons = $4,
		   improvements = $5, tags = $6, public = $7, updated_at = now()
		 WHERE id = $8`,
		rev.Title, rev.Content, rev.Rating, rev.Lessons, rev.Improvements,
		orEmpty(rev.Tags), rev.Public, rev.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteReview(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ----- attachments -----

const attachmentColumns = `id, execution_record_id, review_id, original_name, stored_name,
	file_type, size_bytes, stored_path, mime_type, description, tags, created_at, updated_at`

func scanAttachment(row pgx.Row) (*models.Attachment, error) {
	var a models.Attachment
	err := row.Scan(&a.ID, &a.ExecutionRecordID, &a.ReviewID, &a.OriginalName, &a.StoredName,
		&a.FileType, &a.SizeBytes, &a.StoredPath, &a.MimeType, &a.Description, &a.Tags,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

func (s *PostgresStore) CreateAttachment(ctx context.Context, att *models.Attachment) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO attachments
		 (id, execution_record_id, review_id, original_name, stored_name, file_type,
		  size_bytes, stored_path, mime_type, description, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		att.ID, att.ExecutionRecordID, att.ReviewID, att.OriginalName, att.StoredName,
		att.FileType, att.SizeBytes, att.StoredPath, att.MimeType, att.Description,
		orEmpty(att.Tags),
	).Scan(&att.CreatedAt, &att.UpdatedAt)
}

func (s *PostgresStore) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	return scanAttachment(s.db.QueryRow(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id))
}

func (s *PostgresStore) listAttachments(ctx context.Context, query string, arg any) ([]models.Attachment, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, *att)
	}
	return attachments, rows.Err()
}

func (s *PostgresStore) ListAttachmentsByRecord(ctx context.Context, recordID string) ([]models.Attachment, error) {
	return s.listAttachments(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE execution_record_id = $1 ORDER BY created_at`, recordID)
}

func (s *PostgresStore) ListAttachmentsByReview(ctx context.Context, reviewID string) ([]models.Attachment, error) {
	return s.listAttachments(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE review_id = $1 ORDER BY created_at`, reviewID)
}

func (s *PostgresStore) ListAttachmentsByExecution(ctx context.Context, executionID string) ([]models.Attachment, error) {
	return s.listAttachments(ctx,
		`SELECT `+attachmentColumns+` FROM attachments
		 WHERE execution_record_id IN (SELECT id FROM execution_records WHERE execution_id = $1)
		 ORDER BY created_at`, executionID)
}

func (s *PostgresStore) DeleteAttachment(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
