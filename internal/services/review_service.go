package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/repository"
	"worktrail/backend/internal/storage"
	"worktrail/backend/pkg/models"
)

// ReviewService manages post-execution retrospectives. One review exists
// per execution; creating it stamps the execution's review fields.
type ReviewService struct {
	repo  repository.Repository
	files storage.FileStore
	now   func() time.Time
}

// NewReviewService creates a ReviewService.
func NewReviewService(repo repository.Repository, files storage.FileStore) *ReviewService {
	return &ReviewService{repo: repo, files: files, now: time.Now}
}

// ReviewInput is the create/update payload.
type ReviewInput struct {
	ExecutionID  string   `json:"execution_id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Rating       int      `json:"rating"`
	Lessons      string   `json:"lessons"`
	Improvements string   `json:"improvements"`
	Tags         []string `json:"tags"`
	Public       bool     `json:"public"`
}

func validateReviewInput(in ReviewInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validation("title is required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return apperr.Validation("rating must be between 1 and 5")
	}
	return nil
}

// Create writes a review for a finished execution the caller owns.
func (s *ReviewService) Create(ctx context.Context, user *models.User, in ReviewInput) (*models.Review, error) {
	if in.ExecutionID == "" {
		return nil, apperr.Validation("execution_id is required")
	}
	if err := validateReviewInput(in); err != nil {
		return nil, err
	}

	exec, err := s.repo.GetExecution(ctx, in.ExecutionID)
	if err != nil {
		return nil, mapRepoErr(err, "execution")
	}
	if !user.CanAccess(exec.OwnerID) {
		return nil, apperr.AccessDenied("execution does not belong to you")
	}
	switch exec.Status {
	case models.ExecutionCompleted, models.ExecutionCancelled, models.ExecutionFailed:
	default:
		return nil, apperr.InvalidTransition("execution in status %s cannot be reviewed yet", exec.Status)
	}

	if _, err := s.repo.GetReviewByExecution(ctx, exec.ID); err == nil {
		return nil, apperr.Conflict("execution already has a review")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	rev := &models.Review{
		ID:           uuid.New().String(),
		OwnerID:      exec.OwnerID,
		ExecutionID:  exec.ID,
		Title:        strings.TrimSpace(in.Title),
		Content:      in.Content,
		Rating:       in.Rating,
		Lessons:      in.Lessons,
		Improvements: in.Improvements,
		Tags:         in.Tags,
		Public:       in.Public,
	}
	if err := s.repo.CreateReview(ctx, rev); err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	exec.ReviewNotes = &rev.Content
	exec.ReviewedAt = &now
	if err := s.repo.UpdateExecution(ctx, exec); err != nil {
		return nil, apperr.Internal(err)
	}

	return rev, nil
}

// Get returns a review the caller owns or that is public, with its
// attachments.
func (s *ReviewService) Get(ctx context.Context, user *models.User, id string) (*models.Review, error) {
	rev, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "review")
	}
	if !rev.Public && !user.CanAccess(rev.OwnerID) {
		return nil, apperr.AccessDenied("review is not visible to you")
	}

	attachments, err := s.repo.ListAttachmentsByReview(ctx, rev.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rev.Attachments = attachments
	return rev, nil
}

// List returns the caller's reviews plus public ones.
func (s *ReviewService) List(ctx context.Context, user *models.User) ([]*models.Review, error) {
	reviews, err := s.repo.ListReviews(ctx, user.ID, true)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return reviews, nil
}

// Update edits a review the caller owns.
func (s *ReviewService) Update(ctx context.Context, user *models.User, id string, in ReviewInput) (*models.Review, error) {
	rev, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "review")
	}
	if !user.CanAccess(rev.OwnerID) {
		return nil, apperr.AccessDenied("review does not belong to you")
	}
	if err := validateReviewInput(in); err != nil {
		return nil, err
	}

	rev.Title = strings.TrimSpace(in.Title)
	rev.Content = in.Content
	rev.Rating = in.Rating
	rev.Lessons = in.Lessons
	rev.Improvements = in.Improvements
	rev.Tags = in.Tags
	rev.Public = in.Public
	if err := s.repo.UpdateReview(ctx, rev); err != nil {
		return nil, mapRepoErr(err, "review")
	}
	return rev, nil
}

// Delete removes a review, its attachments and their stored files.
func (s *ReviewService) Delete(ctx context.Context, user *models.User, id string) error {
	rev, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return mapRepoErr(err, "review")
	}
	if !user.CanAccess(rev.OwnerID) {
		return apperr.AccessDenied("review does not belong to you")
	}

	attachments, err := s.repo.ListAttachmentsByReview(ctx, rev.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	for _, att := range attachments {
		if err := s.files.Remove(att.StoredPath); err != nil {
			return apperr.Internal(err)
		}
	}

	if err := s.repo.DeleteReview(ctx, rev.ID); err != nil {
		return mapRepoErr(err, "review")
	}
	return nil
}
