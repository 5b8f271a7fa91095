package services

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/observability"
	"worktrail/backend/internal/repository"
	"worktrail/backend/internal/storage"
	"worktrail/backend/pkg/models"
)

// UploadPolicy is configuration, not algorithm: size cap, extension
// allow/deny lists and the stored-name length cap.
type UploadPolicy struct {
	MaxSizeBytes  int64
	AllowedExts   []string
	BlockedExts   []string
	MaxNameLength int
}

// AttachmentService associates uploaded files with execution records or
// reviews and delegates the bytes to the file store.
type AttachmentService struct {
	repo    repository.Repository
	files   storage.FileStore
	metrics observability.Sink
	policy  UploadPolicy
}

// NewAttachmentService creates an AttachmentService.
func NewAttachmentService(repo repository.Repository, files storage.FileStore, metrics observability.Sink, policy UploadPolicy) *AttachmentService {
	if policy.MaxNameLength <= 0 {
		policy.MaxNameLength = 100
	}
	return &AttachmentService{repo: repo, files: files, metrics: metrics, policy: policy}
}

// FileUpload is one incoming multipart file.
type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
	Description string
	Tags        []string
}

// UploadToRecord stores a file against an execution record the caller
// owns (transitively via the execution).
func (s *AttachmentService) UploadToRecord(ctx context.Context, user *models.User, recordID string, up FileUpload) (*models.Attachment, error) {
	rec, err := s.repo.GetExecutionRecord(ctx, recordID)
	if err != nil {
		return nil, mapRepoErr(err, "execution record")
	}
	exec, err := s.repo.GetExecution(ctx, rec.ExecutionID)
	if err != nil {
		return nil, mapRepoErr(err, "execution")
	}
	if !user.CanAccess(exec.OwnerID) {
		return nil, apperr.AccessDenied("execution does not belong to you")
	}
	return s.store(ctx, up, &recordID, nil)
}

// UploadToReview stores a file against a review the caller owns.
func (s *AttachmentService) UploadToReview(ctx context.Context, user *models.User, reviewID string, up FileUpload) (*models.Attachment, error) {
	rev, err := s.repo.GetReview(ctx, reviewID)
	if err != nil {
		return nil, mapRepoErr(err, "review")
	}
	if !user.CanAccess(rev.OwnerID) {
		return nil, apperr.AccessDenied("review does not belong to you")
	}
	return s.store(ctx, up, nil, &reviewID)
}

func (s *AttachmentService) store(ctx context.Context, up FileUpload, recordID, reviewID *string) (*models.Attachment, error) {
	if up.Name == "" || up.Reader == nil {
		return nil, apperr.Validation("no file provided")
	}
	if s.policy.MaxSizeBytes > 0 && up.Size > s.policy.MaxSizeBytes {
		return nil, apperr.Validation("file exceeds maximum size of %d bytes", s.policy.MaxSizeBytes)
	}

	clean := SanitizeFilename(up.Name, s.policy.MaxNameLength)
	ext := strings.ToLower(filepath.Ext(clean))
	if err := s.checkExtension(ext); err != nil {
		return nil, err
	}

	contentType := up.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	storedName := uuid.New().String() + "_" + clean

	// the limit reader catches lying Content-Length headers
	reader := up.Reader
	if s.policy.MaxSizeBytes > 0 {
		reader = io.LimitReader(up.Reader, s.policy.MaxSizeBytes+1)
	}
	path, size, err := s.files.Save(storedName, reader)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if s.policy.MaxSizeBytes > 0 && size > s.policy.MaxSizeBytes {
		_ = s.files.Remove(path)
		return nil, apperr.Validation("file exceeds maximum size of %d bytes", s.policy.MaxSizeBytes)
	}

	att := &models.Attachment{
		ID:                uuid.New().String(),
		ExecutionRecordID: recordID,
		ReviewID:          reviewID,
		OriginalName:      up.Name,
		StoredName:        storedName,
		FileType:          ClassifyFileType(contentType),
		SizeBytes:         size,
		StoredPath:        path,
		MimeType:          contentType,
		Description:       up.Description,
		Tags:              up.Tags,
	}
	if err := s.repo.CreateAttachment(ctx, att); err != nil {
		_ = s.files.Remove(path)
		return nil, apperr.Internal(err)
	}
	s.metrics.AttachmentUploaded(ctx, size)
	return att, nil
}

func (s *AttachmentService) checkExtension(ext string) error {
	for _, blocked := range s.policy.BlockedExts {
		if ext == strings.ToLower(blocked) {
			return apperr.Validation("file type %s is not allowed", ext)
		}
	}
	if len(s.policy.AllowedExts) > 0 {
		for _, allowed := range s.policy.AllowedExts {
			if ext == strings.ToLower(allowed) {
				return nil
			}
		}
		return apperr.Validation("file type %s is not allowed", ext)
	}
	return nil
}

// Get returns attachment metadata, ownership-checked.
func (s *AttachmentService) Get(ctx context.Context, user *models.User, id string) (*models.Attachment, error) {
	att, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "attachment")
	}
	if err := s.checkOwnership(ctx, user, att); err != nil {
		return nil, err
	}
	return att, nil
}

// Open returns the attachment's content for download.
func (s *AttachmentService) Open(ctx context.Context, user *models.User, id string) (*models.Attachment, io.ReadCloser, error) {
	att, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(att.StoredPath)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	return att, rc, nil
}

// ListByRecord returns the attachments of an execution record.
func (s *AttachmentService) ListByRecord(ctx context.Context, user *models.User, recordID string) ([]models.Attachment, error) {
	rec, err := s.repo.GetExecutionRecord(ctx, recordID)
	if err != nil {
		return nil, mapRepoErr(err, "execution record")
	}
	exec, err := s.repo.GetExecution(ctx, rec.ExecutionID)
	if err != nil {
		return nil, mapRepoErr(err, "execution")
	}
	if !user.CanAccess(exec.OwnerID) {
		return nil, apperr.AccessDenied("execution does not belong to you")
	}
	attachments, err := s.repo.ListAttachmentsByRecord(ctx, recordID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return attachments, nil
}

// Delete removes both the stored file and the metadata row. A file already
// missing from storage is not an error.
func (s *AttachmentService) Delete(ctx context.Context, user *models.User, id string) error {
	att, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.files.Remove(att.StoredPath); err != nil {
		return apperr.Internal(err)
	}
	if err := s.repo.DeleteAttachment(ctx, att.ID); err != nil {
		return mapRepoErr(err, "attachment")
	}
	return nil
}

// BatchDelete removes several attachments, stopping at the first failure.
func (s *AttachmentService) BatchDelete(ctx context.Context, user *models.User, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		if err := s.Delete(ctx, user, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *AttachmentService) checkOwnership(ctx context.Context, user *models.User, att *models.Attachment) error {
	var ownerID string
	switch {
	case att.ExecutionRecordID != nil:
		rec, err := s.repo.GetExecutionRecord(ctx, *att.ExecutionRecordID)
		if err != nil {
			return mapRepoErr(err, "execution record")
		}
		exec, err := s.repo.GetExecution(ctx, rec.ExecutionID)
		if err != nil {
			return mapRepoErr(err, "execution")
		}
		ownerID = exec.OwnerID
	case att.ReviewID != nil:
		rev, err := s.repo.GetReview(ctx, *att.ReviewID)
		if err != nil {
			return mapRepoErr(err, "review")
		}
		ownerID = rev.OwnerID
	}
	if !user.CanAccess(ownerID) {
		return apperr.AccessDenied("attachment does not belong to you")
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename strips directory components, path-traversal sequences
// and unsafe characters, and caps the length while keeping the extension.
func SanitizeFilename(name string, maxLen int) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	if maxLen > 0 && len(name) > maxLen {
		ext := filepath.Ext(name)
		if len(ext) >= maxLen {
			ext = ""
		}
		name = name[:maxLen-len(ext)] + ext
	}
	return name
}

// ClassifyFileType buckets a MIME type into the coarse attachment
// classification.
func ClassifyFileType(contentType string) models.FileType {
	mt := strings.ToLower(contentType)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return models.FileTypeImage
	case strings.HasPrefix(mt, "text/"), mt == "application/json", mt == "application/xml":
		return models.FileTypeText
	case mt == "application/pdf",
		strings.HasPrefix(mt, "application/msword"),
		strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument"),
		strings.HasPrefix(mt, "application/vnd.ms-"),
		strings.HasPrefix(mt, "application/vnd.oasis.opendocument"):
		return models.FileTypeDocument
	case mt == "application/zip", mt == "application/gzip",
		mt == "application/x-tar", mt == "application/x-7z-compressed":
		return models.FileTypeArchive
	default:
		return models.FileTypeOther
	}
}
