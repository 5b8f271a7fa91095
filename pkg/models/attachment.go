package models

import (
	"time"
)

// FileType is a coarse classification of an uploaded file, derived from its
// MIME type.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeText     FileType = "text"
	FileTypeDocument FileType = "document"
	FileTypeArchive  FileType = "archive"
	FileTypeOther    FileType = "other"
)

// Attachment is a file associated with either an execution record or a
// review. Exactly one of ExecutionRecordID / ReviewID is set.
type Attachment struct {
	ID                string    `json:"id"`
	ExecutionRecordID *string   `json:"execution_record_id,omitempty"`
	ReviewID          *string   `json:"review_id,omitempty"`
	OriginalName      string    `json:"original_name"`
	StoredName        string    `json:"stored_name"`
	FileType          FileType  `json:"file_type"`
	SizeBytes         int64     `json:"size_bytes"`
	StoredPath        string    `json:"stored_path"`
	MimeType          string    `json:"mime_type"`
	Description       string    `json:"description,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
