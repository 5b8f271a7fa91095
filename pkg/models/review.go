package models

import (
	"time"
)

// Review is a post-execution retrospective note with a rating and free-text
// reflection. Public reviews are readable by any authenticated user.
type Review struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"owner_id"`
	ExecutionID  string       `json:"execution_id"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	Rating       int          `json:"rating"` // 1..5
	Lessons      string       `json:"lessons,omitempty"`
	Improvements string       `json:"improvements,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Public       bool         `json:"public"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
