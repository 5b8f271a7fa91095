package models

import (
	"time"
)

// StepType is the closed set of step kinds a workflow may contain.
type StepType string

const (
	StepTypeChecklist StepType = "checklist"
	StepTypeInput     StepType = "input"
	StepTypeDecision  StepType = "decision"
	StepTypeManual    StepType = "manual"
	StepTypeApproval  StepType = "approval"
)

// ValidStepType reports whether t is one of the known step types.
func ValidStepType(t StepType) bool {
	switch t {
	case StepTypeChecklist, StepTypeInput, StepTypeDecision, StepTypeManual, StepTypeApproval:
		return true
	}
	return false
}

// Workflow is a named, ordered template of steps a user can execute
// repeatedly. Step order values are unique per workflow and define the
// execution sequence.
type Workflow struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Active      bool           `json:"active"`
	Steps       []WorkflowStep `json:"steps,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WorkflowStep is a single step of a workflow template. Dependencies
// reference other step ids within the same workflow and must not form a
// cycle.
type WorkflowStep struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflow_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Order        int            `json:"order"`
	Required     bool           `json:"required"`
	Type         StepType       `json:"type"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
