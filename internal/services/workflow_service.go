package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/repository"
	"worktrail/backend/pkg/models"
)

// WorkflowService manages workflow templates and their step sets. A
// workflow's structure freezes once any execution references it.
type WorkflowService struct {
	repo repository.Repository
}

// NewWorkflowService creates a WorkflowService.
func NewWorkflowService(repo repository.Repository) *WorkflowService {
	return &WorkflowService{repo: repo}
}

// StepInput describes one step in a create/replace request.
type StepInput struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Order        int             `json:"order"`
	Required     bool            `json:"required"`
	Type         models.StepType `json:"type"`
	Dependencies []string        `json:"dependencies"`
	Metadata     map[string]any  `json:"metadata"`
	// DependsOnOrder lets clients reference dependency steps by order
	// instead of by id, which cannot be known before creation.
	DependsOnOrder []int `json:"depends_on_order"`
}

// WorkflowInput is the create/update payload.
type WorkflowInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Active      *bool       `json:"active"`
	Steps       []StepInput `json:"steps"`
}

// Create validates and persists a workflow with its steps.
func (s *WorkflowService) Create(ctx context.Context, user *models.User, in WorkflowInput) (*models.Workflow, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("name is required")
	}

	wf := &models.Workflow{
		ID:          uuid.New().String(),
		OwnerID:     user.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Active:      true,
	}
	if in.Active != nil {
		wf.Active = *in.Active
	}

	steps, err := buildSteps(wf.ID, in.Steps)
	if err != nil {
		return nil, err
	}
	wf.Steps = steps

	if err := s.repo.CreateWorkflow(ctx, wf); err != nil {
		return nil, apperr.Internal(err)
	}
	return wf, nil
}

// Get returns a workflow with its steps, ownership-checked.
func (s *WorkflowService) Get(ctx context.Context, user *models.User, id string) (*models.Workflow, error) {
	wf, err := s.repo.GetWorkflow(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "workflow")
	}
	if !user.CanAccess(wf.OwnerID) {
		return nil, apperr.AccessDenied("workflow does not belong to you")
	}
	return wf, nil
}

// List returns the caller's workflows.
func (s *WorkflowService) List(ctx context.Context, user *models.User) ([]*models.Workflow, error) {
	workflows, err := s.repo.ListWorkflows(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return workflows, nil
}

// Update changes a workflow's name/description/active flag, and its step
// set when steps are provided. Step replacement is refused once any
// execution references the workflow.
func (s *WorkflowService) Update(ctx context.Context, user *models.User, id string, in WorkflowInput) (*models.Workflow, error) {
	wf, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Name) != "" {
		wf.Name = strings.TrimSpace(in.Name)
	}
	if in.Description != "" {
		wf.Description = in.Description
	}
	if in.Active != nil {
		wf.Active = *in.Active
	}
	if err := s.repo.UpdateWorkflow(ctx, wf); err != nil {
		return nil, mapRepoErr(err, "workflow")
	}

	if in.Steps != nil {
		if err := s.ensureNotInUse(ctx, id); err != nil {
			return nil, err
		}
		steps, err := buildSteps(id, in.Steps)
		if err != nil {
			return nil, err
		}
		if err := s.repo.ReplaceWorkflowSteps(ctx, id, steps); err != nil {
			return nil, apperr.Internal(err)
		}
		wf.Steps = steps
	}

	return wf, nil
}

// Delete removes a workflow. Workflows with executions cannot be deleted;
// deactivate them instead.
func (s *WorkflowService) Delete(ctx context.Context, user *models.User, id string) error {
	if _, err := s.Get(ctx, user, id); err != nil {
		return err
	}
	if err := s.ensureNotInUse(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteWorkflow(ctx, id); err != nil {
		return mapRepoErr(err, "workflow")
	}
	return nil
}

func (s *WorkflowService) ensureNotInUse(ctx context.Context, id string) error {
	n, err := s.repo.CountExecutionsByWorkflow(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if n > 0 {
		return apperr.New(apperr.CodeWorkflowInUse,
			"workflow has %d execution(s); its structure is frozen", n)
	}
	return nil
}

// buildSteps validates step inputs and materializes them with ids,
// resolving order-based dependency references.
func buildSteps(workflowID string, inputs []StepInput) ([]models.WorkflowStep, error) {
	steps := make([]models.WorkflowStep, 0, len(inputs))
	idByOrder := make(map[int]string, len(inputs))
	seenOrder := make(map[int]bool, len(inputs))

	for _, in := range inputs {
		if strings.TrimSpace(in.Name) == "" {
			return nil, apperr.Validation("step name is required")
		}
		if in.Type == "" {
			in.Type = models.StepTypeManual
		}
		if !models.ValidStepType(in.Type) {
			return nil, apperr.Validation("unknown step type %q", in.Type)
		}
		if seenOrder[in.Order] {
			return nil, apperr.Validation("duplicate step order %d", in.Order)
		}
		seenOrder[in.Order] = true

		id := uuid.New().String()
		idByOrder[in.Order] = id
		steps = append(steps, models.WorkflowStep{
			ID:           id,
			WorkflowID:   workflowID,
			Name:         strings.TrimSpace(in.Name),
			Description:  in.Description,
			Order:        in.Order,
			Required:     in.Required,
			Type:         in.Type,
			Dependencies: in.Dependencies,
			Metadata:     in.Metadata,
		})
	}

	// resolve order-based references now that every step has an id
	for i, in := range inputs {
		for _, depOrder := range in.DependsOnOrder {
			depID, ok := idByOrder[depOrder]
			if !ok {
				return nil, apperr.Validation("step %q depends on unknown order %d", in.Name, depOrder)
			}
			steps[i].Dependencies = append(steps[i].Dependencies, depID)
		}
	}

	if err := validateDependencies(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// validateDependencies checks that every dependency references a step of
// the same workflow and that the dependency graph is acyclic.
func validateDependencies(steps []models.WorkflowStep) error {
	known := make(map[string][]string, len(steps))
	for _, st := range steps {
		known[st.ID] = st.Dependencies
	}
	for _, st := range steps {
		for _, dep := range st.Dependencies {
			if _, ok := known[dep]; !ok {
				return apperr.Validation("step %q depends on unknown step %s", st.Name, dep)
			}
			if dep == st.ID {
				return apperr.Validation("step %q depends on itself", st.Name)
			}
		}
	}

	// colors: 0 unvisited, 1 on stack, 2 done
	color := make(map[string]int, len(steps))
	var visit func(id string) bool
	visit = func(id string) bool {
		switch color[id] {
		case 1:
			return false
		case 2:
			return true
		}
		color[id] = 1
		for _, dep := range known[id] {
			if !visit(dep) {
				return false
			}
		}
		color[id] = 2
		return true
	}
	for _, st := range steps {
		if !visit(st.ID) {
			return apperr.Validation("step dependencies form a cycle")
		}
	}
	return nil
}
