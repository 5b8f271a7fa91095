package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"worktrail/backend/internal/config"
	"worktrail/backend/internal/logging"
	"worktrail/backend/internal/repository"
	"worktrail/backend/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)

	// 1. Ensure the demo user exists
	email := "demo@localhost"
	user, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Fatalf("Failed to look up user: %v", err)
		}
		logger.Info("Creating demo user email=%s", email)
		hash, err := bcrypt.GenerateFromPassword([]byte("demo-password"), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		user = &models.User{
			ID:           uuid.New().String(),
			Email:        email,
			Name:         "Demo User",
			PasswordHash: string(hash),
			Role:         models.RoleUser,
		}
		if err := store.CreateUser(ctx, user); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
	} else {
		logger.Info("Found existing demo user id=%s", user.ID)
	}

	// 2. Check for existing workflows to prevent duplicates
	existing, err := store.ListWorkflows(ctx, user.ID)
	if err != nil {
		log.Fatalf("Failed to list existing workflows: %v", err)
	}
	existingMap := make(map[string]bool)
	for _, w := range existing {
		existingMap[w.Name] = true
	}

	// 3. Create seed workflows
	workflows := []struct {
		Name        string
		Description string
		Steps       []seedStep
	}{
		{
			Name:        "Release checklist",
			Description: "Everything that happens before a version ships.",
			Steps: []seedStep{
				{"Run test suite", models.StepTypeChecklist, true},
				{"Update changelog", models.StepTypeInput, true},
				{"Tag release", models.StepTypeManual, true},
				{"Announce", models.StepTypeManual, false},
			},
		},
		{
			Name:        "Onboard teammate",
			Description: "First-week setup for a new team member.",
			Steps: []seedStep{
				{"Create accounts", models.StepTypeChecklist, true},
				{"Grant repository access", models.StepTypeApproval, true},
				{"Pair on first task", models.StepTypeManual, false},
			},
		},
	}

	for _, w := range workflows {
		if existingMap[w.Name] {
			logger.Info("Skipping existing workflow name=%s", w.Name)
			continue
		}

		wf := &models.Workflow{
			ID:          uuid.New().String(),
			OwnerID:     user.ID,
			Name:        w.Name,
			Description: w.Description,
			Active:      true,
		}
		for i, s := range w.Steps {
			wf.Steps = append(wf.Steps, models.WorkflowStep{
				ID:         uuid.New().String(),
				WorkflowID: wf.ID,
				Name:       s.Name,
				Order:      i + 1,
				Required:   s.Required,
				Type:       s.Type,
			})
		}

		if err := store.CreateWorkflow(ctx, wf); err != nil {
			log.Printf("Failed to create workflow %s: %v", w.Name, err)
		} else {
			logger.Info("Seeded workflow name=%s id=%s", w.Name, wf.ID)
		}
	}
	logger.Info("Seeding complete!")
}

type seedStep struct {
	Name     string
	Type     models.StepType
	Required bool
}
