package workflow

import (
	"database/sql"
	"fmt"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"github.com/adiwicaksono/pd-tracker/internal/repository"
	"github.com/adiwicaksono/pd-tracker/pkg/database"
	"go.uber.org/zap"
)

// CatalogService manages the workflow step catalog. All edits preserve
// the dense 1..N numbering invariant the progression logic depends on:
// deletes renumber the survivors, and reorders swap numbers atomically.
type CatalogService struct {
	db     *database.DB
	steps  *repository.StepConfigRepository
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(db *database.DB, steps *repository.StepConfigRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		db:     db,
		steps:  steps,
		logger: logger,
	}
}

// ListSteps returns the catalog ordered by step number
func (c *CatalogService) ListSteps() ([]*models.StepConfiguration, error) {
	return c.steps.List(nil)
}

// GetStep returns one step by row ID
func (c *CatalogService) GetStep(id int64) (*models.StepConfiguration, error) {
	step, err := c.steps.GetByID(id)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, fmt.Errorf("%w: step %d", ErrNotFound, id)
	}
	return step, nil
}

// CreateStep validates and inserts a new step configuration
func (c *CatalogService) CreateStep(step *models.StepConfiguration) error {
	if err := validateStep(step); err != nil {
		return err
	}

	return c.db.WithTransaction(func(tx *sql.Tx) error {
		existing, err := c.steps.GetByNumber(tx, step.StepNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: step number %d already exists", ErrValidation, step.StepNumber)
		}
		return c.steps.Create(tx, step)
	})
}

// UpdateStep validates and replaces a step configuration
func (c *CatalogService) UpdateStep(step *models.StepConfiguration) error {
	if err := validateStep(step); err != nil {
		return err
	}

	return c.db.WithTransaction(func(tx *sql.Tx) error {
		current, err := c.steps.GetByID(step.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: step %d", ErrNotFound, step.ID)
		}

		if step.StepNumber != current.StepNumber {
			occupant, err := c.steps.GetByNumber(tx, step.StepNumber)
			if err != nil {
				return err
			}
			if occupant != nil && occupant.ID != step.ID {
				return fmt.Errorf("%w: step number %d already exists", ErrValidation, step.StepNumber)
			}
		}
		return c.steps.Update(tx, step)
	})
}

// DeleteStep removes a step and renumbers the survivors back to a dense
// 1..N sequence. The whole sweep runs in one transaction so no caller
// ever observes a gap.
func (c *CatalogService) DeleteStep(id int64) error {
	return c.db.WithTransaction(func(tx *sql.Tx) error {
		step, err := c.steps.GetByID(id)
		if err != nil {
			return err
		}
		if step == nil {
			return fmt.Errorf("%w: step %d", ErrNotFound, id)
		}

		if err := c.steps.Delete(tx, id); err != nil {
			return err
		}

		remaining, err := c.steps.List(tx)
		if err != nil {
			return err
		}
		return c.renumber(tx, remaining)
	})
}

// StepOrder assigns a step number to a step row for Reorder
type StepOrder struct {
	ID         int64 `json:"id"`
	StepNumber int   `json:"step_number"`
}

// Reorder applies a full set of new step numbers. The assignment must
// cover a dense 1..N sequence.
func (c *CatalogService) Reorder(orders []StepOrder) error {
	seen := make(map[int]bool, len(orders))
	for _, o := range orders {
		if o.StepNumber < 1 || o.StepNumber > len(orders) || seen[o.StepNumber] {
			return fmt.Errorf("%w: step numbers must form a dense 1..%d sequence", ErrValidation, len(orders))
		}
		seen[o.StepNumber] = true
	}

	return c.db.WithTransaction(func(tx *sql.Tx) error {
		// Two-phase swap: park everything on negative numbers first so
		// the uniqueness constraint never trips mid-sweep.
		for _, o := range orders {
			if err := c.steps.SetStepNumber(tx, o.ID, -o.StepNumber); err != nil {
				return err
			}
		}
		for _, o := range orders {
			if err := c.steps.SetStepNumber(tx, o.ID, o.StepNumber); err != nil {
				return err
			}
		}
		return nil
	})
}

// Renumber compacts the catalog to a dense 1..N sequence in catalog order
func (c *CatalogService) Renumber() error {
	return c.db.WithTransaction(func(tx *sql.Tx) error {
		steps, err := c.steps.List(tx)
		if err != nil {
			return err
		}
		return c.renumber(tx, steps)
	})
}

func (c *CatalogService) renumber(tx *sql.Tx, steps []*models.StepConfiguration) error {
	for i, step := range steps {
		if err := c.steps.SetStepNumber(tx, step.ID, -(i + 1)); err != nil {
			return err
		}
	}
	for i, step := range steps {
		if err := c.steps.SetStepNumber(tx, step.ID, i+1); err != nil {
			return err
		}
	}
	c.logger.Info("Step catalog renumbered", zap.Int("count", len(steps)))
	return nil
}

func validateStep(step *models.StepConfiguration) error {
	if step.StepNumber < 1 {
		return fmt.Errorf("%w: step number must be positive", ErrValidation)
	}
	if step.StepName == "" {
		return fmt.Errorf("%w: step name is required", ErrValidation)
	}
	if step.RequiredEmployeeRole == "" {
		return fmt.Errorf("%w: required employee role is required", ErrValidation)
	}
	if step.IsLsOnly && step.IsNonLsOnly {
		return fmt.Errorf("%w: a step cannot be both LS-only and non-LS-only", ErrValidation)
	}
	if step.ParallelGroup != nil && *step.ParallelGroup != "" && !step.IsParallel {
		return fmt.Errorf("%w: parallel group requires the parallel flag", ErrValidation)
	}
	if step.IsParallel && (step.ParallelGroup == nil || *step.ParallelGroup == "") {
		return fmt.Errorf("%w: parallel steps need a parallel group", ErrValidation)
	}
	return nil
}
