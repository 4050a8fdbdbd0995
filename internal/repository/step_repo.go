package repository

import (
	"database/sql"
	"fmt"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"go.uber.org/zap"
)

// StepConfigRepository handles workflow step catalog database operations
type StepConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStepConfigRepository creates a new step configuration repository
func NewStepConfigRepository(db *sql.DB, logger *zap.Logger) *StepConfigRepository {
	return &StepConfigRepository{
		db:     db,
		logger: logger,
	}
}

const stepColumns = `id, step_number, step_name, description, required_employee_role,
	is_ls_only, is_non_ls_only, is_parallel, parallel_group, created_at, updated_at`

func scanStep(row interface{ Scan(...interface{}) error }) (*models.StepConfiguration, error) {
	var step models.StepConfiguration
	var group sql.NullString

	err := row.Scan(
		&step.ID,
		&step.StepNumber,
		&step.StepName,
		&step.Description,
		&step.RequiredEmployeeRole,
		&step.IsLsOnly,
		&step.IsNonLsOnly,
		&step.IsParallel,
		&group,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if group.Valid {
		step.ParallelGroup = &group.String
	}
	return &step, nil
}

// List returns the full step catalog ordered by step number ascending.
// Callers must re-fetch per operation rather than cache; administrators
// can change the catalog at any time.
func (r *StepConfigRepository) List(tx *sql.Tx) ([]*models.StepConfiguration, error) {
	query := fmt.Sprintf("SELECT %s FROM step_configurations ORDER BY step_number ASC", stepColumns)

	rows, err := conn(r.db, tx).Query(query)
	if err != nil {
		r.logger.Error("Failed to list step configurations", zap.Error(err))
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.StepConfiguration
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// GetByNumber retrieves a step configuration by its step number
func (r *StepConfigRepository) GetByNumber(tx *sql.Tx, stepNumber int) (*models.StepConfiguration, error) {
	query := fmt.Sprintf("SELECT %s FROM step_configurations WHERE step_number = ?", stepColumns)

	step, err := scanStep(conn(r.db, tx).QueryRow(query, stepNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get step by number", zap.Int("step_number", stepNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

// GetByID retrieves a step configuration by its row ID
func (r *StepConfigRepository) GetByID(id int64) (*models.StepConfiguration, error) {
	query := fmt.Sprintf("SELECT %s FROM step_configurations WHERE id = ?", stepColumns)

	step, err := scanStep(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get step by id", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

// Create inserts a new step configuration
func (r *StepConfigRepository) Create(tx *sql.Tx, step *models.StepConfiguration) error {
	query := `
		INSERT INTO step_configurations (
			step_number, step_name, description, required_employee_role,
			is_ls_only, is_non_ls_only, is_parallel, parallel_group
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(r.db, tx).Exec(query,
		step.StepNumber,
		step.StepName,
		step.Description,
		step.RequiredEmployeeRole,
		step.IsLsOnly,
		step.IsNonLsOnly,
		step.IsParallel,
		step.ParallelGroup,
	)
	if err != nil {
		r.logger.Error("Failed to create step configuration", zap.Error(err))
		return fmt.Errorf("failed to create step: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	step.ID = id
	return nil
}

// Update replaces the mutable fields of a step configuration
func (r *StepConfigRepository) Update(tx *sql.Tx, step *models.StepConfiguration) error {
	query := `
		UPDATE step_configurations
		SET step_number = ?, step_name = ?, description = ?, required_employee_role = ?,
			is_ls_only = ?, is_non_ls_only = ?, is_parallel = ?, parallel_group = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := conn(r.db, tx).Exec(query,
		step.StepNumber,
		step.StepName,
		step.Description,
		step.RequiredEmployeeRole,
		step.IsLsOnly,
		step.IsNonLsOnly,
		step.IsParallel,
		step.ParallelGroup,
		step.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update step configuration", zap.Int64("id", step.ID), zap.Error(err))
		return fmt.Errorf("failed to update step: %w", err)
	}
	return nil
}

// Delete removes a step configuration by row ID
func (r *StepConfigRepository) Delete(tx *sql.Tx, id int64) error {
	_, err := conn(r.db, tx).Exec("DELETE FROM step_configurations WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete step configuration", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete step: %w", err)
	}
	return nil
}

// SetStepNumber assigns a step number to a single row. Used by the
// renumbering sweep, which temporarily parks rows on negative numbers
// to dodge the uniqueness constraint.
func (r *StepConfigRepository) SetStepNumber(tx *sql.Tx, id int64, stepNumber int) error {
	_, err := conn(r.db, tx).Exec(
		"UPDATE step_configurations SET step_number = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		stepNumber, id,
	)
	if err != nil {
		r.logger.Error("Failed to set step number",
			zap.Int64("id", id),
			zap.Int("step_number", stepNumber),
			zap.Error(err))
		return fmt.Errorf("failed to set step number: %w", err)
	}
	return nil
}
