package repository

import (
	"database/sql"
	"fmt"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"go.uber.org/zap"
)

// UserRepository handles user account database operations
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, username, password_hash, name, system_role, employee_role, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var employeeRole sql.NullString

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Name,
		&u.SystemRole,
		&employeeRole,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if employeeRole.Valid {
		u.EmployeeRole = models.EmployeeRole(employeeRole.String)
	}
	return &u, nil
}

// Create inserts a new user account
func (r *UserRepository) Create(user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, name, system_role, employee_role)
		VALUES (?, ?, ?, ?, ?)
	`

	var employeeRole interface{}
	if user.EmployeeRole != "" {
		employeeRole = string(user.EmployeeRole)
	}

	result, err := r.db.Exec(query,
		user.Username,
		user.PasswordHash,
		user.Name,
		user.SystemRole,
		employeeRole,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("username", user.Username), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE username = ?", userColumns)

	user, err := scanUser(r.db.QueryRow(query, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by username", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = ?", userColumns)

	user, err := scanUser(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List retrieves all users, newest first
func (r *UserRepository) List() ([]*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users ORDER BY created_at DESC, id DESC", userColumns)

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Update replaces a user's profile; the password hash is only changed
// when a non-empty hash is supplied.
func (r *UserRepository) Update(user *models.User) error {
	var employeeRole interface{}
	if user.EmployeeRole != "" {
		employeeRole = string(user.EmployeeRole)
	}

	var err error
	if user.PasswordHash != "" {
		_, err = r.db.Exec(
			"UPDATE users SET username = ?, password_hash = ?, name = ?, system_role = ?, employee_role = ? WHERE id = ?",
			user.Username, user.PasswordHash, user.Name, user.SystemRole, employeeRole, user.ID,
		)
	} else {
		_, err = r.db.Exec(
			"UPDATE users SET username = ?, name = ?, system_role = ?, employee_role = ? WHERE id = ?",
			user.Username, user.Name, user.SystemRole, employeeRole, user.ID,
		)
	}
	if err != nil {
		r.logger.Error("Failed to update user", zap.Int64("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes a user account
func (r *UserRepository) Delete(id int64) error {
	_, err := r.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete user", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Count returns the number of user accounts
func (r *UserRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
