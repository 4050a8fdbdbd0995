// Package auth covers the perimeter of the workflow: credential
// verification, bearer token issuance, and local user administration.
// The workflow itself never sees credentials, only a resolved Actor.
package auth

import (
	"errors"
	"fmt"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"github.com/adiwicaksono/pd-tracker/internal/repository"
	"github.com/adiwicaksono/pd-tracker/pkg/utils"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned for both unknown usernames and
// wrong passwords; callers must not learn which of the two failed.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrUserExists is returned when a username is already taken
var ErrUserExists = errors.New("username already taken")

// ErrUserNotFound is returned when the referenced user does not exist
var ErrUserNotFound = errors.New("user not found")

// Service handles login and user administration
type Service struct {
	users  *repository.UserRepository
	tokens *TokenIssuer
	logger *zap.Logger
}

// NewService creates a new auth service
func NewService(users *repository.UserRepository, tokens *TokenIssuer, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Login verifies credentials and returns a signed token with the user
func (s *Service) Login(username, password string) (string, *models.User, error) {
	if username == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(username)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		s.logger.Warn("Failed login attempt", zap.String("username", username))
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("User logged in", zap.Int64("user_id", user.ID), zap.String("username", username))
	return token, user, nil
}

// ResolveActor turns a bearer token into the acting identity. Roles are
// read from the user store, not the token, so revocations apply
// immediately.
func (s *Service) ResolveActor(token string) (*models.Actor, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return &models.Actor{
		ID:           user.ID,
		Name:         user.Name,
		SystemRole:   user.SystemRole,
		EmployeeRole: user.EmployeeRole,
	}, nil
}

// CreateUserInput carries the fields for a new user account
type CreateUserInput struct {
	Username     string              `json:"username"`
	Password     string              `json:"password"`
	Name         string              `json:"name"`
	SystemRole   models.SystemRole   `json:"system_role"`
	EmployeeRole models.EmployeeRole `json:"employee_role"`
}

// CreateUser registers a new account. Only employees carry an employee
// role; for other system roles it is discarded.
func (s *Service) CreateUser(input CreateUserInput) (*models.User, error) {
	if input.Username == "" || input.Password == "" || input.Name == "" {
		return nil, fmt.Errorf("username, password and name are required")
	}
	if err := utils.ValidateUsername(input.Username); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByUsername(input.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     input.Username,
		PasswordHash: hash,
		Name:         utils.SanitizeString(input.Name),
		SystemRole:   input.SystemRole,
	}
	if input.SystemRole == models.RoleEmployee {
		user.EmployeeRole = input.EmployeeRole
	}

	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("system_role", string(user.SystemRole)))
	return user, nil
}

// UpdateUserInput carries the mutable fields of a user account. An
// empty password leaves the stored hash untouched.
type UpdateUserInput struct {
	Username     string              `json:"username"`
	Password     string              `json:"password"`
	Name         string              `json:"name"`
	SystemRole   models.SystemRole   `json:"system_role"`
	EmployeeRole models.EmployeeRole `json:"employee_role"`
}

// UpdateUser replaces a user's profile
func (s *Service) UpdateUser(id int64, input UpdateUserInput) (*models.User, error) {
	user, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.Username = input.Username
	user.Name = input.Name
	user.SystemRole = input.SystemRole
	user.EmployeeRole = ""
	if input.SystemRole == models.RoleEmployee {
		user.EmployeeRole = input.EmployeeRole
	}

	user.PasswordHash = ""
	if input.Password != "" {
		hash, err := HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	return s.users.GetByID(id)
}

// DeleteUser removes a user account
func (s *Service) DeleteUser(id int64) error {
	user, err := s.users.GetByID(id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.users.Delete(id)
}

// ListUsers retrieves all user accounts
func (s *Service) ListUsers() ([]*models.User, error) {
	return s.users.List()
}

// BootstrapAdmin creates the default administrator account when the
// user store is empty, so a fresh deployment can be logged into.
func (s *Service) BootstrapAdmin(username, password string) error {
	count, err := s.users.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return fmt.Errorf("default admin password is required for an empty user store")
	}

	_, err = s.CreateUser(CreateUserInput{
		Username:   username,
		Password:   password,
		Name:       "Administrator",
		SystemRole: models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}

	s.logger.Info("Default admin account created", zap.String("username", username))
	return nil
}
