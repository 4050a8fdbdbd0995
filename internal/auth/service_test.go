package auth

import (
	"testing"
	"time"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"github.com/adiwicaksono/pd-tracker/internal/repository"
	"github.com/adiwicaksono/pd-tracker/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.NewInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			system_role TEXT NOT NULL,
			employee_role TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	require.NoError(t, err)

	users := repository.NewUserRepository(db.DB, logger)
	return NewService(users, NewTokenIssuer("test-secret", time.Hour), logger)
}

func TestService_LoginRoundTrip(t *testing.T) {
	service := newTestService(t)

	created, err := service.CreateUser(CreateUserInput{
		Username:     "budi",
		Password:     "rahasia123",
		Name:         "Budi Santoso",
		SystemRole:   models.RoleEmployee,
		EmployeeRole: "VER",
	})
	require.NoError(t, err)

	token, user, err := service.Login("budi", "rahasia123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, created.ID, user.ID)

	actor, err := service.ResolveActor(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, actor.ID)
	assert.Equal(t, "Budi Santoso", actor.Name)
	assert.Equal(t, models.EmployeeRole("VER"), actor.EmployeeRole)
}

func TestService_LoginFailures(t *testing.T) {
	service := newTestService(t)

	_, err := service.CreateUser(CreateUserInput{
		Username:   "budi",
		Password:   "rahasia123",
		Name:       "Budi Santoso",
		SystemRole: models.RoleEmployee,
	})
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := service.Login("budi", "salah")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, _, err := service.Login("siapa", "rahasia123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("empty credentials", func(t *testing.T) {
		_, _, err := service.Login("", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_CreateUser(t *testing.T) {
	service := newTestService(t)

	t.Run("rejects duplicate usernames", func(t *testing.T) {
		input := CreateUserInput{
			Username:   "budi",
			Password:   "rahasia123",
			Name:       "Budi",
			SystemRole: models.RoleAdmin,
		}
		_, err := service.CreateUser(input)
		require.NoError(t, err)
		_, err = service.CreateUser(input)
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("drops employee role from non-employees", func(t *testing.T) {
		user, err := service.CreateUser(CreateUserInput{
			Username:     "pengawas",
			Password:     "rahasia123",
			Name:         "Pengawas",
			SystemRole:   models.RoleSupervisor,
			EmployeeRole: "VER",
		})
		require.NoError(t, err)
		assert.Empty(t, user.EmployeeRole)
	})
}

func TestService_UpdateUser(t *testing.T) {
	service := newTestService(t)

	user, err := service.CreateUser(CreateUserInput{
		Username:     "budi",
		Password:     "rahasia123",
		Name:         "Budi",
		SystemRole:   models.RoleEmployee,
		EmployeeRole: "VER",
	})
	require.NoError(t, err)

	t.Run("empty password keeps the old one", func(t *testing.T) {
		updated, err := service.UpdateUser(user.ID, UpdateUserInput{
			Username:     "budi",
			Name:         "Budi Santoso",
			SystemRole:   models.RoleEmployee,
			EmployeeRole: "BP",
		})
		require.NoError(t, err)
		assert.Equal(t, "Budi Santoso", updated.Name)
		assert.Equal(t, models.EmployeeRole("BP"), updated.EmployeeRole)

		_, _, err = service.Login("budi", "rahasia123")
		assert.NoError(t, err)
	})

	t.Run("new password replaces the old one", func(t *testing.T) {
		_, err := service.UpdateUser(user.ID, UpdateUserInput{
			Username:   "budi",
			Password:   "baru456",
			Name:       "Budi Santoso",
			SystemRole: models.RoleEmployee,
		})
		require.NoError(t, err)

		_, _, err = service.Login("budi", "rahasia123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = service.Login("budi", "baru456")
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := service.UpdateUser(999, UpdateUserInput{Username: "x", Name: "x", SystemRole: models.RoleAdmin})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestService_BootstrapAdmin(t *testing.T) {
	service := newTestService(t)

	require.NoError(t, service.BootstrapAdmin("admin", "admin123"))

	_, _, err := service.Login("admin", "admin123")
	assert.NoError(t, err)

	t.Run("no-op on a populated store", func(t *testing.T) {
		require.NoError(t, service.BootstrapAdmin("admin2", "whatever"))
		_, _, err := service.Login("admin2", "whatever")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
