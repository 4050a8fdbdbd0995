package workflow

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

// testSchema mirrors migrations/001_initial_schema.sql.
const testSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    name TEXT NOT NULL,
    system_role TEXT NOT NULL,
    employee_role TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE step_configurations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    step_number INTEGER NOT NULL UNIQUE,
    step_name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    required_employee_role TEXT NOT NULL,
    is_ls_only INTEGER NOT NULL DEFAULT 0,
    is_non_ls_only INTEGER NOT NULL DEFAULT 0,
    is_parallel INTEGER NOT NULL DEFAULT 0,
    parallel_group TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE tickets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_number TEXT NOT NULL UNIQUE,
    activity_name TEXT NOT NULL,
    assignment_letter_number TEXT NOT NULL,
    uraian TEXT,
    start_date DATETIME NOT NULL,
    is_ls INTEGER NOT NULL DEFAULT 0,
    current_step INTEGER NOT NULL DEFAULT 1,
    status TEXT NOT NULL DEFAULT 'pending',
    assigned_executor_id_1 INTEGER REFERENCES users(id),
    assigned_executor_id_2 INTEGER REFERENCES users(id),
    created_by_id INTEGER NOT NULL REFERENCES users(id),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE ticket_histories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_id INTEGER NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
    step_number INTEGER NOT NULL,
    processed_by_id INTEGER NOT NULL REFERENCES users(id),
    processor_name TEXT NOT NULL,
    file_url TEXT,
    file_name TEXT,
    notes TEXT NOT NULL DEFAULT '',
    processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (ticket_id, step_number)
);
`

type engineEnv struct {
	db        *database.DB
	service   *Service
	catalog   *CatalogService
	steps     *repository.StepConfigRepository
	histories *repository.HistoryRepository

	admin models.Actor
	// One employee per role used by the seeded catalog.
	actors map[models.EmployeeRole]models.Actor
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.NewInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	tickets := repository.NewTicketRepository(db.DB, logger)
	histories := repository.NewHistoryRepository(db.DB, logger)
	steps := repository.NewStepConfigRepository(db.DB, logger)

	env := &engineEnv{
		db:        db,
		service:   NewService(db, tickets, histories, steps, 5, logger),
		catalog:   NewCatalogService(db, steps, logger),
		steps:     steps,
		histories: histories,
		actors:    make(map[models.EmployeeRole]models.Actor),
	}

	env.admin = env.seedUser(t, "admin", "Admin Satu", models.RoleAdmin, "")
	for _, role := range []models.EmployeeRole{"VER", "PPRBPD", "OK", "OSPM", "OSPBy", "BP", models.RolePelaksana} {
		actor := env.seedUser(t, string(role), "Pegawai "+string(role), models.RoleEmployee, role)
		env.actors[role] = actor
	}

	for _, step := range testCatalog() {
		step.ID = 0
		require.NoError(t, steps.Create(nil, step))
	}

	return env
}

func (e *engineEnv) seedUser(t *testing.T, username, name string, systemRole models.SystemRole, employeeRole models.EmployeeRole) models.Actor {
	t.Helper()
	result, err := e.db.Exec(
		"INSERT INTO users (username, password_hash, name, system_role, employee_role) VALUES (?, ?, ?, ?, ?)",
		username, "x", name, systemRole, employeeRole,
	)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	return models.Actor{ID: id, Name: name, SystemRole: systemRole, EmployeeRole: employeeRole}
}

func (e *engineEnv) createTicket(t *testing.T, isLs bool) *models.Ticket {
	t.Helper()
	ticket, err := e.service.CreateTicket(CreateTicketInput{
		ActivityName:           "Rapat Koordinasi",
		AssignmentLetterNumber: "ST-001/2025",
		StartDate:              time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		IsLs:                   isLs,
	}, e.admin)
	require.NoError(t, err)
	return ticket
}

func (e *engineEnv) process(t *testing.T, ticketID int64, role models.EmployeeRole, targetStep int) *models.Ticket {
	t.Helper()
	ticket, err := e.service.ProcessStep(ticketID, ProcessRequest{
		Actor:      e.actors[role],
		TargetStep: targetStep,
	})
	require.NoError(t, err)
	return ticket
}

func TestService_CreateTicket(t *testing.T) {
	env := newEngineEnv(t)

	t.Run("numbers are sequential within a year", func(t *testing.T) {
		first := env.createTicket(t, true)
		second := env.createTicket(t, true)

		assert.Equal(t, "PD-202501", first.TicketNumber)
		assert.Equal(t, "PD-202502", second.TicketNumber)
	})

	t.Run("LS starts at the first LS-applicable step", func(t *testing.T) {
		ticket := env.createTicket(t, true)
		assert.Equal(t, 1, ticket.CurrentStep)
		assert.Equal(t, models.StatusPending, ticket.Status)
	})

	t.Run("non-LS starts past the LS-only prefix", func(t *testing.T) {
		ticket := env.createTicket(t, false)
		assert.Equal(t, 5, ticket.CurrentStep)
		assert.Equal(t, models.StatusPending, ticket.Status)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		_, err := env.service.CreateTicket(CreateTicketInput{ActivityName: "Rapat"}, env.admin)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestService_ProcessStep_SequentialRun(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, false)

	file := &models.FileRef{URL: "/uploads/bukti.pdf", OriginalName: "bukti.pdf"}
	ticket, err := env.service.ProcessStep(ticket.ID, ProcessRequest{
		Actor: env.actors["VER"],
		File:  file,
		Notes: "berkas lengkap",
	})
	require.NoError(t, err)
	assert.Equal(t, 6, ticket.CurrentStep)
	assert.Equal(t, models.StatusInProgress, ticket.Status)
	require.Len(t, ticket.Histories, 1)
	assert.Equal(t, "berkas lengkap", ticket.Histories[0].Notes)
	require.NotNil(t, ticket.Histories[0].FileURL)
	assert.Equal(t, "/uploads/bukti.pdf", *ticket.Histories[0].FileURL)

	ticket = env.process(t, ticket.ID, "OSPBy", 0)
	assert.Equal(t, 7, ticket.CurrentStep)
	assert.Equal(t, models.StatusInProgress, ticket.Status)

	ticket = env.process(t, ticket.ID, "BP", 0)
	assert.Equal(t, 8, ticket.CurrentStep)
	assert.Equal(t, models.StatusCompleted, ticket.Status)

	t.Run("completed tickets accept no further processing", func(t *testing.T) {
		_, err := env.service.ProcessStep(ticket.ID, ProcessRequest{Actor: env.actors["BP"]})
		assert.ErrorIs(t, err, ErrAlreadyCompleted)
	})
}

func TestService_TicketFiles(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, false)

	_, err := env.service.ProcessStep(ticket.ID, ProcessRequest{
		Actor: env.actors["VER"],
		File:  &models.FileRef{URL: "/uploads/PD-202501/kuitansi.pdf", OriginalName: "kuitansi.pdf"},
		Notes: "berkas lengkap",
	})
	require.NoError(t, err)

	// Step 6 is satisfied without an upload; it must not appear in the listing.
	env.process(t, ticket.ID, "OSPBy", 0)

	files, err := env.service.TicketFiles(ticket.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 5, files[0].StepNumber)
	assert.Equal(t, "/uploads/PD-202501/kuitansi.pdf", files[0].FileURL)
	assert.Equal(t, "kuitansi.pdf", files[0].FileName)
	assert.Equal(t, "Pegawai VER", files[0].ProcessorName)

	t.Run("unknown ticket", func(t *testing.T) {
		_, err := env.service.TicketFiles(9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_ProcessStep_Idempotent(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, false)

	env.process(t, ticket.ID, "VER", 5)

	_, err := env.service.ProcessStep(ticket.ID, ProcessRequest{
		Actor:      env.actors["VER"],
		TargetStep: 5,
	})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	histories, err := env.histories.ListByTicket(nil, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, histories, 1, "the rejected attempt must leave history unchanged")

	t.Run("wrong role on the processed step is unauthorized", func(t *testing.T) {
		_, err := env.service.ProcessStep(ticket.ID, ProcessRequest{
			Actor:      env.actors["BP"],
			TargetStep: 5,
		})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestService_ProcessStep_WrongRoleLeavesStateUntouched(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, false)

	_, err := env.service.ProcessStep(ticket.ID, ProcessRequest{Actor: env.actors["BP"]})
	assert.ErrorIs(t, err, ErrUnauthorized)

	reloaded, err := env.service.GetTicket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.CurrentStep)
	assert.Equal(t, models.StatusPending, reloaded.Status)
	assert.Empty(t, reloaded.Histories)
}

func TestService_ProcessStep_ParallelCohort(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, true)

	// Cohort members can be satisfied in any order.
	ticket = env.process(t, ticket.ID, "PPRBPD", 2)
	assert.Equal(t, 1, ticket.CurrentStep, "pointer holds until the cohort is full")
	assert.Equal(t, models.StatusInProgress, ticket.Status)

	ticket = env.process(t, ticket.ID, "OK", 3)
	assert.Equal(t, 1, ticket.CurrentStep)

	ticket = env.process(t, ticket.ID, "VER", 1)
	assert.Equal(t, 4, ticket.CurrentStep, "full cohort advances past its highest member")
	assert.Len(t, ticket.Histories, 3)
}

func TestService_ProcessStep_VarianceOnLsCheckStep(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, true)

	env.process(t, ticket.ID, "VER", 1)
	env.process(t, ticket.ID, "PPRBPD", 2)
	env.process(t, ticket.ID, "OK", 3)
	ticket = env.process(t, ticket.ID, "OSPM", 0)
	require.Equal(t, 5, ticket.CurrentStep)

	_, err := env.service.ProcessStep(ticket.ID, ProcessRequest{Actor: env.actors["VER"]})
	assert.ErrorIs(t, err, ErrValidation, "LS tickets need a variance selection here")

	ticket, err = env.service.ProcessStep(ticket.ID, ProcessRequest{
		Actor:    env.actors["VER"],
		Variance: VarianceKurang,
		Notes:    "tagihan di bawah rincian",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, ticket.CurrentStep, "LS skips the non-LS-only step")

	last := ticket.Histories[len(ticket.Histories)-1]
	assert.Equal(t, "[Selisih Kurang] tagihan di bawah rincian", last.Notes)
}

func TestService_AdminSkipStep(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, false)

	ticket, err := env.service.AdminSkipStep(ticket.ID, env.admin, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, ticket.CurrentStep)

	require.Len(t, ticket.Histories, 1)
	assert.Equal(t, "[DEBUG] Admin Satu", ticket.Histories[0].ProcessorName)
	assert.Equal(t, "[Admin Skip]", ticket.Histories[0].Notes)
}

func TestService_ReturnToPreviousStep(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, false)

	env.process(t, ticket.ID, "VER", 0)
	ticket = env.process(t, ticket.ID, "OSPBy", 0)
	require.Equal(t, 7, ticket.CurrentStep)

	t.Run("rejects an empty reason", func(t *testing.T) {
		_, err := env.service.ReturnToPreviousStep(ticket.ID, env.actors["BP"], "  ")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("retracts the last processed step", func(t *testing.T) {
		returned, err := env.service.ReturnToPreviousStep(ticket.ID, env.actors["BP"], "lampiran tidak sesuai")
		require.NoError(t, err)

		assert.Equal(t, 6, returned.CurrentStep)
		assert.Equal(t, models.StatusInProgress, returned.Status)

		require.Len(t, returned.Histories, 2)
		note := returned.Histories[1]
		assert.Equal(t, 6, note.StepNumber)
		assert.Equal(t, "[DIKEMBALIKAN DARI STEP 7] lampiran tidak sesuai", note.Notes)
	})

	t.Run("rejects return from the first step", func(t *testing.T) {
		fresh := env.createTicket(t, true)
		_, err := env.service.ReturnToPreviousStep(fresh.ID, env.admin, "salah")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestService_MyTasks(t *testing.T) {
	env := newEngineEnv(t)
	lsTicket := env.createTicket(t, true)
	nonLsTicket := env.createTicket(t, false)

	t.Run("role sees its pending steps across branches", func(t *testing.T) {
		tasks, err := env.service.MyTasks(env.actors["VER"])
		require.NoError(t, err)
		assert.Len(t, tasks, 2, "step 1 on the LS ticket and step 5 on the non-LS ticket")
	})

	t.Run("processed cohort member drops off the list", func(t *testing.T) {
		env.process(t, lsTicket.ID, "VER", 1)

		tasks, err := env.service.MyTasks(env.actors["VER"])
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, nonLsTicket.ID, tasks[0].ID)
	})

	t.Run("other cohort members still see their steps", func(t *testing.T) {
		tasks, err := env.service.MyTasks(env.actors["OK"])
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, lsTicket.ID, tasks[0].ID)
	})

	t.Run("non-employees have no tasks", func(t *testing.T) {
		_, err := env.service.MyTasks(env.admin)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestService_MyHistory(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, false)
	env.createTicket(t, false)

	env.process(t, ticket.ID, "VER", 0)

	tickets, err := env.service.MyHistory(env.actors["VER"])
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, ticket.ID, tickets[0].ID)
}

func TestService_DashboardStats(t *testing.T) {
	env := newEngineEnv(t)

	env.createTicket(t, false)
	inProgress := env.createTicket(t, false)
	env.process(t, inProgress.ID, "VER", 0)

	done := env.createTicket(t, false)
	env.process(t, done.ID, "VER", 0)
	env.process(t, done.ID, "OSPBy", 0)
	env.process(t, done.ID, "BP", 0)

	stats, err := env.service.DashboardStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.InProgress)
	assert.Equal(t, 1, stats.Completed)
	assert.Len(t, stats.RecentTickets, 3)
}

func TestService_GetTicket_NotFound(t *testing.T) {
	env := newEngineEnv(t)

	_, err := env.service.GetTicket(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_DeleteTicket(t *testing.T) {
	env := newEngineEnv(t)
	ticket := env.createTicket(t, false)

	require.NoError(t, env.service.DeleteTicket(ticket.ID))

	_, err := env.service.GetTicket(ticket.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, env.service.DeleteTicket(ticket.ID), ErrNotFound)
}
