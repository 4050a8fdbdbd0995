package workflow

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"github.com/adiwicaksono/pd-tracker/internal/repository"
	"github.com/adiwicaksono/pd-tracker/pkg/database"
	"github.com/adiwicaksono/pd-tracker/pkg/utils"
	"go.uber.org/zap"
)

// Service orchestrates state-machine decisions against the repositories.
// Every mutating operation runs inside a single transaction: the ticket
// row, its histories, and the catalog are read, the decision computed,
// and the writes applied together or not at all.
type Service struct {
	db           *database.DB
	tickets      *repository.TicketRepository
	histories    *repository.HistoryRepository
	steps        *repository.StepConfigRepository
	varianceStep int
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a new workflow service. varianceStep is the step
// number that demands a budget-variance selection on LS tickets.
func NewService(
	db *database.DB,
	tickets *repository.TicketRepository,
	histories *repository.HistoryRepository,
	steps *repository.StepConfigRepository,
	varianceStep int,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:           db,
		tickets:      tickets,
		histories:    histories,
		steps:        steps,
		varianceStep: varianceStep,
		logger:       logger,
		now:          time.Now,
	}
}

var ticketNumberPattern = regexp.MustCompile(`^PD-\d{4}(\d+)$`)

// CreateTicketInput carries the fields for a new ticket
type CreateTicketInput struct {
	ActivityName           string
	AssignmentLetterNumber string
	Uraian                 string
	StartDate              time.Time
	IsLs                   bool
	AssignedExecutorID1    *int64
	AssignedExecutorID2    *int64
}

// CreateTicket issues the next PD-YYYY## number for the start-date year
// and parks the ticket on the first applicable step of its branch.
func (s *Service) CreateTicket(input CreateTicketInput, actor models.Actor) (*models.Ticket, error) {
	if input.ActivityName == "" || input.AssignmentLetterNumber == "" {
		return nil, fmt.Errorf("%w: activity name and assignment letter number are required", ErrValidation)
	}

	startDate := input.StartDate
	if startDate.IsZero() {
		startDate = s.now()
	}
	year := startDate.Year()

	var ticket *models.Ticket
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		catalog, err := s.steps.List(tx)
		if err != nil {
			return err
		}

		latest, err := s.tickets.LatestNumberForYear(tx, year)
		if err != nil {
			return err
		}

		seq := 1
		if latest != "" {
			if m := ticketNumberPattern.FindStringSubmatch(latest); m != nil {
				n, _ := strconv.Atoi(m[1])
				seq = n + 1
			}
		}

		number := fmt.Sprintf("PD-%d%02d", year, seq)
		if err := utils.ValidateTicketNumber(number); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}

		ticket = &models.Ticket{
			TicketNumber:           number,
			ActivityName:           utils.SanitizeString(input.ActivityName),
			AssignmentLetterNumber: utils.SanitizeString(input.AssignmentLetterNumber),
			Uraian:                 utils.SanitizeString(input.Uraian),
			StartDate:              startDate,
			IsLs:                   input.IsLs,
			CurrentStep:            FirstApplicableStep(catalog, input.IsLs),
			Status:                 models.StatusPending,
			AssignedExecutorID1:    input.AssignedExecutorID1,
			AssignedExecutorID2:    input.AssignedExecutorID2,
			CreatedByID:            actor.ID,
		}
		return s.tickets.Create(tx, ticket)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Ticket created",
		zap.Int64("id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.Bool("is_ls", ticket.IsLs),
		zap.Int("start_step", ticket.CurrentStep))

	return s.GetTicket(ticket.ID)
}

// GetTicket retrieves a ticket with its histories attached
func (s *Service) GetTicket(id int64) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByID(nil, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: ticket %d", ErrNotFound, id)
	}

	histories, err := s.histories.ListByTicket(nil, id)
	if err != nil {
		return nil, err
	}
	ticket.Histories = histories
	return ticket, nil
}

// TicketFile is one uploaded artifact recorded on a ticket's history.
type TicketFile struct {
	HistoryID     int64     `json:"history_id"`
	StepNumber    int       `json:"step_number"`
	FileURL       string    `json:"file_url"`
	FileName      string    `json:"file_name"`
	ProcessorName string    `json:"processor_name"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// TicketFiles lists the artifacts attached to a ticket's history rows,
// ordered by step number. History rows without an upload are skipped.
func (s *Service) TicketFiles(id int64) ([]TicketFile, error) {
	ticket, err := s.GetTicket(id)
	if err != nil {
		return nil, err
	}

	files := make([]TicketFile, 0, len(ticket.Histories))
	for _, h := range ticket.Histories {
		if h.FileURL == nil {
			continue
		}
		file := TicketFile{
			HistoryID:     h.ID,
			StepNumber:    h.StepNumber,
			FileURL:       *h.FileURL,
			ProcessorName: h.ProcessorName,
			ProcessedAt:   h.ProcessedAt,
		}
		if h.FileName != nil {
			file.FileName = *h.FileName
		}
		files = append(files, file)
	}
	return files, nil
}

// ListTickets retrieves tickets matching the filter, histories attached
func (s *Service) ListTickets(filter repository.ListFilter) ([]*models.Ticket, error) {
	tickets, err := s.tickets.List(filter)
	if err != nil {
		return nil, err
	}
	for _, t := range tickets {
		histories, err := s.histories.ListByTicket(nil, t.ID)
		if err != nil {
			return nil, err
		}
		t.Histories = histories
	}
	return tickets, nil
}

// DeleteTicket removes a ticket and its histories
func (s *Service) DeleteTicket(id int64) error {
	ticket, err := s.tickets.GetByID(nil, id)
	if err != nil {
		return err
	}
	if ticket == nil {
		return fmt.Errorf("%w: ticket %d", ErrNotFound, id)
	}
	return s.tickets.Delete(id)
}

// ProcessStep records one processed step and advances the ticket per
// the state-machine rules. The whole operation is transactional: the
// idempotency check, the history insert, the cohort count, and the
// pointer update commit together or not at all.
func (s *Service) ProcessStep(ticketID int64, req ProcessRequest) (*models.Ticket, error) {
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		ticket, err := s.tickets.GetByID(tx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return fmt.Errorf("%w: ticket %d", ErrNotFound, ticketID)
		}

		ticket.Histories, err = s.histories.ListByTicket(tx, ticket.ID)
		if err != nil {
			return err
		}

		catalog, err := s.steps.List(tx)
		if err != nil {
			return err
		}

		machine := NewMachine(catalog, s.varianceStep)
		step, err := machine.ResolveStep(ticket, req)
		if err != nil {
			return err
		}

		history := &models.TicketHistory{
			TicketID:      ticket.ID,
			StepNumber:    step.StepNumber,
			ProcessedByID: req.Actor.ID,
			ProcessorName: req.Actor.Name,
			Notes:         machine.FinalNotes(ticket, step, req),
			ProcessedAt:   s.now(),
		}
		if req.File != nil {
			history.FileURL = &req.File.URL
			history.FileName = &req.File.OriginalName
		}
		if req.Bypass {
			// Make the authorization bypass visible to auditors.
			history.ProcessorName = "[DEBUG] " + req.Actor.Name
			if history.Notes == "" {
				history.Notes = "[Admin Skip]"
			}
		}

		if err := s.histories.Create(tx, history); err != nil {
			return err
		}

		cohortProcessed := 0
		if step.InParallelGroup() {
			cohort := ParallelCohort(catalog, *step.ParallelGroup)
			cohortProcessed, err = s.histories.CountInSteps(tx, ticket.ID, cohort)
			if err != nil {
				return err
			}
		}

		decision := machine.Advance(ticket, step, cohortProcessed)
		if err := s.tickets.UpdateProgress(tx, ticket.ID, decision.NextStep, decision.Status); err != nil {
			return err
		}

		s.logger.Info("Step processed",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int("step", step.StepNumber),
			zap.Int("next_step", decision.NextStep),
			zap.String("status", string(decision.Status)),
			zap.Bool("bypass", req.Bypass),
			zap.Int64("processed_by", req.Actor.ID))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTicket(ticketID)
}

// AdminSkipStep processes a step on behalf of a privileged operator,
// bypassing role and assignment checks. Used for operational recovery
// only; the history row is tagged so the bypass stays auditable.
func (s *Service) AdminSkipStep(ticketID int64, actor models.Actor, targetStep int) (*models.Ticket, error) {
	return s.ProcessStep(ticketID, ProcessRequest{
		Actor:      actor,
		TargetStep: targetStep,
		Notes:      "[Admin Skip]",
		Bypass:     true,
	})
}

// ReturnToPreviousStep retracts the most recently processed step and
// moves the ticket back to the applicable step before its current one.
// The correction reason is written as a history row at the previous
// step, where whoever redoes the work will see it.
func (s *Service) ReturnToPreviousStep(ticketID int64, actor models.Actor, reasonNotes string) (*models.Ticket, error) {
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		ticket, err := s.tickets.GetByID(tx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return fmt.Errorf("%w: ticket %d", ErrNotFound, ticketID)
		}

		catalog, err := s.steps.List(tx)
		if err != nil {
			return err
		}

		machine := NewMachine(catalog, s.varianceStep)
		previousStep, err := machine.ReturnTarget(ticket, reasonNotes)
		if err != nil {
			return err
		}

		// Retract the advance that put the ticket at its current step.
		newest, err := s.histories.Newest(tx, ticket.ID)
		if err != nil {
			return err
		}
		if newest != nil {
			if err := s.histories.DeleteByID(tx, newest.ID); err != nil {
				return err
			}
		}

		history := &models.TicketHistory{
			TicketID:      ticket.ID,
			StepNumber:    previousStep,
			ProcessedByID: actor.ID,
			ProcessorName: actor.Name,
			Notes:         ReturnNote(ticket.CurrentStep, reasonNotes),
			ProcessedAt:   s.now(),
		}
		if err := s.histories.Create(tx, history); err != nil {
			return err
		}

		// A return can never complete a ticket.
		if err := s.tickets.UpdateProgress(tx, ticket.ID, previousStep, models.StatusInProgress); err != nil {
			return err
		}

		s.logger.Info("Ticket returned to previous step",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int("from_step", ticket.CurrentStep),
			zap.Int("to_step", previousStep),
			zap.Int64("returned_by", actor.ID))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTicket(ticketID)
}

// MyTasks lists the non-completed tickets the actor can currently work
// on: tickets whose current step (or an unfinished member of its
// parallel cohort) requires the actor's employee role.
func (s *Service) MyTasks(actor models.Actor) ([]*models.Ticket, error) {
	if actor.EmployeeRole == "" {
		return nil, fmt.Errorf("%w: only employees have tasks", ErrUnauthorized)
	}

	catalog, err := s.steps.List(nil)
	if err != nil {
		return nil, err
	}

	roleSteps := make(map[int]bool)
	for _, step := range catalog {
		if step.RequiredEmployeeRole == actor.EmployeeRole {
			roleSteps[step.StepNumber] = true
		}
	}

	tickets, err := s.ListTickets(repository.ListFilter{ExcludeStatus: models.StatusCompleted})
	if err != nil {
		return nil, err
	}

	var tasks []*models.Ticket
	for _, ticket := range tickets {
		if s.actorHasTask(catalog, ticket, actor, roleSteps) {
			tasks = append(tasks, ticket)
		}
	}
	return tasks, nil
}

func (s *Service) actorHasTask(catalog []*models.StepConfiguration, ticket *models.Ticket, actor models.Actor, roleSteps map[int]bool) bool {
	current := StepByNumber(catalog, ticket.CurrentStep)
	if current == nil {
		return false
	}

	if current.InParallelGroup() {
		for _, member := range ParallelCohort(catalog, *current.ParallelGroup) {
			if roleSteps[member] && !ticket.HasHistoryFor(member) {
				return true
			}
		}
		return false
	}

	if !roleSteps[ticket.CurrentStep] || !current.AppliesTo(ticket.IsLs) {
		return false
	}

	// Signing step pinned to named executors hides the task from
	// everyone else holding the role.
	if current.RequiredEmployeeRole == models.RolePelaksana && ticket.HasAssignedExecutors() {
		return ticket.IsAssignedExecutor(actor.ID)
	}
	return true
}

// MyHistory lists tickets where the actor has processed at least one step
func (s *Service) MyHistory(actor models.Actor) ([]*models.Ticket, error) {
	return s.ListTickets(repository.ListFilter{ProcessedByID: actor.ID})
}

// Stats summarises ticket counts for the dashboard
type Stats struct {
	Total         int              `json:"total"`
	Pending       int              `json:"pending"`
	InProgress    int              `json:"in_progress"`
	Completed     int              `json:"completed"`
	RecentTickets []*models.Ticket `json:"recent_tickets"`
}

// DashboardStats returns ticket counts by status and the newest tickets
func (s *Service) DashboardStats() (*Stats, error) {
	counts, err := s.tickets.CountByStatus()
	if err != nil {
		return nil, err
	}

	recent, err := s.tickets.List(repository.ListFilter{Limit: 5})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Pending:       counts[models.StatusPending],
		InProgress:    counts[models.StatusInProgress],
		Completed:     counts[models.StatusCompleted],
		RecentTickets: recent,
	}
	stats.Total = stats.Pending + stats.InProgress + stats.Completed
	return stats, nil
}
